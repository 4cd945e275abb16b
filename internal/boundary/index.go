// Package boundary assigns points to named polygons with contains-or-touches
// semantics and a first-declared-wins tie break.
package boundary

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/kmz2csv/internal/model"
)

// prepared is one polygon with its containment-test representation built up
// front: the closed outer ring's flat coords plus a bounding box used as a
// fast reject before the exact tests.
type prepared struct {
	name   string
	poly   *geom.Polygon
	ring   []float64
	bounds *geom.Bounds
}

// Index answers point-membership queries over a fixed polygon set.
type Index struct {
	polys []prepared
}

// Build prepares an Index from extracted polygon specs. Rings with fewer
// than 3 distinct vertices are skipped with a warning; insertion order is
// preserved because it decides overlap ties.
func Build(specs []model.PolygonSpec) *Index {
	idx := &Index{}
	for _, spec := range specs {
		ring := closeRing(spec.Ring)
		if ring == nil {
			zap.L().Warn("boundary: skipping degenerate polygon",
				zap.String("name", spec.Name),
				zap.Int("vertices", len(spec.Ring)),
			)
			continue
		}

		coords := make([]geom.Coord, len(ring))
		for i, c := range ring {
			coords[i] = geom.Coord{c.Lon, c.Lat}
		}
		poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
		if err != nil {
			zap.L().Warn("boundary: skipping malformed polygon",
				zap.String("name", spec.Name),
				zap.Error(err),
			)
			continue
		}

		flat := poly.LinearRing(0).FlatCoords()
		idx.polys = append(idx.polys, prepared{
			name:   spec.Name,
			poly:   poly,
			ring:   flat,
			bounds: poly.Bounds(),
		})
	}
	return idx
}

// Len reports how many polygons survived preparation.
func (idx *Index) Len() int {
	return len(idx.polys)
}

// Assign returns the name of the first polygon, in insertion order, that
// contains the coordinate or whose boundary it touches. Points enclosed by
// nothing yield nil.
func (idx *Index) Assign(c model.Coordinate) *string {
	if len(idx.polys) == 0 {
		return nil
	}

	point := geom.Coord{c.Lon, c.Lat}
	for i := range idx.polys {
		pp := &idx.polys[i]
		if !pp.bounds.OverlapsPoint(geom.XY, point) {
			continue
		}
		if xy.IsPointInRing(geom.XY, point, pp.ring) || xy.IsOnLine(geom.XY, point, pp.ring) {
			name := pp.name
			return &name
		}
	}
	return nil
}

// closeRing returns the ring with the first vertex appended when the ring is
// not already closed, or nil when fewer than 3 distinct vertices remain.
func closeRing(ring []model.Coordinate) []model.Coordinate {
	distinct := make(map[model.Coordinate]struct{}, len(ring))
	for _, c := range ring {
		distinct[c] = struct{}{}
	}
	if len(distinct) < 3 {
		return nil
	}

	if ring[0] != ring[len(ring)-1] {
		closed := make([]model.Coordinate, 0, len(ring)+1)
		closed = append(closed, ring...)
		closed = append(closed, ring[0])
		return closed
	}
	return ring
}
