// Package export orchestrates the conversion of a parsed placemark document
// into an ordered tabular record set.
package export

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/kmz2csv/internal/boundary"
	"github.com/sells-group/kmz2csv/internal/kml"
	"github.com/sells-group/kmz2csv/internal/model"
)

// Preferred output column names, in the fixed prefix order.
const (
	ColName     = "homepass"
	ColLat      = "lat"
	ColLon      = "lon"
	ColStreet   = "street"
	ColBoundary = "boundary"
)

// StreetLookup resolves a coordinate to a street name. Implemented by
// pkg/geocode; stubbed in tests.
type StreetLookup interface {
	Lookup(ctx context.Context, lat, lon float64) (*string, error)
}

// Options controls a single conversion.
type Options struct {
	// Geocode enables the per-point street lookup pass.
	Geocode bool
}

// Table is the final record set: a header row plus data rows, cells already
// stringified (empty string for null).
type Table struct {
	Columns []string
	Rows    [][]string
}

// Converter runs the extraction, boundary-assignment, and geocoding stages.
type Converter struct {
	geocoder StreetLookup
}

// NewConverter creates a Converter. The geocoder may be nil when geocoding
// is never requested.
func NewConverter(geocoder StreetLookup) *Converter {
	return &Converter{geocoder: geocoder}
}

// Convert turns a parsed document into a Table. Points are processed
// strictly in document order and one at a time: the geocode throttle makes
// the loop a deliberate serialization point. Per-point geocode failures are
// recorded as null streets and never abort the batch; the only fatal
// condition is a document with no extractable points.
func (c *Converter) Convert(ctx context.Context, doc *kml.Document, opts Options) (*Table, error) {
	convID := uuid.New().String()

	polygons := kml.ExtractPolygons(doc)
	points, err := kml.ExtractPoints(doc)
	if err != nil {
		return nil, err
	}

	idx := boundary.Build(polygons)
	zap.L().Info("conversion started",
		zap.String("conversion_id", convID),
		zap.Int("points", len(points)),
		zap.Int("polygons", idx.Len()),
		zap.Bool("geocode", opts.Geocode),
	)

	for i := range points {
		points[i].Boundary = idx.Assign(points[i].Coord)
	}

	if opts.Geocode && c.geocoder != nil {
		for i := range points {
			outcome := c.lookupStreet(ctx, points[i].Coord)
			if outcome.Err != nil {
				zap.L().Warn("geocode lookup failed for point",
					zap.String("conversion_id", convID),
					zap.Float64("lat", points[i].Coord.Lat),
					zap.Float64("lon", points[i].Coord.Lon),
					zap.Error(outcome.Err),
				)
			}
			points[i].Street = outcome.StreetOrNil()
		}
	}

	table := buildTable(points, opts.Geocode)
	zap.L().Info("conversion complete",
		zap.String("conversion_id", convID),
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)),
	)
	return table, nil
}

// lookupStreet wraps one geocode call in a GeocodeOutcome so the failure
// reason stays inspectable until serialization.
func (c *Converter) lookupStreet(ctx context.Context, coord model.Coordinate) model.GeocodeOutcome {
	street, err := c.geocoder.Lookup(ctx, coord.Lat, coord.Lon)
	return model.GeocodeOutcome{Street: street, Err: err}
}

// buildTable assembles columns and rows. The preferred prefix comes first
// (street only when geocoding ran), then every extra attribute column in
// order of first appearance across points.
func buildTable(points []model.PointRecord, geocoded bool) *Table {
	columns := []string{ColName, ColLat, ColLon}
	if geocoded {
		columns = append(columns, ColStreet)
	}
	columns = append(columns, ColBoundary)

	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		seen[col] = struct{}{}
	}
	for i := range points {
		for _, name := range points[i].AttrOrder {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			columns = append(columns, name)
		}
	}

	rows := make([][]string, 0, len(points))
	for i := range points {
		p := &points[i]
		row := make([]string, len(columns))
		for j, col := range columns {
			switch col {
			case ColName:
				row[j] = deref(p.Name)
			case ColLat:
				row[j] = formatFloat(p.Coord.Lat)
			case ColLon:
				row[j] = formatFloat(p.Coord.Lon)
			case ColStreet:
				row[j] = deref(p.Street)
			case ColBoundary:
				row[j] = deref(p.Boundary)
			default:
				row[j] = p.Attrs[col]
			}
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
