package kml

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/kmz2csv/internal/model"
)

// ExtractPolygons returns the boundary polygons declared in the document, in
// document order. Placemarks with a missing, empty, or unparsable outer ring
// are skipped with a warning rather than failing the conversion.
func ExtractPolygons(doc *Document) []model.PolygonSpec {
	var polys []model.PolygonSpec
	for i := range doc.Placemarks {
		pm := &doc.Placemarks[i]
		geom := pm.polygonGeom()
		if geom == nil {
			continue
		}

		name := strings.TrimSpace(pm.Name)
		if name == "" {
			name = model.UnknownBoundary
		}

		text := strings.TrimSpace(geom.OuterBoundaryIs.LinearRing.Coordinates)
		if text == "" {
			continue
		}

		ring, err := parseCoordinates(text)
		if err != nil {
			zap.L().Warn("kml: skipping polygon with unparsable ring",
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}

		polys = append(polys, model.PolygonSpec{Name: name, Ring: ring})
	}
	return polys
}

// ExtractPoints returns the point placemarks in document order. Points with
// unparsable coordinates are skipped. A document that yields no points at
// all is rejected with ErrNoPoints; that is the pipeline's only hard stop.
func ExtractPoints(doc *Document) ([]model.PointRecord, error) {
	var points []model.PointRecord
	for i := range doc.Placemarks {
		pm := &doc.Placemarks[i]
		geom := pm.pointGeom()
		if geom == nil {
			continue
		}

		text := strings.TrimSpace(geom.Coordinates)
		if text == "" {
			continue
		}

		coords, err := parseCoordinates(text)
		if err != nil || len(coords) == 0 {
			zap.L().Warn("kml: skipping point with unparsable coordinates",
				zap.String("name", strings.TrimSpace(pm.Name)),
				zap.Error(err),
			)
			continue
		}

		rec := model.PointRecord{Coord: coords[0]}
		if name := strings.TrimSpace(pm.Name); name != "" {
			rec.Name = &name
		}
		mergeExtendedData(&rec, pm.ExtendedData)

		points = append(points, rec)
	}

	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	return points, nil
}

// mergeExtendedData collects attributes from both representations. Flat
// Data pairs are applied first, SchemaData second, so a schema value wins
// when the same name appears in both forms.
func mergeExtendedData(rec *model.PointRecord, ext *ExtendedData) {
	if ext == nil {
		return
	}
	for _, d := range ext.Data {
		if d.Name == "" {
			continue
		}
		var val string
		if d.Value != nil {
			val = *d.Value
		}
		rec.SetAttr(d.Name, val)
	}
	for _, sd := range ext.SchemaData {
		for _, s := range sd.SimpleData {
			if s.Name == "" {
				continue
			}
			rec.SetAttr(s.Name, s.Value)
		}
	}
}

// parseCoordinates parses KML coordinate text: whitespace-separated
// "lon,lat[,alt]" tuples. Altitude is discarded.
func parseCoordinates(text string) ([]model.Coordinate, error) {
	var coords []model.Coordinate
	for _, token := range strings.Fields(text) {
		parts := strings.Split(token, ",")
		if len(parts) < 2 {
			return nil, eris.Errorf("kml: coordinate tuple %q has no latitude", token)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: parse longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: parse latitude %q", parts[1])
		}
		coords = append(coords, model.Coordinate{Lat: lat, Lon: lon})
	}
	return coords, nil
}
