// Package kml selects, parses, and extracts placemarks from KML/KMZ uploads.
package kml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// Sentinel errors for user-visible input rejections.
var (
	ErrUnsupportedSuffix = eris.New("kml: file must be .kmz or .kml")
	ErrNoDocument        = eris.New("kml: archive contains no .kml document")
	ErrNoPoints          = eris.New("kml: no point placemarks found in document")
)

// Document is the parsed form of one KML file: every placemark in the tree,
// in document order, regardless of folder nesting.
type Document struct {
	Placemarks []Placemark
}

// Placemark is one named feature carrying a point or polygon geometry.
type Placemark struct {
	Name          string         `xml:"name"`
	ExtendedData  *ExtendedData  `xml:"ExtendedData"`
	Point         *PointGeom     `xml:"Point"`
	Polygon       *PolygonGeom   `xml:"Polygon"`
	MultiGeometry *MultiGeometry `xml:"MultiGeometry"`
}

// MultiGeometry groups geometries; only the first point/polygon is used.
type MultiGeometry struct {
	Points        []PointGeom     `xml:"Point"`
	Polygons      []PolygonGeom   `xml:"Polygon"`
	MultiGeometry []MultiGeometry `xml:"MultiGeometry"`
}

// PointGeom holds a point's raw coordinate text.
type PointGeom struct {
	Coordinates string `xml:"coordinates"`
}

// PolygonGeom holds a polygon's outer ring coordinate text.
type PolygonGeom struct {
	OuterBoundaryIs struct {
		LinearRing struct {
			Coordinates string `xml:"coordinates"`
		} `xml:"LinearRing"`
	} `xml:"outerBoundaryIs"`
}

// ExtendedData carries both attribute forms a placemark may use.
type ExtendedData struct {
	Data       []DataPair   `xml:"Data"`
	SchemaData []SchemaData `xml:"SchemaData"`
}

// DataPair is a flat name/value attribute.
type DataPair struct {
	Name  string  `xml:"name,attr"`
	Value *string `xml:"value"`
}

// SchemaData is a schema-based attribute group.
type SchemaData struct {
	SimpleData []SimpleData `xml:"SimpleData"`
}

// SimpleData is one schema-based attribute.
type SimpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// pointGeom returns the placemark's point geometry, searching nested
// MultiGeometry groups, or nil.
func (p *Placemark) pointGeom() *PointGeom {
	if p.Point != nil {
		return p.Point
	}
	if p.MultiGeometry != nil {
		return p.MultiGeometry.pointGeom()
	}
	return nil
}

func (m *MultiGeometry) pointGeom() *PointGeom {
	if len(m.Points) > 0 {
		return &m.Points[0]
	}
	for i := range m.MultiGeometry {
		if pt := m.MultiGeometry[i].pointGeom(); pt != nil {
			return pt
		}
	}
	return nil
}

// polygonGeom returns the placemark's polygon geometry, searching nested
// MultiGeometry groups, or nil.
func (p *Placemark) polygonGeom() *PolygonGeom {
	if p.Polygon != nil {
		return p.Polygon
	}
	if p.MultiGeometry != nil {
		return p.MultiGeometry.polygonGeom()
	}
	return nil
}

func (m *MultiGeometry) polygonGeom() *PolygonGeom {
	if len(m.Polygons) > 0 {
		return &m.Polygons[0]
	}
	for i := range m.MultiGeometry {
		if pg := m.MultiGeometry[i].polygonGeom(); pg != nil {
			return pg
		}
	}
	return nil
}

// SelectDocument picks the KML bytes out of an upload. A .kml file passes
// through unchanged; a .kmz archive yields its first .kml entry. Any other
// suffix is rejected.
func SelectDocument(data []byte, filename string) ([]byte, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".kml"):
		return data, nil
	case strings.HasSuffix(name, ".kmz"):
		return extractFromKMZ(data)
	default:
		return nil, ErrUnsupportedSuffix
	}
}

// extractFromKMZ reads the first .kml entry of a KMZ archive fully into
// memory. Entry order follows the archive directory.
func extractFromKMZ(data []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "kml: open kmz archive")
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "kml: open kmz entry %q", f.Name)
		}
		doc, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			return nil, eris.Wrapf(err, "kml: read kmz entry %q", f.Name)
		}
		return doc, nil
	}

	return nil, ErrNoDocument
}

// Parse decodes KML bytes into a Document. Placemarks are collected from the
// whole tree so folder nesting does not matter. Non-UTF8 documents are
// decoded through their declared charset.
func Parse(data []byte) (*Document, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var doc Document
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "kml: parse document")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Placemark" {
			continue
		}

		var pm Placemark
		if err := decoder.DecodeElement(&pm, &se); err != nil {
			return nil, eris.Wrap(err, "kml: decode placemark")
		}
		doc.Placemarks = append(doc.Placemarks, pm)
	}

	return &doc, nil
}
