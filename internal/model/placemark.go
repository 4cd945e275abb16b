// Package model defines the data types shared across the conversion pipeline.
package model

// UnknownBoundary is the sentinel name assigned to polygon placemarks that
// have no usable display name.
const UnknownBoundary = "UNKNOWN_BOUNDARY"

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PolygonSpec is a named boundary polygon as extracted from the source
// document: an identifier plus its outer ring in vertex order. The ring may
// or may not repeat the first vertex at the end.
type PolygonSpec struct {
	Name string       `json:"name"`
	Ring []Coordinate `json:"ring"`
}

// PointRecord is one point placemark with everything accumulated for it
// during a conversion. Name is nullable (points carry no sentinel, unlike
// polygons); Boundary and Street are filled in by later pipeline stages.
type PointRecord struct {
	Name  *string    `json:"homepass"`
	Coord Coordinate `json:"coord"`

	// Attrs holds extended attributes merged from both source forms.
	// AttrOrder records each key in order of first appearance so output
	// columns stay deterministic.
	Attrs     map[string]string `json:"attrs,omitempty"`
	AttrOrder []string          `json:"-"`

	Boundary *string `json:"boundary"`
	Street   *string `json:"street"`
}

// SetAttr records an attribute value, tracking first-seen key order.
// Re-setting an existing key overwrites the value without reordering.
func (p *PointRecord) SetAttr(name, value string) {
	if p.Attrs == nil {
		p.Attrs = make(map[string]string)
	}
	if _, seen := p.Attrs[name]; !seen {
		p.AttrOrder = append(p.AttrOrder, name)
	}
	p.Attrs[name] = value
}

// GeocodeOutcome is the per-point result of a street lookup. Failures are
// kept inspectable here and collapse to a null street only at the
// serialization boundary.
type GeocodeOutcome struct {
	Street *string
	Err    error
}

// StreetOrNil returns the resolved street, or nil when the lookup failed or
// found nothing.
func (o GeocodeOutcome) StreetOrNil() *string {
	if o.Err != nil {
		return nil
	}
	return o.Street
}
