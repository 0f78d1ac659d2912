// Package mapview turns a photo set into map markers.
package mapview

import (
	"encoding/json"

	"github.com/golang/geo/s2"

	"github.com/electronjoe/DamageReview/internal/ingest"
	"github.com/electronjoe/DamageReview/internal/photo"
)

// boundsPadding is the fraction of the marker extent added on every side.
const boundsPadding = 0.1

var roleColors = map[ingest.Role]string{
	ingest.RoleDamage:       "#ef4444",
	ingest.RolePrecondition: "#22c55e",
	ingest.RoleCompletion:   "#eab308",
}

// roleOrder is the order markers are emitted in.
var roleOrder = []ingest.Role{ingest.RoleDamage, ingest.RolePrecondition, ingest.RoleCompletion}

// Marker is a located photo on the map.
type Marker struct {
	Location photo.Location `json:"location"`
	Role     ingest.Role    `json:"role"`
	Color    string         `json:"color"`
	Title    string         `json:"title"`
	Name     string         `json:"name"`
	Preview  string         `json:"previewUri,omitempty"`
}

// Markers returns one marker per photo with a location, damage photos
// first. Photos without GPS are left off the map.
func Markers(set ingest.PhotoSet) []Marker {
	var out []Marker
	for _, role := range roleOrder {
		for _, p := range set.Photos(role) {
			if !p.HasLocation() {
				continue
			}
			out = append(out, Marker{
				Location: *p.Location,
				Role:     role,
				Color:    roleColors[role],
				Title:    role.Title() + " Photo",
				Name:     p.Name,
				Preview:  p.PreviewURI,
			})
		}
	}
	return out
}

// Bounds is a latitude/longitude box in degrees.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// BoundsOf returns the box around all markers padded by 10% of its size on
// each side. ok is false when there are no markers.
func BoundsOf(markers []Marker) (b Bounds, ok bool) {
	rect := s2.EmptyRect()
	for _, m := range markers {
		rect = rect.AddPoint(m.Location.LatLng())
	}
	if rect.IsEmpty() {
		return Bounds{}, false
	}

	size := rect.Size()
	rect = rect.Expanded(s2.LatLng{
		Lat: size.Lat * boundsPadding,
		Lng: size.Lng * boundsPadding,
	})
	lo, hi := rect.Lo(), rect.Hi()
	return Bounds{
		South: lo.Lat.Degrees(),
		West:  lo.Lng.Degrees(),
		North: hi.Lat.Degrees(),
		East:  hi.Lng.Degrees(),
	}, true
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
	BBox     []float64 `json:"bbox,omitempty"`
}

type feature struct {
	Type       string         `json:"type"`
	Geometry   geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// GeoJSON encodes markers as a FeatureCollection of points with the padded
// bounds as bbox.
func GeoJSON(markers []Marker) ([]byte, error) {
	fc := featureCollection{Type: "FeatureCollection", Features: []feature{}}
	for _, m := range markers {
		props := map[string]any{
			"role":  m.Role,
			"color": m.Color,
			"title": m.Title,
			"name":  m.Name,
		}
		if m.Preview != "" {
			props["previewUri"] = m.Preview
		}
		fc.Features = append(fc.Features, feature{
			Type: "Feature",
			Geometry: geometry{
				Type:        "Point",
				Coordinates: [2]float64{m.Location.Longitude, m.Location.Latitude},
			},
			Properties: props,
		})
	}
	if b, ok := BoundsOf(markers); ok {
		fc.BBox = []float64{b.West, b.South, b.East, b.North}
	}
	return json.Marshal(fc)
}
