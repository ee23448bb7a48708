package model

import "time"

// GeoFix is a single device location snapshot.
type GeoFix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"` // metres, nil when the device did not report it
	CapturedAt time.Time `json:"captured_at"`
}

func (f GeoFix) HasAccuracy() bool {
	return f.Accuracy != nil
}

// AccuracyOrZero returns the uncertainty radius, or 0 when unknown.
func (f GeoFix) AccuracyOrZero() float64 {
	if f.Accuracy == nil {
		return 0
	}
	return *f.Accuracy
}

type GeoPoint struct {
	Type        string    `bson:"type,omitempty"`
	Coordinates []float64 `bson:"coordinates,omitempty"` // [longitude, latitude]
}

func NewGeoPoint(lat, lon float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}

// ProjectReference is a farm-to-market road project as returned by the project query.
type ProjectReference struct {
	ID           string   `bson:"_id" json:"id"`
	Name         string   `bson:"projectName" json:"name"`
	Latitude     *float64 `bson:"latitude,omitempty" json:"latitude"`
	Longitude    *float64 `bson:"longitude,omitempty" json:"longitude"`
	Municipality string   `bson:"municipality" json:"municipality"`
	Barangay     string   `bson:"barangay" json:"barangay"`
	Status       string   `bson:"status" json:"status"`
}

func (p ProjectReference) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// CapturedPhoto is the annotated still produced by one capture.
type CapturedPhoto struct {
	Image      []byte    // JPEG
	CapturedAt time.Time // instant burned into the overlay
	SourceFix  *GeoFix
	Width      int
	Height     int
}

func Float64(v float64) *float64 {
	return &v
}
