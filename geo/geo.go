// Package geo holds the geodesic check used to verify that a report was filed on-site.
package geo

import (
	"math"

	"fmr-portal/model"
)

const (
	EarthRadiusMetres = 6_371_000.0

	// OnSiteRadiusMetres is the furthest a fix may be from the project and still verify.
	OnSiteRadiusMetres = 100.0
	// WeakFixAccuracyMetres is the uncertainty above which a mismatch is not trusted.
	WeakFixAccuracyMetres = 50.0
)

// Distance returns the haversine great-circle distance in metres between two points in decimal degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*sinLon*sinLon
	return 2 * EarthRadiusMetres * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Classify labels a report by comparing the fix against the project location.
// The order of the checks matters: a weak fix never produces a confident mismatch.
func Classify(fix *model.GeoFix, project *model.ProjectReference) model.VerificationLabel {
	if fix == nil || project == nil || !project.HasCoordinates() {
		return model.NeedsReview
	}
	d := Distance(fix.Latitude, fix.Longitude, *project.Latitude, *project.Longitude)
	if d <= OnSiteRadiusMetres {
		return model.VerifiedOnSite
	}
	if fix.HasAccuracy() && *fix.Accuracy > WeakFixAccuracyMetres {
		return model.NeedsReview
	}
	return model.LocationMismatch
}

// DistanceToProject returns the distance from fix to project, or false when either side lacks coordinates.
func DistanceToProject(fix *model.GeoFix, project *model.ProjectReference) (float64, bool) {
	if fix == nil || project == nil || !project.HasCoordinates() {
		return 0, false
	}
	return Distance(fix.Latitude, fix.Longitude, *project.Latitude, *project.Longitude), true
}
