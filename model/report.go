package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RegionName   = "Region VI – Western Visayas"
	ProvinceName = "Iloilo"

	AnonymousName   = "Anonymous"
	SourcePublic    = "Public Report"
	SourceAnonymous = "Anonymous Public Report"
)

// VerificationLabel is the trust verdict stored on a submitted report.
type VerificationLabel string

const (
	VerifiedOnSite   VerificationLabel = "Verified On-Site"
	NeedsReview      VerificationLabel = "Needs Review"
	LocationMismatch VerificationLabel = "Location Mismatch"
)

// ReportStatus tracks an admin's handling of a report.
type ReportStatus string

const (
	StatusPending  ReportStatus = "pending"
	StatusReviewed ReportStatus = "reviewed"
	StatusResolved ReportStatus = "resolved"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusResolved:
		return true
	}
	return false
}

// PublicReport is the record handed to report persistence on submit.
type PublicReport struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName       string             `bson:"full_name" json:"full_name"`
	ContactInfo    string             `bson:"contact_info" json:"contact_info"`
	Region         string             `bson:"region" json:"region"`
	Province       string             `bson:"province" json:"province"`
	Municipality   string             `bson:"municipality" json:"municipality"`
	Barangay       string             `bson:"barangay" json:"barangay"`
	Street         string             `bson:"street" json:"street"`
	ProjectID      string             `bson:"project_id" json:"project_id"`
	ProjectName    string             `bson:"project_name" json:"project_name"`
	PhotoURL       string             `bson:"photo_url" json:"photo_url"`
	Latitude       *float64           `bson:"latitude" json:"latitude"`
	Longitude      *float64           `bson:"longitude" json:"longitude"`
	GeoAccuracy    *float64           `bson:"geo_accuracy" json:"geo_accuracy"`
	PhotoTimestamp string             `bson:"photo_timestamp" json:"photo_timestamp"`
	Verification   VerificationLabel  `bson:"verification" json:"verification"`
	Description    string             `bson:"description" json:"description"`
	Source         string             `bson:"source" json:"source"`
	Status         ReportStatus       `bson:"status" json:"status"`

	Location  *GeoPoint `bson:"location,omitempty" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
