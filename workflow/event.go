// Package workflow drives one on-site report from GPS consent to submission.
package workflow

import (
	"errors"

	"fmr-portal/model"
)

var (
	ErrIncomplete  = errors.New("report is missing a description, photo or project")
	ErrNotInReview = errors.New("report is not ready for submission")
	ErrSubmitting  = errors.New("report submission already in progress")
)

// Step is a screen of the report flow. The numeric values follow the form's step indices.
type Step int

const (
	StepConsent Step = iota - 1
	StepLocation
	StepProject
	StepPhoto
	StepDetails
	StepReview
	StepSubmitted
)

var stepNames = map[Step]string{
	StepConsent:   "consent",
	StepLocation:  "location",
	StepProject:   "project",
	StepPhoto:     "photo",
	StepDetails:   "details",
	StepReview:    "review",
	StepSubmitted: "submitted",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return "unknown"
}

type EventKind int

const (
	LocationRequested EventKind = iota + 1
	FixReceived
	LocationFailed
	PermissionDenied
	MunicipalitySelected
	BarangaySelected
	StreetChanged
	ProjectsRequested
	ProjectsLoaded
	ProjectSelected
	CameraRetry
	CameraReady
	CameraFailed
	PhotoCaptured
	RetakeRequested
	DetailsChanged
	StepAdvance
	StepBack
	SubmitStarted
	SubmitFailed
	SubmitSucceeded
	Reset
)

var eventNames = map[EventKind]string{
	LocationRequested:    "location_requested",
	FixReceived:          "fix_received",
	LocationFailed:       "location_failed",
	PermissionDenied:     "permission_denied",
	MunicipalitySelected: "municipality_selected",
	BarangaySelected:     "barangay_selected",
	StreetChanged:        "street_changed",
	ProjectsRequested:    "projects_requested",
	ProjectsLoaded:       "projects_loaded",
	ProjectSelected:      "project_selected",
	CameraRetry:          "camera_retry",
	CameraReady:          "camera_ready",
	CameraFailed:         "camera_failed",
	PhotoCaptured:        "photo_captured",
	RetakeRequested:      "retake_requested",
	DetailsChanged:       "details_changed",
	StepAdvance:          "step_advance",
	StepBack:             "step_back",
	SubmitStarted:        "submit_started",
	SubmitFailed:         "submit_failed",
	SubmitSucceeded:      "submit_succeeded",
	Reset:                "reset",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

// Details is the free-text part of a report.
type Details struct {
	Description string `json:"description"`
	FullName    string `json:"full_name"`
	ContactInfo string `json:"contact_info"`
}

// Event is the single input type of the reducer. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Fix      *model.GeoFix
	Err      error
	Text     string
	Details  Details
	Photo    *model.CapturedPhoto
	Projects []model.ProjectReference
	Token    uint64
	ReportID string
}
