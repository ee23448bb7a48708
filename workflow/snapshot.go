package workflow

import (
	"fmr-portal/model"
)

// Snapshot is a read-only view of a session for display.
type Snapshot struct {
	Step      string `json:"step"`
	StepIndex int    `json:"step_index"`

	Municipality string `json:"municipality"`
	Barangay     string `json:"barangay"`
	Street       string `json:"street"`

	Projects        []model.ProjectReference `json:"projects"`
	ProjectsLoading bool                     `json:"projects_loading"`
	ProjectsError   string                   `json:"projects_error,omitempty"`
	Project         *model.ProjectReference  `json:"project,omitempty"`

	Fix              *model.GeoFix `json:"fix,omitempty"`
	Locating         bool          `json:"locating"`
	LocationError    string        `json:"location_error,omitempty"`
	PermissionDenied bool          `json:"permission_denied"`

	CameraActive bool   `json:"camera_active"`
	CameraReady  bool   `json:"camera_ready"`
	CameraError  string `json:"camera_error,omitempty"`

	HasPhoto       bool   `json:"has_photo"`
	PhotoTimestamp string `json:"photo_timestamp,omitempty"`

	Details Details `json:"details"`

	CanAdvance  bool   `json:"can_advance"`
	Submitting  bool   `json:"submitting"`
	SubmitError string `json:"submit_error,omitempty"`
	ReportID    string `json:"report_id,omitempty"`
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.step
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	st := s.st
	s.mu.Unlock()

	snap := Snapshot{
		Step:             st.step.String(),
		StepIndex:        int(st.step),
		Municipality:     st.draft.Municipality,
		Barangay:         st.draft.Barangay,
		Street:           st.draft.Street,
		Projects:         st.projects,
		ProjectsLoading:  st.projectsLoading,
		ProjectsError:    errString(st.projectsErr),
		Project:          st.draft.Project,
		Fix:              st.draft.Fix,
		Locating:         st.locating,
		LocationError:    errString(st.locationErr),
		PermissionDenied: st.permissionDenied,
		CameraActive:     s.camera.Active(),
		CameraReady:      st.cameraReady,
		CameraError:      errString(st.cameraErr),
		HasPhoto:         st.draft.Photo != nil,
		Details:          st.draft.Details,
		CanAdvance:       canAdvance(&st),
		Submitting:       st.submitting,
		SubmitError:      errString(st.submitErr),
		ReportID:         st.reportID,
	}
	if snap.Projects == nil {
		snap.Projects = []model.ProjectReference{}
	}
	if st.draft.Photo != nil {
		snap.PhotoTimestamp = st.draft.Photo.CapturedAt.UTC().Format(photoTimestampLayout)
	}
	return snap
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
