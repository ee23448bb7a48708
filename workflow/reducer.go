package workflow

import (
	"strings"

	"fmr-portal/model"
)

// Draft is the report under construction.
type Draft struct {
	Municipality string
	Barangay     string
	Street       string
	Project      *model.ProjectReference
	Photo        *model.CapturedPhoto
	Details      Details
	Fix          *model.GeoFix
}

type state struct {
	step  Step
	draft Draft

	projects        []model.ProjectReference
	projectsToken   uint64
	projectsLoading bool
	projectsErr     error

	locating         bool
	locationErr      error
	permissionDenied bool

	cameraReady bool
	cameraErr   error

	submitToken uint64
	submitting  bool
	submitErr   error
	reportID    string
}

func newState() state {
	return state{step: StepConsent}
}

type effect int

const (
	effStartTracker effect = iota + 1
	effStopTracker
	effClearTracker
	effStartCamera
	effStopCamera
)

// reduce applies ev to st and returns the resource effects the session must run.
// Events that are not valid in the current step are ignored.
func reduce(st *state, ev Event) []effect {
	switch ev.Kind {
	case LocationRequested:
		if st.step == StepSubmitted {
			return nil
		}
		st.locating = true
		st.locationErr = nil
		st.permissionDenied = false
		return []effect{effStartTracker}

	case FixReceived:
		if ev.Fix == nil || st.step == StepSubmitted {
			return nil
		}
		fix := *ev.Fix
		st.draft.Fix = &fix
		st.locating = false
		st.locationErr = nil
		st.permissionDenied = false
		if st.step == StepConsent {
			st.step = StepLocation
		}
		return nil

	case LocationFailed:
		st.locating = false
		st.locationErr = ev.Err
		return nil

	case PermissionDenied:
		st.locating = false
		st.locationErr = ev.Err
		st.permissionDenied = true
		return []effect{effStopTracker}

	case MunicipalitySelected:
		if st.step != StepLocation || st.draft.Municipality == ev.Text {
			return nil
		}
		st.draft.Municipality = ev.Text
		st.draft.Barangay = ""
		st.draft.Project = nil
		clearProjects(st)
		return nil

	case BarangaySelected:
		if st.step != StepLocation || st.draft.Barangay == ev.Text {
			return nil
		}
		st.draft.Barangay = ev.Text
		st.draft.Project = nil
		clearProjects(st)
		return nil

	case StreetChanged:
		if st.step == StepLocation {
			st.draft.Street = ev.Text
		}
		return nil

	case ProjectsRequested:
		if st.step != StepLocation {
			return nil
		}
		clearProjects(st)
		if hasLocation(st.draft) {
			st.projectsLoading = true
		}
		return nil

	case ProjectsLoaded:
		if ev.Token != st.projectsToken {
			return nil
		}
		st.projectsLoading = false
		st.projectsErr = ev.Err
		if ev.Err != nil {
			st.projects = nil
			return nil
		}
		st.projects = ev.Projects
		return nil

	case ProjectSelected:
		if st.step != StepProject {
			return nil
		}
		for i := range st.projects {
			if st.projects[i].ID == ev.Text {
				p := st.projects[i]
				st.draft.Project = &p
				return nil
			}
		}
		return nil

	case CameraRetry:
		if st.step != StepPhoto || st.draft.Photo != nil {
			return nil
		}
		st.cameraErr = nil
		st.cameraReady = false
		return []effect{effStartCamera}

	case CameraReady:
		if st.step == StepPhoto && st.draft.Photo == nil {
			st.cameraReady = true
		}
		return nil

	case CameraFailed:
		st.cameraReady = false
		st.cameraErr = ev.Err
		return nil

	case PhotoCaptured:
		if st.step != StepPhoto || st.draft.Photo != nil || ev.Photo == nil {
			return nil
		}
		st.draft.Photo = ev.Photo
		st.cameraReady = false
		return []effect{effStopCamera}

	case RetakeRequested:
		if st.step != StepPhoto {
			return nil
		}
		st.draft.Photo = nil
		st.cameraReady = false
		st.cameraErr = nil
		return []effect{effStartCamera}

	case DetailsChanged:
		if st.step != StepDetails {
			return nil
		}
		st.draft.Details = ev.Details
		return nil

	case StepAdvance:
		if !canAdvance(st) {
			return nil
		}
		st.step++
		return enter(st)

	case StepBack:
		if st.step <= StepLocation || st.step >= StepSubmitted || st.submitting {
			return nil
		}
		var effects []effect
		if st.step == StepPhoto {
			st.cameraReady = false
			effects = append(effects, effStopCamera)
		}
		st.step--
		return append(effects, enter(st)...)

	case SubmitStarted:
		st.submitToken++
		st.submitting = true
		st.submitErr = nil
		return nil

	case SubmitFailed:
		if ev.Token != st.submitToken || !st.submitting {
			return nil
		}
		st.submitting = false
		st.submitErr = ev.Err
		return nil

	case SubmitSucceeded:
		if ev.Token != st.submitToken || !st.submitting {
			return nil
		}
		st.submitting = false
		st.submitErr = nil
		st.reportID = ev.ReportID
		st.step = StepSubmitted
		st.draft.Photo = nil
		st.cameraReady = false
		return []effect{effStopCamera, effStopTracker}

	case Reset:
		token := st.projectsToken
		submit := st.submitToken
		*st = newState()
		// Tokens keep counting so results from before the reset stay stale.
		st.projectsToken = token + 1
		st.submitToken = submit + 1
		return []effect{effStopCamera, effClearTracker}
	}
	return nil
}

// enter returns the effects of arriving at the current step.
func enter(st *state) []effect {
	if st.step == StepPhoto && st.draft.Photo == nil {
		st.cameraErr = nil
		st.cameraReady = false
		return []effect{effStartCamera}
	}
	return nil
}

func clearProjects(st *state) {
	st.projectsToken++
	st.projects = nil
	st.projectsLoading = false
	st.projectsErr = nil
}

func hasLocation(d Draft) bool {
	return strings.TrimSpace(d.Municipality) != "" && strings.TrimSpace(d.Barangay) != ""
}

func canAdvance(st *state) bool {
	d := st.draft
	switch st.step {
	case StepLocation:
		return hasLocation(d)
	case StepProject:
		return d.Project != nil
	case StepPhoto:
		return d.Photo != nil
	case StepDetails:
		return strings.TrimSpace(d.Details.Description) != ""
	default:
		// Review is left only through a successful submission.
		return false
	}
}

// complete re-validates everything a submission needs.
func complete(d Draft) bool {
	return strings.TrimSpace(d.Details.Description) != "" && d.Photo != nil && d.Project != nil
}
