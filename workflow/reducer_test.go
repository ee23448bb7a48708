package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fmr-portal/model"
)

func stateAt(step Step) state {
	st := newState()
	st.step = step
	return st
}

func TestFirstFixLeavesConsent(t *testing.T) {
	st := newState()
	effects := reduce(&st, Event{Kind: LocationRequested})
	assert.Equal(t, []effect{effStartTracker}, effects)
	assert.True(t, st.locating)
	assert.Equal(t, StepConsent, st.step)

	reduce(&st, Event{Kind: FixReceived, Fix: &model.GeoFix{Latitude: 10, Longitude: 122}})
	assert.Equal(t, StepLocation, st.step)
	assert.False(t, st.locating)

	// Later fixes only replace the stored fix.
	st.step = StepDetails
	reduce(&st, Event{Kind: FixReceived, Fix: &model.GeoFix{Latitude: 11, Longitude: 123}})
	assert.Equal(t, StepDetails, st.step)
	assert.Equal(t, 11.0, st.draft.Fix.Latitude)
}

func TestPermissionDeniedStaysInConsent(t *testing.T) {
	st := newState()
	reduce(&st, Event{Kind: LocationRequested})
	effects := reduce(&st, Event{Kind: PermissionDenied, Err: errors.New("denied")})

	assert.Equal(t, []effect{effStopTracker}, effects)
	assert.Equal(t, StepConsent, st.step)
	assert.True(t, st.permissionDenied)
	assert.EqualError(t, st.locationErr, "denied")

	reduce(&st, Event{Kind: LocationRequested})
	assert.False(t, st.permissionDenied)
	assert.NoError(t, st.locationErr)
}

func TestLocationStepRequiresBothSelections(t *testing.T) {
	tests := []struct {
		name         string
		municipality string
		barangay     string
		want         Step
	}{
		{"both", "Iloilo City", "Jaro", StepProject},
		{"barangay only", "", "Jaro", StepLocation},
		{"municipality only", "Iloilo City", "", StepLocation},
		{"blank municipality", "   ", "Jaro", StepLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := stateAt(StepLocation)
			reduce(&st, Event{Kind: MunicipalitySelected, Text: tt.municipality})
			reduce(&st, Event{Kind: BarangaySelected, Text: tt.barangay})
			reduce(&st, Event{Kind: StepAdvance})
			assert.Equal(t, tt.want, st.step)
		})
	}
}

func TestMunicipalityChangeClearsDependentSelections(t *testing.T) {
	st := stateAt(StepLocation)
	reduce(&st, Event{Kind: MunicipalitySelected, Text: "Pavia"})
	reduce(&st, Event{Kind: BarangaySelected, Text: "Ungka"})
	st.projects = []model.ProjectReference{{ID: "p1"}}
	st.draft.Project = &st.projects[0]
	token := st.projectsToken

	reduce(&st, Event{Kind: MunicipalitySelected, Text: "Oton"})
	assert.Equal(t, "Oton", st.draft.Municipality)
	assert.Empty(t, st.draft.Barangay)
	assert.Nil(t, st.draft.Project)
	assert.Nil(t, st.projects)
	assert.Greater(t, st.projectsToken, token)
}

func TestSelectionIgnoredOutsideLocationStep(t *testing.T) {
	st := stateAt(StepProject)
	reduce(&st, Event{Kind: MunicipalitySelected, Text: "Oton"})
	reduce(&st, Event{Kind: StreetChanged, Text: "Purok 3"})
	assert.Empty(t, st.draft.Municipality)
	assert.Empty(t, st.draft.Street)
}

func TestStaleProjectsIgnored(t *testing.T) {
	st := stateAt(StepLocation)
	st.draft.Municipality, st.draft.Barangay = "Oton", "Poblacion"

	reduce(&st, Event{Kind: ProjectsRequested})
	first := st.projectsToken
	reduce(&st, Event{Kind: ProjectsRequested})
	second := st.projectsToken
	assert.True(t, st.projectsLoading)

	reduce(&st, Event{Kind: ProjectsLoaded, Token: second, Projects: []model.ProjectReference{{ID: "new"}}})
	reduce(&st, Event{Kind: ProjectsLoaded, Token: first, Projects: []model.ProjectReference{{ID: "old"}}})

	assert.False(t, st.projectsLoading)
	assert.Equal(t, []model.ProjectReference{{ID: "new"}}, st.projects)
}

func TestProjectsRequestedOnlyInLocationStep(t *testing.T) {
	st := stateAt(StepProject)
	st.projects = []model.ProjectReference{{ID: "p1"}}
	token := st.projectsToken

	reduce(&st, Event{Kind: ProjectsRequested})
	assert.Equal(t, []model.ProjectReference{{ID: "p1"}}, st.projects)
	assert.Equal(t, token, st.projectsToken)
	assert.False(t, st.projectsLoading)
}

func TestProjectsLoadError(t *testing.T) {
	st := stateAt(StepLocation)
	st.draft.Municipality, st.draft.Barangay = "Oton", "Poblacion"
	reduce(&st, Event{Kind: ProjectsRequested})
	reduce(&st, Event{Kind: ProjectsLoaded, Token: st.projectsToken, Err: errors.New("offline")})
	assert.Nil(t, st.projects)
	assert.EqualError(t, st.projectsErr, "offline")
}

func TestProjectSelectionMustComeFromList(t *testing.T) {
	st := stateAt(StepProject)
	st.projects = []model.ProjectReference{{ID: "p1", Name: "FMR Ajuy"}}

	reduce(&st, Event{Kind: ProjectSelected, Text: "missing"})
	assert.Nil(t, st.draft.Project)
	reduce(&st, Event{Kind: StepAdvance})
	assert.Equal(t, StepProject, st.step)

	reduce(&st, Event{Kind: ProjectSelected, Text: "p1"})
	assert.Equal(t, "FMR Ajuy", st.draft.Project.Name)
	effects := reduce(&st, Event{Kind: StepAdvance})
	assert.Equal(t, StepPhoto, st.step)
	assert.Equal(t, []effect{effStartCamera}, effects)
}

func TestPhotoStep(t *testing.T) {
	st := stateAt(StepPhoto)

	reduce(&st, Event{Kind: StepAdvance})
	assert.Equal(t, StepPhoto, st.step, "no photo yet")

	reduce(&st, Event{Kind: CameraReady})
	assert.True(t, st.cameraReady)

	photo := &model.CapturedPhoto{Image: []byte{1}, CapturedAt: time.Now()}
	effects := reduce(&st, Event{Kind: PhotoCaptured, Photo: photo})
	assert.Equal(t, []effect{effStopCamera}, effects)
	assert.Same(t, photo, st.draft.Photo)
	assert.False(t, st.cameraReady)

	// A second capture does not overwrite the first.
	reduce(&st, Event{Kind: PhotoCaptured, Photo: &model.CapturedPhoto{}})
	assert.Same(t, photo, st.draft.Photo)

	effects = reduce(&st, Event{Kind: RetakeRequested})
	assert.Equal(t, []effect{effStartCamera}, effects)
	assert.Nil(t, st.draft.Photo)

	reduce(&st, Event{Kind: PhotoCaptured, Photo: photo})
	reduce(&st, Event{Kind: StepAdvance})
	assert.Equal(t, StepDetails, st.step)
}

func TestCameraFailureIsNotRetriedAutomatically(t *testing.T) {
	st := stateAt(StepPhoto)
	effects := reduce(&st, Event{Kind: CameraFailed, Err: errors.New("busy")})
	assert.Empty(t, effects)
	assert.EqualError(t, st.cameraErr, "busy")

	effects = reduce(&st, Event{Kind: CameraRetry})
	assert.Equal(t, []effect{effStartCamera}, effects)
	assert.NoError(t, st.cameraErr)
}

func TestDetailsRequireDescription(t *testing.T) {
	st := stateAt(StepDetails)
	reduce(&st, Event{Kind: DetailsChanged, Details: Details{Description: "   "}})
	reduce(&st, Event{Kind: StepAdvance})
	assert.Equal(t, StepDetails, st.step)

	reduce(&st, Event{Kind: DetailsChanged, Details: Details{Description: "Road washed out"}})
	reduce(&st, Event{Kind: StepAdvance})
	assert.Equal(t, StepReview, st.step)

	// Review only leaves through submission.
	reduce(&st, Event{Kind: StepAdvance})
	assert.Equal(t, StepReview, st.step)
}

func TestBack(t *testing.T) {
	tests := []struct {
		from    Step
		to      Step
		effects []effect
	}{
		{StepConsent, StepConsent, nil},
		{StepLocation, StepLocation, nil},
		{StepProject, StepLocation, nil},
		{StepPhoto, StepProject, []effect{effStopCamera}},
		{StepDetails, StepPhoto, nil},
		{StepReview, StepDetails, nil},
		{StepSubmitted, StepSubmitted, nil},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			st := stateAt(tt.from)
			st.draft.Photo = &model.CapturedPhoto{}
			effects := reduce(&st, Event{Kind: StepBack})
			assert.Equal(t, tt.to, st.step)
			assert.Equal(t, tt.effects, effects)
		})
	}
}

func TestBackIntoPhotoWithoutPhotoStartsCamera(t *testing.T) {
	st := stateAt(StepDetails)
	effects := reduce(&st, Event{Kind: StepBack})
	assert.Equal(t, StepPhoto, st.step)
	assert.Equal(t, []effect{effStartCamera}, effects)
}

func TestSubmitOutcomes(t *testing.T) {
	st := stateAt(StepReview)
	st.draft.Photo = &model.CapturedPhoto{}

	reduce(&st, Event{Kind: SubmitStarted})
	token := st.submitToken
	assert.True(t, st.submitting)

	// Back is blocked while the submission is running.
	reduce(&st, Event{Kind: StepBack})
	assert.Equal(t, StepReview, st.step)

	reduce(&st, Event{Kind: SubmitFailed, Token: token, Err: errors.New("upload failed")})
	assert.Equal(t, StepReview, st.step)
	assert.EqualError(t, st.submitErr, "upload failed")
	assert.NotNil(t, st.draft.Photo)

	reduce(&st, Event{Kind: SubmitStarted})
	effects := reduce(&st, Event{Kind: SubmitSucceeded, Token: st.submitToken, ReportID: "r1"})
	assert.Equal(t, StepSubmitted, st.step)
	assert.Equal(t, "r1", st.reportID)
	assert.Nil(t, st.draft.Photo)
	assert.ElementsMatch(t, []effect{effStopCamera, effStopTracker}, effects)

	// Submitted is frozen.
	reduce(&st, Event{Kind: StepBack})
	reduce(&st, Event{Kind: FixReceived, Fix: &model.GeoFix{}})
	reduce(&st, Event{Kind: LocationRequested})
	assert.Equal(t, StepSubmitted, st.step)
}

func TestResetFromAnyStep(t *testing.T) {
	for step := StepConsent; step <= StepSubmitted; step++ {
		st := stateAt(step)
		st.draft = Draft{Municipality: "Oton", Photo: &model.CapturedPhoto{}, Details: Details{Description: "x"}}
		st.reportID = "r1"
		token := st.projectsToken

		effects := reduce(&st, Event{Kind: Reset})
		assert.Equal(t, StepConsent, st.step)
		assert.Equal(t, Draft{}, st.draft)
		assert.Empty(t, st.reportID)
		assert.Greater(t, st.projectsToken, token)
		assert.Equal(t, []effect{effStopCamera, effClearTracker}, effects)
	}
}

func TestResultsFromBeforeResetAreStale(t *testing.T) {
	st := stateAt(StepReview)
	reduce(&st, Event{Kind: SubmitStarted})
	token := st.submitToken
	reduce(&st, Event{Kind: Reset})

	reduce(&st, Event{Kind: SubmitSucceeded, Token: token, ReportID: "late"})
	assert.Equal(t, StepConsent, st.step)
	assert.Empty(t, st.reportID)
}

func TestStepNames(t *testing.T) {
	assert.Equal(t, "consent", StepConsent.String())
	assert.Equal(t, -1, int(StepConsent))
	assert.Equal(t, 4, int(StepReview))
	assert.Equal(t, "unknown", Step(42).String())
	assert.Equal(t, "photo_captured", PhotoCaptured.String())
}
