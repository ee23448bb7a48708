package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fmr-portal/camera"
	"fmr-portal/geo"
	"fmr-portal/location"
	"fmr-portal/model"
)

// ProjectQuery finds projects whose municipality and barangay contain the given text,
// case-insensitively, ordered by name.
type ProjectQuery interface {
	QueryProjects(ctx context.Context, municipalityLike, barangayLike string) ([]model.ProjectReference, error)
}

// BlobStore stores the photo and returns its public URL.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// ReportStore persists a submitted report and returns its id.
type ReportStore interface {
	InsertReport(ctx context.Context, report *model.PublicReport) (string, error)
}

type Deps struct {
	Tracker  *location.Tracker
	Camera   *camera.Controller
	Projects ProjectQuery
	Blobs    BlobStore
	Reports  ReportStore
	Logger   *zap.Logger

	// Now and Token are replaceable for tests.
	Now   func() time.Time
	Token func() string
}

// Session is one device's report flow. It owns the device's location subscription and camera feed;
// every state change goes through reduce.
type Session struct {
	ID string

	tracker  *location.Tracker
	camera   *camera.Controller
	projects ProjectQuery
	blobs    BlobStore
	reports  ReportStore
	log      *zap.Logger
	now      func() time.Time
	token    func() string

	mu sync.Mutex
	st state
}

func NewSession(id string, deps Deps) *Session {
	s := &Session{
		ID:       id,
		tracker:  deps.Tracker,
		camera:   deps.Camera,
		projects: deps.Projects,
		blobs:    deps.Blobs,
		reports:  deps.Reports,
		log:      deps.Logger,
		now:      deps.Now,
		token:    deps.Token,
		st:       newState(),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.With(zap.String("session", id))
	if s.now == nil {
		s.now = time.Now
	}
	if s.token == nil {
		s.token = randomToken
	}

	s.tracker.OnFirstFix = func(fix model.GeoFix) {
		s.log.Info("first location fix", zap.Float64p("accuracy", fix.Accuracy))
	}
	s.tracker.OnFix = func(fix model.GeoFix) {
		s.Dispatch(Event{Kind: FixReceived, Fix: &fix})
	}
	s.tracker.OnError = func(err error) {
		if location.IsPermission(err) {
			s.Dispatch(Event{Kind: PermissionDenied, Err: err})
			return
		}
		s.Dispatch(Event{Kind: LocationFailed, Err: err})
	}
	s.camera.OnReady = func() {
		s.Dispatch(Event{Kind: CameraReady})
	}
	return s
}

func randomToken() string {
	return uuid.New().String()[:8]
}

// Dispatch runs ev through the reducer and then performs the resulting effects outside the lock.
func (s *Session) Dispatch(ev Event) {
	s.mu.Lock()
	from := s.st.step
	effects := reduce(&s.st, ev)
	to := s.st.step
	s.mu.Unlock()

	if from != to {
		s.log.Debug("step changed",
			zap.Stringer("event", ev.Kind),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	}
	s.apply(effects)
}

func (s *Session) apply(effects []effect) {
	for _, e := range effects {
		switch e {
		case effStartTracker:
			if err := s.tracker.Start(); err != nil {
				if location.IsPermission(err) {
					s.Dispatch(Event{Kind: PermissionDenied, Err: err})
				} else {
					s.Dispatch(Event{Kind: LocationFailed, Err: err})
				}
			}
		case effStopTracker:
			s.tracker.Stop()
		case effClearTracker:
			s.tracker.Clear()
		case effStartCamera:
			s.startCamera()
		case effStopCamera:
			s.camera.Stop()
		}
	}
}

func (s *Session) wantsCamera() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.step == StepPhoto && s.st.draft.Photo == nil
}

func (s *Session) startCamera() {
	if err := s.camera.Start(context.Background()); err != nil {
		s.Dispatch(Event{Kind: CameraFailed, Err: err})
		return
	}
	// The flow may have moved on while the device was being acquired.
	if !s.wantsCamera() {
		s.camera.Stop()
	}
}

// AllowLocation starts (or restarts) live location tracking.
func (s *Session) AllowLocation() {
	s.Dispatch(Event{Kind: LocationRequested})
}

// SelectMunicipality sets the municipality, clearing barangay and project, and refreshes projects.
func (s *Session) SelectMunicipality(ctx context.Context, municipality string) {
	if s.selectText(MunicipalitySelected, municipality) {
		s.LoadProjects(ctx)
	}
}

// SelectBarangay sets the barangay, clearing the project, and refreshes projects.
func (s *Session) SelectBarangay(ctx context.Context, barangay string) {
	if s.selectText(BarangaySelected, barangay) {
		s.LoadProjects(ctx)
	}
}

// SelectLocation applies both selections and the street, querying projects at most once.
func (s *Session) SelectLocation(ctx context.Context, municipality, barangay, street string) {
	changed := s.selectText(MunicipalitySelected, municipality)
	if s.selectText(BarangaySelected, barangay) {
		changed = true
	}
	s.SetStreet(street)
	if changed {
		s.LoadProjects(ctx)
	}
}

// selectText dispatches a selection event and reports whether the draft changed.
func (s *Session) selectText(kind EventKind, text string) bool {
	s.mu.Lock()
	before := s.st.projectsToken
	effects := reduce(&s.st, Event{Kind: kind, Text: text})
	after := s.st.projectsToken
	s.mu.Unlock()

	s.apply(effects)
	return after != before
}

func (s *Session) SetStreet(street string) {
	s.Dispatch(Event{Kind: StreetChanged, Text: street})
}

// LoadProjects queries projects for the current selection. A result is applied only if no
// newer query or selection change happened while it was in flight.
func (s *Session) LoadProjects(ctx context.Context) {
	s.mu.Lock()
	if s.st.step != StepLocation {
		// The list is frozen once the user moved on to choosing from it.
		s.mu.Unlock()
		return
	}
	reduce(&s.st, Event{Kind: ProjectsRequested})
	token := s.st.projectsToken
	municipality, barangay := s.st.draft.Municipality, s.st.draft.Barangay
	ready := hasLocation(s.st.draft)
	s.mu.Unlock()

	if !ready || s.projects == nil {
		return
	}

	projects, err := s.projects.QueryProjects(ctx, municipality, barangay)
	if err != nil {
		s.log.Warn("project query failed",
			zap.String("municipality", municipality),
			zap.String("barangay", barangay),
			zap.Error(err))
	}
	s.Dispatch(Event{Kind: ProjectsLoaded, Token: token, Projects: projects, Err: err})
}

func (s *Session) SelectProject(id string) {
	s.Dispatch(Event{Kind: ProjectSelected, Text: id})
}

func (s *Session) Advance() {
	s.Dispatch(Event{Kind: StepAdvance})
}

func (s *Session) Back() {
	s.Dispatch(Event{Kind: StepBack})
}

// RetryCamera re-acquires the camera after a failure.
func (s *Session) RetryCamera() {
	s.Dispatch(Event{Kind: CameraRetry})
}

// Capture takes the photo from the live feed. It reports false when there was nothing to capture.
func (s *Session) Capture() (bool, error) {
	s.mu.Lock()
	if s.st.step != StepPhoto || s.st.draft.Photo != nil {
		s.mu.Unlock()
		return false, nil
	}
	var fix *model.GeoFix
	if s.st.draft.Fix != nil {
		f := *s.st.draft.Fix
		fix = &f
	}
	s.mu.Unlock()

	photo, err := s.camera.Capture(s.now(), fix)
	if err != nil {
		s.log.Warn("capture failed", zap.Error(err))
		return false, err
	}
	if photo == nil {
		return false, nil
	}
	s.Dispatch(Event{Kind: PhotoCaptured, Photo: photo})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.draft.Photo == photo, nil
}

// Retake discards the captured photo and restarts the live feed.
func (s *Session) Retake() {
	s.Dispatch(Event{Kind: RetakeRequested})
}

func (s *Session) SetDetails(d Details) {
	s.Dispatch(Event{Kind: DetailsChanged, Details: d})
}

// Reset discards the draft and releases the tracker subscription and the camera feed.
func (s *Session) Reset() {
	s.Dispatch(Event{Kind: Reset})
}

// Photo returns the captured photo, if any.
func (s *Session) Photo() *model.CapturedPhoto {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.draft.Photo
}

// Preview is the live verification verdict shown before submitting.
type Preview struct {
	Label          model.VerificationLabel `json:"verification"`
	DistanceMetres *float64                `json:"distance_m,omitempty"`
	Fix            *model.GeoFix           `json:"fix,omitempty"`
	Project        *model.ProjectReference `json:"project,omitempty"`
}

func (s *Session) Preview() Preview {
	s.mu.Lock()
	fix, project := s.st.draft.Fix, s.st.draft.Project
	s.mu.Unlock()

	p := Preview{Label: geo.Classify(fix, project), Fix: fix, Project: project}
	if d, ok := geo.DistanceToProject(fix, project); ok {
		p.DistanceMetres = &d
	}
	return p
}
