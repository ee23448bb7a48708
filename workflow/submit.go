package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fmr-portal/geo"
	"fmr-portal/model"
)

const (
	PhotoContentType = "image/jpeg"

	// photoTimestampLayout matches JavaScript's Date.toISOString.
	photoTimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// PhotoPath is the blob path for a photo uploaded at t.
func PhotoPath(t time.Time, token string) string {
	return fmt.Sprintf("reports/%d_%s.jpg", t.UnixMilli(), token)
}

// Submit uploads the photo and inserts the report. On failure the session stays in review
// with the collaborator's error message kept for display, and the draft is untouched.
func (s *Session) Submit(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch {
	case s.st.step != StepReview:
		s.mu.Unlock()
		return "", ErrNotInReview
	case s.st.submitting:
		s.mu.Unlock()
		return "", ErrSubmitting
	case !complete(s.st.draft):
		s.mu.Unlock()
		s.log.Warn("submission rejected: incomplete report")
		return "", ErrIncomplete
	}
	reduce(&s.st, Event{Kind: SubmitStarted})
	token := s.st.submitToken
	draft := s.st.draft
	s.mu.Unlock()

	now := s.now()
	path := PhotoPath(now, s.token())
	url, err := s.blobs.Upload(ctx, path, draft.Photo.Image, PhotoContentType)
	if err != nil {
		s.log.Warn("photo upload failed", zap.String("path", path), zap.Error(err))
		s.Dispatch(Event{Kind: SubmitFailed, Token: token, Err: err})
		return "", err
	}

	// Classify with the freshest fix, not the one from when review opened.
	s.mu.Lock()
	fix := s.st.draft.Fix
	s.mu.Unlock()

	record := BuildRecord(draft, fix, url, now)
	id, err := s.reports.InsertReport(ctx, record)
	if err != nil {
		s.log.Warn("report insert failed", zap.Error(err))
		s.Dispatch(Event{Kind: SubmitFailed, Token: token, Err: err})
		return "", err
	}

	s.Dispatch(Event{Kind: SubmitSucceeded, Token: token, ReportID: id})
	s.log.Info("report submitted",
		zap.String("report_id", id),
		zap.String("project_id", record.ProjectID),
		zap.String("verification", string(record.Verification)))
	return id, nil
}

// BuildRecord assembles the persisted report from a complete draft.
func BuildRecord(d Draft, fix *model.GeoFix, photoURL string, now time.Time) *model.PublicReport {
	name := strings.TrimSpace(d.Details.FullName)
	r := &model.PublicReport{
		FullName:     name,
		ContactInfo:  strings.TrimSpace(d.Details.ContactInfo),
		Region:       model.RegionName,
		Province:     model.ProvinceName,
		Municipality: d.Municipality,
		Barangay:     d.Barangay,
		Street:       strings.TrimSpace(d.Street),
		PhotoURL:     photoURL,
		Verification: geo.Classify(fix, d.Project),
		Description:  strings.TrimSpace(d.Details.Description),
		Source:       model.SourcePublic,
		Status:       model.StatusPending,
		CreatedAt:    now.UTC(),
	}
	if name == "" {
		r.FullName = model.AnonymousName
		r.Source = model.SourceAnonymous
	}
	if d.Project != nil {
		r.ProjectID = d.Project.ID
		r.ProjectName = d.Project.Name
	}
	if d.Photo != nil {
		r.PhotoTimestamp = d.Photo.CapturedAt.UTC().Format(photoTimestampLayout)
	}
	if fix != nil {
		lat, lon := fix.Latitude, fix.Longitude
		r.Latitude = &lat
		r.Longitude = &lon
		r.GeoAccuracy = fix.Accuracy
		r.Location = model.NewGeoPoint(lat, lon)
	}
	return r
}
