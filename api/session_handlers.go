package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fmr-portal/annotate"
	"fmr-portal/camera"
	"fmr-portal/location"
	"fmr-portal/model"
	"fmr-portal/workflow"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, ds *DeviceSession)

func (h *Handlers) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, ok := h.Sessions.Get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		next(w, r, ds)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ds := h.Sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"id": ds.ID})
}

func (h *Handlers) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleSnapshot(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handleConsent(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	ds.AllowLocation()
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

type FixRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
}

func (h *Handlers) handleFix(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	var req FixRequest
	if !decode(w, r, &req) {
		return
	}
	if !validCoordinates(req.Latitude, req.Longitude) || (req.Accuracy != nil && *req.Accuracy < 0) {
		writeError(w, http.StatusBadRequest, "invalid fix")
		return
	}

	delivered := ds.GPS.Push(model.GeoFix{
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Accuracy:   req.Accuracy,
		CapturedAt: time.Now(),
	})
	if delivered == 0 {
		writeError(w, http.StatusConflict, "location tracking is not active")
		return
	}
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

// DeviceError is an error the device reports for its location or camera hardware.
type DeviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e DeviceError) wrap(base error) error {
	if e.Message == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, e.Message)
}

func (e DeviceError) LocationErr() error {
	switch e.Code {
	case "permission_denied":
		return e.wrap(location.ErrPermissionDenied)
	case "timeout":
		return e.wrap(location.ErrTimeout)
	default:
		return e.wrap(location.ErrUnavailable)
	}
}

func (e DeviceError) CameraErr() error {
	switch e.Code {
	case "permission_denied":
		return e.wrap(camera.ErrPermissionDenied)
	default:
		return e.wrap(camera.ErrNoDevice)
	}
}

func (h *Handlers) handleLocationError(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	var req DeviceError
	if !decode(w, r, &req) {
		return
	}
	ds.GPS.Fail(req.LocationErr())
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

type LocationRequest struct {
	Municipality string `json:"municipality"`
	Barangay     string `json:"barangay"`
	Street       string `json:"street"`
}

func (h *Handlers) handleLocation(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	var req LocationRequest
	if !decode(w, r, &req) {
		return
	}
	if ds.Step() != workflow.StepLocation {
		writeError(w, http.StatusConflict, "location can only be changed in the location step")
		return
	}
	ds.SelectLocation(r.Context(), req.Municipality, req.Barangay, req.Street)
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handleProject(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	var req struct {
		ProjectID string `json:"project_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	ds.SelectProject(req.ProjectID)
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handleFrame(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}
	img, err := annotate.DecodeFrame(data)
	if err != nil {
		h.Log.Warn("undecodable camera frame", zap.String("session", ds.ID), zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid frame")
		return
	}
	if !ds.Camera.PushFrame(img) {
		writeError(w, http.StatusConflict, "no live camera stream")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleCameraError(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	var req DeviceError
	if !decode(w, r, &req) {
		return
	}
	if ds.Step() != workflow.StepPhoto {
		writeError(w, http.StatusConflict, "camera is only used in the photo step")
		return
	}
	// The next acquisition fails with the reported error until the user retries.
	ds.Camera.Deny(req.CameraErr())
	ds.RetryCamera()
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handleCameraRetry(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	ds.Camera.Deny(nil)
	ds.RetryCamera()
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handleCapture(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	ok, err := ds.Capture()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "camera is not ready")
		return
	}
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handleRetake(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	ds.Retake()
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handleDetails(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	var req workflow.Details
	if !decode(w, r, &req) {
		return
	}
	ds.SetDetails(req)
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handleNext(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	ds.Advance()
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handleBack(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	ds.Back()
	writeJSON(w, http.StatusOK, ds.Snapshot())
}

func (h *Handlers) handlePreview(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	writeJSON(w, http.StatusOK, ds.Preview())
}

func (h *Handlers) handleSessionPhoto(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	photo := ds.Photo()
	if photo == nil {
		writeError(w, http.StatusNotFound, "no photo captured")
		return
	}
	w.Header().Set("Content-Type", workflow.PhotoContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(photo.Image)
}

func (h *Handlers) handleSubmit(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	// The upload and insert outlive a client that disconnects mid-submit.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), time.Minute)
	defer cancel()

	id, err := ds.Submit(ctx)
	switch {
	case errors.Is(err, workflow.ErrNotInReview), errors.Is(err, workflow.ErrSubmitting):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, workflow.ErrIncomplete):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report_id": id,
		"session":   ds.Snapshot(),
	})
}

func (h *Handlers) handleReset(w http.ResponseWriter, r *http.Request, ds *DeviceSession) {
	ds.Reset()
	writeJSON(w, http.StatusOK, ds.Snapshot())
}
