package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fmr-portal/model"
	"fmr-portal/storage"
	"fmr-portal/workflow"
)

// ReportReader is the report persistence used by the admin endpoints.
type ReportReader interface {
	GetReport(ctx context.Context, id string) (*model.PublicReport, error)
	ListReports(ctx context.Context, limit int64, status model.ReportStatus) ([]model.PublicReport, error)
	UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus) error
	SearchReportsByLocation(ctx context.Context, long, lat float64, dist int) ([]model.PublicReport, error)
}

// PhotoFiles maps an uploaded blob path to a file on disk.
type PhotoFiles interface {
	Resolve(path string) (string, error)
}

type Handlers struct {
	Log          *zap.Logger
	SecretKey    string
	PasswordHash string

	Sessions *SessionRegistry
	Projects workflow.ProjectQuery
	Reports  ReportReader
	Photos   PhotoFiles
}

const (
	maxFrameSize  = 10 << 20
	maxNearRadius = 50_000
)

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, RecoveryMiddleware(h.Log, RequestLoggerMiddleware(h.Log, fn)))
	}

	route("POST /login", h.handleLogin)
	route("GET /projects", h.handleProjects)
	route("GET /photos/{path...}", h.handleGetPhoto)
	route("GET /reports", h.authMiddleware(h.handleListReports))
	route("GET /reports/near", h.authMiddleware(h.handleReportsNear))
	route("GET /reports/{id}", h.authMiddleware(h.handleGetReport))
	route("PATCH /reports/{id}/status", h.authMiddleware(h.handleReportStatus))

	route("POST /sessions", h.handleCreateSession)
	route("GET /sessions/{id}", h.withSession(h.handleSnapshot))
	route("DELETE /sessions/{id}", h.handleDeleteSession)
	route("POST /sessions/{id}/consent", h.withSession(h.handleConsent))
	route("POST /sessions/{id}/fix", h.withSession(h.handleFix))
	route("POST /sessions/{id}/location-error", h.withSession(h.handleLocationError))
	route("POST /sessions/{id}/location", h.withSession(h.handleLocation))
	route("POST /sessions/{id}/project", h.withSession(h.handleProject))
	route("POST /sessions/{id}/frame", h.withSession(h.handleFrame))
	route("POST /sessions/{id}/camera-error", h.withSession(h.handleCameraError))
	route("POST /sessions/{id}/camera-retry", h.withSession(h.handleCameraRetry))
	route("POST /sessions/{id}/capture", h.withSession(h.handleCapture))
	route("POST /sessions/{id}/retake", h.withSession(h.handleRetake))
	route("POST /sessions/{id}/details", h.withSession(h.handleDetails))
	route("POST /sessions/{id}/next", h.withSession(h.handleNext))
	route("POST /sessions/{id}/back", h.withSession(h.handleBack))
	route("GET /sessions/{id}/preview", h.withSession(h.handlePreview))
	route("GET /sessions/{id}/photo", h.withSession(h.handleSessionPhoto))
	route("POST /sessions/{id}/submit", h.withSession(h.handleSubmit))
	route("POST /sessions/{id}/reset", h.withSession(h.handleReset))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handlers) handleProjects(w http.ResponseWriter, r *http.Request) {
	municipality := strings.TrimSpace(r.URL.Query().Get("municipality"))
	barangay := strings.TrimSpace(r.URL.Query().Get("barangay"))
	if municipality == "" || barangay == "" {
		writeError(w, http.StatusBadRequest, "municipality and barangay are required")
		return
	}

	projects, err := h.Projects.QueryProjects(r.Context(), municipality, barangay)
	if err != nil {
		h.Log.Error("project query failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if projects == nil {
		projects = []model.ProjectReference{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handlers) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	filePath, err := h.Photos.Resolve(r.PathValue("path"))
	if err != nil {
		writeError(w, http.StatusNotFound, "photo not found")
		return
	}
	w.Header().Set("Content-Type", workflow.PhotoContentType)
	http.ServeFile(w, r, filePath)
}

func (h *Handlers) handleListReports(w http.ResponseWriter, r *http.Request) {
	var limit int64
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	// "all" or no value lists every status.
	var status model.ReportStatus
	if v := r.URL.Query().Get("status"); v != "" && v != "all" {
		status = model.ReportStatus(v)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}

	reports, err := h.Reports.ListReports(r.Context(), limit, status)
	if err != nil {
		h.Log.Error("failed to list reports", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *Handlers) handleReportsNear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || !validCoordinates(lat, lon) {
		writeError(w, http.StatusBadRequest, "invalid lat/lon")
		return
	}
	dist := 1000
	if v := q.Get("dist"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxNearRadius {
			writeError(w, http.StatusBadRequest, "invalid dist")
			return
		}
		dist = n
	}

	reports, err := h.Reports.SearchReportsByLocation(r.Context(), lon, lat, dist)
	if err != nil {
		h.Log.Error("geo search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to search reports")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *Handlers) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reports.GetReport(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrReportNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.Log.Error("failed to get report", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.ReportStatus `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	id := r.PathValue("id")
	err := h.Reports.UpdateReportStatus(r.Context(), id, req.Status)
	if errors.Is(err, storage.ErrReportNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.Log.Error("failed to update report status", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update report status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
