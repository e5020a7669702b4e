package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"reelkeep/internal/logging"
	"reelkeep/internal/media"
	"reelkeep/internal/metrics"
	"reelkeep/internal/services"
	"reelkeep/internal/settings"
	"reelkeep/internal/tasks"
)

const maxBodyBytes = 1 << 20

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// Token enables bearer authentication on /api routes when non-empty.
	Token  string
	Logger *slog.Logger
	// DecorateStatus lets the daemon add scheduler details to /api/status.
	DecorateStatus func(ctx context.Context, status *StatusResponse)
}

type handler struct {
	svc      *Service
	logger   *slog.Logger
	decorate func(ctx context.Context, status *StatusResponse)
}

// NewHandler builds the HTTP routes over svc. /metrics is served without
// authentication.
func NewHandler(svc *Service, opts HandlerOptions) http.Handler {
	h := &handler{
		svc:      svc,
		logger:   logging.NewComponentLogger(opts.Logger, "api-server"),
		decorate: opts.DecorateStatus,
	}

	routes := http.NewServeMux()
	routes.HandleFunc("GET /api/cleanup/tasks", h.handleCleanupList)
	routes.HandleFunc("POST /api/cleanup/execute", h.handleExecute)
	routes.HandleFunc("POST /api/cleanup/ignore", h.handleIgnore)
	routes.HandleFunc("POST /api/cleanup/delete", h.handleDelete)
	routes.HandleFunc("POST /api/cleanup/clear_all", h.handleClearAll)
	routes.HandleFunc("GET /api/cleanup/settings", h.handleGetSettings)
	routes.HandleFunc("POST /api/cleanup/settings", h.handleSaveSettings)
	routes.HandleFunc("GET /api/cleanup/libraries", h.handleLibraries)
	routes.HandleFunc("POST /api/cleanup/scan", h.handleScan)
	routes.HandleFunc("POST /api/reconcile", h.handleReconcile)
	routes.HandleFunc("GET /api/task", h.handleTask)
	routes.HandleFunc("POST /api/task/stop", h.handleTaskStop)
	routes.HandleFunc("GET /api/status", h.handleStatus)

	mux := http.NewServeMux()
	mux.Handle("/api/", authMiddleware(opts.Token, routes))
	mux.Handle("GET /metrics", metrics.Handler())
	return requestIDMiddleware(mux)
}

func (h *handler) handleCleanupList(w http.ResponseWriter, r *http.Request) {
	status := media.CleanupStatus(r.URL.Query().Get("status"))
	items, err := h.svc.ListCleanup(r.Context(), status)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CleanupListResponse{Items: items})
}

func (h *handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req IDsRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	accepted, err := h.svc.StartExecute(req.TaskIDs)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, accepted)
}

func (h *handler) handleIgnore(w http.ResponseWriter, r *http.Request) {
	var req IDsRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	count, err := h.svc.Ignore(r.Context(), req.TaskIDs)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req IDsRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	count, err := h.svc.Delete(r.Context(), req.TaskIDs)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (h *handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAll(r.Context()); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	value, err := h.svc.Settings(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, value)
}

func (h *handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.Settings
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := h.svc.SaveSettings(r.Context(), req); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	saved, err := h.svc.Settings(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, saved)
}

func (h *handler) handleLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := h.svc.Libraries(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, LibrariesResponse{Libraries: libs})
}

func (h *handler) handleScan(w http.ResponseWriter, r *http.Request) {
	accepted, err := h.svc.StartScan()
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, accepted)
}

func (h *handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	accepted, err := h.svc.StartReconcile(req.ForceFull)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, accepted)
}

func (h *handler) handleTask(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.TaskStatus())
}

func (h *handler) handleTaskStop(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.StopTask())
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if h.decorate != nil {
		h.decorate(r.Context(), &status)
	}
	h.writeJSON(w, http.StatusOK, status)
}

// decode reads a JSON body into dst. An empty body is accepted only when
// allowEmpty is set.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return true
		}
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tasks.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return services.HTTPStatus(err)
	}
}

func (h *handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(logging.WithContext(r.Context(), h.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err))
	}
	h.writeError(w, status, err.Error())
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
