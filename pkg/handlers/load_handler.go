package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services"
)

// StartLoadRequest is the optional body of POST /api/load.
type StartLoadRequest struct {
	// ClearFirst empties the relations before loading.
	ClearFirst bool `json:"clear_first"`
}

// LoadHandler exposes the load lifecycle.
type LoadHandler struct {
	loader  services.LoaderService
	schema  services.SchemaService
	sources map[models.EntityKind]string
	logger  *zap.Logger
}

// NewLoadHandler creates a LoadHandler that loads from the given sources.
func NewLoadHandler(
	loader services.LoaderService,
	schema services.SchemaService,
	sources map[models.EntityKind]string,
	logger *zap.Logger,
) *LoadHandler {
	return &LoadHandler{
		loader:  loader,
		schema:  schema,
		sources: sources,
		logger:  logger,
	}
}

// RegisterRoutes registers the load handler's routes on the given mux.
func (h *LoadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/load/status", h.Status)
	mux.HandleFunc("POST /api/load", h.Start)
	mux.HandleFunc("DELETE /api/data", h.Clear)
}

// Status handles GET /api/load/status.
func (h *LoadHandler) Status(w http.ResponseWriter, r *http.Request) {
	run, err := h.loader.Status(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	if err := WriteJSON(w, http.StatusOK, run); err != nil {
		h.logger.Error("Failed to encode load status", zap.Error(err))
	}
}

// Start handles POST /api/load. The load runs in the background; the
// response carries the in-progress run.
func (h *LoadHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		if err := ErrorResponse(w, http.StatusBadRequest, "InvalidParameter", "invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.ClearFirst {
		if err := h.schema.ClearAll(r.Context()); err != nil {
			WriteServiceError(w, err, h.logger)
			return
		}
	}

	run, err := h.loader.Start(r.Context(), h.sources)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("Load accepted", zap.String("run_id", run.ID.String()))
	if err := WriteJSON(w, http.StatusAccepted, run); err != nil {
		h.logger.Error("Failed to encode load run", zap.Error(err))
	}
}

// Clear handles DELETE /api/data.
func (h *LoadHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.schema.ClearAll(r.Context()); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
