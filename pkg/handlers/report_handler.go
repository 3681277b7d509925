package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/services"
)

// ReportResponse wraps report rows.
type ReportResponse struct {
	Report string `json:"report"`
	Limit  int    `json:"limit,omitempty"`
	Rows   any    `json:"rows"`
}

// ReportHandler serves the aggregate reports.
type ReportHandler struct {
	reports services.ReportService
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports services.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// RegisterRoutes registers the report handler's routes on the given mux.
func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/reports"
	mux.HandleFunc("GET "+base+"/top-customers", h.TopCustomers)
	mux.HandleFunc("GET "+base+"/top-categories", h.TopCategories)
	mux.HandleFunc("GET "+base+"/monthly-sales", h.MonthlySales)
}

// TopCustomers handles GET /api/reports/top-customers?limit=n.
func (h *ReportHandler) TopCustomers(w http.ResponseWriter, r *http.Request) {
	limit, ok := ParseLimit(w, r, DefaultReportLimit, h.logger)
	if !ok {
		return
	}
	rows, err := h.reports.TopSpendingCustomers(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	h.write(w, ReportResponse{Report: "top-customers", Limit: limit, Rows: rows})
}

// TopCategories handles GET /api/reports/top-categories?limit=n.
func (h *ReportHandler) TopCategories(w http.ResponseWriter, r *http.Request) {
	limit, ok := ParseLimit(w, r, DefaultReportLimit, h.logger)
	if !ok {
		return
	}
	rows, err := h.reports.TopSellingCategories(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	h.write(w, ReportResponse{Report: "top-categories", Limit: limit, Rows: rows})
}

// MonthlySales handles GET /api/reports/monthly-sales.
func (h *ReportHandler) MonthlySales(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.MonthlySalesPattern(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	h.write(w, ReportResponse{Report: "monthly-sales", Rows: rows})
}

func (h *ReportHandler) write(w http.ResponseWriter, resp ReportResponse) {
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode report", zap.String("report", resp.Report), zap.Error(err))
	}
}
