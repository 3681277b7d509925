package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// DefaultReportLimit is used when a ranking request has no limit parameter.
const DefaultReportLimit = 10

// ParseLimit reads the "limit" query parameter. Returns def when absent.
// On a non-numeric value it writes a 400 response and returns false. Range
// checks are left to the service.
func ParseLimit(w http.ResponseWriter, r *http.Request, def int, logger *zap.Logger) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "InvalidParameter", "limit must be an integer"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return n, true
}
