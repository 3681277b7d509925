package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOK     bool
		wantStatus int
	}{
		{name: "absent uses default", query: "", wantLimit: DefaultReportLimit, wantOK: true},
		{name: "explicit", query: "?limit=3", wantLimit: 3, wantOK: true},
		{name: "zero is passed through", query: "?limit=0", wantLimit: 0, wantOK: true},
		{name: "negative is passed through", query: "?limit=-2", wantLimit: -2, wantOK: true},
		{name: "not a number", query: "?limit=ten", wantOK: false, wantStatus: http.StatusBadRequest},
		{name: "fraction", query: "?limit=1.5", wantOK: false, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/reports/top-customers"+tt.query, nil)
			w := httptest.NewRecorder()

			limit, ok := ParseLimit(w, req, DefaultReportLimit, zap.NewNop())

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantLimit, limit)
				return
			}
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), "InvalidParameter")
		})
	}
}
