package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	u := newUpstream(t, jsonUpstream(`{"ok":true}`))
	e := newTestEcho(t, testConfig(u.srv.URL+basePath))

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", http.StatusOK},
		{"GET /api/focelda", http.MethodGet, "/api/focelda?endpoint=/get_articolobyid/1", http.StatusOK},
		{"POST /api/focelda", http.MethodPost, "/api/focelda", http.StatusOK},
		{"OPTIONS /api/focelda", http.MethodOptions, "/api/focelda", http.StatusOK},
		{"GET /metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"PUT /api/focelda not allowed", http.MethodPut, "/api/focelda", http.StatusMethodNotAllowed},
		{"GET /unknown returns 404", http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_MetricsExposition(t *testing.T) {
	u := newUpstream(t, jsonUpstream(`{}`))
	e := newTestEcho(t, testConfig(u.srv.URL+basePath))

	serve(e, http.MethodGet, proxyURL("/get_articolobyid/1"), "")
	rec := serve(e, http.MethodGet, "/metrics", "")

	if !strings.Contains(rec.Body.String(), `focelda_proxy_envelopes_total{kind="result",response_type="json"} 1`) {
		t.Errorf("metrics output missing envelope counter:\n%s", rec.Body.String())
	}
}

func TestRegisterRoutes_MetricsDisabled(t *testing.T) {
	u := newUpstream(t, jsonUpstream(`{}`))
	cfg := testConfig(u.srv.URL + basePath)
	cfg.Metrics.Enabled = false
	e := newTestEcho(t, cfg)

	rec := serve(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
