package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"checklist/config"
	"checklist/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		SessionSecret:  "0123456789abcdef0123456789abcdef",
		CORSOrigins:    []string{"http://localhost:5173"},
		MaxUploadBytes: 1 << 20,
	}
}

// No request below carries a session, so the nil store is never reached.
func TestRouter_Access(t *testing.T) {
	r := NewRouter(nil, testConfig(), logger.Nop())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"csrf is public", http.MethodGet, "/api/csrf", "", http.StatusOK},
		{"template download is public", http.MethodGet, "/api/types/1/download-template", "", http.StatusOK},
		{"projects need a session", http.MethodGet, "/api/projects", "", http.StatusUnauthorized},
		{"export needs a session", http.MethodGet, "/api/projects/P1/export-archive", "", http.StatusUnauthorized},
		{"users need a session", http.MethodGet, "/api/users", "", http.StatusUnauthorized},
		{"writes need a session", http.MethodPost, "/api/answers/batch", "[]", http.StatusUnauthorized},
		{"login skips csrf", http.MethodPost, "/api/auth/login", "{}", http.StatusBadRequest},
		{"register skips csrf", http.MethodPost, "/api/auth/register", "{}", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRouter_CSRFCookieIssued(t *testing.T) {
	r := NewRouter(nil, testConfig(), logger.Nop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf", nil))

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "csrftoken" && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found)
}
