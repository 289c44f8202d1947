package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-alerting/internal/config"
)

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(config.CORSConfig{AllowedOrigins: []string{"*"}}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status: %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Fatalf("allow-origin: %q", got)
	}
}

func TestIsOriginAllowed(t *testing.T) {
	cases := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"http://localhost:3000", nil, true},
		{"https://evil.example.com", nil, false},
		{"https://any.example.com", []string{"*"}, true},
		{"https://ui.mirador.io", []string{"*.mirador.io"}, true},
		{"https://ui.other.io", []string{"*.mirador.io"}, false},
		{"https://exact.example.com", []string{"https://exact.example.com"}, true},
	}
	for _, c := range cases {
		if got := isOriginAllowed(c.origin, c.allowed); got != c.want {
			t.Fatalf("origin %s allowed %v: want %v got %v", c.origin, c.allowed, c.want, got)
		}
	}
}
