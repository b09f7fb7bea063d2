package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
)

func TestPreflightFromAllowedOrigin(t *testing.T) {
	is := is.New(t)

	r := New("space-monitor-test", "http://localhost:5173")
	r.Put("/api/devices/putd/{id}", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodOptions, "/api/devices/putd/1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	is.Equal("http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	is.Equal("300", w.Header().Get("Access-Control-Max-Age"))
}

func TestPreflightFromOtherOriginIsNotAllowed(t *testing.T) {
	is := is.New(t)

	r := New("space-monitor-test", "http://localhost:5173")
	r.Put("/api/devices/putd/{id}", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodOptions, "/api/devices/putd/1", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	is.Equal("", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPanicsAreRecovered(t *testing.T) {
	is := is.New(t)

	r := New("space-monitor-test")
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	is.Equal(http.StatusInternalServerError, w.Code)
}
