package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/example/frame-review/internal/platform/api"
)

func newTestRouter(cfg ...RouterConfig) chi.Router {
	r := chi.NewRouter()
	SetupRouter(r, cfg...)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := serve(newTestRouter(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyz_FollowsStoreLoad(t *testing.T) {
	var loaded atomic.Bool
	r := newTestRouter(RouterConfig{ReadyFunc: func() error {
		if !loaded.Load() {
			return errors.New("review state not loaded")
		}
		return nil
	}})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set("X-Request-Id", "boot-1")
	rr := serve(r, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "NOT_READY", body.Error.Code)
	require.Equal(t, "review state not loaded", body.Error.Message)
	require.Equal(t, "boot-1", body.Error.RequestID)

	loaded.Store(true)
	rr = serve(r, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ready", rr.Body.String())
}

func TestReadyz_WithoutCheck(t *testing.T) {
	rr := serve(newTestRouter(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRecoverer(t *testing.T) {
	r := newTestRouter()
	r.Post("/v1/comments", func(http.ResponseWriter, *http.Request) { panic("nil store") })

	rr := serve(r, httptest.NewRequest(http.MethodPost, "/v1/comments", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCORS_LoopbackOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:19006, http://127.0.0.1:8081")
	r := newTestRouter()
	r.Get("/v1/playback", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/v1/playback", nil)
	req.Header.Set("Origin", "http://127.0.0.1:8081")
	rr := serve(r, req)
	require.Equal(t, "http://127.0.0.1:8081", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/playback", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = serve(r, req)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightForCommentEdit(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:19006")
	r := newTestRouter()
	r.Patch("/v1/comments/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/v1/comments/c1", nil)
	req.Header.Set("Origin", "http://localhost:19006")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rr := serve(r, req)

	require.Equal(t, "http://localhost:19006", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}

func TestParseCORSOrigins(t *testing.T) {
	cases := map[string][]string{
		"":                             {"*"},
		" , ":                          {"*"},
		"http://localhost:19006":       {"http://localhost:19006"},
		"http://a:1 ,capacitor://b , ": {"http://a:1", "capacitor://b"},
	}
	for raw, want := range cases {
		require.Equal(t, want, parseCORSOrigins(raw), "raw=%q", raw)
	}
}

func TestRequestID(t *testing.T) {
	r := newTestRouter()
	r.Get("/id", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(RequestIDFromContext(r.Context())))
	})

	rr := serve(r, httptest.NewRequest(http.MethodGet, "/id", nil))
	require.NotEmpty(t, rr.Body.String())
	require.Equal(t, rr.Body.String(), rr.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-Id", "ui-42")
	require.Equal(t, "ui-42", serve(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("x", 200))
	got := serve(r, req).Body.String()
	require.NotEqual(t, strings.Repeat("x", 200), got, "oversized ids are replaced")
	require.NotEmpty(t, got)
}

func TestMetricsToggle(t *testing.T) {
	rr := serve(newTestRouter(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(newTestRouter(RouterConfig{DisableMetrics: true}), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
