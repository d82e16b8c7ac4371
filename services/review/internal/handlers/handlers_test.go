package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/frame-review/internal/platform/api"
	"github.com/example/frame-review/internal/platform/httpserver"
	"github.com/example/frame-review/services/review/internal/kv"
	"github.com/example/frame-review/services/review/internal/playback"
	"github.com/example/frame-review/services/review/internal/store"
	"github.com/example/frame-review/services/review/internal/surface"
)

// ─── helpers ──────────────────────────────────────────────────────────────────

type testServer struct {
	router   chi.Router
	comments *store.AnnotationStore
	drawings *store.DrawingStore
	prefs    *store.PreferenceStore
	bridge   *playback.Bridge
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	backing := kv.NewMemoryStore()
	opts := store.Options{Namespace: "http", Logger: log}

	ts := &testServer{
		comments: store.NewAnnotationStore(backing, opts, store.Hooks{}),
		drawings: store.NewDrawingStore(backing, opts, store.DrawingHooks{}),
		prefs:    store.NewPreferenceStore(backing, opts),
	}
	session := surface.NewSession(surface.Deps{
		Comments:    ts.comments,
		Drawings:    ts.drawings,
		Preferences: ts.prefs,
		Source:      "clip.mp4",
		Logger:      log,
	})
	q := &CommandQueue{}
	ts.bridge = playback.NewBridge(q, session.Callbacks(playback.Callbacks{}), playback.Options{Logger: log})
	session.Attach(ts.bridge)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{DisableMetrics: true})
	Mount(r, Deps{
		Comments:    ts.comments,
		Drawings:    ts.drawings,
		Preferences: ts.prefs,
		Bridge:      ts.bridge,
		Commands:    q,
		Session:     session,
	})
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, url, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[api.ErrorResponse](t, rr).Error.Code
}

// ─── comments ────────────────────────────────────────────────────────────────

func TestCreateComment_OK(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/v1/comments", map[string]any{
		"text":      "grade is too warm",
		"timestamp": 42.7,
		"user":      map[string]any{"name": "Kim"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	c := decode[store.Comment](t, rr)
	require.Equal(t, int64(42), c.Timestamp)
	require.Equal(t, "Kim", c.Author.Name)
	require.Len(t, ts.comments.All(), 1)
}

func TestCreateComment_Validation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/v1/comments", map[string]any{"text": "  ", "timestamp": 3})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "EMPTY_TEXT", errorCode(t, rr))

	rr = ts.do(t, http.MethodPost, "/v1/comments", map[string]any{"text": "ok"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "MISSING_TIMESTAMP", errorCode(t, rr))

	rr = ts.do(t, http.MethodPost, "/v1/comments", map[string]any{"text": "ok", "timestamp": -1})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/comments", bytes.NewBufferString("{"))
	rr = httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "INVALID_JSON", errorCode(t, rr))

	require.Empty(t, ts.comments.All())
}

func TestListComments_Filters(t *testing.T) {
	ts := newTestServer(t)
	c5, _ := ts.comments.AddComment("five", 5, nil, nil)
	c7, _ := ts.comments.AddComment("seven", 7, nil, nil)
	ts.comments.AddComment("nine", 9, nil, nil)
	ts.comments.AddReply(c7.ID, "reply", nil)

	type listResp struct {
		Comments []store.Comment `json:"comments"`
	}

	rr := ts.do(t, http.MethodGet, "/v1/comments", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[listResp](t, rr).Comments, 4)

	rr = ts.do(t, http.MethodGet, "/v1/comments?t=7&tolerance=1", nil)
	require.Len(t, decode[listResp](t, rr).Comments, 2)

	rr = ts.do(t, http.MethodGet, "/v1/comments?t=7&tolerance=1&top_level=true", nil)
	got := decode[listResp](t, rr).Comments
	require.Len(t, got, 1)
	require.Equal(t, c7.ID, got[0].ID)

	rr = ts.do(t, http.MethodGet, "/v1/comments?top_level=true", nil)
	got = decode[listResp](t, rr).Comments
	require.Len(t, got, 3)
	require.Equal(t, c5.ID, got[0].ID)

	rr = ts.do(t, http.MethodGet, "/v1/comments?t=abc", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "INVALID_QUERY", errorCode(t, rr))
}

func TestThreadRepliesAndDelete(t *testing.T) {
	ts := newTestServer(t)
	p, _ := ts.comments.AddComment("parent", 10, nil, nil)

	rr := ts.do(t, http.MethodPost, "/v1/comments/"+p.ID+"/replies", map[string]any{"text": "agreed"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reply := decode[store.Comment](t, rr)
	require.Equal(t, p.ID, reply.ParentID)

	rr = ts.do(t, http.MethodPost, "/v1/comments/missing/replies", map[string]any{"text": "x"})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodGet, "/v1/comments/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	thread := decode[threadResp](t, rr)
	require.Equal(t, p.ID, thread.Comment.ID)
	require.Len(t, thread.Replies, 1)

	rr = ts.do(t, http.MethodDelete, "/v1/comments/other/replies/"+reply.ID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code, "reply must belong to the thread")

	rr = ts.do(t, http.MethodDelete, "/v1/comments/"+p.ID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, ts.comments.All(), "replies are deleted with the parent")

	rr = ts.do(t, http.MethodDelete, "/v1/comments/"+p.ID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateComment(t *testing.T) {
	ts := newTestServer(t)
	c, _ := ts.comments.AddComment("before", 1, nil, nil)

	rr := ts.do(t, http.MethodPatch, "/v1/comments/"+c.ID, map[string]any{
		"text":   "after",
		"anchor": map[string]any{"x": 0.5, "y": 0.25},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[store.Comment](t, rr)
	require.Equal(t, "after", got.Text)
	require.True(t, got.IsAnchored)
	require.NotNil(t, got.UpdatedAt)

	rr = ts.do(t, http.MethodPatch, "/v1/comments/nope", map[string]any{"text": "x"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAnchoredStatsAndClear(t *testing.T) {
	ts := newTestServer(t)
	ts.comments.AddComment("plain", 1, nil, nil)
	ts.comments.AddComment("pin", 1, nil, &store.Anchor{X: 1, Y: 2})

	rr := ts.do(t, http.MethodGet, "/v1/comments/anchored", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	anchored := decode[map[string][]store.Comment](t, rr)["comments"]
	require.Len(t, anchored, 1)

	rr = ts.do(t, http.MethodGet, "/v1/comments/stats", nil)
	require.Equal(t, store.Stats{TopLevelCount: 2, TotalInteractions: 2, DistinctTimestampBuckets: 1}, decode[store.Stats](t, rr))

	rr = ts.do(t, http.MethodDelete, "/v1/comments", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, ts.comments.All())
}

// ─── drawings & preferences ─────────────────────────────────────────────────

func TestDrawings(t *testing.T) {
	ts := newTestServer(t)
	ts.prefs.SetPreferences(store.Preferences{DefaultDrawingColor: "#123456"})

	rr := ts.do(t, http.MethodPost, "/v1/drawings", map[string]any{
		"timestamp": 4.2,
		"path":      []map[string]float64{{"x": 1, "y": 1}, {"x": 2, "y": 2}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	st := decode[store.Stroke](t, rr)
	require.Equal(t, "#123456", st.Color)
	require.Equal(t, int64(4), st.Timestamp)

	rr = ts.do(t, http.MethodPost, "/v1/drawings", map[string]any{"timestamp": 1, "path": []any{}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "EMPTY_PATH", errorCode(t, rr))

	rr = ts.do(t, http.MethodGet, "/v1/drawings?t=50", nil)
	require.Empty(t, decode[map[string][]store.Stroke](t, rr)["drawings"])

	rr = ts.do(t, http.MethodDelete, "/v1/drawings/"+st.ID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.do(t, http.MethodDelete, "/v1/drawings/"+st.ID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPreferences(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/v1/preferences", nil)
	require.Equal(t, store.DefaultPreferences(), decode[store.Preferences](t, rr))

	rr = ts.do(t, http.MethodPut, "/v1/preferences", map[string]any{"defaultDrawingColor": "#00ff00", "autoPlay": true})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, store.Preferences{DefaultDrawingColor: "#00ff00", AutoPlay: true}, ts.prefs.Preferences())
}

// ─── playback & session ─────────────────────────────────────────────────────

func TestPlaybackFlowAndCommands(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/v1/playback/events", map[string]any{"type": "load_start"}).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/v1/playback/events", map[string]any{"type": "loaded", "duration": 120}).Code)
	rr := ts.do(t, http.MethodPost, "/v1/playback/control", map[string]any{"action": "play"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []Command{{Kind: "set_paused", Paused: false}}, decode[playbackResp](t, rr).Commands)

	ts.do(t, http.MethodPost, "/v1/playback/events", map[string]any{"type": "progress", "time": 30})

	rr = ts.do(t, http.MethodPost, "/v1/playback/control", map[string]any{"action": "skip_forward"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []Command{{Kind: "seek", Time: 40}}, decode[playbackResp](t, rr).Commands)

	// each response carries only the commands queued since the previous one
	rr = ts.do(t, http.MethodGet, "/v1/playback", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[playbackResp](t, rr)
	require.Equal(t, 40.0, resp.CurrentTime)
	require.Equal(t, 120.0, resp.Duration)
	require.Equal(t, playback.Playing, resp.State)
	require.Empty(t, resp.Commands)

	rr = ts.do(t, http.MethodPost, "/v1/playback/events", map[string]any{"type": "bogus"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/v1/playback/control", map[string]any{"action": "retry"})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestScrubEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/v1/playback/scrub", map[string]any{"phase": "begin"})
	require.Equal(t, http.StatusConflict, rr.Code, "not loaded")

	ts.bridge.LoadStart()
	ts.bridge.Loaded(600)
	ts.bridge.Progress(100)

	rr = ts.do(t, http.MethodPost, "/v1/playback/scrub", map[string]any{"phase": "begin", "dx": 5, "dy": 30})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "NOT_A_SCRUB", errorCode(t, rr))

	rr = ts.do(t, http.MethodPost, "/v1/playback/scrub", map[string]any{"phase": "begin", "dx": 15, "dy": 2, "width": 300})
	require.Equal(t, http.StatusOK, rr.Code)
	ts.do(t, http.MethodPost, "/v1/playback/scrub", map[string]any{"phase": "move", "dx": 60})
	ts.bridge.Progress(101)
	rr = ts.do(t, http.MethodPost, "/v1/playback/scrub", map[string]any{"phase": "end", "dx": 150})
	resp := decode[playbackResp](t, rr)
	require.Equal(t, 130.0, resp.CurrentTime)
	require.Equal(t, []Command{{Kind: "seek", Time: 130}}, resp.Commands)
}

func TestSessionComposerAndStrokes(t *testing.T) {
	ts := newTestServer(t)
	ts.bridge.LoadStart()
	ts.bridge.Loaded(300)
	ts.bridge.Play()
	ts.bridge.Progress(42.7)
	ts.bridge.Pause()

	rr := ts.do(t, http.MethodPost, "/v1/session/composer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 42.7, decode[surface.Composer](t, rr).Timestamp)

	rr = ts.do(t, http.MethodPost, "/v1/session/composer/submit", map[string]any{"text": "flicker"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, int64(42), decode[store.Comment](t, rr).Timestamp)

	rr = ts.do(t, http.MethodPost, "/v1/session/composer", map[string]any{"anchored": true, "x": 10, "y": 20})
	require.True(t, decode[surface.Composer](t, rr).Anchored)
	rr = ts.do(t, http.MethodPost, "/v1/session/composer/submit", map[string]any{"text": "here", "color": "#0000ff"})
	require.Equal(t, http.StatusCreated, rr.Code)
	pinned := decode[store.Comment](t, rr)
	require.True(t, pinned.IsAnchored)
	require.Equal(t, "#0000ff", pinned.Color)

	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/v1/session/strokes", map[string]any{"phase": "begin", "x": 1, "y": 1}).Code)
	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/v1/session/strokes", map[string]any{"phase": "move", "x": 5, "y": 5}).Code)
	rr = ts.do(t, http.MethodPost, "/v1/session/strokes", map[string]any{"phase": "end"})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, decode[store.Stroke](t, rr).Path, 2)

	rr = ts.do(t, http.MethodGet, "/v1/session", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	sess := decode[sessionResp](t, rr)
	require.Len(t, sess.CurrentComments, 2)
	require.Len(t, sess.VisibleStrokes, 1)
	require.False(t, sess.Composer.Open)

	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/v1/session/seek", map[string]any{"timestamp": 200}).Code)
	require.Equal(t, 200.0, ts.bridge.CurrentTime())
}

func TestSessionSmoothedPaths(t *testing.T) {
	ts := newTestServer(t)
	ts.bridge.LoadStart()
	ts.bridge.Loaded(60)
	ts.bridge.Play()
	ts.bridge.Progress(12)
	ts.bridge.Pause()

	ts.do(t, http.MethodPost, "/v1/session/strokes", map[string]any{"phase": "begin", "x": 0, "y": 0})
	ts.do(t, http.MethodPost, "/v1/session/strokes", map[string]any{"phase": "move", "x": 0, "y": 8})

	rr := ts.do(t, http.MethodGet, "/v1/session?spacing=4", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	sess := decode[sessionResp](t, rr)
	require.True(t, sess.Drawing)
	require.Equal(t, []store.Point{{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 0, Y: 8}}, sess.Draft)

	rr = ts.do(t, http.MethodPost, "/v1/session/strokes", map[string]any{"phase": "end"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.do(t, http.MethodGet, "/v1/session?spacing=4", nil)
	sess = decode[sessionResp](t, rr)
	require.False(t, sess.Drawing)
	require.Empty(t, sess.Draft)
	require.Len(t, sess.VisibleStrokes, 1)
	require.Len(t, sess.VisibleStrokes[0].Path, 3)

	rr = ts.do(t, http.MethodGet, "/v1/session", nil)
	sess = decode[sessionResp](t, rr)
	require.Len(t, sess.VisibleStrokes[0].Path, 2, "stored path is unchanged")

	rr = ts.do(t, http.MethodGet, "/v1/session?spacing=0", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "INVALID_QUERY", errorCode(t, rr))
}
