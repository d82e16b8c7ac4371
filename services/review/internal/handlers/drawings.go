package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/frame-review/internal/platform/api"
	"github.com/example/frame-review/internal/platform/httpserver"
	"github.com/example/frame-review/services/review/internal/store"
)

// DrawingStore is the drawing store surface the handlers need.
type DrawingStore interface {
	AddStroke(timestamp float64, path []store.Point, color string) (store.Stroke, bool)
	RemoveStroke(id string) bool
	ClearAll()
	All() []store.Stroke
	ForTimestamp(t, tolerance float64) []store.Stroke
}

type createStrokeReq struct {
	Timestamp *float64      `json:"timestamp"`
	Path      []store.Point `json:"path"`
	Color     string        `json:"color"`
}

func ListDrawings(ds DrawingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		t, hasT, ok := queryFloat(w, r, rid, "t")
		if !ok {
			return
		}
		tol, hasTol, ok := queryFloat(w, r, rid, "tolerance")
		if !ok {
			return
		}
		if !hasTol {
			tol = -1
		}

		out := ds.All()
		if hasT {
			out = ds.ForTimestamp(t, tol)
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"drawings": out})
	}
}

// CreateDrawing commits a stroke. An empty color means the preferred one.
func CreateDrawing(ds DrawingStore, prefs PreferenceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req createStrokeReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if req.Timestamp == nil {
			api.BadRequest(w, "MISSING_TIMESTAMP", "timestamp is required", rid, map[string]any{"field": "timestamp"})
			return
		}
		if len(req.Path) == 0 {
			api.BadRequest(w, "EMPTY_PATH", "path must have at least one point", rid, map[string]any{"field": "path"})
			return
		}
		color := req.Color
		if color == "" && prefs != nil {
			color = prefs.Preferences().DefaultDrawingColor
		}

		st, ok := ds.AddStroke(*req.Timestamp, req.Path, color)
		if !ok {
			api.Unprocessable(w, "INVALID_STROKE", "stroke rejected", rid, nil)
			return
		}
		api.WriteJSON(w, http.StatusCreated, st)
	}
}

func DeleteDrawing(ds DrawingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		if !ds.RemoveStroke(chi.URLParam(r, "id")) {
			api.NotFound(w, "NOT_FOUND", "drawing not found", rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ClearDrawings(ds DrawingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ds.ClearAll()
		w.WriteHeader(http.StatusNoContent)
	}
}
