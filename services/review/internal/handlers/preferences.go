package handlers

import (
	"net/http"

	"github.com/example/frame-review/internal/platform/api"
	"github.com/example/frame-review/internal/platform/httpserver"
	"github.com/example/frame-review/services/review/internal/store"
)

// PreferenceStore is the preference surface the handlers need.
type PreferenceStore interface {
	Preferences() store.Preferences
	SetPreferences(p store.Preferences) store.Preferences
}

func GetPreferences(ps PreferenceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, ps.Preferences())
	}
}

// PutPreferences replaces the preferences. Omitted fields take their zero
// value; an empty color resets to the default.
func PutPreferences(ps PreferenceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req store.Preferences
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		api.WriteJSON(w, http.StatusOK, ps.SetPreferences(req))
	}
}
