package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/example/frame-review/services/review/internal/playback"
	"github.com/example/frame-review/services/review/internal/store"
	"github.com/example/frame-review/services/review/internal/surface"
)

// Deps are the engine parts exposed over HTTP.
type Deps struct {
	Comments    store.CommentStore
	Drawings    DrawingStore
	Preferences PreferenceStore
	Bridge      *playback.Bridge
	Commands    *CommandQueue
	Session     *surface.Session
}

// Mount registers the review API on r.
func Mount(r chi.Router, d Deps) {
	r.Route("/v1/comments", func(r chi.Router) {
		r.Get("/", ListComments(d.Comments))
		r.Post("/", CreateComment(d.Comments))
		r.Delete("/", ClearComments(d.Comments))
		r.Get("/anchored", AnchoredComments(d.Comments))
		r.Get("/stats", CommentStats(d.Comments))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", GetThread(d.Comments))
			r.Patch("/", UpdateComment(d.Comments))
			r.Delete("/", DeleteComment(d.Comments))
			r.Get("/replies", ListReplies(d.Comments))
			r.Post("/replies", CreateReply(d.Comments))
			r.Delete("/replies/{reply_id}", DeleteReply(d.Comments))
		})
	})

	r.Route("/v1/drawings", func(r chi.Router) {
		r.Get("/", ListDrawings(d.Drawings))
		r.Post("/", CreateDrawing(d.Drawings, d.Preferences))
		r.Delete("/", ClearDrawings(d.Drawings))
		r.Delete("/{id}", DeleteDrawing(d.Drawings))
	})

	r.Get("/v1/preferences", GetPreferences(d.Preferences))
	r.Put("/v1/preferences", PutPreferences(d.Preferences))

	if d.Bridge != nil {
		q := d.Commands
		if q == nil {
			q = &CommandQueue{}
		}
		r.Route("/v1/playback", func(r chi.Router) {
			r.Get("/", GetPlayback(d.Bridge, q))
			r.Post("/events", PlaybackEvent(d.Bridge, q))
			r.Post("/control", PlaybackControl(d.Bridge, q))
			r.Post("/scrub", Scrub(d.Bridge, q))
		})
	}

	if d.Session != nil {
		r.Route("/v1/session", func(r chi.Router) {
			r.Get("/", GetSession(d.Session))
			r.Post("/composer", OpenComposer(d.Session))
			r.Delete("/composer", CloseComposer(d.Session))
			r.Post("/composer/submit", SubmitComposer(d.Session))
			r.Post("/strokes", SessionStroke(d.Session))
			r.Post("/seek", SessionSeek(d.Session))
		})
	}
}
