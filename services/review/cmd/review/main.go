package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/frame-review/internal/platform/analytics"
	"github.com/example/frame-review/internal/platform/config"
	"github.com/example/frame-review/internal/platform/httpserver"
	"github.com/example/frame-review/internal/platform/logging"
	"github.com/example/frame-review/internal/platform/natsconn"
	"github.com/example/frame-review/internal/platform/run"
	"github.com/example/frame-review/services/review/internal/handlers"
	"github.com/example/frame-review/services/review/internal/kv"
	"github.com/example/frame-review/services/review/internal/playback"
	"github.com/example/frame-review/services/review/internal/store"
	"github.com/example/frame-review/services/review/internal/surface"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// storage
	backing, closeKV, err := kv.Open(context.Background(), storageConfig(cfg), cfg.IsProduction())
	if err != nil {
		log.Error("open storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
		run.Exit(1)
	}

	// analytics (optional)
	var pub *analytics.Publisher
	nc, err := natsconn.Connect(natsconn.Options{
		URL:           cfg.NATS.URL,
		Name:          cfg.ServiceName,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	})
	switch {
	case errors.Is(err, natsconn.ErrDisabled):
		log.Info("analytics disabled")
	case err != nil:
		log.Warn("nats unavailable, analytics disabled", zap.Error(err))
	default:
		js, err := nc.JetStream()
		if err != nil {
			log.Warn("jetstream unavailable, analytics disabled", zap.Error(err))
		} else {
			analytics.EnsureStream(js, log)
			pub = analytics.New(js, cfg.Review.Namespace, log)
		}
	}

	opts := store.Options{
		Namespace:     cfg.Review.Namespace,
		Tolerance:     cfg.Review.Tolerance,
		MaxTextLength: cfg.Review.MaxTextLength,
		WriteTimeout:  cfg.Storage.WriteTimeout,
		Logger:        log,
	}
	comments := store.NewAnnotationStore(backing, opts, store.Hooks{
		OnCommentAdded: func(c store.Comment) {
			if c.IsReply {
				pub.Publish(analytics.SubjectReplyAdded, "reply_added", map[string]any{
					"comment_id": c.ID, "parent_id": c.ParentID, "timestamp": c.Timestamp,
				})
				return
			}
			pub.Publish(analytics.SubjectCommentAdded, "comment_added", map[string]any{
				"comment_id": c.ID, "timestamp": c.Timestamp, "anchored": c.IsAnchored,
			})
		},
		OnCommentsRemoved: func(ids []string) {
			pub.Publish(analytics.SubjectCommentsRemoved, "comments_removed", map[string]any{
				"comment_ids": ids, "count": len(ids),
			})
		},
	})
	drawings := store.NewDrawingStore(backing, opts, store.DrawingHooks{
		OnStrokeAdded: func(s store.Stroke) {
			pub.Publish(analytics.SubjectStrokeAdded, "stroke_added", map[string]any{
				"stroke_id": s.ID, "timestamp": s.Timestamp, "points": len(s.Path),
			})
		},
	})
	prefs := store.NewPreferenceStore(backing, opts)

	var ready atomic.Bool
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.Storage.WriteTimeout)
	comments.Load(loadCtx)
	drawings.Load(loadCtx)
	prefs.Load(loadCtx)
	cancelLoad()
	ready.Store(true)
	log.Info("review state loaded",
		zap.String("namespace", cfg.Review.Namespace),
		zap.String("comments_key", comments.Key()),
		zap.String("drawings_key", drawings.Key()),
		zap.Int("comments", len(comments.All())),
		zap.Int("drawings", len(drawings.All())),
	)

	// playback + surface
	session := surface.NewSession(surface.Deps{
		Comments:    comments,
		Drawings:    drawings,
		Preferences: prefs,
		Source:      cfg.Review.Source,
		Author:      sessionAuthor(cfg.Review),
		Logger:      log,
	})
	commands := &handlers.CommandQueue{}
	bridge := playback.NewBridge(commands, session.Callbacks(playback.Callbacks{
		OnError: func(reason string) {
			pub.Publish(analytics.SubjectPlaybackError, "playback_error", map[string]any{
				"source": cfg.Review.Source, "reason": reason,
			})
		},
	}), playback.Options{Logger: log})
	session.Attach(bridge)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: readiness(&ready, backing, time.Second),
	})
	handlers.Mount(r, handlers.Deps{
		Comments:    comments,
		Drawings:    drawings,
		Preferences: prefs,
		Bridge:      bridge,
		Commands:    commands,
		Session:     session,
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(_ context.Context) error {
		return srv.Start(log)
	}, func(ctx context.Context) error {
		ready.Store(false)
		errs := []error{srv.Shutdown(ctx)}
		errs = append(errs,
			comments.Flush(ctx),
			drawings.Flush(ctx),
			prefs.Flush(ctx),
			closeKV(),
		)
		drainNATS(nc, log)
		return errors.Join(errs...)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// storageConfig maps the storage section onto a backend config. Keys already
// carry the review namespace, so redis gets no extra prefix.
func storageConfig(cfg config.AppConfig) kv.Config {
	return kv.Config{
		Backend:    cfg.Storage.Backend,
		Dir:        cfg.Storage.Dir,
		SQLitePath: cfg.Storage.SQLitePath,
		RedisURL:   cfg.Storage.RedisURL,
	}
}

// readiness reports ready once the stores are loaded and the backend answers.
func readiness(loaded *atomic.Bool, backing kv.Store, timeout time.Duration) func() error {
	return func() error {
		if !loaded.Load() {
			return errors.New("review state not loaded")
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := kv.Ping(ctx, backing); err != nil {
			return fmt.Errorf("storage unavailable: %w", err)
		}
		return nil
	}
}

func sessionAuthor(rc config.ReviewConfig) *store.Author {
	name := strings.TrimSpace(rc.AuthorName)
	avatar := strings.TrimSpace(rc.AuthorAvatar)
	if name == "" && avatar == "" {
		return nil
	}
	a := &store.Author{Name: name}
	if avatar != "" {
		a.Avatar = &avatar
	}
	return a
}

func drainNATS(nc *nats.Conn, log *zap.Logger) {
	if nc == nil {
		return
	}
	if err := nc.Drain(); err != nil {
		log.Warn("nats drain", zap.Error(err))
		nc.Close()
	}
}
