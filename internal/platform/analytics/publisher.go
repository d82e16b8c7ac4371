// Package analytics provides a fire-and-forget NATS publisher for review
// activity events. Events are local telemetry; nothing in the engine reads
// them back.
package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subject constants for every review activity event.
const (
	SubjectCommentAdded    = "analytics.review.comment_added"
	SubjectReplyAdded      = "analytics.review.reply_added"
	SubjectCommentsRemoved = "analytics.review.comments_removed"
	SubjectStrokeAdded     = "analytics.review.stroke_added"
	SubjectPlaybackError   = "analytics.review.playback_error"

	streamName = "REVIEW_ANALYTICS"
)

// Event is the canonical envelope sent to all analytics.* subjects.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	Namespace  string         `json:"namespace,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Publisher publishes analytics events to NATS JetStream.
// A nil pointer is a safe no-op stub.
type Publisher struct {
	js        nats.JetStreamContext
	namespace string
	log       *zap.Logger
}

// New creates a Publisher bound to a review namespace.
// Pass js=nil to get a no-op stub (useful in tests and runs without NATS).
func New(js nats.JetStreamContext, namespace string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, namespace: namespace, log: log}
}

// EnsureStream creates the analytics stream if it is missing.
func EnsureStream(js nats.JetStreamContext, log *zap.Logger) {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"analytics.review.>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		log.Warn("analytics: add stream failed (may already exist)", zap.Error(err))
	}
}

// Publish sends an analytics event asynchronously (fire-and-forget).
// Failures are logged as warnings and never surface to the caller.
func (p *Publisher) Publish(subject, eventName string, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	data, err := json.Marshal(p.event(eventName, props))
	if err != nil {
		p.log.Warn("analytics: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("analytics: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (p *Publisher) event(eventName string, props map[string]any) Event {
	return Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		Namespace:  p.namespace,
		OccurredAt: time.Now().UTC(),
		Properties: props,
	}
}
