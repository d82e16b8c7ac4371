package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var errShape = errors.New("unexpected blob shape")

// encodeBlob marshals a collection. A nil slice is written as [].
func encodeBlob[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

// decodeComments parses and validates a persisted comment blob. Any entry
// that breaks the model invariants rejects the whole blob.
func decodeComments(data []byte) ([]Comment, error) {
	var cs []Comment
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	seen := make(map[string]struct{}, len(cs))
	for i := range cs {
		c := &cs[i]
		if err := validComment(*c); err != nil {
			return nil, fmt.Errorf("comment %d: %w", i, err)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("comment %d: duplicate id %q: %w", i, c.ID, errShape)
		}
		seen[c.ID] = struct{}{}
		if strings.TrimSpace(c.Author.Name) == "" {
			c.Author.Name = AnonymousName
		}
	}
	sortComments(cs)
	return cs, nil
}

func validComment(c Comment) error {
	switch {
	case c.ID == "":
		return fmt.Errorf("missing id: %w", errShape)
	case c.Timestamp < 0:
		return fmt.Errorf("negative timestamp: %w", errShape)
	case strings.TrimSpace(c.Text) == "":
		return fmt.Errorf("empty text: %w", errShape)
	case c.CreatedAt.IsZero():
		return fmt.Errorf("missing createdAt: %w", errShape)
	case c.IsReply && c.ParentID == "":
		return fmt.Errorf("reply without parent: %w", errShape)
	case !c.IsReply && c.ParentID != "":
		return fmt.Errorf("parent on top-level comment: %w", errShape)
	case c.IsReply && c.IsAnchored:
		return fmt.Errorf("anchored reply: %w", errShape)
	case c.IsAnchored && !finite(c.X, c.Y):
		return fmt.Errorf("anchor out of range: %w", errShape)
	}
	return nil
}

// decodeStrokes parses and validates a persisted drawing blob. Insertion
// order is kept as stored.
func decodeStrokes(data []byte) ([]Stroke, error) {
	var ss []Stroke
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, fmt.Errorf("decode strokes: %w", err)
	}
	seen := make(map[string]struct{}, len(ss))
	for i, s := range ss {
		switch {
		case s.ID == "":
			return nil, fmt.Errorf("stroke %d: missing id: %w", i, errShape)
		case s.Timestamp < 0:
			return nil, fmt.Errorf("stroke %d: negative timestamp: %w", i, errShape)
		case len(s.Path) == 0:
			return nil, fmt.Errorf("stroke %d: empty path: %w", i, errShape)
		}
		for _, p := range s.Path {
			if !finite(p.X, p.Y) {
				return nil, fmt.Errorf("stroke %d: point out of range: %w", i, errShape)
			}
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("stroke %d: duplicate id %q: %w", i, s.ID, errShape)
		}
		seen[s.ID] = struct{}{}
	}
	return ss, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
