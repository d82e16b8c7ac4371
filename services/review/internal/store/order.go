package store

import (
	"cmp"
	"sort"
	"time"
)

// orderKey places a comment in canonical order.
//
// Top-level comments sort by (timestamp, createdAt, id). A reply joins its
// parent's group and follows it by (createdAt, id), so every thread is
// contiguous. A reply whose parent is missing forms a group keyed by the
// missing parent id after all regular threads at its timestamp.
type orderKey struct {
	ts     int64
	orphan bool
	rootAt time.Time
	rootID string
	reply  bool
	at     time.Time
	id     string
}

func (a orderKey) compare(b orderKey) int {
	if c := cmp.Compare(a.ts, b.ts); c != 0 {
		return c
	}
	if a.orphan != b.orphan {
		return boolCompare(a.orphan, b.orphan)
	}
	if c := a.rootAt.Compare(b.rootAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.rootID, b.rootID); c != 0 {
		return c
	}
	if a.reply != b.reply {
		return boolCompare(a.reply, b.reply)
	}
	if c := a.at.Compare(b.at); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func keyFor(c Comment, roots map[string]Comment) orderKey {
	if !c.IsReply {
		return orderKey{ts: c.Timestamp, rootAt: c.CreatedAt, rootID: c.ID}
	}
	if p, ok := roots[c.ParentID]; ok {
		return orderKey{ts: p.Timestamp, rootAt: p.CreatedAt, rootID: p.ID, reply: true, at: c.CreatedAt, id: c.ID}
	}
	return orderKey{ts: c.Timestamp, orphan: true, rootID: c.ParentID, reply: true, at: c.CreatedAt, id: c.ID}
}

// sortComments puts cs in canonical order in place.
func sortComments(cs []Comment) {
	roots := make(map[string]Comment, len(cs))
	for _, c := range cs {
		if !c.IsReply {
			roots[c.ID] = c
		}
	}

	type keyed struct {
		key orderKey
		c   Comment
	}
	ks := make([]keyed, len(cs))
	for i, c := range cs {
		ks[i] = keyed{key: keyFor(c, roots), c: c}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		return ks[i].key.compare(ks[j].key) < 0
	})
	for i := range ks {
		cs[i] = ks[i].c
	}
}

// sortByCreation orders replies of one parent.
func sortByCreation(cs []Comment) {
	sort.SliceStable(cs, func(i, j int) bool {
		if c := cs[i].CreatedAt.Compare(cs[j].CreatedAt); c != 0 {
			return c < 0
		}
		return cs[i].ID < cs[j].ID
	})
}
