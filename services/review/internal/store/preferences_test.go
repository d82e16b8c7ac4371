package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/frame-review/services/review/internal/kv"
)

func TestPreferences_DefaultsAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	opts := testOptions(t)

	s := NewPreferenceStore(mem, opts)
	s.Load(ctx)
	require.Equal(t, DefaultPreferences(), s.Preferences())
	_, ok := s.LastPosition("clip.mp4")
	require.False(t, ok)

	got := s.SetPreferences(Preferences{DefaultDrawingColor: " #00ff00 ", AutoPlay: true})
	require.Equal(t, Preferences{DefaultDrawingColor: "#00ff00", AutoPlay: true}, got)
	s.SavePosition("clip.mp4", 73.25)
	s.SavePosition("clip.mp4", -3)
	require.NoError(t, s.Flush(ctx))

	restarted := NewPreferenceStore(mem, opts)
	restarted.Load(ctx)
	require.Equal(t, got, restarted.Preferences())
	pos, ok := restarted.LastPosition("clip.mp4")
	require.True(t, ok)
	require.Equal(t, 73.25, pos)
	_, ok = restarted.LastPosition("other.mp4")
	require.False(t, ok)
}

func TestPreferences_EmptyColorResets(t *testing.T) {
	s := NewPreferenceStore(kv.NewMemoryStore(), testOptions(t))
	require.Equal(t, DefaultStrokeColor, s.SetPreferences(Preferences{}).DefaultDrawingColor)
}

func TestPreferences_MalformedLoadsDefaults(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, "@test_preferences", []byte(`"nope"`)))
	require.NoError(t, mem.Set(ctx, "@test_last_video_time", []byte(`{"source":"a","time":"x"}`)))

	s := NewPreferenceStore(mem, testOptions(t))
	s.Load(ctx)
	require.Equal(t, DefaultPreferences(), s.Preferences())
	_, ok := s.LastPosition("a")
	require.False(t, ok)
}
