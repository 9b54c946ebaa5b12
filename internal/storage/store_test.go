package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hftracker/internal/tracker"
	logx "hftracker/pkg/logx"
)

func strp(s string) *string { return &s }

func sampleState(t *testing.T) *tracker.State {
	t.Helper()
	lm := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	created := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	checked := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	st := tracker.NewState()
	st.Put("acme", tracker.NewSnapshot([]tracker.ArtifactRecord{
		{ID: "acme/model-a", Owner: "acme", ContentHash: strp("abc123"), LastModified: &lm, CreatedAt: &created, Tags: []string{"text", "gguf"}, Downloads: 1234},
		{ID: "acme/model-b"},
	}, checked))
	st.Put("empty", tracker.NewSnapshot(nil, checked))
	return st
}

func assertStateEqual(t *testing.T, want, got *tracker.State) {
	t.Helper()
	require.Equal(t, want.Names(), got.Names())
	for _, name := range want.Names() {
		w, g := want.Get(name), got.Get(name)
		require.NotNil(t, g, name)
		assert.True(t, w.LastChecked.Equal(g.LastChecked), "last_checked of %s", name)
		assert.Equal(t, w.Count, g.Count)
		require.Equal(t, w.IDs(), g.IDs())
		for _, id := range w.IDs() {
			wr, gr := w.Artifacts[id], g.Artifacts[id]
			assert.Equal(t, wr.Owner, gr.Owner)
			assert.Equal(t, wr.ContentHash, gr.ContentHash)
			assert.Equal(t, wr.Tags, gr.Tags)
			assert.Equal(t, wr.Downloads, gr.Downloads)
			if wr.LastModified == nil {
				assert.Nil(t, gr.LastModified)
			} else {
				require.NotNil(t, gr.LastModified)
				assert.True(t, wr.LastModified.Equal(*gr.LastModified))
			}
		}
		// A reloaded snapshot must not produce change events.
		assert.Empty(t, tracker.Detect(name, w, *g))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	want := sampleState(t)
	require.NoError(t, st.Save(context.Background(), want))

	got := st.Load(context.Background())
	assertStateEqual(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "none.json")}, logx.Nop())
	require.NoError(t, err)

	got := st.Load(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got.Accounts)
}

func TestFileStoreCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"acme": {"models": {`), 0o600))

	st, err := Open(Config{Path: path}, logx.Nop())
	require.NoError(t, err)

	got := st.Load(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got.Accounts)
}

func TestSQLiteStoreCorruptFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database, just some bytes padded out"), 0o600))

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	got := st.Load(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got.Accounts)

	aside, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, aside, 1)
	b, err := os.ReadFile(aside[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), "not a sqlite database")

	// The recreated database is usable.
	want := sampleState(t)
	require.NoError(t, st.Save(context.Background(), want))
	assertStateEqual(t, want, st.Load(context.Background()))
}

func TestFileStoreReadsPythonWrittenState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker_state.json")
	doc := `{
  "acme": {
    "models": {
      "acme/model-a": {
        "id": "acme/model-a",
        "author": "acme",
        "created_at": "2023-06-01T00:00:00+00:00",
        "updated_at": null,
        "last_modified": "2024-01-02T03:04:05+00:00",
        "sha": "abc123",
        "tags": ["text"],
        "downloads": 7
      },
      "acme/model-b": {
        "id": "acme/model-b",
        "author": null,
        "created_at": null,
        "updated_at": null,
        "last_modified": null,
        "sha": null,
        "tags": [],
        "downloads": null
      }
    },
    "last_checked": "2024-03-01T12:00:00.123456",
    "model_count": 5
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	st, err := Open(Config{Path: path}, logx.Nop())
	require.NoError(t, err)
	got := st.Load(context.Background())

	snap := got.Get("acme")
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Count, "model_count is re-derived")
	assert.False(t, snap.LastChecked.IsZero())

	a := snap.Artifacts["acme/model-a"]
	assert.Equal(t, "abc123", a.Hash())
	require.NotNil(t, a.LastModified)
	assert.True(t, a.LastModified.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Nil(t, a.UpdatedAt)
	assert.Equal(t, int64(7), a.Downloads)

	b := snap.Artifacts["acme/model-b"]
	assert.Nil(t, b.ContentHash)
	assert.Nil(t, b.LastModified)
	assert.Equal(t, int64(0), b.Downloads)
	assert.Equal(t, []string{}, b.Tags)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := Open(Config{Path: path}, logx.Nop())
	require.NoError(t, err)

	require.NoError(t, st.Save(context.Background(), sampleState(t)))
	next := tracker.NewState()
	next.Put("solo", tracker.NewSnapshot([]tracker.ArtifactRecord{{ID: "solo/x"}}, time.Now()))
	require.NoError(t, st.Save(context.Background(), next))

	got := st.Load(context.Background())
	assert.Equal(t, []string{"solo"}, got.Names())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	assert.Empty(t, st.Load(context.Background()).Accounts)

	want := sampleState(t)
	require.NoError(t, st.Save(context.Background(), want))
	assertStateEqual(t, want, st.Load(context.Background()))

	next := tracker.NewState()
	next.Put("solo", tracker.NewSnapshot([]tracker.ArtifactRecord{{ID: "solo/x"}}, time.Now()))
	require.NoError(t, st.Save(context.Background(), next))
	assert.Equal(t, []string{"solo"}, st.Load(context.Background()).Names())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	require.Error(t, err)
}

func TestParseTimeForms(t *testing.T) {
	utc := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for raw, want := range map[string]time.Time{
		"2024-01-02T03:04:05Z":             utc,
		"2024-01-02T03:04:05+00:00":        utc,
		"2024-01-02T05:04:05+02:00":        utc,
		"2024-01-02T03:04:05.123456+00:00": utc.Add(123456 * time.Microsecond),
		"2024-01-02T03:04:05.123456":       time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.Local),
		"2024-01-02 03:04:05":              time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local),
	} {
		got, ok := parseTime(raw)
		require.True(t, ok, raw)
		assert.True(t, want.Equal(got), "%s: got %s", raw, got)
	}

	for _, raw := range []string{"", "  ", "not a time"} {
		_, ok := parseTime(raw)
		assert.False(t, ok, raw)
	}
}
