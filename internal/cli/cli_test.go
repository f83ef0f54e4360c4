package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/orderset/internal/client"
	"github.com/kilupskalvis/orderset/internal/collection"
	"github.com/kilupskalvis/orderset/internal/config"
	"github.com/kilupskalvis/orderset/internal/content"
	"github.com/kilupskalvis/orderset/internal/server"
	"github.com/kilupskalvis/orderset/internal/storage"
)

const fixtureYAML = `
collections:
  achievements:
    - title: First
      description: one
    - title: Second
      description: two
    - title: Third
      description: three
  future_vision_timeline:
    - year: "2030"
      description: Expansion
documents:
  company_stats:
    clients: 120
`

func newTestContext(t *testing.T, backend string) *cmdContext {
	t.Helper()
	cfg := config.Default()
	cfg.Backend = backend
	cfg.DataDir = t.TempDir()
	c, err := openContext(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func seedTestContext(t *testing.T, c *cmdContext) {
	t.Helper()
	fx, err := content.ParseFixture([]byte(fixtureYAML))
	require.NoError(t, err)
	require.NoError(t, seed(context.Background(), io.Discard, c.Catalog, fx, false))
}

func ids(entries []content.Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestParseIDs(t *testing.T) {
	got, err := parseIDs([]string{"3", "1", "2"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, got)

	got, err = parseIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parseIDs([]string{"1", "two"})
	assert.ErrorContains(t, err, `invalid id "two"`)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "ISO 9001", summarize(json.RawMessage(`{"title":"ISO 9001","description":"x"}`)))
	assert.Equal(t, "2030 Expansion", summarize(json.RawMessage(`{"year":"2030","description":"Expansion"}`)))
	assert.Equal(t, "Asha Rao", summarize(json.RawMessage(`{"name":"Asha Rao","role":"Founder"}`)))
	assert.Equal(t, `{"other":1}`, summarize(json.RawMessage(`{"other":1}`)))

	long := summarize(json.RawMessage(`{"title":"` + string(bytes.Repeat([]byte("a"), 100)) + `"}`))
	assert.Len(t, long, 60)
	assert.Equal(t, "...", long[57:])
}

func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printEntries(&buf, nil))
	assert.Equal(t, "No records\n", buf.String())

	buf.Reset()
	entries := []content.Entry{
		{ID: 7, Order: 0, IsActive: true, Payload: json.RawMessage(`{"title":"Alpha"}`)},
		{ID: 3, Order: 1, IsActive: false, Payload: json.RawMessage(`{"title":"Beta"}`)},
	}
	require.NoError(t, printEntries(&buf, entries))
	out := buf.String()
	assert.Contains(t, out, "ORDER")
	assert.Regexp(t, `0\s+7\s+yes\s+Alpha`, out)
	assert.Regexp(t, `1\s+3\s+no\s+Beta`, out)
}

func TestWriteEntriesJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEntriesJSON(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "orderset.toml")

	require.NoError(t, writeDefaultConfig(path, false))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.DirExists(t, filepath.Join(dir, "data"))

	err = writeDefaultConfig(path, false)
	assert.ErrorContains(t, err, "already exists")
	assert.NoError(t, writeDefaultConfig(path, true))
}

func TestMigrate(t *testing.T) {
	msg, err := migrate(context.Background(), newTestContext(t, storage.KindSQLite))
	require.NoError(t, err)
	assert.Contains(t, msg, "sqlite schema at version 1")
	assert.Contains(t, msg, "8 collections ready")

	msg, err = migrate(context.Background(), newTestContext(t, storage.KindBbolt))
	require.NoError(t, err)
	assert.Contains(t, msg, "bbolt backend needs no migrations")
}

func TestSeed_ReportsPerCollection(t *testing.T) {
	c := newTestContext(t, storage.KindMemory)
	fx, err := content.ParseFixture([]byte(fixtureYAML))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, seed(context.Background(), &buf, c.Catalog, fx, false))
	assert.Contains(t, buf.String(), "achievements: 3 inserted")
	assert.Contains(t, buf.String(), "future_vision_timeline: 1 inserted")
	assert.Contains(t, buf.String(), "1 documents written")

	buf.Reset()
	require.NoError(t, seed(context.Background(), &buf, c.Catalog, fx, true))
	assert.Contains(t, buf.String(), "achievements: 3 inserted, 3 removed")
}

func TestLocalOperator(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t, storage.KindBbolt)
	seedTestContext(t, c)
	op := &localOperator{c}

	entries, err := op.List(ctx, content.Achievements, false)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	a, b, d := entries[0].ID, entries[1].ID, entries[2].ID

	require.NoError(t, op.Reorder(ctx, content.Achievements, []int64{d, a, b}))
	entries, err = op.List(ctx, content.Achievements, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{d, a, b}, ids(entries))

	err = op.Reorder(ctx, content.Achievements, []int64{a, a})
	assert.ErrorIs(t, err, collection.ErrInvalidArgument)

	_, err = op.List(ctx, "listings", false)
	assert.ErrorIs(t, err, collection.ErrNotFound)
}

func TestRemoteOperator(t *testing.T) {
	ctx := context.Background()
	c := newTestContext(t, storage.KindMemory)
	seedTestContext(t, c)

	cfg := server.DefaultConfig()
	cfg.AdminKey = "k"
	h, cleanup := server.Handler(c.Catalog, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(cleanup)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	op := &remoteOperator{client.NewRetryClient(client.NewHTTPClient(ts.URL, "k"), nil)}
	defer op.Close()

	entries, err := op.List(ctx, content.Achievements, false)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	a, b, d := entries[0].ID, entries[1].ID, entries[2].ID

	require.NoError(t, op.Reorder(ctx, content.Achievements, []int64{b, d, a}))
	entries, err = op.List(ctx, content.Achievements, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{b, d, a}, ids(entries))
	assert.Equal(t, "Second", summarize(entries[0].Payload))

	err = op.Reorder(ctx, content.Achievements, []int64{b, 999})
	assert.ErrorIs(t, err, collection.ErrNotFound)

	require.NoError(t, op.Normalize(ctx, content.Achievements))

	noKey := &remoteOperator{client.NewHTTPClient(ts.URL, "")}
	assert.Error(t, noKey.Reorder(ctx, content.Achievements, []int64{a}))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger("warn", "json", &buf).Info("hidden")
	newLogger("warn", "json", &buf).Warn("shown", "k", "v")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])

	buf.Reset()
	newLogger("debug", "text", &buf).Debug("plain", "n", 1)
	assert.Contains(t, buf.String(), "plain")
	assert.Contains(t, buf.String(), "n=1")
	assert.NotContains(t, buf.String(), "\x1b[", "non-terminal output is not coloured")

	// A file that is not a terminal takes the colorable path without colour.
	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()
	newLogger("info", "text", f).Info("to file")
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.NotContains(t, string(data), "\x1b[")
}
