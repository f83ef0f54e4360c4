package client_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/kilupskalvis/orderset/internal/client"
	"github.com/kilupskalvis/orderset/internal/collection"
	"github.com/kilupskalvis/orderset/internal/content"
	"github.com/kilupskalvis/orderset/internal/server"
	"github.com/kilupskalvis/orderset/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, adminKey string) *client.HTTPClient {
	t.Helper()
	catalog, err := content.NewCatalog(context.Background(), storage.NewMemory(), nil)
	require.NoError(t, err)

	cfg := server.DefaultConfig()
	cfg.AdminKey = "secret"
	handler, cleanup := server.Handler(catalog, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		cleanup()
	})
	return client.NewHTTPClient(ts.URL+"/", adminKey)
}

func TestHTTPClient_RoundTrip(t *testing.T) {
	c := newClient(t, "secret")
	ctx := context.Background()

	a, err := c.Create(ctx, "achievements", content.Achievement{Title: "Cement", Description: "ISO"})
	require.NoError(t, err)
	b, err := c.Create(ctx, "achievements", map[string]any{"title": "Steel", "description": "BIS", "isActive": false})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Order)
	assert.False(t, b.IsActive)

	active, err := c.List(ctx, "achievements", false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	var payload content.Achievement
	require.NoError(t, json.Unmarshal(active[0].Payload, &payload))
	assert.Equal(t, "Cement", payload.Title)

	require.NoError(t, c.Reorder(ctx, "achievements", []int64{b.ID, a.ID}))
	all, err := c.List(ctx, "achievements", true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)

	updated, err := c.Update(ctx, "achievements", a.ID, map[string]any{"stats": "Grade 53"})
	require.NoError(t, err)
	assert.Contains(t, string(updated.Payload), "Grade 53")

	require.NoError(t, c.Delete(ctx, "achievements", b.ID))
	require.NoError(t, c.Normalize(ctx, "achievements"))
	got, err := c.Get(ctx, "achievements", a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Order)

	infos, err := c.ListCollections(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, len(content.BuiltinKinds()))
}

func TestHTTPClient_ErrorsMatchSentinels(t *testing.T) {
	c := newClient(t, "secret")
	ctx := context.Background()

	_, err := c.Get(ctx, "achievements", 42)
	assert.ErrorIs(t, err, collection.ErrNotFound)

	err = c.Reorder(ctx, "achievements", []int64{1, 1})
	assert.ErrorIs(t, err, collection.ErrInvalidArgument)

	_, err = c.Create(ctx, "achievements", map[string]any{"title": "no description"})
	assert.ErrorIs(t, err, collection.ErrInvalidArgument)
}

func TestHTTPClient_RequiresAdminKeyForWrites(t *testing.T) {
	c := newClient(t, "")
	_, err := c.Create(context.Background(), "core_strengths", map[string]any{"title": "x", "description": "y"})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
}

func TestHTTPClient_Documents(t *testing.T) {
	c := newClient(t, "secret")
	ctx := context.Background()

	doc, err := c.GetDocument(ctx, "about-us")
	require.NoError(t, err)
	assert.Nil(t, doc.Body)

	_, err = c.PutDocument(ctx, "about-us", json.RawMessage(`{"mission":"Build"}`))
	require.NoError(t, err)

	doc, err = c.GetDocument(ctx, "about-us")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mission":"Build"}`, string(doc.Body))
}
