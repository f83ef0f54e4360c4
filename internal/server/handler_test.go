package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kilupskalvis/orderset/internal/client"
	"github.com/kilupskalvis/orderset/internal/content"
	"github.com/kilupskalvis/orderset/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "test-admin-key"

// flakyBackend refuses to begin transactions while down is set.
type flakyBackend struct {
	storage.Backend
	down atomic.Bool
}

func (f *flakyBackend) Begin(ctx context.Context, writable bool) (storage.Tx, error) {
	if f.down.Load() {
		return nil, errors.New("database is locked")
	}
	return f.Backend.Begin(ctx, writable)
}

type testServer struct {
	*httptest.Server
	backend *flakyBackend
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()

	backend := &flakyBackend{Backend: storage.NewMemory()}
	catalog, err := content.NewCatalog(context.Background(), backend, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.AdminKey = testAdminKey
	cfg.RequestsPerMinute = 0
	for _, m := range mutate {
		m(cfg)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	handler, cleanup := Handler(catalog, cfg, logger)
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		cleanup()
	})
	return &testServer{Server: ts, backend: backend}
}

func (ts *testServer) do(t *testing.T, method, path, body string, admin bool) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set(AdminKeyHeader, testAdminKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) create(t *testing.T, collection, body string) int64 {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/v1/collections/"+collection, body, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return int64(decodeBody[map[string]any](t, resp)["id"].(float64))
}

func (ts *testServer) orderOf(t *testing.T, collection string) []int64 {
	t.Helper()
	resp := ts.do(t, http.MethodGet, "/api/v1/collections/"+collection+"?all=true", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ids []int64
	for _, e := range decodeBody[[]map[string]any](t, resp) {
		ids = append(ids, int64(e["id"].(float64)))
	}
	return ids
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", "", false).StatusCode)

	ts.backend.down.Store(true)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodGet, "/readyz", "", false).StatusCode)
}

func TestCreateGetList(t *testing.T) {
	ts := newTestServer(t)

	id := ts.create(t, "achievements", `{"title":"Cement","description":"ISO 9001","icon":"FaCertificate","year":"2024"}`)
	ts.create(t, "achievements", `{"title":"Steel","description":"BIS","isActive":false}`)

	resp := ts.do(t, http.MethodGet, "/api/v1/collections/achievements/"+itoa(id), "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "Cement", got["title"])
	assert.Equal(t, float64(0), got["order"])
	assert.Equal(t, true, got["isActive"])

	resp = ts.do(t, http.MethodGet, "/api/v1/collections/achievements", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]map[string]any](t, resp), 1, "default listing is active-only")

	assert.Len(t, ts.orderOf(t, "achievements"), 2)

	resp = ts.do(t, http.MethodGet, "/api/v1/collections/achievements?all=maybe", "", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListCollections(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "core_strengths", `{"title":"Trust","description":"d"}`)
	ts.create(t, "core_strengths", `{"title":"Speed","description":"d","isActive":false}`)

	resp := ts.do(t, http.MethodGet, "/api/v1/collections", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	infos := decodeBody[[]client.CollectionInfo](t, resp)
	require.Len(t, infos, len(content.BuiltinKinds()))
	for _, info := range infos {
		if info.Name == "core_strengths" {
			assert.Equal(t, 2, info.Count)
			assert.Equal(t, 1, info.Active)
		}
	}
}

func TestMutationsRequireAdminKey(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/collections/achievements", `{"title":"x","description":"y"}`, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "auth_failed", decodeBody[map[string]string](t, resp)["error"])

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/collections/achievements",
		strings.NewReader(`{"title":"x","description":"y"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAdminKey)
	bearer, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer bearer.Body.Close()
	assert.Equal(t, http.StatusCreated, bearer.StatusCode)

	req, err = http.NewRequest(http.MethodPost, ts.URL+"/api/v1/collections/achievements/reorder",
		strings.NewReader(`{"ids":[]}`))
	require.NoError(t, err)
	req.Header.Set(AdminKeyHeader, "wrong")
	wrong, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer wrong.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
}

func TestMutationsDeniedWithoutConfiguredKey(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.AdminKey = "" })

	resp := ts.do(t, http.MethodPost, "/api/v1/collections/achievements", `{"title":"x","description":"y"}`, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Reads stay public.
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/collections/achievements", "", false).StatusCode)
}

func TestUpdateAndDelete(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, "why_choose_us", `{"title":"Trust","description":"Since 1998"}`)
	path := "/api/v1/collections/why_choose_us/" + itoa(id)

	resp := ts.do(t, http.MethodPut, path, `{"stat":"25+","statText":"years"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "Trust", got["title"])
	assert.Equal(t, "25+", got["stat"])

	resp = ts.do(t, http.MethodPut, path, `{"bogus":true}`, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, path, "", true).StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, path, "", true).StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, path, "", false).StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, path, `{"title":"x"}`, true).StatusCode)
}

func TestReorder(t *testing.T) {
	ts := newTestServer(t)
	a := ts.create(t, "future_vision_goals", `{"title":"a","description":"a"}`)
	b := ts.create(t, "future_vision_goals", `{"title":"b","description":"b"}`)
	c := ts.create(t, "future_vision_goals", `{"title":"c","description":"c"}`)
	path := "/api/v1/collections/future_vision_goals/reorder"

	resp := ts.do(t, http.MethodPost, path, `{"ids":[`+itoa(c)+`,`+itoa(a)+`,`+itoa(b)+`]}`, true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []int64{c, a, b}, ts.orderOf(t, "future_vision_goals"))

	resp = ts.do(t, http.MethodPost, path, `{"ids":[`+itoa(a)+`,`+itoa(a)+`]}`, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, path, `{"ids":[`+itoa(a)+`,999]}`, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeBody[map[string]string](t, resp)["error"])
	assert.Equal(t, []int64{c, a, b}, ts.orderOf(t, "future_vision_goals"), "failed reorder must not change anything")

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, path, `{}`, true).StatusCode)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, path, `{"ids":"x"}`, true).StatusCode)
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, path, `{"ids":[]}`, true).StatusCode)
}

func TestNormalize(t *testing.T) {
	ts := newTestServer(t)
	a := ts.create(t, "future_vision_timeline", `{"year":"2025","description":"a"}`)
	b := ts.create(t, "future_vision_timeline", `{"year":"2026","description":"b"}`)
	c := ts.create(t, "future_vision_timeline", `{"year":"2027","description":"c"}`)

	require.Equal(t, http.StatusNoContent,
		ts.do(t, http.MethodDelete, "/api/v1/collections/future_vision_timeline/"+itoa(b), "", true).StatusCode)
	require.Equal(t, http.StatusNoContent,
		ts.do(t, http.MethodPost, "/api/v1/collections/future_vision_timeline/normalize", "", true).StatusCode)

	resp := ts.do(t, http.MethodGet, "/api/v1/collections/future_vision_timeline/"+itoa(c), "", false)
	assert.Equal(t, float64(1), decodeBody[map[string]any](t, resp)["order"])
	assert.Equal(t, []int64{a, c}, ts.orderOf(t, "future_vision_timeline"))
}

func TestUnknownCollectionAndBadID(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/collections/listings", "", false).StatusCode)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/collections/achievements/abc", "", false).StatusCode)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/collections/achievements/-4", "", false).StatusCode)
}

func TestStorageUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.backend.down.Store(true)

	resp := ts.do(t, http.MethodGet, "/api/v1/collections/achievements", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "storage_unavailable", decodeBody[map[string]string](t, resp)["error"])
}

func TestRequestTooLarge(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.MaxRequestBody = 32 })
	body := `{"title":"` + strings.Repeat("x", 64) + `","description":"y"}`
	resp := ts.do(t, http.MethodPost, "/api/v1/collections/achievements", body, true)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestDocuments(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/v1/documents/future-vision", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"key":"future-vision","body":null}`, readAll(t, resp))

	resp = ts.do(t, http.MethodPut, "/api/v1/documents/future-vision", `{"statement":"Build"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/documents/future-vision", "", false)
	got := decodeBody[map[string]any](t, resp)
	assert.Equal(t, map[string]any{"statement": "Build"}, got["body"])

	assert.Equal(t, http.StatusUnauthorized,
		ts.do(t, http.MethodPut, "/api/v1/documents/future-vision", `{}`, false).StatusCode)
	assert.Equal(t, http.StatusBadRequest,
		ts.do(t, http.MethodPut, "/api/v1/documents/future-vision", `{oops`, true).StatusCode)
}

func TestRequestIDPropagation(t *testing.T) {
	ts := newTestServer(t)
	const id = "0b6f1c9a-7d0e-4c38-9c1e-3f1f0d5d2a11"

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.RequestsPerMinute = 1 })

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/collections", "", false).StatusCode)
	resp := ts.do(t, http.MethodGet, "/api/v1/collections", "", false)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "", false).StatusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := recoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestHandler_RequestLogCarriesRequestID(t *testing.T) {
	catalog, err := content.NewCatalog(context.Background(), storage.NewMemory(), nil)
	require.NoError(t, err)

	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler, cleanup := Handler(catalog, DefaultConfig(), logger)
	defer cleanup()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/collections/achievements", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	reqID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, reqID)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "request", line["msg"])
	assert.Equal(t, reqID, line["request_id"])
}
