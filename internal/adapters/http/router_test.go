package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesync/collab/internal/adapters/signal"
	"github.com/codesync/collab/internal/app"
	"github.com/codesync/collab/internal/app/orch"
	"github.com/codesync/collab/internal/config"
	"github.com/codesync/collab/internal/core"
	"github.com/codesync/collab/internal/domain"
	"github.com/codesync/collab/internal/store"
)

type memStore struct {
	playgrounds map[string]*domain.Playground
}

func (m *memStore) GetPlayground(_ context.Context, id string) (*domain.Playground, error) {
	pg, ok := m.playgrounds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return pg, nil
}

func (m *memStore) UpdateFileContent(ctx context.Context, id, fileID, content string) error {
	pg, err := m.GetPlayground(ctx, id)
	if err != nil {
		return err
	}
	items, err := domain.WithFileContent(pg.Items, fileID, content, time.Now())
	if err != nil {
		return err
	}
	pg.Items = items
	return nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "test-secret",
		CORSAllow:  []string{"*"},
	}
}

func newRouter(t *testing.T, cfg *config.Config, st store.DocumentStore) (http.Handler, *core.Registry) {
	gin.SetMode(gin.TestMode)
	reg := core.NewRegistry()
	ctl := signal.NewSignalWSController(orch.New(reg, app.NewSessions(), app.SimplePolicy{}), nil, signal.Options{})
	return SetupRouter(context.Background(), cfg, Deps{Signal: ctl, Registry: reg, Store: st}), reg
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestHealthAndAPI(t *testing.T) {
	h, reg := newRouter(t, testConfig(t), nil)
	reg.Update("r1", true, func(room *core.Room) {
		room.Put(core.NewMemberSession(domain.NewMember(domain.NewUser("u1", "Alice"), domain.RoleGuest), nil))
	})

	w := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = do(h, http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "active", body["websocketStatus"])
	assert.EqualValues(t, 1, body["rooms"])

	// no index.html: the root path answers like /health
	w = do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestRoomsEndpoints(t *testing.T) {
	h, reg := newRouter(t, testConfig(t), nil)
	reg.Update("r1", true, func(room *core.Room) {
		room.ClaimOwner("u1")
		room.Put(core.NewMemberSession(domain.NewMember(domain.NewUser("u1", "Alice"), domain.RoleOwner), nil))
		room.Put(core.NewMemberSession(domain.NewMember(domain.NewUser("u2", "Bob"), domain.RolePendingGuest), nil))
	})

	w := do(h, http.MethodGet, "/api/rooms", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms":[{"id":"r1","owner":"u1","member_count":2,"pending":1}]}`, w.Body.String())

	w = do(h, http.MethodGet, "/api/rooms/r1/members", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"room":{"id":"r1","owner":"u1","member_count":2,"pending":1},
		"members":[
			{"id":"u1","username":"Alice","role":"owner","admitted":true},
			{"id":"u2","username":"Bob","role":"pending","admitted":false}
		]}`, w.Body.String())

	w = do(h, http.MethodGet, "/api/rooms/nope/members", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, reg.Len(), "reads never create rooms")
}

func TestPlaygroundRoutes(t *testing.T) {
	st := &memStore{playgrounds: map[string]*domain.Playground{
		"pg1": {ID: "pg1", Name: "demo", Items: []domain.Item{
			{ID: "f1", Name: "main.go", Type: domain.ItemFile, Content: "package main"},
		}},
	}}
	h, _ := newRouter(t, testConfig(t), st)

	w := do(h, http.MethodGet, "/api/playgrounds/pg1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "demo", decode(t, w)["name"])

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/playgrounds/missing", "").Code)

	w = do(h, http.MethodPut, "/api/playgrounds/pg1/files/f1", `{"content":"package main\n\nfunc main() {}"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "package main\n\nfunc main() {}", st.playgrounds["pg1"].Items[0].Content)

	w = do(h, http.MethodPut, "/api/playgrounds/pg1/files/f1", `{"content":""}`)
	assert.Equal(t, http.StatusOK, w.Code, "empty content is a valid save")

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPut, "/api/playgrounds/pg1/files/f1", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPut, "/api/playgrounds/pg1/files/nope", `{"content":"x"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPut, "/api/playgrounds/missing/files/f1", `{"content":"x"}`).Code)
}

func TestPlaygroundRoutesNeedStore(t *testing.T) {
	h, _ := newRouter(t, testConfig(t), nil)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/playgrounds/pg1", "").Code)
}

func TestStaticFrontend(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StaticPath, "index.html"), []byte("<html>codesync</html>"), 0o644))
	h, _ := newRouter(t, cfg, nil)

	w := do(h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "codesync")

	w = do(h, http.MethodGet, "/editor/room-42", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "codesync", "client-side routes fall back to index.html")

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/nothing", "").Code)
}

func TestClientTokenAndCORS(t *testing.T) {
	h, _ := newRouter(t, testConfig(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "CodeSyncSession=")
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newRouter(t, testConfig(t), nil)
	w := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "codesync_rooms")
}
