package app

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *AppConfig {
	return &AppConfig{
		Host:              "127.0.0.1",
		Port:              8080,
		LogLevel:          "debug",
		MembersLimit:      9,
		Storage:           StorageMemory,
		GracePeriod:       30 * time.Second,
		EmptyRoomTTL:      time.Minute,
		HeartbeatInterval: 5 * time.Second,
		SendQueueSize:     64,
		DropPolicy:        "drop-oldest",
		ChatHistoryLimit:  100,
	}
}

func TestAppConfig_Validate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	tests := []struct {
		name   string
		modify func(cfg *AppConfig)
	}{
		{"port", func(cfg *AppConfig) { cfg.Port = 0 }},
		{"members limit", func(cfg *AppConfig) { cfg.MembersLimit = 0 }},
		{"storage", func(cfg *AppConfig) { cfg.Storage = "postgres" }},
		{"grace period", func(cfg *AppConfig) { cfg.GracePeriod = 0 }},
		{"empty room ttl", func(cfg *AppConfig) { cfg.EmptyRoomTTL = -time.Second }},
		{"send queue size", func(cfg *AppConfig) { cfg.SendQueueSize = 0 }},
		{"drop policy", func(cfg *AppConfig) { cfg.DropPolicy = "block" }},
		{"chat history limit", func(cfg *AppConfig) { cfg.ChatHistoryLimit = 0 }},
		{"catalog seed", func(cfg *AppConfig) { cfg.CatalogSeed = "movies.json" }},
		{"log level", func(cfg *AppConfig) { cfg.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func newTestApp(t *testing.T, cfg *AppConfig) *httptest.Server {
	t.Helper()

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)

	return server
}

type message struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func createAndJoin(t *testing.T, server *httptest.Server, slug string) message {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    "create_room",
		"payload": map[string]any{"roomName": "movie night", "isPublic": true, "userId": "alice"},
	}))
	var created message
	require.NoError(t, ws.ReadJSON(&created))
	require.Equal(t, "room_created", created.Type)

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type": "join_room",
		"payload": map[string]any{
			"roomId":   created.Payload["roomId"],
			"userId":   "alice",
			"userInfo": map[string]any{"name": "Alice"},
		},
	}))
	var joined message
	require.NoError(t, ws.ReadJSON(&joined))
	require.Equal(t, "joined_success", joined.Type)

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    "video_action",
		"payload": map[string]any{"action": "change_movie", "slug": slug},
	}))
	var changed message
	require.NoError(t, ws.ReadJSON(&changed))

	return changed
}

func TestApp_Memory(t *testing.T) {
	server := newTestApp(t, testConfig())

	resp, err := http.Get(server.URL + "/api/v1/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	changed := createAndJoin(t, server, "anything")
	assert.Equal(t, "video_action", changed.Type)
	assert.Equal(t, "anything", changed.Payload["slug"])
}

func TestApp_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Storage = StorageRedis
	cfg.RedisHost = host
	cfg.RedisPort, err = strconv.Atoi(port)
	require.NoError(t, err)

	server := newTestApp(t, cfg)
	changed := createAndJoin(t, server, "dune")
	assert.Equal(t, "video_action", changed.Type)

	assert.Contains(t, mr.Keys(), "rooms")
}

func TestApp_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	mr.Close()

	cfg := testConfig()
	cfg.Storage = StorageRedis
	cfg.RedisHost = host
	cfg.RedisPort, err = strconv.Atoi(port)
	require.NoError(t, err)

	_, err = New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestApp_SqliteCatalog(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "movies.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[
		{"slug": "dune", "title": "Dune", "episodes": [{"slug": "part-1", "name": "Part One"}]}
	]`), 0o600))

	cfg := testConfig()
	cfg.CatalogPath = filepath.Join(dir, "catalog.db")
	cfg.CatalogSeed = seed
	server := newTestApp(t, cfg)

	changed := createAndJoin(t, server, "dune")
	require.Equal(t, "video_action", changed.Type)
	assert.Equal(t, "part-1", changed.Payload["episode"])

	changed = createAndJoin(t, server, "unknown")
	require.Equal(t, "error", changed.Type)
	assert.Equal(t, "not_found", changed.Payload["code"])
}
