//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"go-upload-stream/internal/config"
	"go-upload-stream/internal/engine/tus"
	"go-upload-stream/internal/engine/tus/tustest"
	"go-upload-stream/internal/handler"
	"go-upload-stream/internal/middleware"
	"go-upload-stream/internal/model"
	"go-upload-stream/internal/router"
	"go-upload-stream/internal/service"
	"go-upload-stream/internal/source"
	"go-upload-stream/internal/uploader"
	"go-upload-stream/internal/websocket"
)

type harness struct {
	api   *httptest.Server
	tus   *tustest.Server
	hub   *websocket.Hub
	token string
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func newHarness(t *testing.T, files map[string]string, configure func(*tustest.Server)) *harness {
	t.Helper()

	tusServer := tustest.NewServer(t)
	if configure != nil {
		configure(tusServer)
	}

	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	cfg := &config.Config{
		UploadTarget:        tusServer.Endpoint(),
		SourceRoot:          root,
		UploadChunkSize:     8,
		MaxChunkRetries:     0,
		ChunkRetryInterval:  10 * time.Millisecond,
		ProgressLogInterval: time.Second,
		CORSOrigins:         []string{"*"},
		RateLimitRPM:        1000,
		RequestTimeout:      5 * time.Second,
		ShutdownTimeout:     time.Second,
	}

	up, err := uploader.New(tus.Constructor, cfg.EngineOptions(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = up.Close() })

	resolver, err := source.NewResolver(cfg.SourceRoot)
	require.NoError(t, err)

	tokens, err := service.NewTokenService("integration-secret")
	require.NoError(t, err)
	token, err := tokens.IssueToken("integration", time.Minute)
	require.NoError(t, err)

	hub := websocket.NewHub(up.Events(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	svc := service.NewUploadService(up, resolver, service.OpenTusFile, nil)
	api := httptest.NewServer(router.New(cfg, nil, middleware.NewAuthMiddleware(tokens), handler.NewUploadHandler(svc), hub))
	t.Cleanup(api.Close)

	return &harness{api: api, tus: tusServer, hub: hub, token: token}
}

func (h *harness) post(t *testing.T, path string, body any) (int, envelope) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req, err := http.NewRequest(http.MethodPost, h.api.URL+path, &payload)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// dialEvents connects to the event socket and waits until the hub has
// registered the connection.
func (h *harness) dialEvents(t *testing.T) *gws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.api.URL, "http") + "/api/v1/events?access_token=" + h.token
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	before := h.hub.Connected()
	require.Eventually(t, func() bool { return h.hub.Connected() > before }, 2*time.Second, 10*time.Millisecond)
	return conn
}

// readUntilFinal collects frames until the completed or failed frame.
func readUntilFinal(t *testing.T, conn *gws.Conn) []websocket.Message {
	t.Helper()

	var frames []websocket.Message
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg websocket.Message
		require.NoError(t, conn.ReadJSON(&msg))
		frames = append(frames, msg)
		if msg.Type == websocket.TypeCompleted || msg.Type == websocket.TypeFailed {
			return frames
		}
	}
}

func types(frames []websocket.Message) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Type
	}
	return out
}
