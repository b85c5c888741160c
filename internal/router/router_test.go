package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-upload-stream/internal/config"
	"go-upload-stream/internal/engine"
	"go-upload-stream/internal/engine/enginetest"
	"go-upload-stream/internal/handler"
	"go-upload-stream/internal/middleware"
	"go-upload-stream/internal/service"
	"go-upload-stream/internal/source"
	"go-upload-stream/internal/uploader"
	"go-upload-stream/internal/websocket"
)

type fixture struct {
	srv    *httptest.Server
	eng    *enginetest.Engine
	hub    *websocket.Hub
	tokens *service.TokenService
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	cfg := &config.Config{
		CORSOrigins:    []string{"*"},
		RateLimitRPM:   1000,
		RequestTimeout: 5 * time.Second,
	}

	resolver, err := source.NewResolver(t.TempDir())
	require.NoError(t, err)

	tokens, err := service.NewTokenService("router-test-secret")
	require.NoError(t, err)

	eng := enginetest.New()
	eng.Mock.On("IsUploading").Return(false).Maybe()
	up := uploader.NewWithEngine(eng)
	svc := service.NewUploadService(up, resolver, nil, nil)

	hub := websocket.NewHub(up.Events(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	h := New(cfg, nil, middleware.NewAuthMiddleware(tokens), handler.NewUploadHandler(svc), hub)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return fixture{srv: srv, eng: eng, hub: hub, tokens: tokens}
}

func (f fixture) do(t *testing.T, method, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRouter_HealthIsPublic(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/uploads/status", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := f.tokens.IssueToken("ops", time.Minute)
	require.NoError(t, err)

	resp = f.do(t, http.MethodGet, "/api/v1/uploads/status", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	token, err := f.tokens.IssueToken("ops", time.Minute)
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/v1/uploads/close", token)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRouter_EventsOverWebsocket(t *testing.T) {
	f := newFixture(t)
	token, err := f.tokens.IssueToken("ops", time.Minute)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/events"

	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := gws.DefaultDialer.Dial(url+"?access_token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Connected() == 1 }, 2*time.Second, 10*time.Millisecond)
	f.eng.Fire(engine.CallbackPause, engine.Args{})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pause", msg.Type)
}
