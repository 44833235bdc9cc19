package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"xalvion/internal/app/engine"
	"xalvion/internal/app/gateway"
	"xalvion/internal/app/model"
	"xalvion/internal/app/session"
	"xalvion/internal/configs"
	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/metrics"
	"xalvion/internal/pkg/resp"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu    sync.Mutex
	view  engine.View
	subs  []chan engine.View
	calls []string
	err   error
}

func (f *fakeEngine) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeEngine) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEngine) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeEngine) Snapshot() engine.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeEngine) Subscribe() (<-chan engine.View, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan engine.View, 4)
	ch <- f.view
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeEngine) publish(v engine.View) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.view = v
	for _, ch := range f.subs {
		ch <- v
	}
}

func (f *fakeEngine) Login(_ context.Context, username, password string) (model.Identity, error) {
	if password != "secret" {
		return model.Identity{}, errs.NewError(errs.ErrInvalidCredentials)
	}
	return model.Identity{UserID: "u-1", Username: username}, f.record("login:" + username)
}

func (f *fakeEngine) Register(_ context.Context, in gateway.RegisterInput) (model.Identity, error) {
	return model.Identity{UserID: "u-2", Username: in.Username}, f.record("register:" + in.Username + ":" + in.Email)
}

func (f *fakeEngine) Logout(context.Context) error {
	return f.record("logout")
}

func (f *fakeEngine) SelectServer(_ context.Context, serverID string) error {
	if serverID == "s-404" {
		return errs.NewError(errs.ErrUnknownServer, serverID)
	}
	return f.record("select_server:" + serverID)
}

func (f *fakeEngine) SelectChannel(_ context.Context, channelID string) error {
	return f.record("select_channel:" + channelID)
}

func (f *fakeEngine) CreateServer(_ context.Context, name, description string) (*model.Server, error) {
	return &model.Server{ServerID: "s-new", Name: name, Description: description}, f.record("create_server:" + name)
}

func (f *fakeEngine) CreateChannel(_ context.Context, name string, channelType model.ChannelType, _ string) (*model.Channel, error) {
	return &model.Channel{ChannelID: "c-new", Name: name, ChannelType: channelType}, f.record("create_channel:" + name + ":" + string(channelType))
}

func (f *fakeEngine) SendMessage(_ context.Context, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errs.NewError(errs.ErrEmptyContent)
	}
	return &model.Message{MessageID: "m-1", Content: content}, f.record("send:" + content)
}

func (f *fakeEngine) InputChanged(context.Context) error { return f.record("input:change") }
func (f *fakeEngine) InputBlurred(context.Context) error { return f.record("input:blur") }

func (f *fakeEngine) AddReaction(_ context.Context, messageID, emoji string) error {
	return f.record("react:+" + messageID + emoji)
}

func (f *fakeEngine) RemoveReaction(_ context.Context, messageID, emoji string) error {
	return f.record("react:-" + messageID + emoji)
}

func (f *fakeEngine) SetPreferences(_ context.Context, p session.Preferences) error {
	return f.record("prefs:" + p.Theme + ":" + p.CustomStatus)
}

func newBridge(t *testing.T) (*httptest.Server, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{view: engine.View{Version: 1, LoggedIn: true, ActiveChannelID: "c-1"}}
	deps := &AppDeps{
		Engine:  eng,
		Config:  &configs.AppConfig{Environment: "production", BridgeAllowedOrigins: []string{"http://app.local"}},
		Metrics: metrics.New(),
	}
	h, stop := Router(deps)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		stop()
	})
	return srv, eng
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func postJSON(t *testing.T, url string, body any) (int, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	res, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

func TestHealth(t *testing.T) {
	srv, _ := newBridge(t)

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	var env struct {
		Code int               `json:"code"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", env.Data["status"])
	assert.Equal(t, "disconnected", env.Data["connection"])
}

func TestGetState(t *testing.T) {
	srv, _ := newBridge(t)

	res, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer res.Body.Close()

	var env struct {
		Code int         `json:"code"`
		Data engine.View `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	assert.Equal(t, 0, env.Code)
	assert.True(t, env.Data.LoggedIn)
	assert.Equal(t, "c-1", env.Data.ActiveChannelID)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newBridge(t)

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "xalvion_duplicate_messages_total")
}

func TestActionsReachEngine(t *testing.T) {
	srv, eng := newBridge(t)

	tests := []struct {
		path string
		body any
		want string
	}{
		{"/api/session/login", LoginInput{Username: "alice", Password: "secret"}, "login:alice"},
		{"/api/session/register", RegisterInput{Username: "bob", Email: "b@example.com", Password: "pw"}, "register:bob:b@example.com"},
		{"/api/servers", CreateServerInput{Name: "Guild"}, "create_server:Guild"},
		{"/api/servers/select", SelectServerInput{ServerID: "s-2"}, "select_server:s-2"},
		{"/api/channels", CreateChannelInput{Name: "dev"}, "create_channel:dev:text"},
		{"/api/channels/select", SelectChannelInput{ChannelID: "c-2"}, "select_channel:c-2"},
		{"/api/messages", SendMessageInput{Content: "hello"}, "send:hello"},
		{"/api/reactions", ReactionInput{MessageID: "m-1", Emoji: "👍"}, "react:+m-1👍"},
		{"/api/reactions", ReactionInput{MessageID: "m-1", Emoji: "👍", Action: "remove"}, "react:-m-1👍"},
		{"/api/input", InputEvent{Event: "change"}, "input:change"},
		{"/api/input", InputEvent{Event: "blur"}, "input:blur"},
		{"/api/session/logout", map[string]any{}, "logout"},
	}

	for _, tt := range tests {
		status, env := postJSON(t, srv.URL+tt.path, tt.body)
		assert.Equal(t, http.StatusOK, status, tt.path)
		assert.Equal(t, 0, env.Code, tt.path)
	}

	want := make([]string, 0, len(tests))
	for _, tt := range tests {
		want = append(want, tt.want)
	}
	assert.Equal(t, want, eng.recorded())
}

func TestSetPreferences(t *testing.T) {
	srv, eng := newBridge(t)

	raw, err := json.Marshal(PreferencesInput{Theme: " dark ", CustomStatus: "away"})
	require.NoError(t, err)
	r, err := http.NewRequest(http.MethodPut, srv.URL+"/api/preferences", bytes.NewReader(raw))
	require.NoError(t, err)
	r.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"prefs:dark:away"}, eng.recorded())
}

func TestPreflightAllowsPreferencesUpdate(t *testing.T) {
	srv, _ := newBridge(t)

	r, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/preferences", nil)
	require.NoError(t, err)
	r.Header.Set("Origin", "http://app.local")
	r.Header.Set("Access-Control-Request-Method", http.MethodPut)
	r.Header.Set("Access-Control-Request-Headers", "content-type")

	res, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Less(t, res.StatusCode, 300)
	assert.Equal(t, "http://app.local", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestRouterStopEndsLimiterCleanup(t *testing.T) {
	deps := &AppDeps{Engine: &fakeEngine{}, Config: &configs.AppConfig{Environment: "production"}}
	_, limiters := newRouter(deps)
	require.Len(t, limiters, 2)

	stop := stopLimiters(limiters)
	stop()
	stop()

	for _, l := range limiters {
		select {
		case <-l.Done():
		case <-time.After(time.Second):
			t.Fatal("limiter cleanup still running after stop")
		}
	}
}

func TestSendMessageReturnsCreatedMessage(t *testing.T) {
	srv, _ := newBridge(t)

	_, env := postJSON(t, srv.URL+"/api/messages", SendMessageInput{Content: "hello"})

	var data struct {
		Message model.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "m-1", data.Message.MessageID)
}

func TestErrorsMapToStatus(t *testing.T) {
	srv, _ := newBridge(t)

	status, env := postJSON(t, srv.URL+"/api/messages", SendMessageInput{Content: "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrEmptyContent, env.Code)

	status, env = postJSON(t, srv.URL+"/api/servers/select", SelectServerInput{ServerID: "s-404"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrUnknownServer, env.Code)
	assert.Equal(t, "Server s-404 is not available.", env.Message)

	status, env = postJSON(t, srv.URL+"/api/session/login", LoginInput{Username: "alice", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errs.ErrInvalidCredentials, env.Code)

	status, env = postJSON(t, srv.URL+"/api/input", InputEvent{Event: "paste"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrInvalidParams, env.Code)

	status, env = postJSON(t, srv.URL+"/api/servers/select", map[string]string{"server": "s-1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrInvalidJSONFormat, env.Code)
}

func TestNetworkErrorsBecomeBadGateway(t *testing.T) {
	srv, eng := newBridge(t)
	eng.failWith(errs.NewError(errs.ErrNetwork))

	status, env := postJSON(t, srv.URL+"/api/channels/select", SelectChannelInput{ChannelID: "c-2"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, errs.ErrNetwork, env.Code)
}

func TestRejectsNonJSONBody(t *testing.T) {
	srv, _ := newBridge(t)

	res, err := http.Post(srv.URL+"/api/messages", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	defer res.Body.Close()

	var env resp.JSONResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	assert.Equal(t, http.StatusUnsupportedMediaType, res.StatusCode)
	assert.Equal(t, errs.ErrUnsupportedMediaType, env.Code)
}

func TestStateStreamPushesViews(t *testing.T) {
	srv, eng := newBridge(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first engine.View
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, uint64(1), first.Version)

	eng.publish(engine.View{Version: 2, TypingText: "bob is typing…"})

	var second engine.View
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, uint64(2), second.Version)
	assert.Equal(t, "bob is typing…", second.TypingText)
}

func TestStateStreamRejectsForeignOrigin(t *testing.T) {
	srv, _ := newBridge(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, res, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	header = http.Header{"Origin": []string{"http://app.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
