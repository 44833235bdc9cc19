package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"xalvion/internal/app/model"
	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCreds string

func (s staticCreds) Credential() string { return string(s) }

type fakeBackend struct {
	*httptest.Server
	requests atomic.Int32
	lastAuth atomic.Value
	lastBody atomic.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fb.requests.Add(1)
			fb.lastAuth.Store(r.Header.Get("Authorization"))
			if _, err := uuid.Parse(r.Header.Get("X-Request-ID")); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "missing request id"})
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok-1",
			"user":         map[string]any{"user_id": "u-1", "username": body["username"], "theme": "dark"},
		})
	})
	r.Post("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "User already exists"})
	})
	r.Get("/api/user/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_id": "u-1", "username": "alice", "display_name": "Alice"})
	})
	r.Get("/api/user/presence", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"presence": map[string]any{
			"u-2": map[string]string{"status": "online", "activity": "online"},
		}})
	})
	r.Get("/api/servers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"servers": []map[string]any{
			{"_id": map[string]string{"$oid": "x"}, "server_id": "s-1", "name": "One"},
			{"server_id": "s-2", "name": "Two"},
		}})
	})
	r.Get("/api/servers/{id}/channels", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "s-1" {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Access denied"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"channels": []map[string]any{
			{"channel_id": "c-1", "server_id": "s-1", "name": "general", "channel_type": "text"},
		}})
	})
	r.Get("/api/channels/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "25" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad limit"})
			return
		}
		if chi.URLParam(r, "id") == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Channel not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": []map[string]any{
			{"message_id": "m-1", "channel_id": "c-1", "author_username": "bob", "content": "first", "created_at": "2025-01-01T00:00:00", "reactions": []any{}},
			{"message_id": "m-2", "channel_id": "c-1", "author_username": "bob", "content": "second", "created_at": "2025-01-01T00:00:01", "reactions": []any{}},
		}})
	})
	r.Post("/api/messages", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.lastBody.Store(body)
		if body["channel_id"] == "quiet" {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message_id": "m-new", "channel_id": body["channel_id"], "author_username": "alice",
			"content": body["content"], "created_at": "2025-01-01T00:00:02", "reactions": []any{},
		})
	})
	r.Post("/api/servers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"server_id": "s-new", "name": "New", "owner_id": "u-1"})
	})
	r.Post("/api/channels", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{
			"channel_id": "c-new", "server_id": body["server_id"], "name": body["name"], "channel_type": body["channel_type"],
		})
	})
	r.Post("/api/messages/{id}/reactions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.lastBody.Store(body)
		if chi.URLParam(r, "id") != body["message_id"] {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "id mismatch"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/api/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})

	fb.Server = httptest.NewServer(r)
	t.Cleanup(fb.Close)
	return fb
}

func newTestClient(fb *fakeBackend, creds CredentialSource) *Client {
	return NewClient(Config{BaseURL: fb.URL + "/", Timeout: 2 * time.Second, HistoryLimit: 25}, creds)
}

func TestLogin(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(fb, nil)

	res, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Credential)
	assert.Equal(t, "u-1", res.Identity.UserID)
	assert.Equal(t, "alice", res.Identity.Username)

	_, err = c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err))
	customErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, customErr.Status)
	assert.Equal(t, "Invalid credentials", customErr.Message)
}

func TestRegisterRejectionIsAuthError(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(fb, nil)

	_, err := c.Register(context.Background(), RegisterInput{Username: "alice", Email: "a@example.com", Password: "pw"})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrInvalidCredentials))
	customErr, _ := errs.As(err)
	assert.Equal(t, http.StatusBadRequest, customErr.Status)
	assert.Contains(t, customErr.Body, "User already exists")

	_, err = c.Register(context.Background(), RegisterInput{Username: "alice"})
	assert.True(t, errs.IsValidation(err))
}

func TestGetProfileUsesBearerCredential(t *testing.T) {
	fb := newFakeBackend(t)

	profile, err := newTestClient(fb, staticCreds("tok-1")).GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.DisplayName)
	assert.Equal(t, "Bearer tok-1", fb.lastAuth.Load())

	_, err = newTestClient(fb, staticCreds("stale")).GetProfile(context.Background())
	assert.True(t, errs.IsAuth(err))

	_, err = newTestClient(fb, staticCreds("")).GetProfile(context.Background())
	assert.True(t, errs.IsAuth(err))
	assert.Equal(t, "", fb.lastAuth.Load())
}

func TestListCalls(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(fb, staticCreds("tok-1"))
	ctx := context.Background()

	servers, err := c.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "s-1", servers[0].ServerID)

	channels, err := c.ListChannels(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, model.ChannelText, channels[0].ChannelType)

	_, err = c.ListChannels(ctx, "s-2")
	assert.True(t, errs.IsAuth(err))

	messages, err := c.ListMessages(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
	assert.True(t, messages[0].CreatedAt.Before(messages[1].CreatedAt.Time))

	presence, err := c.GetPresence(ctx)
	require.NoError(t, err)
	assert.Equal(t, "online", presence["u-2"].Status)
}

func TestNon2xxCarriesStatusAndBody(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(fb, staticCreds("tok-1"))

	_, err := c.ListMessages(context.Background(), "missing")
	require.Error(t, err)

	customErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.ErrUnexpectedStatus, customErr.Code)
	assert.Equal(t, http.StatusNotFound, customErr.Status)
	assert.JSONEq(t, `{"detail":"Channel not found"}`, customErr.Body)
	assert.Equal(t, "Channel not found", customErr.Message)
}

func TestSendMessage(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(fb, staticCreds("tok-1"))
	ctx := context.Background()

	msg, err := c.SendMessage(ctx, "c-1", "    indented\nline\n")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "m-new", msg.MessageID)
	assert.Equal(t, "    indented\nline\n", fb.lastBody.Load().(map[string]string)["content"])
	assert.Equal(t, "    indented\nline\n", msg.Content)

	msg, err = c.SendMessage(ctx, "quiet", "hello")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestValidationHappensBeforeAnyRequest(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(fb, staticCreds("tok-1"))
	ctx := context.Background()

	_, err := c.SendMessage(ctx, "c-1", " \n\t ")
	assert.True(t, errs.HasCode(err, errs.ErrEmptyContent))

	_, err = c.CreateServer(ctx, "   ", "")
	assert.True(t, errs.HasCode(err, errs.ErrEmptyName))

	_, err = c.CreateChannel(ctx, "s-1", "video-room", model.ChannelType("video"), "")
	assert.True(t, errs.HasCode(err, errs.ErrInvalidChannelType))

	err = c.AddReaction(ctx, "m-1", "")
	assert.True(t, errs.IsValidation(err))

	assert.Zero(t, fb.requests.Load())
}

func TestMutations(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(fb, staticCreds("tok-1"))
	ctx := context.Background()

	server, err := c.CreateServer(ctx, "New", "desc")
	require.NoError(t, err)
	assert.Equal(t, "s-new", server.ServerID)

	channel, err := c.CreateChannel(ctx, "s-1", "voice-room", model.ChannelVoice, "")
	require.NoError(t, err)
	assert.Equal(t, "s-1", channel.ServerID)
	assert.Equal(t, model.ChannelVoice, channel.ChannelType)

	require.NoError(t, c.AddReaction(ctx, "m-1", "🔥"))
	assert.Equal(t, "add", fb.lastBody.Load().(map[string]string)["action"])

	require.NoError(t, c.RemoveReaction(ctx, "m-1", "🔥"))
	assert.Equal(t, "remove", fb.lastBody.Load().(map[string]string)["action"])

	require.NoError(t, c.Health(ctx))
}

func TestDecodeAndTransportFailures(t *testing.T) {
	fb := newFakeBackend(t)
	c := newTestClient(fb, nil)

	var out map[string]any
	err := c.do(context.Background(), "broken", http.MethodGet, "/api/broken", nil, &out)
	assert.True(t, errs.HasCode(err, errs.ErrDecodeResponse))

	fb.Close()
	_, err = c.ListServers(context.Background())
	assert.True(t, errs.IsNetwork(err))
	assert.True(t, errs.HasCode(err, errs.ErrNetwork))
}

func TestMetricsRecordLatency(t *testing.T) {
	fb := newFakeBackend(t)
	m := metrics.New()
	c := NewClient(Config{BaseURL: fb.URL, Metrics: m}, nil)

	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RESTDuration))
}

func TestThrottleHonorsContext(t *testing.T) {
	fb := newFakeBackend(t)
	c := NewClient(Config{BaseURL: fb.URL, Rate: 0.001, Burst: 1}, nil)

	require.NoError(t, c.Health(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Health(ctx)
	assert.True(t, errs.IsNetwork(err))
	assert.Equal(t, int32(1), fb.requests.Load())
}
