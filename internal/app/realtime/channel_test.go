package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"xalvion/internal/app/model"
	"xalvion/internal/pkg/errs"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type pushServer struct {
	*httptest.Server
	conns  chan *websocket.Conn
	frames chan model.Outbound
	paths  chan string
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{
		conns:  make(chan *websocket.Conn, 8),
		frames: make(chan model.Outbound, 64),
		paths:  make(chan string, 8),
	}

	upgrader := websocket.Upgrader{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.paths <- r.URL.Path
		ps.conns <- ws

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var frame model.Outbound
			if json.Unmarshal(raw, &frame) == nil {
				ps.frames <- frame
			}
		}
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ps.URL, "http")
}

func (ps *pushServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-ps.conns:
		return ws
	case <-time.After(waitFor):
		t.Fatal("no connection arrived")
		return nil
	}
}

func (ps *pushServer) nextFrame(t *testing.T) model.Outbound {
	t.Helper()
	select {
	case f := <-ps.frames:
		return f
	case <-time.After(waitFor):
		t.Fatal("no frame arrived")
		return model.Outbound{}
	}
}

type recorder struct {
	mu     sync.Mutex
	events []model.Envelope
	states []State
	errors []error
}

func (r *recorder) HandleEvent(env model.Envelope) {
	r.mu.Lock()
	r.events = append(r.events, env)
	r.mu.Unlock()
}

func (r *recorder) HandleState(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) HandleError(err error) {
	r.mu.Lock()
	r.errors = append(r.errors, err)
	r.mu.Unlock()
}

func (r *recorder) eventTypes() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.EventType{}
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) countState(s State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.states {
		if got == s {
			n++
		}
	}
	return n
}

func (r *recorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func fastPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: 20 * time.Millisecond}
}

func waitConnected(t *testing.T, ch *Channel) {
	t.Helper()
	require.Eventually(t, func() bool { return ch.State() == Connected }, waitFor, 5*time.Millisecond)
}

func TestConnectJoinsActiveServerAndDeliversInOrder(t *testing.T) {
	ps := newPushServer(t)
	rec := &recorder{}
	ch := NewChannel(Options{URL: ps.wsURL() + "/", Policy: fastPolicy()}, rec)
	defer ch.Close()

	ch.SetActiveServer("s-1")
	ch.Open("u-1")
	ch.Open("u-1")

	ws := ps.nextConn(t)
	assert.Equal(t, "/ws/u-1", <-ps.paths)
	assert.Equal(t, model.JoinServer("s-1"), ps.nextFrame(t))
	waitConnected(t, ch)

	frames := []string{
		`{"type":"new_message","data":{"message_id":"m-1"}}`,
		`{"type":"server_restarting","data":{}}`,
		`not json at all`,
		`{"type":"typing","data":{"user_id":"u-2","channel_id":"c-1","username":"bob"}}`,
		`{"type":"user_left","data":{"user_id":"u-2","server_id":"s-1"}}`,
	}
	for _, f := range frames {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	want := []model.EventType{model.EventNewMessage, model.EventTyping, model.EventUserLeft}
	require.Eventually(t, func() bool { return len(rec.eventTypes()) == len(want) }, waitFor, 5*time.Millisecond)
	assert.Equal(t, want, rec.eventTypes())

	assert.Len(t, ps.conns, 0, "a second Open must not dial again")
}

func TestEmitOnlyWhileConnected(t *testing.T) {
	ps := newPushServer(t)
	rec := &recorder{}
	ch := NewChannel(Options{URL: ps.wsURL(), Policy: fastPolicy()}, rec)
	defer ch.Close()

	assert.False(t, ch.Emit(model.Typing("c-1", "alice")), "dropped before Open")

	ch.Open("u-1")
	ps.nextConn(t)
	waitConnected(t, ch)

	assert.True(t, ch.Emit(model.Typing("c-1", "alice")))
	assert.Equal(t, model.Typing("c-1", "alice"), ps.nextFrame(t))

	assert.True(t, ch.Emit(model.StopTyping("c-1")))
	assert.Equal(t, model.StopTyping("c-1"), ps.nextFrame(t))
}

func TestReconnectJoinsServerActiveAtReconnectTime(t *testing.T) {
	ps := newPushServer(t)
	rec := &recorder{}
	ch := NewChannel(Options{URL: ps.wsURL(), Policy: ReconnectPolicy{Delay: 150 * time.Millisecond}}, rec)
	defer ch.Close()

	ch.SetActiveServer("s-1")
	ch.Open("u-1")
	first := ps.nextConn(t)
	assert.Equal(t, "s-1", ps.nextFrame(t).ServerID)
	waitConnected(t, ch)

	closedAt := time.Now()
	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return ch.State() == Disconnected }, waitFor, 2*time.Millisecond)

	assert.False(t, ch.Emit(model.Typing("c-1", "alice")), "no queueing while disconnected")
	ch.SetActiveServer("s-2")

	ps.nextConn(t)
	assert.GreaterOrEqual(t, time.Since(closedAt), 150*time.Millisecond, "redial must wait for the policy delay")
	assert.Equal(t, model.JoinServer("s-2"), ps.nextFrame(t))
	waitConnected(t, ch)

	time.Sleep(300 * time.Millisecond)
	assert.Len(t, ps.conns, 0, "one lost connection schedules exactly one redial")

	assert.Equal(t, 2, rec.countState(Connected))
	assert.Len(t, ps.frames, 0, "typing emitted while disconnected must never be sent")
}

func TestSetActiveServerWhileConnectedJoinsImmediately(t *testing.T) {
	ps := newPushServer(t)
	ch := NewChannel(Options{URL: ps.wsURL(), Policy: fastPolicy()}, &recorder{})
	defer ch.Close()

	ch.Open("u-1")
	ps.nextConn(t)
	waitConnected(t, ch)

	ch.SetActiveServer("s-9")
	assert.Equal(t, model.JoinServer("s-9"), ps.nextFrame(t))
}

func TestCloseSuppressesReconnect(t *testing.T) {
	ps := newPushServer(t)
	rec := &recorder{}
	ch := NewChannel(Options{URL: ps.wsURL(), Policy: fastPolicy()}, rec)

	ch.Open("u-1")
	ps.nextConn(t)
	waitConnected(t, ch)

	ch.Close()
	ch.Close()
	assert.Equal(t, Closed, ch.State())

	select {
	case <-ch.Done():
	case <-time.After(waitFor):
		t.Fatal("connection loop did not exit")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, ps.conns, 0)
	assert.False(t, ch.Emit(model.JoinServer("s-1")))

	ch.Open("u-1")
	assert.Equal(t, Closed, ch.State())
}

func TestReconnectExhaustion(t *testing.T) {
	ps := newPushServer(t)
	url := ps.wsURL()
	ps.Close()

	rec := &recorder{}
	ch := NewChannel(Options{URL: url, Policy: ReconnectPolicy{Delay: 10 * time.Millisecond, MaxAttempts: 2}}, rec)
	defer ch.Close()

	ch.Open("u-1")

	select {
	case <-ch.Done():
	case <-time.After(waitFor):
		t.Fatal("channel kept retrying")
	}

	assert.Equal(t, Closed, ch.State())
	require.Equal(t, 1, rec.errorCount())
	assert.True(t, errs.HasCode(rec.errors[0], errs.ErrReconnectExhausted))
	assert.True(t, errs.IsConnection(rec.errors[0]))
	assert.Equal(t, 3, rec.countState(Connecting))
}

func TestReconnectPolicyWait(t *testing.T) {
	p := ReconnectPolicy{Delay: time.Second, Jitter: 100 * time.Millisecond}
	for range 20 {
		d := p.wait()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1100*time.Millisecond)
	}
	assert.Equal(t, 3*time.Second, DefaultReconnectPolicy().Delay)
	assert.Equal(t, "connected", Connected.String())
}

func TestStateTextRoundTrip(t *testing.T) {
	for _, s := range []State{Disconnected, Connecting, Connected, Closed} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var got State
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, s, got)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("sleeping")))
}
