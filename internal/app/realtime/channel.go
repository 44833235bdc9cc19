package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"xalvion/internal/app/model"
	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/logx"
	"xalvion/internal/pkg/metrics"
	"xalvion/internal/pkg/randx"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the connection state of a Channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	// Closed is terminal: the channel was closed or gave up reconnecting.
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "disconnected"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "disconnected":
		*s = Disconnected
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	case "closed":
		*s = Closed
	default:
		return fmt.Errorf("unknown connection state %q", text)
	}
	return nil
}

// ReconnectPolicy controls what happens after the connection is lost or a dial fails.
type ReconnectPolicy struct {
	// Delay is the fixed wait before each reconnection attempt.
	Delay time.Duration

	// MaxAttempts bounds consecutive failed attempts. Zero means unbounded.
	MaxAttempts int

	// Jitter adds a random [0, Jitter) to every Delay.
	Jitter time.Duration
}

// DefaultReconnectPolicy reconnects every 3 seconds, forever.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: 3 * time.Second}
}

func (p ReconnectPolicy) wait() time.Duration {
	return p.Delay + randx.Jitter(p.Jitter)
}

// Handler receives everything a Channel observes. Calls for frames come from the read loop
// in arrival order; a slow handler slows reading.
type Handler interface {
	// HandleEvent receives one inbound frame of a known type.
	HandleEvent(env model.Envelope)

	// HandleState receives every state transition except those caused by Close.
	HandleState(state State)

	// HandleError receives failures the channel cannot recover from.
	HandleError(err error)
}

// Options configures a Channel.
type Options struct {
	// URL is the WebSocket base, e.g. ws://localhost:8001. The user id is appended as /ws/<id>.
	URL string

	Policy ReconnectPolicy

	// ReadLimit caps inbound frame size. Zero selects 64 KB.
	ReadLimit int64

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer

	Metrics *metrics.Metrics
}

// Channel is the session's push connection. At most one WebSocket is live at a time.
type Channel struct {
	opts    Options
	handler Handler
	logger  zerolog.Logger

	mu           sync.Mutex
	state        State
	opened       bool
	closed       bool
	activeServer string
	conn         *connection
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewChannel creates a Channel in the Disconnected state.
func NewChannel(opts Options, handler Handler) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.Policy.Delay <= 0 {
		opts.Policy.Delay = DefaultReconnectPolicy().Delay
	}
	opts.URL = strings.TrimRight(opts.URL, "/")

	return &Channel{
		opts:    opts,
		handler: handler,
		logger:  logx.Component("realtime"),
		done:    make(chan struct{}),
	}
}

// Open starts connecting as userID. Calling Open on a channel that is already open, or
// closed, does nothing.
func (c *Channel) Open(userID string) {
	c.mu.Lock()
	if c.opened || c.closed {
		c.mu.Unlock()
		return
	}
	c.opened = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	target := c.opts.URL + "/ws/" + url.PathEscape(userID)
	go c.run(ctx, target)
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetActiveServer records the server to join on every (re)connect. When connected the
// join is sent at once. An empty id clears the target.
func (c *Channel) SetActiveServer(serverID string) {
	c.mu.Lock()
	c.activeServer = serverID
	c.mu.Unlock()

	if serverID != "" {
		c.Emit(model.JoinServer(serverID))
	}
}

// Emit queues an outbound frame. Frames are only sent while Connected; otherwise they
// are dropped and Emit reports false.
func (c *Channel) Emit(frame model.Outbound) bool {
	raw, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode outbound frame")
		return false
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected && conn != nil
	c.mu.Unlock()

	if !connected || !conn.enqueue(raw) {
		c.opts.Metrics.Dropped(string(frame.Type))
		return false
	}
	return true
}

// Close moves the channel to the terminal Closed state and suppresses reconnection.
// It is idempotent and does not wait for the connection to finish closing.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = Closed
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	c.opts.Metrics.SetConnectionState(int(Closed))

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.shutdown()
	}
}

// Done is closed once the connection loop has exited after Open. It is never closed for a
// channel that was not opened.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// run is the connection loop: dial, serve until the socket drops, wait, repeat.
func (c *Channel) run(ctx context.Context, target string) {
	defer close(c.done)

	failures := 0
	for {
		if !c.setState(Connecting) {
			return
		}

		conn, err := c.dial(ctx, target)
		if err == nil {
			failures = 0
			if !c.attach(conn) {
				conn.ws.Close()
				return
			}
			go conn.writePump()
			go conn.readPump(c.opts.ReadLimit, c.deliver)
			<-conn.done
			c.detach(conn)
		} else if ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("url", target).Msg("Realtime dial failed")
		}

		if !c.setState(Disconnected) {
			return
		}

		failures++
		if limit := c.opts.Policy.MaxAttempts; limit > 0 && failures > limit {
			c.giveUp(limit)
			return
		}

		delay := c.opts.Policy.wait()
		c.logger.Info().Dur("delay", delay).Int("attempt", failures).Msg("Scheduling reconnect")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		c.opts.Metrics.ReconnectAttempt()
	}
}

func (c *Channel) dial(ctx context.Context, target string) (*connection, error) {
	ws, _, err := c.opts.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, err
	}

	return newConnection(randx.ConnectionID(), ws, c.logger), nil
}

// attach makes conn the live connection and queues the join for the active server.
// It reports false if the channel was closed meanwhile.
func (c *Channel) attach(conn *connection) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.state = Connected
	server := c.activeServer
	c.mu.Unlock()

	if server != "" {
		raw, _ := json.Marshal(model.JoinServer(server))
		conn.enqueue(raw)
	}

	conn.logger.Info().Str("server_id", server).Msg("Realtime connected")
	c.opts.Metrics.SetConnectionState(int(Connected))
	c.handler.HandleState(Connected)
	return true
}

func (c *Channel) detach(conn *connection) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

// setState records a transition and notifies the handler. It reports false once the
// channel is closed.
func (c *Channel) setState(s State) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed {
		c.opts.Metrics.SetConnectionState(int(s))
		c.handler.HandleState(s)
	}
	return true
}

func (c *Channel) giveUp(attempts int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = Closed
	c.mu.Unlock()

	c.logger.Error().Int("attempts", attempts).Msg("Giving up on realtime connection")
	c.opts.Metrics.SetConnectionState(int(Closed))
	c.handler.HandleState(Closed)
	c.handler.HandleError(errs.NewError(errs.ErrReconnectExhausted, attempts))
}

// deliver forwards a frame from conn unless conn has been superseded or closed.
func (c *Channel) deliver(conn *connection, env model.Envelope) {
	c.mu.Lock()
	current := c.conn == conn && !c.closed
	c.mu.Unlock()

	if current {
		c.handler.HandleEvent(env)
	}
}
