/*
Package engine is the client's sync engine. It owns the session lifecycle, the navigation
state (active server and channel) and the synchronized message, presence and typing state.

All state is owned by a single goroutine started with Run. Push events, REST results and
user actions are queued to it as closures and applied strictly in arrival order. REST calls
themselves run on the caller's goroutine or on short-lived fetch goroutines, never on the loop.

Every signed-in session has an epoch. Anything captured under an older epoch, such as a late
REST response or an event from a closed push connection, is discarded when it reaches the loop.
*/
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"xalvion/internal/app/gateway"
	"xalvion/internal/app/model"
	"xalvion/internal/app/realtime"
	"xalvion/internal/app/session"
	"xalvion/internal/app/syncstate"
	"xalvion/internal/app/typing"
	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/logx"
	"xalvion/internal/pkg/metrics"

	"github.com/rs/zerolog"
)

const (
	opsBuffer = 256

	// DefaultSweepInterval is how often expired typing entries are removed.
	DefaultSweepInterval = time.Second
)

// API is the REST surface the engine drives.
type API interface {
	Login(ctx context.Context, username, password string) (*gateway.AuthResult, error)
	Register(ctx context.Context, in gateway.RegisterInput) (*gateway.AuthResult, error)
	GetProfile(ctx context.Context) (*model.Identity, error)
	GetPresence(ctx context.Context) (map[string]model.Presence, error)
	ListServers(ctx context.Context) ([]model.Server, error)
	ListChannels(ctx context.Context, serverID string) ([]model.Channel, error)
	ListMessages(ctx context.Context, channelID string) ([]model.Message, error)
	SendMessage(ctx context.Context, channelID, content string) (*model.Message, error)
	CreateServer(ctx context.Context, name, description string) (*model.Server, error)
	CreateChannel(ctx context.Context, serverID, name string, channelType model.ChannelType, description string) (*model.Channel, error)
	AddReaction(ctx context.Context, messageID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, emoji string) error
}

// Realtime is one push channel. A closed Realtime is never reopened.
type Realtime interface {
	Open(userID string)
	SetActiveServer(serverID string)
	Emit(frame model.Outbound) bool
	Close()
	State() realtime.State
}

// RealtimeFactory creates the push channel for a new session.
type RealtimeFactory func(handler realtime.Handler) Realtime

// Session is the credential and identity holder.
type Session interface {
	Load() (bool, error)
	Set(identity model.Identity, credential string) error
	SetIdentity(identity model.Identity)
	Clear() error
	Identity() (model.Identity, bool)
	Preferences() session.Preferences
	SetPreferences(p session.Preferences)
	OnClear(fn func())
}

// Config tunes an Engine. Zero values select the defaults.
type Config struct {
	TypingTTL       time.Duration
	SweepInterval   time.Duration
	IdleTimeout     time.Duration
	RefreshInterval time.Duration
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// Engine coordinates the session, the REST gateway and the push channel.
type Engine struct {
	api         API
	session     Session
	newRealtime RealtimeFactory
	cfg         Config
	logger      zerolog.Logger

	ops  chan func()
	done chan struct{}
	ctx  context.Context
	wg   sync.WaitGroup

	// authMu serializes credential writes between sign-in and sign-out paths.
	authMu sync.Mutex
	epoch  atomic.Uint64

	// Owned by the loop goroutine.
	active        bool
	identity      model.Identity
	state         syncstate.State
	servers       []model.Server
	channels      map[string][]model.Channel
	activeServer  string
	activeChannel string
	rt            Realtime
	debouncer     *typing.Debouncer
	connState     realtime.State
	connErr       string
	connectedOnce bool
	lastErr       string
	version       uint64

	viewMu sync.RWMutex
	view   View

	subsMu  sync.Mutex
	subs    map[int]chan View
	nextSub int
}

// New creates an Engine. Run must be started before any other method is used.
func New(api API, store Session, newRealtime RealtimeFactory, cfg Config) *Engine {
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = syncstate.DefaultTypingTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{
		api:         api,
		session:     store,
		newRealtime: newRealtime,
		cfg:         cfg,
		logger:      logx.Component("engine"),
		ops:         make(chan func(), opsBuffer),
		done:        make(chan struct{}),
		ctx:         context.Background(),
		channels:    map[string][]model.Channel{},
		subs:        map[int]chan View{},
	}
	e.view = View{Connection: realtime.Disconnected}

	store.OnClear(func() {
		ep := e.epoch.Load()
		e.post(func() {
			if e.active && e.epoch.Load() == ep {
				e.logger.Info().Msg("Session cleared, ending sync.")
				e.endSession()
			}
		})
	})

	return e
}

// Run processes queued work until ctx is cancelled. It must be called exactly once.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.ctx = ctx

	ticker := time.NewTicker(e.cfg.SweepInterval)

	defer func() {
		ticker.Stop()
		e.endSession()
		close(e.done)
		cancel()
		e.wg.Wait()
		e.closeSubscribers()
		e.logger.Info().Msg("Engine loop finished.")
	}()

	e.logger.Info().Msg("Engine loop started.")
	for {
		select {
		case fn := <-e.ops:
			fn()
			e.publish()

		case <-ticker.C:
			if e.sweep() {
				e.publish()
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// post queues fn to the loop. It reports false once the loop has stopped.
func (e *Engine) post(fn func()) bool {
	select {
	case e.ops <- fn:
		return true
	case <-e.done:
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (e *Engine) call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	select {
	case e.ops <- func() { res <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return errs.NewError(errs.ErrEngineStopped)
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return errs.NewError(errs.ErrEngineStopped)
	}
}

// spawn runs fn on a fetch goroutine bound to the loop's lifetime.
func (e *Engine) spawn(fn func(ctx context.Context)) {
	ctx := e.ctx
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(ctx)
	}()
}

func (e *Engine) apply(ev syncstate.Event) {
	if msg, ok := ev.(syncstate.NewMessage); ok && e.state.HasMessage(msg.Message.MessageID) {
		e.cfg.Metrics.DuplicateMessage()
	}
	e.state = syncstate.Apply(e.state, ev)
	e.cfg.Metrics.EventApplied(ev.Type())
}

func (e *Engine) sweep() bool {
	if !e.active {
		return false
	}
	before := typingCount(e.state)
	e.apply(syncstate.TypingSweep{Now: e.cfg.Now()})
	return typingCount(e.state) != before
}

func typingCount(s syncstate.State) int {
	n := 0
	for _, users := range s.Typing {
		n += len(users)
	}
	return n
}
