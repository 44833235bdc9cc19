/*
Package typing turns raw input activity into typing and stop_typing frames.

Each keystroke restarts an idle timer; the first keystroke announces typing, and the
idle timeout, a blur or a successful send withdraws it. Only one timer is ever pending.
*/
package typing

import (
	"sync"
	"time"

	"xalvion/internal/app/model"
)

const (
	// DefaultIdleTimeout is the quiet period after which typing stops.
	DefaultIdleTimeout = 3 * time.Second

	// DefaultRefreshInterval is how often an ongoing typist re-announces itself.
	DefaultRefreshInterval = 4 * time.Second
)

// Emitter sends outbound frames; frames it cannot send are dropped.
type Emitter interface {
	Emit(frame model.Outbound) bool
}

// Options configures a Debouncer.
type Options struct {
	// IdleTimeout defaults to DefaultIdleTimeout.
	IdleTimeout time.Duration

	// RefreshInterval re-sends typing while input keeps arriving. Zero disables it.
	RefreshInterval time.Duration
}

// Debouncer is safe for concurrent use.
type Debouncer struct {
	emitter Emitter
	idle    time.Duration
	refresh time.Duration
	now     func() time.Time

	mu        sync.Mutex
	typing    bool
	channelID string
	lastEmit  time.Time
	timer     *time.Timer
	gen       uint64
	closed    bool
}

// New creates a Debouncer emitting through emitter.
func New(emitter Emitter, opts Options) *Debouncer {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Debouncer{
		emitter: emitter,
		idle:    opts.IdleTimeout,
		refresh: opts.RefreshInterval,
		now:     time.Now,
	}
}

// InputChanged records a keystroke in channelID by username.
func (d *Debouncer) InputChanged(channelID, username string) {
	if channelID == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if d.typing && d.channelID != channelID {
		d.stopLocked()
	}

	now := d.now()
	switch {
	case !d.typing:
		d.typing = true
		d.channelID = channelID
		d.lastEmit = now
		d.emitter.Emit(model.Typing(channelID, username))

	case d.refresh > 0 && now.Sub(d.lastEmit) >= d.refresh:
		d.lastEmit = now
		d.emitter.Emit(model.Typing(channelID, username))
	}

	d.resetTimerLocked()
}

// Stop withdraws typing, as on blur or after a send. It does nothing when not typing.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.typing {
		d.stopLocked()
	}
}

// Typing reports whether typing is announced, and in which channel.
func (d *Debouncer) Typing() (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing, d.channelID
}

// Close cancels the pending timer without emitting anything. Later input is ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.typing = false
	d.cancelTimerLocked()
}

func (d *Debouncer) resetTimerLocked() {
	d.cancelTimerLocked()

	gen := d.gen
	d.timer = time.AfterFunc(d.idle, func() { d.expire(gen) })
}

// cancelTimerLocked stops the timer and invalidates a callback that already fired.
func (d *Debouncer) cancelTimerLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen || !d.typing {
		return
	}
	d.stopLocked()
}

func (d *Debouncer) stopLocked() {
	d.typing = false
	d.cancelTimerLocked()
	d.emitter.Emit(model.StopTyping(d.channelID))
}
