package engine

import (
	"xalvion/internal/app/model"
	"xalvion/internal/app/realtime"
	"xalvion/internal/app/session"
	"xalvion/internal/app/syncstate"
)

// View is an immutable snapshot of everything a presentation layer renders.
type View struct {
	Version         uint64                    `json:"version"`
	LoggedIn        bool                      `json:"logged_in"`
	Identity        *model.Identity           `json:"identity,omitempty"`
	Preferences     session.Preferences       `json:"preferences"`
	Connection      realtime.State            `json:"connection"`
	ConnectionError string                    `json:"connection_error,omitempty"`
	Servers         []model.Server            `json:"servers"`
	ActiveServerID  string                    `json:"active_server_id,omitempty"`
	Channels        []model.Channel           `json:"channels"`
	ActiveChannelID string                    `json:"active_channel_id,omitempty"`
	Messages        []MessageView             `json:"messages"`
	Typing          []syncstate.TypingEntry   `json:"typing"`
	TypingText      string                    `json:"typing_text"`
	Presence        map[string]model.Presence `json:"presence"`
	LastError       string                    `json:"last_error,omitempty"`
}

// MessageView is a message with its reactions grouped by emoji.
type MessageView struct {
	model.Message
	ReactionGroups []syncstate.ReactionGroup `json:"reaction_groups"`
}

// Snapshot returns the most recently published View.
func (e *Engine) Snapshot() View {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	return e.view
}

// Subscribe returns a channel receiving every published View and a function that ends
// the subscription. A slow subscriber only ever misses intermediate Views, never the latest.
// The channel is closed when the subscription ends or the engine stops.
func (e *Engine) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	e.subsMu.Lock()
	ch <- e.Snapshot()
	if e.subs == nil {
		e.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subsMu.Unlock()

	return ch, func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
}

// publish builds a View from loop state and fans it out. Runs on the loop.
func (e *Engine) publish() {
	e.version++
	v := e.buildView()

	e.viewMu.Lock()
	e.view = v
	e.viewMu.Unlock()

	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- v:
		default:
			// Replace the stale pending View with the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (e *Engine) buildView() View {
	v := View{
		Version:         e.version,
		LoggedIn:        e.active,
		Preferences:     e.session.Preferences(),
		Connection:      e.connState,
		ConnectionError: e.connErr,
		Servers:         []model.Server{},
		Channels:        []model.Channel{},
		Messages:        []MessageView{},
		Typing:          []syncstate.TypingEntry{},
		Presence:        map[string]model.Presence{},
		LastError:       e.lastErr,
	}
	if !e.active {
		return v
	}

	identity := e.identity
	v.Identity = &identity
	v.Servers = append(v.Servers, e.servers...)
	v.ActiveServerID = e.activeServer
	v.Channels = append(v.Channels, e.channels[e.activeServer]...)
	v.ActiveChannelID = e.activeChannel
	v.Presence = e.state.Presence

	if e.activeChannel != "" {
		for _, msg := range e.state.Messages[e.activeChannel] {
			v.Messages = append(v.Messages, MessageView{
				Message:        msg,
				ReactionGroups: syncstate.GroupReactions(msg.Reactions),
			})
		}
		now := e.cfg.Now()
		v.Typing = append(v.Typing, syncstate.TypingUsers(e.state, e.activeChannel, now)...)
		v.TypingText = syncstate.TypingText(e.state, e.activeChannel, now)
	}
	return v
}

func (e *Engine) closeSubscribers() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
	e.subs = nil
}
