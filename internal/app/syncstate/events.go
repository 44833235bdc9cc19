/*
Package syncstate is the client's state reducer.

Apply maps the current State and one Event to the next State without mutating its input.
Events come from the push channel (decoded with Decode) or are produced locally by the
engine: fetched history, presence snapshots, optimistic sends and typing sweeps.
*/
package syncstate

import (
	"encoding/json"
	"fmt"
	"time"

	"xalvion/internal/app/model"
	"xalvion/internal/pkg/errs"
)

// Event is anything Apply understands.
type Event interface {
	// Type names the event for logs and metrics.
	Type() string
}

// NewMessage is a pushed message. Duplicate deliveries are no-ops.
type NewMessage struct {
	Message model.Message
}

// ReactionUpdate carries the full, authoritative reaction list of one message.
type ReactionUpdate struct {
	MessageID string           `json:"message_id"`
	Reactions []model.Reaction `json:"reactions"`
}

// TypingStarted reports that a user is typing. At is when the client received it.
type TypingStarted struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Username  string `json:"username"`
	At        time.Time
}

// TypingStopped withdraws a TypingStarted.
type TypingStopped struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

// PresenceChanged sets a user's presence; both user_joined and presence_update decode to it.
type PresenceChanged struct {
	Source   model.EventType `json:"-"`
	UserID   string          `json:"user_id"`
	ServerID string          `json:"server_id,omitempty"`
	Presence model.Presence  `json:"presence"`
}

// UserLeft reports that a user's connection dropped.
type UserLeft struct {
	UserID   string `json:"user_id"`
	ServerID string `json:"server_id"`
}

// HistoryLoaded is a fetched page of a channel's messages, oldest first.
type HistoryLoaded struct {
	ChannelID string
	Messages  []model.Message
}

// PresenceSnapshot is a fetched presence map.
type PresenceSnapshot struct {
	Presence map[string]model.Presence
}

// MessageSent is the local user's message as the backend returned it.
type MessageSent struct {
	Message model.Message
}

// TypingSweep drops typing entries that expired at or before Now.
type TypingSweep struct {
	Now time.Time
}

func (NewMessage) Type() string       { return string(model.EventNewMessage) }
func (ReactionUpdate) Type() string   { return string(model.EventReactionUpdate) }
func (TypingStarted) Type() string    { return string(model.EventTyping) }
func (TypingStopped) Type() string    { return string(model.EventStopTyping) }
func (UserLeft) Type() string         { return string(model.EventUserLeft) }
func (HistoryLoaded) Type() string    { return "history_loaded" }
func (PresenceSnapshot) Type() string { return "presence_snapshot" }
func (MessageSent) Type() string      { return "message_sent" }
func (TypingSweep) Type() string      { return "typing_sweep" }

func (e PresenceChanged) Type() string {
	if e.Source == "" {
		return string(model.EventPresenceUpdate)
	}
	return string(e.Source)
}

// Decode turns a pushed frame into an Event. receivedAt stamps typing events.
func Decode(env model.Envelope, receivedAt time.Time) (Event, error) {
	var (
		ev  Event
		err error
	)

	switch env.Type {
	case model.EventNewMessage:
		var e NewMessage
		err = json.Unmarshal(env.Data, &e.Message)
		if err == nil && e.Message.MessageID == "" {
			err = fmt.Errorf("message has no message_id")
		}
		ev = e

	case model.EventReactionUpdate:
		var e ReactionUpdate
		err = json.Unmarshal(env.Data, &e)
		if e.Reactions == nil {
			e.Reactions = []model.Reaction{}
		}
		ev = e

	case model.EventTyping:
		var e TypingStarted
		err = json.Unmarshal(env.Data, &e)
		e.At = receivedAt
		ev = e

	case model.EventStopTyping:
		var e TypingStopped
		err = json.Unmarshal(env.Data, &e)
		ev = e

	case model.EventUserJoined, model.EventPresenceUpdate:
		var e PresenceChanged
		err = json.Unmarshal(env.Data, &e)
		e.Source = env.Type
		ev = e

	case model.EventUserLeft:
		var e UserLeft
		err = json.Unmarshal(env.Data, &e)
		ev = e

	default:
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	if err != nil {
		return nil, errs.Wrap(errs.ErrDecodeResponse, fmt.Errorf("%s: %w", env.Type, err))
	}
	return ev, nil
}
