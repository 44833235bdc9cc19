package model

import "encoding/json"

// EventType tags a realtime frame.
type EventType string

// Inbound event types pushed by the backend.
const (
	EventNewMessage     EventType = "new_message"
	EventReactionUpdate EventType = "reaction_update"
	EventTyping         EventType = "typing"
	EventStopTyping     EventType = "stop_typing"
	EventUserJoined     EventType = "user_joined"
	EventPresenceUpdate EventType = "presence_update"
	EventUserLeft       EventType = "user_left"
)

// Outbound frame types sent by the client.
const (
	FrameJoinServer EventType = "join_server"
	FrameTyping     EventType = "typing"
	FrameStopTyping EventType = "stop_typing"
)

// Inbound reports whether t is an event type the client understands.
func (t EventType) Inbound() bool {
	switch t {
	case EventNewMessage, EventReactionUpdate, EventTyping, EventStopTyping,
		EventUserJoined, EventPresenceUpdate, EventUserLeft:
		return true
	}
	return false
}

// Envelope is an inbound frame: a type tag and its undecoded payload.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound is a frame the client sends. Fields are flat, as the backend expects.
type Outbound struct {
	Type      EventType `json:"type"`
	ServerID  string    `json:"server_id,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	Username  string    `json:"username,omitempty"`
}

// JoinServer subscribes the connection to a server's broadcasts.
func JoinServer(serverID string) Outbound {
	return Outbound{Type: FrameJoinServer, ServerID: serverID}
}

// Typing announces that username is typing in channelID.
func Typing(channelID, username string) Outbound {
	return Outbound{Type: FrameTyping, ChannelID: channelID, Username: username}
}

// StopTyping withdraws a Typing announcement.
func StopTyping(channelID string) Outbound {
	return Outbound{Type: FrameStopTyping, ChannelID: channelID}
}
