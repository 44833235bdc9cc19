/*
Package model contains the client's data structures for identities, servers, channels,
messages, reactions and presence.

Field names and JSON tags follow the backend's wire format, so the same types are used
for REST responses, push event payloads and the state the reducer produces.
*/
package model

// ChannelType is the kind of a channel.
type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
)

// Valid reports whether t can be used to create a channel.
func (t ChannelType) Valid() bool {
	return t == ChannelText || t == ChannelVoice
}

// Identity is the signed-in user's profile.
type Identity struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name,omitempty"`
	Email        string `json:"email,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
	Theme        string `json:"theme,omitempty"`
	CustomStatus string `json:"custom_status,omitempty"`
	Status       string `json:"status,omitempty"`
}

// Name returns the display name, falling back to the username.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Username
}

// Server is a community the user is a member of.
type Server struct {
	ServerID    string `json:"server_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
}

// Channel belongs to exactly one Server.
type Channel struct {
	ChannelID   string      `json:"channel_id"`
	ServerID    string      `json:"server_id"`
	Name        string      `json:"name"`
	ChannelType ChannelType `json:"channel_type"`
	Description string      `json:"description,omitempty"`
	Position    int         `json:"position,omitempty"`
}

// Reaction is one emoji placed on a message by one user.
type Reaction struct {
	Emoji       string `json:"emoji"`
	ReactorID   string `json:"user_id"`
	ReactorName string `json:"username,omitempty"`
}

// Message is immutable once created except for Reactions, which the server replaces wholesale.
type Message struct {
	MessageID         string     `json:"message_id"`
	ChannelID         string     `json:"channel_id"`
	AuthorID          string     `json:"author_id,omitempty"`
	AuthorUsername    string     `json:"author_username"`
	AuthorDisplayName string     `json:"author_display_name,omitempty"`
	Content           string     `json:"content"`
	MessageType       string     `json:"message_type,omitempty"`
	CreatedAt         Timestamp  `json:"created_at"`
	Reactions         []Reaction `json:"reactions"`
}

// AuthorName returns the author's display name, falling back to the username.
func (m Message) AuthorName() string {
	if m.AuthorDisplayName != "" {
		return m.AuthorDisplayName
	}
	return m.AuthorUsername
}

// Presence statuses the backend is known to send. Other values are kept as-is.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Presence is the last known presence of one user.
type Presence struct {
	Status   string `json:"status"`
	LastSeen string `json:"last_seen,omitempty"`
	Activity string `json:"activity,omitempty"`
}
