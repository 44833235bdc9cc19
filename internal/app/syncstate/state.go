package syncstate

import (
	"sort"
	"time"

	"xalvion/internal/app/model"
)

// DefaultTypingTTL is how long a typing entry lives without a refresh.
const DefaultTypingTTL = 8 * time.Second

// TypingEntry is one remote user typing in one channel.
type TypingEntry struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e TypingEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// State is the synchronized view of messages, presence and typing.
// Values are treated as immutable: Apply returns a new State sharing every part it did
// not touch, so a State handed to a reader never changes underneath it.
type State struct {
	// LocalUserID is never admitted to a typing set.
	LocalUserID string

	// TypingTTL is the lifetime of a typing entry. Zero disables expiry.
	TypingTTL time.Duration

	// Messages holds each loaded channel's messages in arrival order.
	Messages map[string][]model.Message

	// Presence is last-writer-wins per user id.
	Presence map[string]model.Presence

	// Typing maps channel id to the users typing there.
	Typing map[string]map[string]TypingEntry
}

// New returns an empty State for localUserID.
func New(localUserID string, typingTTL time.Duration) State {
	return State{
		LocalUserID: localUserID,
		TypingTTL:   typingTTL,
		Messages:    map[string][]model.Message{},
		Presence:    map[string]model.Presence{},
		Typing:      map[string]map[string]TypingEntry{},
	}
}

// HasMessage reports whether messageID is present in any loaded channel.
func (s State) HasMessage(messageID string) bool {
	for _, msgs := range s.Messages {
		if indexOf(msgs, messageID) >= 0 {
			return true
		}
	}
	return false
}

// Apply returns the state that results from ev. s is not modified.
func Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case NewMessage:
		return s.appendMessage(e.Message)
	case MessageSent:
		return s.appendMessage(e.Message)
	case ReactionUpdate:
		return s.replaceReactions(e.MessageID, e.Reactions)
	case TypingStarted:
		return s.startTyping(e)
	case TypingStopped:
		return s.stopTyping(e.ChannelID, e.UserID)
	case PresenceChanged:
		return s.setPresence(e.UserID, e.Presence)
	case UserLeft:
		return s.userLeft(e.UserID)
	case HistoryLoaded:
		return s.loadHistory(e.ChannelID, e.Messages)
	case PresenceSnapshot:
		return s.mergePresence(e.Presence)
	case TypingSweep:
		return s.sweepTyping(e.Now)
	default:
		return s
	}
}

func (s State) appendMessage(msg model.Message) State {
	if msg.MessageID == "" || s.HasMessage(msg.MessageID) {
		return s
	}

	old := s.Messages[msg.ChannelID]
	next := make([]model.Message, len(old), len(old)+1)
	copy(next, old)
	next = append(next, msg)

	s.Messages = cloneMap(s.Messages)
	s.Messages[msg.ChannelID] = next
	return s
}

func (s State) replaceReactions(messageID string, reactions []model.Reaction) State {
	for channelID, msgs := range s.Messages {
		i := indexOf(msgs, messageID)
		if i < 0 {
			continue
		}

		next := append([]model.Message(nil), msgs...)
		next[i].Reactions = append([]model.Reaction{}, reactions...)

		s.Messages = cloneMap(s.Messages)
		s.Messages[channelID] = next
		return s
	}
	return s
}

// loadHistory installs a fetched page. Messages held locally but missing from the page are
// kept on the side of the page they were on: those ahead of the first message the two share
// (older, fallen off the page) go before it, the rest (a push that beat the response) after it.
// When every message carries a timestamp the result is ordered by created_at.
func (s State) loadHistory(channelID string, fetched []model.Message) State {
	page := make([]model.Message, 0, len(fetched))
	seen := make(map[string]struct{}, len(fetched))
	for _, msg := range fetched {
		if _, dup := seen[msg.MessageID]; dup || msg.MessageID == "" {
			continue
		}
		seen[msg.MessageID] = struct{}{}
		page = append(page, msg)
	}

	local := s.Messages[channelID]
	shared := len(local)
	for i, msg := range local {
		if _, ok := seen[msg.MessageID]; ok {
			shared = i
			break
		}
	}

	var older, newer []model.Message
	for i, msg := range local {
		if _, ok := seen[msg.MessageID]; ok {
			continue
		}
		if i < shared {
			older = append(older, msg)
		} else {
			newer = append(newer, msg)
		}
	}
	if shared == len(local) {
		// no overlap with the page: treat every local message as newer
		newer, older = append(older, newer...), nil
	}

	next := make([]model.Message, 0, len(older)+len(page)+len(newer))
	next = append(next, older...)
	next = append(next, page...)
	next = append(next, newer...)

	if allTimestamped(next) {
		sort.SliceStable(next, func(i, j int) bool {
			return next[i].CreatedAt.Before(next[j].CreatedAt.Time)
		})
	}

	s.Messages = cloneMap(s.Messages)
	s.Messages[channelID] = next
	return s
}

func allTimestamped(msgs []model.Message) bool {
	for _, msg := range msgs {
		if msg.CreatedAt.IsZero() {
			return false
		}
	}
	return true
}

func (s State) startTyping(e TypingStarted) State {
	if e.UserID == "" || e.UserID == s.LocalUserID {
		return s
	}

	entry := TypingEntry{UserID: e.UserID, Name: e.Username, StartedAt: e.At}
	if prev, ok := s.Typing[e.ChannelID][e.UserID]; ok && !prev.expired(e.At) {
		entry.StartedAt = prev.StartedAt
	}
	if s.TypingTTL > 0 {
		entry.ExpiresAt = e.At.Add(s.TypingTTL)
	}

	users := cloneMap(s.Typing[e.ChannelID])
	users[e.UserID] = entry

	s.Typing = cloneMap(s.Typing)
	s.Typing[e.ChannelID] = users
	return s
}

func (s State) stopTyping(channelID, userID string) State {
	if _, ok := s.Typing[channelID][userID]; !ok {
		return s
	}

	users := cloneMap(s.Typing[channelID])
	delete(users, userID)

	s.Typing = cloneMap(s.Typing)
	if len(users) == 0 {
		delete(s.Typing, channelID)
	} else {
		s.Typing[channelID] = users
	}
	return s
}

func (s State) setPresence(userID string, p model.Presence) State {
	if userID == "" {
		return s
	}
	s.Presence = cloneMap(s.Presence)
	s.Presence[userID] = p
	return s
}

func (s State) mergePresence(snapshot map[string]model.Presence) State {
	if len(snapshot) == 0 {
		return s
	}
	s.Presence = cloneMap(s.Presence)
	for userID, p := range snapshot {
		s.Presence[userID] = p
	}
	return s
}

// userLeft marks the user offline, keeping the rest of their presence, and clears them from
// every typing set.
func (s State) userLeft(userID string) State {
	if userID == "" {
		return s
	}

	p := s.Presence[userID]
	p.Status = model.StatusOffline
	s = s.setPresence(userID, p)

	for channelID := range s.Typing {
		s = s.stopTyping(channelID, userID)
	}
	return s
}

func (s State) sweepTyping(now time.Time) State {
	for channelID, users := range s.Typing {
		for userID, entry := range users {
			if entry.expired(now) {
				s = s.stopTyping(channelID, userID)
			}
		}
	}
	return s
}

func indexOf(msgs []model.Message, messageID string) int {
	for i := range msgs {
		if msgs[i].MessageID == messageID {
			return i
		}
	}
	return -1
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
