package syncstate

import (
	"fmt"
	"sort"
	"time"

	"xalvion/internal/app/model"
)

// TypingUsers lists the unexpired typists of channelID, earliest start first and user id
// breaking ties. The order follows arrival times, so two clients may disagree on it.
func TypingUsers(s State, channelID string, now time.Time) []TypingEntry {
	users := make([]TypingEntry, 0, len(s.Typing[channelID]))
	for _, entry := range s.Typing[channelID] {
		if !entry.expired(now) {
			users = append(users, entry)
		}
	}

	sort.Slice(users, func(i, j int) bool {
		if !users[i].StartedAt.Equal(users[j].StartedAt) {
			return users[i].StartedAt.Before(users[j].StartedAt)
		}
		return users[i].UserID < users[j].UserID
	})
	return users
}

// TypingText renders who is typing in channelID.
func TypingText(s State, channelID string, now time.Time) string {
	users := TypingUsers(s, channelID, now)

	switch len(users) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing…", users[0].displayName())
	case 2:
		return fmt.Sprintf("%s and %s are typing…", users[0].displayName(), users[1].displayName())
	default:
		return fmt.Sprintf("%s and %d others are typing…", users[0].displayName(), len(users)-1)
	}
}

func (e TypingEntry) displayName() string {
	if e.Name != "" {
		return e.Name
	}
	return "Someone"
}

// ReactionGroup is every reaction with the same emoji on one message.
type ReactionGroup struct {
	Emoji      string   `json:"emoji"`
	Count      int      `json:"count"`
	ReactorIDs []string `json:"reactor_ids"`
}

// ReactedBy reports whether userID is among the reactors.
func (g ReactionGroup) ReactedBy(userID string) bool {
	for _, id := range g.ReactorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupReactions groups reactions by emoji in order of each emoji's first appearance.
func GroupReactions(reactions []model.Reaction) []ReactionGroup {
	groups := []ReactionGroup{}
	index := map[string]int{}

	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji, ReactorIDs: []string{}})
		}
		groups[i].Count++
		groups[i].ReactorIDs = append(groups[i].ReactorIDs, r.ReactorID)
	}

	return groups
}
