package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"xalvion/internal/app/engine"
	"xalvion/internal/app/realtime"
)

// printer writes the differences between consecutive views as console lines.
type printer struct {
	out io.Writer
	now func() time.Time

	started    bool
	connection realtime.State
	server     string
	channel    string
	typing     string
	lastErr    string
	// seen maps each printed message id to its reaction summary.
	seen map[string]string
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, now: time.Now, seen: map[string]string{}}
}

func (p *printer) render(v engine.View) {
	if !p.started || v.Connection != p.connection {
		p.connection = v.Connection
		line := "* connection: " + v.Connection.String()
		if v.ConnectionError != "" {
			line += " (" + v.ConnectionError + ")"
		}
		fmt.Fprintln(p.out, line)
	}
	p.started = true

	if v.LastError != "" && v.LastError != p.lastErr {
		fmt.Fprintf(p.out, "! %s\n", v.LastError)
	}
	p.lastErr = v.LastError

	if v.ActiveServerID != p.server {
		p.server = v.ActiveServerID
		if name := serverName(v, v.ActiveServerID); name != "" {
			fmt.Fprintf(p.out, "* server: %s\n", name)
		}
	}

	if v.ActiveChannelID != p.channel {
		p.channel = v.ActiveChannelID
		p.seen = map[string]string{}
		p.typing = ""
		if name := channelName(v, v.ActiveChannelID); name != "" {
			fmt.Fprintf(p.out, "* #%s\n", name)
		}
	}

	for _, m := range v.Messages {
		summary := reactionSummary(m)
		prev, ok := p.seen[m.MessageID]
		p.seen[m.MessageID] = summary
		switch {
		case !ok:
			fmt.Fprintln(p.out, p.formatMessage(m))
		case prev != summary:
			fmt.Fprintf(p.out, "~ %s reactions:%s\n", m.MessageID, summary)
		}
	}

	if v.TypingText != p.typing {
		p.typing = v.TypingText
		if v.TypingText != "" {
			fmt.Fprintf(p.out, "* %s\n", v.TypingText)
		}
	}
}

func (p *printer) formatMessage(m engine.MessageView) string {
	var b strings.Builder

	when := "just now"
	if !m.CreatedAt.IsZero() {
		when = humanize.RelTime(m.CreatedAt.Time, p.now(), "ago", "from now")
	}
	fmt.Fprintf(&b, "[%s] %s: %s", when, m.AuthorName(), m.Content)

	b.WriteString(reactionSummary(m))
	fmt.Fprintf(&b, "  (%s)", m.MessageID)
	return b.String()
}

func reactionSummary(m engine.MessageView) string {
	var b strings.Builder
	for _, g := range m.ReactionGroups {
		fmt.Fprintf(&b, "  %s %d", g.Emoji, g.Count)
	}
	return b.String()
}

func serverName(v engine.View, id string) string {
	for _, s := range v.Servers {
		if s.ServerID == id {
			return s.Name
		}
	}
	return id
}

func channelName(v engine.View, id string) string {
	for _, c := range v.Channels {
		if c.ChannelID == id {
			return c.Name
		}
	}
	return id
}
