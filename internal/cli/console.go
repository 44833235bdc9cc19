package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"xalvion/internal/app/engine"
	"xalvion/internal/app/model"
	"xalvion/internal/pkg/errs"
)

// consoleEngine is the part of the engine the console drives.
type consoleEngine interface {
	Snapshot() engine.View
	SelectServer(ctx context.Context, serverID string) error
	SelectChannel(ctx context.Context, channelID string) error
	CreateServer(ctx context.Context, name, description string) (*model.Server, error)
	CreateChannel(ctx context.Context, name string, channelType model.ChannelType, description string) (*model.Channel, error)
	SendMessage(ctx context.Context, content string) (*model.Message, error)
	AddReaction(ctx context.Context, messageID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, emoji string) error
}

const consoleHelp = `Commands:
  /servers                      list servers
  /channels                     list channels of the active server
  /server <id>                  switch server
  /channel <id>                 switch channel
  /new-server <name>            create a server
  /new-channel <name> [voice]   create a channel in the active server
  /react <message-id> <emoji>   add a reaction
  /unreact <message-id> <emoji> remove a reaction
  /help                         show this help
Any other line is sent to the active channel.`

// runLine executes one console line. Listings are written to out.
func runLine(ctx context.Context, eng consoleEngine, out io.Writer, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := eng.SendMessage(ctx, line)
		return err
	}

	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/help":
		fmt.Fprintln(out, consoleHelp)
		return nil

	case "/servers":
		v := eng.Snapshot()
		for _, s := range v.Servers {
			fmt.Fprintf(out, "%s %s  %s\n", marker(s.ServerID == v.ActiveServerID), s.ServerID, s.Name)
		}
		return nil

	case "/channels":
		v := eng.Snapshot()
		for _, c := range v.Channels {
			fmt.Fprintf(out, "%s %s  #%s (%s)\n", marker(c.ChannelID == v.ActiveChannelID), c.ChannelID, c.Name, c.ChannelType)
		}
		return nil

	case "/server":
		if len(args) != 1 {
			return errs.NewError(errs.ErrInvalidParams)
		}
		return eng.SelectServer(ctx, args[0])

	case "/channel":
		if len(args) != 1 {
			return errs.NewError(errs.ErrInvalidParams)
		}
		return eng.SelectChannel(ctx, args[0])

	case "/new-server":
		if len(args) == 0 {
			return errs.NewError(errs.ErrInvalidParams)
		}
		s, err := eng.CreateServer(ctx, strings.Join(args, " "), "")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "* created server %s (%s)\n", s.Name, s.ServerID)
		return nil

	case "/new-channel":
		if len(args) == 0 || len(args) > 2 {
			return errs.NewError(errs.ErrInvalidParams)
		}
		channelType := model.ChannelText
		if len(args) == 2 {
			channelType = model.ChannelType(args[1])
		}
		c, err := eng.CreateChannel(ctx, args[0], channelType, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "* created channel #%s (%s)\n", c.Name, c.ChannelID)
		return nil

	case "/react", "/unreact":
		if len(args) != 2 {
			return errs.NewError(errs.ErrInvalidParams)
		}
		if name == "/react" {
			return eng.AddReaction(ctx, args[0], args[1])
		}
		return eng.RemoveReaction(ctx, args[0], args[1])
	}

	return fmt.Errorf("unknown command %s, try /help", name)
}

func marker(active bool) string {
	if active {
		return "*"
	}
	return " "
}
