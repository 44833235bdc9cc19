package engine

import (
	"context"
	"strings"

	"xalvion/internal/app/gateway"
	"xalvion/internal/app/model"
	"xalvion/internal/app/session"
	"xalvion/internal/app/syncstate"
	"xalvion/internal/pkg/errs"
)

// Start resumes a stored session, if any. The profile is refreshed first; a rejected
// credential is cleared and returned as an AuthError. When the backend is unreachable the
// session starts with the identity restored from the credential.
func (e *Engine) Start(ctx context.Context) error {
	ok, err := e.session.Load()
	if err != nil {
		return err
	}
	if !ok {
		e.logger.Info().Msg("No stored session.")
		return nil
	}

	profile, err := e.api.GetProfile(ctx)
	switch {
	case errs.IsAuth(err):
		e.authMu.Lock()
		defer e.authMu.Unlock()
		if clearErr := e.session.Clear(); clearErr != nil {
			e.logger.Error().Err(clearErr).Msg("Failed to clear rejected credential.")
		}
		return err

	case err != nil:
		e.logger.Warn().Err(err).Msg("Profile refresh failed, continuing with stored identity.")

	default:
		e.session.SetIdentity(*profile)
	}

	identity, ok := e.session.Identity()
	if !ok {
		return errs.NewError(errs.ErrNotLoggedIn)
	}
	return e.call(ctx, func() error {
		e.beginSession(identity)
		return nil
	})
}

// Login authenticates and starts a new session, replacing any current one.
func (e *Engine) Login(ctx context.Context, username, password string) (model.Identity, error) {
	res, err := e.api.Login(ctx, username, password)
	if err != nil {
		return model.Identity{}, err
	}
	return e.establish(ctx, res)
}

// Register creates an account and starts a session for it.
func (e *Engine) Register(ctx context.Context, in gateway.RegisterInput) (model.Identity, error) {
	res, err := e.api.Register(ctx, in)
	if err != nil {
		return model.Identity{}, err
	}
	return e.establish(ctx, res)
}

func (e *Engine) establish(ctx context.Context, res *gateway.AuthResult) (model.Identity, error) {
	e.authMu.Lock()
	defer e.authMu.Unlock()

	if err := e.session.Set(res.Identity, res.Credential); err != nil {
		return model.Identity{}, err
	}

	identity := res.Identity
	err := e.call(ctx, func() error {
		e.beginSession(identity)
		return nil
	})
	return identity, err
}

// Logout ends the session and clears the stored credential.
func (e *Engine) Logout(ctx context.Context) error {
	e.authMu.Lock()
	defer e.authMu.Unlock()

	if err := e.call(ctx, func() error {
		e.endSession()
		return nil
	}); err != nil {
		return err
	}
	return e.session.Clear()
}

// SelectServer makes serverID the active server. The active channel is cleared and the
// first text channel of the server is selected once its channels are known.
func (e *Engine) SelectServer(ctx context.Context, serverID string) error {
	return e.call(ctx, func() error {
		if !e.active {
			return errs.NewError(errs.ErrNotLoggedIn)
		}
		if !e.knownServer(serverID) {
			return errs.NewError(errs.ErrUnknownServer, serverID)
		}
		e.selectServer(serverID)
		return nil
	})
}

// SelectChannel makes channelID, which must belong to the active server, the active channel.
func (e *Engine) SelectChannel(ctx context.Context, channelID string) error {
	return e.call(ctx, func() error {
		if !e.active {
			return errs.NewError(errs.ErrNotLoggedIn)
		}
		if !e.channelInActiveServer(channelID) {
			return errs.NewError(errs.ErrChannelNotInServer, channelID)
		}
		e.selectChannel(channelID)
		return nil
	})
}

// SendMessage posts content to the active channel. The created message is applied
// immediately; its push echo is recognized as a duplicate.
func (e *Engine) SendMessage(ctx context.Context, content string) (*model.Message, error) {
	var (
		channelID string
		ep        uint64
	)
	err := e.call(ctx, func() error {
		if !e.active {
			return errs.NewError(errs.ErrNotLoggedIn)
		}
		if strings.TrimSpace(content) == "" {
			return errs.NewError(errs.ErrEmptyContent)
		}
		if e.activeChannel == "" {
			return errs.NewError(errs.ErrNoActiveChannel)
		}
		channelID = e.activeChannel
		ep = e.epoch.Load()
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg, err := e.api.SendMessage(ctx, channelID, content)
	if err != nil {
		e.reportFailure(ep, "send_message", err)
		return nil, err
	}

	_ = e.call(ctx, func() error {
		if ep != e.epoch.Load() {
			return nil
		}
		e.debouncer.Stop()
		if msg != nil {
			e.apply(syncstate.MessageSent{Message: *msg})
		}
		return nil
	})
	return msg, nil
}

// InputChanged records a keystroke in the active channel's composer.
func (e *Engine) InputChanged(ctx context.Context) error {
	return e.call(ctx, func() error {
		if !e.active || e.activeChannel == "" {
			return nil
		}
		e.debouncer.InputChanged(e.activeChannel, e.identity.Username)
		return nil
	})
}

// InputBlurred withdraws typing when the composer loses focus.
func (e *Engine) InputBlurred(ctx context.Context) error {
	return e.call(ctx, func() error {
		if e.active {
			e.debouncer.Stop()
		}
		return nil
	})
}

// AddReaction reacts to a message. The result arrives as a reaction_update event.
func (e *Engine) AddReaction(ctx context.Context, messageID, emoji string) error {
	return e.react(ctx, "add_reaction", messageID, emoji, e.api.AddReaction)
}

// RemoveReaction withdraws a reaction. The result arrives as a reaction_update event.
func (e *Engine) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	return e.react(ctx, "remove_reaction", messageID, emoji, e.api.RemoveReaction)
}

func (e *Engine) react(ctx context.Context, op, messageID, emoji string, fn func(context.Context, string, string) error) error {
	ep, err := e.currentEpoch(ctx)
	if err != nil {
		return err
	}
	if messageID == "" || strings.TrimSpace(emoji) == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if err := fn(ctx, messageID, emoji); err != nil {
		e.reportFailure(ep, op, err)
		return err
	}
	return nil
}

// CreateServer creates a server, appends it to the list and makes it active.
func (e *Engine) CreateServer(ctx context.Context, name, description string) (*model.Server, error) {
	ep, err := e.currentEpoch(ctx)
	if err != nil {
		return nil, err
	}

	server, err := e.api.CreateServer(ctx, name, description)
	if err != nil {
		e.reportFailure(ep, "create_server", err)
		return nil, err
	}

	err = e.call(ctx, func() error {
		if ep != e.epoch.Load() {
			return nil
		}
		if !e.knownServer(server.ServerID) {
			e.servers = append(e.servers, *server)
		}
		e.selectServer(server.ServerID)
		return nil
	})
	return server, err
}

// CreateChannel creates a channel in the active server and appends it to its list.
func (e *Engine) CreateChannel(ctx context.Context, name string, channelType model.ChannelType, description string) (*model.Channel, error) {
	var (
		serverID string
		ep       uint64
	)
	err := e.call(ctx, func() error {
		if !e.active {
			return errs.NewError(errs.ErrNotLoggedIn)
		}
		if e.activeServer == "" {
			return errs.NewError(errs.ErrNoActiveServer)
		}
		serverID = e.activeServer
		ep = e.epoch.Load()
		return nil
	})
	if err != nil {
		return nil, err
	}

	channel, err := e.api.CreateChannel(ctx, serverID, name, channelType, description)
	if err != nil {
		e.reportFailure(ep, "create_channel", err)
		return nil, err
	}

	err = e.call(ctx, func() error {
		if ep != e.epoch.Load() {
			return nil
		}
		list := e.channels[serverID]
		for _, ch := range list {
			if ch.ChannelID == channel.ChannelID {
				return nil
			}
		}
		e.channels[serverID] = append(append([]model.Channel{}, list...), *channel)
		return nil
	})
	return channel, err
}

// SetPreferences replaces the signed-in user's display preferences.
func (e *Engine) SetPreferences(ctx context.Context, p session.Preferences) error {
	return e.call(ctx, func() error {
		if !e.active {
			return errs.NewError(errs.ErrNotLoggedIn)
		}
		e.session.SetPreferences(p)
		return nil
	})
}

// currentEpoch returns the live session's epoch, or an AuthError when signed out.
func (e *Engine) currentEpoch(ctx context.Context) (uint64, error) {
	var ep uint64
	err := e.call(ctx, func() error {
		if !e.active {
			return errs.NewError(errs.ErrNotLoggedIn)
		}
		ep = e.epoch.Load()
		return nil
	})
	return ep, err
}

func (e *Engine) knownServer(serverID string) bool {
	for _, s := range e.servers {
		if s.ServerID == serverID {
			return true
		}
	}
	return false
}
