package engine

import (
	"context"

	"xalvion/internal/app/model"
	"xalvion/internal/app/realtime"
	"xalvion/internal/app/syncstate"
	"xalvion/internal/app/typing"
	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/logx"
)

// beginSession resets all state for identity, opens the push channel and starts the
// bootstrap fetches. Runs on the loop.
func (e *Engine) beginSession(identity model.Identity) {
	if e.active {
		e.endSession()
	}

	ep := e.epoch.Add(1)
	e.active = true
	e.identity = identity
	e.state = syncstate.New(identity.UserID, e.cfg.TypingTTL)
	e.servers = nil
	e.channels = map[string][]model.Channel{}
	e.activeServer = ""
	e.activeChannel = ""
	e.connState = realtime.Disconnected
	e.connErr = ""
	e.connectedOnce = false
	e.lastErr = ""

	e.rt = e.newRealtime(&realtimeHandler{e: e, epoch: ep})
	e.debouncer = typing.New(e.rt, typing.Options{
		IdleTimeout:     e.cfg.IdleTimeout,
		RefreshInterval: e.cfg.RefreshInterval,
	})
	e.rt.Open(identity.UserID)

	e.logger.Info().Str("user_id", identity.UserID).Uint64("epoch", ep).Msg("Session started.")

	e.fetchPresence(ep)
	e.fetchServers(ep)
}

// endSession closes the push channel and drops all session state. The stored credential
// is left alone. Runs on the loop.
func (e *Engine) endSession() {
	if !e.active {
		return
	}

	ep := e.epoch.Add(1)
	e.active = false
	e.debouncer.Close()
	e.rt.Close()
	e.rt = nil
	e.debouncer = nil

	e.identity = model.Identity{}
	e.state = syncstate.State{}
	e.servers = nil
	e.channels = map[string][]model.Channel{}
	e.activeServer = ""
	e.activeChannel = ""
	e.connState = realtime.Disconnected
	e.connErr = ""
	e.cfg.Metrics.SetConnectionState(int(realtime.Disconnected))

	e.logger.Info().Uint64("epoch", ep).Msg("Session ended.")
}

// forceLogout ends the session after the backend rejected the credential, then clears the
// credential off the loop. Runs on the loop.
func (e *Engine) forceLogout(cause error) {
	if !e.active {
		return
	}
	e.logger.Warn().Err(cause).Msg("Credential rejected, signing out.")

	e.endSession()
	e.lastErr = errs.NewError(errs.ErrSessionExpired).Message

	ep := e.epoch.Load()
	go func() {
		e.authMu.Lock()
		defer e.authMu.Unlock()

		// A new sign-in happened in the meantime and owns the credential.
		if e.epoch.Load() != ep {
			return
		}
		if err := e.session.Clear(); err != nil {
			logx.Error(err, "Failed to clear rejected credential")
		}
	}()
}

// fail records an error from work captured under ep. Runs on the loop.
func (e *Engine) fail(ep uint64, op string, err error) {
	if ep != e.epoch.Load() {
		return
	}
	if errs.IsAuth(err) {
		e.forceLogout(err)
		return
	}
	e.logger.Error().Err(err).Str("op", op).Msg("Request failed.")
	e.lastErr = err.Error()
}

// reportFailure forwards a caller-side failure to the loop.
func (e *Engine) reportFailure(ep uint64, op string, err error) {
	if errs.IsAuth(err) {
		e.post(func() { e.fail(ep, op, err) })
	}
}

func (e *Engine) fetchPresence(ep uint64) {
	e.spawn(func(ctx context.Context) {
		presence, err := e.api.GetPresence(ctx)
		e.post(func() {
			if ep != e.epoch.Load() {
				return
			}
			if err != nil {
				e.fail(ep, "get_presence", err)
				return
			}
			e.apply(syncstate.PresenceSnapshot{Presence: presence})
		})
	})
}

func (e *Engine) fetchServers(ep uint64) {
	e.spawn(func(ctx context.Context) {
		servers, err := e.api.ListServers(ctx)
		e.post(func() {
			if ep != e.epoch.Load() {
				return
			}
			if err != nil {
				e.fail(ep, "list_servers", err)
				return
			}
			e.servers = servers
			if e.activeServer == "" && len(servers) > 0 {
				e.selectServer(servers[0].ServerID)
			}
		})
	})
}

func (e *Engine) fetchChannels(ep uint64, serverID string) {
	e.spawn(func(ctx context.Context) {
		channels, err := e.api.ListChannels(ctx, serverID)
		e.post(func() {
			if ep != e.epoch.Load() {
				return
			}
			if err != nil {
				e.fail(ep, "list_channels", err)
				return
			}
			e.channels[serverID] = channels
			if e.activeServer == serverID && e.activeChannel == "" {
				if first, ok := firstTextChannel(channels); ok {
					e.selectChannel(first.ChannelID)
				}
			}
		})
	})
}

// fetchHistory loads channelID's history. A response arriving after the user moved to
// another channel is discarded.
func (e *Engine) fetchHistory(ep uint64, channelID string) {
	e.spawn(func(ctx context.Context) {
		msgs, err := e.api.ListMessages(ctx, channelID)
		e.post(func() {
			if ep != e.epoch.Load() {
				return
			}
			if err != nil {
				e.fail(ep, "list_messages", err)
				return
			}
			if e.activeChannel != channelID {
				e.logger.Debug().Str("channel_id", channelID).Msg("Discarding history for inactive channel.")
				return
			}
			e.apply(syncstate.HistoryLoaded{ChannelID: channelID, Messages: msgs})
		})
	})
}

// selectServer makes serverID active and loads its channels. Runs on the loop.
func (e *Engine) selectServer(serverID string) {
	if e.debouncer != nil {
		e.debouncer.Stop()
	}
	e.activeServer = serverID
	e.activeChannel = ""
	e.rt.SetActiveServer(serverID)

	if channels, ok := e.channels[serverID]; ok {
		if first, ok := firstTextChannel(channels); ok {
			e.selectChannel(first.ChannelID)
		}
	}
	e.fetchChannels(e.epoch.Load(), serverID)
}

// selectChannel makes channelID active and loads its history. Runs on the loop.
func (e *Engine) selectChannel(channelID string) {
	if e.activeChannel != channelID {
		e.debouncer.Stop()
	}
	e.activeChannel = channelID
	e.fetchHistory(e.epoch.Load(), channelID)
}

func firstTextChannel(channels []model.Channel) (model.Channel, bool) {
	for _, ch := range channels {
		if ch.ChannelType == model.ChannelText || ch.ChannelType == "" {
			return ch, true
		}
	}
	return model.Channel{}, false
}

func (e *Engine) channelInActiveServer(channelID string) bool {
	for _, ch := range e.channels[e.activeServer] {
		if ch.ChannelID == channelID {
			return true
		}
	}
	return false
}

// realtimeHandler binds a push channel to the session epoch it was created for.
type realtimeHandler struct {
	e     *Engine
	epoch uint64
}

func (h *realtimeHandler) HandleEvent(env model.Envelope) {
	ev, err := syncstate.Decode(env, h.e.cfg.Now())
	if err != nil {
		h.e.logger.Warn().Err(err).Str("type", string(env.Type)).Msg("Dropping undecodable event.")
		return
	}
	h.e.post(func() {
		if h.epoch != h.e.epoch.Load() {
			return
		}
		h.e.apply(ev)
	})
}

func (h *realtimeHandler) HandleState(state realtime.State) {
	h.e.post(func() {
		if h.epoch != h.e.epoch.Load() {
			return
		}
		h.e.connState = state
		h.e.cfg.Metrics.SetConnectionState(int(state))
		if state != realtime.Connected {
			return
		}

		h.e.connErr = ""
		if h.e.connectedOnce {
			h.e.resync(h.epoch)
		}
		h.e.connectedOnce = true
	})
}

func (h *realtimeHandler) HandleError(err error) {
	h.e.post(func() {
		if h.epoch != h.e.epoch.Load() {
			return
		}
		h.e.logger.Error().Err(err).Msg("Push channel failed.")
		h.e.connErr = err.Error()
	})
}

// resync refetches what may have been missed while the push channel was down.
func (e *Engine) resync(ep uint64) {
	e.logger.Info().Msg("Push channel reconnected, resyncing.")
	e.fetchPresence(ep)
	if e.activeChannel != "" {
		e.fetchHistory(ep, e.activeChannel)
	}
}
