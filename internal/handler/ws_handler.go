/*
Package handler provides the HTTP handler function for the view stream WebSocket.

This file contains the HandleStateStream function, which is responsible for rate limiting, upgrading
the HTTP connection to WebSocket and pushing every engine view to the presentation layer until
either side goes away.
*/
package handler

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"xalvion/internal/app/engine"
	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/limiter"
	"xalvion/internal/pkg/logx"
	"xalvion/internal/pkg/randx"
	"xalvion/internal/pkg/resp"
)

const (
	// timeout duration for writing one view to the stream.
	streamWriteWait = 10 * time.Second

	// maximum time allowed to wait for a Pong from the presentation layer.
	streamPongWait = 60 * time.Second

	// frequency at which the bridge pings the presentation layer.
	streamPingPeriod = (streamPongWait * 9) / 10

	// the stream is write-only; inbound frames are limited to control traffic.
	streamReadLimit = 512
)

// HandleStateStream creates an HTTP HandlerFunc that streams engine views over a WebSocket.
// The current view is sent immediately; later views replace it as the engine publishes them.
func HandleStateStream(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("State stream rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade state stream to WebSocket")
			return
		}

		streamID := randx.ConnectionID()
		logger := logx.Component("bridge").With().Str("stream_id", streamID).Logger()
		logger.Info().Str("ip", ip).Msg("State stream opened.")

		views, cancel := deps.Engine.Subscribe()
		defer cancel()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(streamReadLimit)
			_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(streamPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						logger.Info().Err(err).Msg("State stream read failed.")
					}
					return
				}
			}
		}()

		writeStream(conn, views, closed)

		if err := conn.Close(); err != nil {
			logger.Debug().Err(err).Msg("State stream close error.")
		}
		<-closed
		logger.Info().Msg("State stream closed.")
	}
}

// writeStream writes views until the subscription ends, the peer leaves or a write fails.
func writeStream(conn *websocket.Conn, views <-chan engine.View, closed <-chan struct{}) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case view, ok := <-views:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine stopped"))
				return
			}
			if err := conn.WriteJSON(view); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}
