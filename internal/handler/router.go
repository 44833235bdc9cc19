/*
Package handler provides the HTTP handlers and routing setup for the local presentation bridge.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
The bridge is the only way a presentation layer reads the engine's views and issues actions.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"xalvion/internal/pkg/limiter"
	"xalvion/internal/pkg/logx"
	"xalvion/internal/pkg/resp"
)

const (
	ActionRate  = 20
	ActionBurst = 40
	StreamRate  = 0.5
	StreamBurst = 5
)

// Router sets up the bridge's HTTP routing table (chi.Router).
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
// The returned stop function ends the limiters' cleanup goroutines; call it once the server is shut down.
func Router(deps *AppDeps) (http.Handler, func()) {
	h, limiters := newRouter(deps)
	return h, stopLimiters(limiters)
}

func stopLimiters(limiters []*limiter.IPRateLimiter) func() {
	return func() {
		for _, l := range limiters {
			l.Stop()
		}
	}
}

func newRouter(deps *AppDeps) (http.Handler, []*limiter.IPRateLimiter) {
	actionLimiter := limiter.NewIPRateLimiter(rate.Limit(ActionRate), ActionBurst)
	streamLimiter := limiter.NewIPRateLimiter(rate.Limit(StreamRate), StreamBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.BridgeAllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || deps.Config.IsDevelopment() {
				return true
			}

			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("State stream rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.BridgeAllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.BridgeAllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":     "ok",
			"service":    "Xalvion Client Bridge",
			"connection": deps.Engine.Snapshot().Connection.String(),
		}
		resp.RespondSuccess(w, r, data)
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/state", HandleGetState(deps))

		api.Group(func(actions chi.Router) {
			actions.Use(actionLimiter.Middleware)

			actions.Route("/session", func(session chi.Router) {
				session.Post("/login", HandleLogin(deps))
				session.Post("/register", HandleRegister(deps))
				session.Post("/logout", HandleLogout(deps))
			})

			actions.Post("/servers", HandleCreateServer(deps))
			actions.Post("/servers/select", HandleSelectServer(deps))
			actions.Post("/channels", HandleCreateChannel(deps))
			actions.Post("/channels/select", HandleSelectChannel(deps))

			actions.Post("/messages", HandleSendMessage(deps))
			actions.Post("/reactions", HandleReaction(deps))
			actions.Post("/input", HandleInput(deps))
			actions.Put("/preferences", HandleSetPreferences(deps))
		})
	})

	r.Get("/ws/state", HandleStateStream(wsUpgrader, streamLimiter, deps))

	return r, []*limiter.IPRateLimiter{actionLimiter, streamLimiter}
}

// HandleGetState returns the latest view.
func HandleGetState(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Engine.Snapshot())
	}
}
