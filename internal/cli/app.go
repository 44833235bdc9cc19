package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"xalvion/internal/app/engine"
	"xalvion/internal/app/gateway"
	"xalvion/internal/app/realtime"
	"xalvion/internal/app/session"
	"xalvion/internal/app/storage"
	"xalvion/internal/configs"
	"xalvion/internal/pkg/logx"
	"xalvion/internal/pkg/metrics"
)

// app bundles what every command needs: configuration, the session store and the REST gateway.
type app struct {
	cfg     *configs.AppConfig
	kv      storage.KVStore
	session *session.Store
	metrics *metrics.Metrics
	gateway *gateway.Client
}

// openApp loads the configuration named by the --config flag and opens the local store.
// The caller must Close the app.
func openApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := configs.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Debug().
		Str("environment", cfg.Environment).
		Str("backend_url", cfg.BackendURL).
		Str("data_dir", cfg.DataDir).
		Msg("Configuration loaded successfully")

	kv, err := storage.NewKVStore(storage.ServiceConfig{Dir: cfg.DataDir})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	store := session.NewStore(kv, cfg.CredentialKey)
	m := metrics.New()

	gw := gateway.NewClient(gateway.Config{
		BaseURL:      cfg.BackendURL,
		Timeout:      cfg.RequestTimeout,
		Rate:         cfg.RequestRate,
		Burst:        cfg.RequestBurst,
		HistoryLimit: cfg.HistoryLimit,
		Metrics:      m,
	}, store)

	return &app{cfg: cfg, kv: kv, session: store, metrics: m, gateway: gw}, nil
}

// newEngine builds a sync engine whose push channels follow the configured reconnect policy.
func (a *app) newEngine() *engine.Engine {
	newRealtime := func(h realtime.Handler) engine.Realtime {
		return realtime.NewChannel(realtime.Options{
			URL: a.cfg.WSURL,
			Policy: realtime.ReconnectPolicy{
				Delay:       a.cfg.ReconnectDelay,
				MaxAttempts: a.cfg.ReconnectMaxAttempts,
				Jitter:      a.cfg.ReconnectJitter,
			},
			ReadLimit: a.cfg.WSReadLimit,
			Metrics:   a.metrics,
		}, h)
	}

	return engine.New(a.gateway, a.session, newRealtime, engine.Config{
		TypingTTL:       a.cfg.TypingExpiry,
		IdleTimeout:     a.cfg.TypingIdleTimeout,
		RefreshInterval: a.cfg.TypingRefreshInterval,
		Metrics:         a.metrics,
	})
}

func (a *app) Close() error {
	return a.kv.Close()
}
