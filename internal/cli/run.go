package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"xalvion/internal/handler"
	"xalvion/internal/pkg/logx"
)

func init() {
	runCmd.Flags().String("bridge", "", "serve the presentation bridge on this address (overrides BRIDGE_ADDR)")
	runCmd.Flags().Bool("quiet", false, "do not print view updates")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resume the stored session and keep it in sync",
	Long: `Run resumes the stored session, connects the push channel and prints messages of the
active channel as they arrive. Lines typed on stdin are sent to the active channel; lines
starting with / are console commands (see /help).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if addr, _ := cmd.Flags().GetString("bridge"); addr != "" {
			a.cfg.BridgeAddr = addr
		}
		quiet, _ := cmd.Flags().GetBool("quiet")

		// Create a context that listens for the interrupt signal from the OS.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng := a.newEngine()
		go func() {
			_ = eng.Run(ctx)
		}()
		defer func() {
			stop()
			<-eng.Done()
		}()

		if err := a.gateway.Health(ctx); err != nil {
			logx.Warn("Backend health check failed, continuing.", "backend_url", a.cfg.BackendURL, "error", err.Error())
		}

		if err := eng.Start(ctx); err != nil {
			return err
		}
		if _, ok := a.session.Identity(); !ok {
			fmt.Println("Not signed in. Run `xalvion login` first.")
			return nil
		}

		var server *http.Server
		if a.cfg.BridgeAddr != "" {
			router, stopRouter := handler.Router(&handler.AppDeps{
				Engine:  eng,
				Config:  a.cfg,
				Metrics: a.metrics,
			})
			defer stopRouter()

			server = &http.Server{
				Addr:        a.cfg.BridgeAddr,
				Handler:     router,
				ReadTimeout: 5 * time.Second,
				IdleTimeout: 120 * time.Second,
			}

			go func() {
				logx.Info(fmt.Sprintf("Presentation bridge listening on http://%s", a.cfg.BridgeAddr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logx.Error(err, "Presentation bridge failed")
					stop()
				}
			}()
		}

		if !quiet {
			views, cancel := eng.Subscribe()
			defer cancel()

			p := newPrinter(os.Stdout)
			go func() {
				for v := range views {
					p.render(v)
				}
			}()
		}

		go readConsole(ctx, eng)

		<-ctx.Done()
		logx.Info("Received shutdown signal. Starting graceful shutdown...")

		if server != nil {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logx.Error(err, "Presentation bridge forced to shutdown")
			}
		}
		return nil
	},
}

// readConsole executes stdin lines until stdin closes or ctx ends.
func readConsole(ctx context.Context, eng consoleEngine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := runLine(ctx, eng, os.Stdout, scanner.Text()); err != nil {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}
	}
}
