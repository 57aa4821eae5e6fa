package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/latestcomment/go-model-arena/internal/config"
	"github.com/latestcomment/go-model-arena/internal/handlers"
	"github.com/latestcomment/go-model-arena/internal/logging"
	"github.com/latestcomment/go-model-arena/internal/models"
	"github.com/latestcomment/go-model-arena/internal/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd builds the arena command; run receives the loaded config.
func newRootCmd(v *viper.Viper, run func(context.Context, *config.Config) error) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "arena",
		Short:         "Side-by-side chat model comparison in the browser",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	cmd.Flags().String("addr", ":3000", "listen address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "auto", "log format (auto, text, json)")

	_ = v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", cmd.Flags().Lookup("log-format"))
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	sim := cfg.Simulation
	streamers := map[services.Provider]services.Streamer{
		services.ProviderGemini:    services.NewSimulatedStreamer(sim.GeminiDelay, sim.Interval, sim.Response),
		services.ProviderFireworks: services.NewSimulatedStreamer(sim.FireworksDelay, sim.Interval, sim.Response),
	}
	arena := services.NewArenaService(models.NewRoomManager(), streamers, services.WithLogger(log))
	app := handlers.NewApp(arena, handlers.AppConfig{Logger: log})

	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 arena server running", "addr", cfg.Server.Addr)
		errCh <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := arena.Shutdown(shutdownCtx); err != nil {
		log.Warn("streams did not drain", "error", err)
	}
	return app.ShutdownWithContext(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.New(), serve).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
