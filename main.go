package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbcarlson3/meal-match/config"
	"github.com/kbcarlson3/meal-match/logger"
	"github.com/kbcarlson3/meal-match/routes"
	"github.com/kbcarlson3/meal-match/services"
	"github.com/kbcarlson3/meal-match/socket"
	"github.com/kbcarlson3/meal-match/store"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mealmatch",
		Short:         "Meal Match swipe and match service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and socket.io server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the store schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context())
		},
	})
	return cmd
}

func setup() (config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "mealmatch"})
	return cfg, log, nil
}

func migrate(ctx context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := store.Migrate(ctx, st); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("schema applied")
	return nil
}

func serve(parent context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("driver", cfg.Store.Driver).Msg("opening store")
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := store.Migrate(ctx, st); err != nil {
		return err
	}

	var gateway services.Gateway
	if !cfg.Notify.Disabled {
		gateway = services.NewExpoGateway(cfg.Notify.GatewayURL, cfg.Notify.AccessToken)
	}

	hub := socket.NewHub(cfg.Realtime.Buffer, logger.Named("realtime"))
	groupService := services.NewGroupService(st, logger.Named("groups"))
	ledgerService := services.NewLedgerService(st, st, logger.Named("ledger"))
	matchService := services.NewMatchService(st, st, st, logger.Named("detector"))
	notificationService := services.NewNotificationService(st, gateway, cfg.Notify.Timeout, logger.Named("notify"))
	actionService := services.NewActionService(ledgerService, matchService, notificationService, hub, logger.Named("actions"))

	r := routes.NewRouter(routes.Services{
		Actions:       actionService,
		Matches:       matchService,
		Groups:        groupService,
		Notifications: notificationService,
		Timeout:       cfg.RequestTimeout,
	})

	sio := socket.NewServer(socket.NewBridge(hub, st, logger.Named("socket")))
	go func() {
		if err := sio.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()
	r.PathPrefix("/socket.io/").Handler(sio)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	stopRealtime(actionService, hub)
	if err := sio.Close(); err != nil {
		log.Warn().Err(err).Msg("socket.io shutdown")
	}
	log.Info().Msg("stopped")
	return nil
}

// stopRealtime waits for in-flight match effects to publish before the hub
// closes its subscribers
func stopRealtime(actions *services.ActionService, hub *socket.Hub) {
	actions.Close()
	hub.Shutdown()
}
