package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/rtgateway/internal/admission"
	"github.com/udisondev/rtgateway/internal/broadcast"
	"github.com/udisondev/rtgateway/internal/config"
	"github.com/udisondev/rtgateway/internal/dispatch"
	"github.com/udisondev/rtgateway/internal/engine"
	"github.com/udisondev/rtgateway/internal/httpapi"
	"github.com/udisondev/rtgateway/internal/presence"
	"github.com/udisondev/rtgateway/internal/session"
	"github.com/udisondev/rtgateway/internal/shutdown"
	"github.com/udisondev/rtgateway/internal/signer"
	"github.com/udisondev/rtgateway/internal/store"
	"github.com/udisondev/rtgateway/internal/wire"
	"github.com/udisondev/rtgateway/internal/wsserver"
)

const ConfigPath = "config/gateway.yaml"

func main() {
	ctx, cancel := shutdown.NotifyContext(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("GATEWAY_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	log := slog.Default()
	log.Info("rtgateway starting", "bind", cfg.BindAddress, "port", cfg.Port, "env", cfg.Env)

	st, err := store.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer st.Close()

	if err := store.Migrate(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready")

	nonces := signer.NewNonceManager()
	snapshots, err := st.LoadSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("loading nonce snapshots: %w", err)
	}
	nonces.Restore(snapshots)
	log.Info("nonce state restored", "keys", len(snapshots))

	engineClient := engine.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	forwarder := engine.NewForwarder(engineClient, cfg.IdempotencyTTL, engine.DefaultRetryPolicy())

	sessions := session.NewManager()
	broadcastMgr := broadcast.NewManager(log)
	presenceTracker := presence.NewTracker()
	waiter := dispatch.NewWaiter()

	dispatchDeps := &dispatch.Deps{
		Sessions:  sessions,
		Nonces:    nonces,
		Forwarder: forwarder,
		Engine:    engineClient,
		Broadcast: broadcastMgr,
		Presence:  presenceTracker,
		Waiter:    waiter,
		Buckets:   admission.NewMessageBucket(cfg.MessageBucketMax, cfg.MessageBucketWindow, cfg.MessageBucketBlock),
		Log:       log,
		EventWait: cfg.EventTimeout,
	}

	trusted, err := admission.ParseTrustedProxies(strings.Join(cfg.TrustedProxyCIDRs, ","))
	if err != nil {
		return fmt.Errorf("parsing trusted proxy CIDRs: %w", err)
	}

	wsSrv := wsserver.NewServer(log)
	wsSrv.Origins = admission.NewOriginPolicy(cfg.AllowedOrigins, cfg.AllowNoOrigin)
	wsSrv.Trusted = trusted
	wsSrv.Connections = admission.NewConnectionLimiter(cfg.MaxConnectionsPerIP, cfg.MaxTotalSessions)
	wsSrv.SessionCreation = admission.NewSessionCreationLimiter(cfg.SessionRateLimitPoints)
	wsSrv.Sessions = sessions
	wsSrv.Broadcast = broadcastMgr
	wsSrv.Presence = presenceTracker
	wsSrv.Dispatch = dispatchDeps

	subscriber := engine.NewSubscriber(cfg.BackendStreamAddr, func(ev wire.Event) {
		dispatch.RouteEvent(dispatchDeps, ev)
	}, log)

	coordinator := shutdown.NewCoordinator(wsSrv.Draining, sessions, wsSrv, log)
	coordinator.DrainTimeout = cfg.DrainTimeout

	apiDeps := &httpapi.Deps{
		Draining:     wsSrv.Draining,
		Engine:       engineClient,
		Forwarder:    forwarder,
		Sessions:     sessions,
		MetricsToken: cfg.MetricsAuthToken,
		DevMode:      cfg.IsDevMode(),
		Log:          log,
	}

	wsListener := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler: wsSrv,
	}
	apiListener := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.AdminPort),
		Handler: httpapi.NewMux(apiDeps),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting websocket server", "addr", wsListener.Addr)
		if err := wsListener.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ws listener: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("starting http api", "addr", apiListener.Addr)
		if err := apiListener.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http api listener: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("starting backend event subscriber")
		if err := subscriber.Run(gctx); err != nil {
			return fmt.Errorf("backend subscriber: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		forwarder.StartSweeper(gctx, time.Minute)
		return nil
	})

	g.Go(func() error {
		st.StartSnapshotter(gctx, nonces, 30*time.Second, func(err error) {
			log.Warn("nonce snapshot failed", "err", err)
		})
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.DrainTimeout+5*time.Second)
		defer drainCancel()
		coordinator.Drain(drainCtx)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = wsListener.Shutdown(shutdownCtx)
		_ = apiListener.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// parseLogLevel converts a config log level string to slog.Level,
// defaulting to Info on an invalid or empty value.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
