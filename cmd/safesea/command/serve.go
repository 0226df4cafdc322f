package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/safesea/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/safesea/internal/adapter/kafka"
	"github.com/couchcryptid/safesea/internal/adapter/ledger"
	"github.com/couchcryptid/safesea/internal/adapter/sessionstore"
	"github.com/couchcryptid/safesea/internal/coral"
	"github.com/couchcryptid/safesea/internal/dispatch"
	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/flow"
	"github.com/couchcryptid/safesea/internal/locate"
	"github.com/couchcryptid/safesea/internal/observability"
)

const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(metrics)
	if err != nil {
		return err
	}
	defer provider.Close()
	logger.Info("location provider ready",
		"provider", provider.Name(),
		"cache_size", cfg.LocatorCacheSize,
		"timeout", cfg.LocatorTimeout,
	)

	store, closeStore, err := newSessionStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sinks, closeSinks, err := newSinks(ctx)
	if err != nil {
		return err
	}
	defer closeSinks()

	dispatcher := dispatch.New(sinks, logger, metrics, cfg.BatchSize, cfg.BatchFlushInterval, 0)
	var recorder flow.Recorder
	dispatchDone := make(chan struct{})
	if dispatcher.Enabled() {
		recorder = dispatcher
		go func() {
			defer close(dispatchDone)
			if err := dispatcher.Run(ctx); err != nil {
				logger.Error("dispatcher error", "error", err)
			}
		}()
	} else {
		close(dispatchDone)
		logger.Info("no check-in sinks configured")
	}

	corals := coral.NewCache(cfg.CoralRowLimit, logger, metrics)
	svc := flow.New(flow.Config{
		CoralArchive: cfg.CoralArchive,
		MarkerCount:  cfg.MarkerCount,
		Cluster:      cfg.CoralCluster,
	}, store, corals, provider, recorder, logger, metrics)

	if records, err := svc.Corals(ctx); err != nil {
		logger.Warn("coral archive not loaded", "archive", cfg.CoralArchive, "error", err)
	} else {
		logger.Info("coral archive loaded", "archive", cfg.CoralArchive, "records", len(records))
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, httpadapter.Options{
		SessionTTL: cfg.SessionTTL,
		CSRFKey:    cfg.CSRFKey,
		CSRFSecure: cfg.CSRFSecure,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		// Sinks close after this returns; drain is bounded by its own deadline.
		logger.Warn("dispatcher still draining after shutdown timeout")
		<-dispatchDone
	}

	logger.Info("shutdown complete")
	return nil
}

func newProvider(metrics *observability.Metrics) (locate.Provider, error) {
	p, err := locate.NewProvider(locate.ProviderConfig{
		Type:         locate.ProviderType(cfg.LocatorProvider),
		Timeout:      cfg.LocatorTimeout,
		CacheSize:    cfg.LocatorCacheSize,
		IPInfoURL:    cfg.IPInfoURL,
		IPInfoToken:  cfg.IPInfoToken,
		GeoIPDBPath:  cfg.GeoIPDBPath,
		GoogleAPIKey: cfg.GoogleMapsAPIKey,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create location provider: %w", err)
	}
	return p, nil
}

func newSessionStore(ctx context.Context) (domain.SessionStore, func(), error) {
	switch cfg.SessionStore {
	case "redis":
		client := sessionstore.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		store := sessionstore.NewRedis(client, cfg.SessionTTL)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("redis session store", "addr", cfg.RedisAddr)
		return store, func() {
			if err := client.Close(); err != nil {
				logger.Error("redis close error", "error", err)
			}
		}, nil
	default:
		store := sessionstore.NewMemory(cfg.SessionTTL, clockwork.NewRealClock())
		go store.Run(ctx, sweepInterval)
		logger.Info("memory session store", "ttl", cfg.SessionTTL)
		return store, func() {}, nil
	}
}

func newSinks(ctx context.Context) ([]dispatch.Sink, func(), error) {
	var (
		sinks   []dispatch.Sink
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}

	if cfg.LedgerDriver != "none" {
		l, err := ledger.Open(ctx, cfg.LedgerDriver, cfg.LedgerDSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open ledger: %w", err)
		}
		sinks = append(sinks, l)
		closers = append(closers, l.Close)
		logger.Info("check-in ledger enabled", "driver", cfg.LedgerDriver)
	}

	if cfg.KafkaEnabled() {
		w := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, w)
		closers = append(closers, w.Close)
		logger.Info("check-in kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaCheckinTopic)
	}

	return sinks, closeAll, nil
}
