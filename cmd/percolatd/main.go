// Command percolatd runs the keeper crank loop and the off-chain archival
// mirror around a percolat slab. It does not serve transaction dispatch —
// host integration, transaction serialization, and the oracle wire
// transport remain out of scope (see SPEC_FULL.md §1) — it only cranks the
// in-memory slab on a timer and archives the result for queries.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"percolat/internal/config"
	"percolat/internal/crank"
	"percolat/internal/indexer"
	"percolat/internal/observability"
	"percolat/internal/oracle"
	"percolat/internal/slab"
)

func main() {
	logger := observability.NewLogger("percolatd")
	logger.Info().Msg("percolatd starting")

	cfg := config.DefaultConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("postgres ping")
	}
	logger.Info().Msg("postgres connected")

	migrator := indexer.NewMigrator(db, cfg.MigrationsDir)
	if err := migrator.Up(ctx); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}
	logger.Info().Msg("migrations applied")

	store := indexer.NewSnapshotStore(db)
	hasher := indexer.NewStateHasher()

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats connect failed, notifications disabled")
		nc = nil
	} else {
		defer nc.Close()
		logger.Info().Msg("nats connected")
	}
	notifier := indexer.NewNotifier(nc)

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	v := slab.New()
	logger.Info().Msg("slab initialized, awaiting InitMarket via ops dispatch")

	queryServer := indexer.NewQueryServer(store, metrics)

	errChan := make(chan error, 4)

	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/livez", health.LivenessHandler)
		mux.HandleFunc("/readyz", health.ReadinessHandler)
		srv := &http.Server{Addr: cfg.HealthHTTPAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			srv.Shutdown(shutCtx)
		}()
		logger.Info().Str("addr", cfg.HealthHTTPAddr).Msg("health server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsHTTPAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			srv.Shutdown(shutCtx)
		}()
		logger.Info().Str("addr", cfg.MetricsHTTPAddr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	go func() {
		srv := &http.Server{Addr: cfg.QueryHTTPAddr, Handler: queryServer.Handler()}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			srv.Shutdown(shutCtx)
		}()
		logger.Info().Str("addr", cfg.QueryHTTPAddr).Msg("query server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	go runCrankLoop(ctx, v, cfg, logger, store, hasher, notifier, metrics)

	health.SetReady(true)
	logger.Info().Msg("percolatd ready")

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("goroutine failed, shutting down")
	}

	cancel()
	time.Sleep(200 * time.Millisecond)
	logger.Info().Msg("percolatd shutdown complete")
}

// runCrankLoop cranks the slab on a fixed interval and archives the result.
// It is a standalone keeper in the spec.md §7 Open Question 3 sense: any
// signer can call keeper_crank, so a single always-on timer is a valid
// deployment choice, not a protocol requirement.
func runCrankLoop(
	ctx context.Context,
	v *slab.View,
	cfg config.Config,
	logger zerolog.Logger,
	store *indexer.SnapshotStore,
	hasher *indexer.StateHasher,
	notifier *indexer.Notifier,
	metrics *observability.Metrics,
) {
	ticker := time.NewTicker(cfg.CrankInterval)
	defer ticker.Stop()

	var slot uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slot++
			nowSec := time.Now().Unix()

			reading := oracle.Reading{}
			c := crank.New(logger, cfg.AllowPanic)
			report, err := c.Run(v, reading, nowSec, slot)
			if err != nil {
				logger.Warn().Err(err).Msg("crank run failed")
				continue
			}
			metrics.CrankRuns.Inc()

			snap, err := indexer.BuildSnapshot(v, slot, hasher.PrevHash(), hasher)
			if err != nil {
				logger.Warn().Err(err).Msg("build snapshot failed")
				continue
			}
			if err := store.Save(ctx, snap); err != nil {
				logger.Warn().Err(err).Msg("save snapshot failed")
			}
			metrics.IndexerSnapshotsWritten.Inc()
			metrics.IndexerLastSlot.Set(float64(slot))

			notifier.PublishCrank(indexer.CrankEvent{
				Slot:                  slot,
				Processed:             report.Processed,
				LiquidatableAccounts:  report.LiquidatableAccounts,
				EnteredRiskReduction:  report.EnteredRiskReduction,
				ExitedRiskReduction:   report.ExitedRiskReduction,
				TriggeredAutoRecovery: report.TriggeredAutoRecovery,
			})
		}
	}
}
