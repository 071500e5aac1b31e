// ledgerd serves the recordchain HTTP API: it hashes uploaded medical
// records and appends each digest to a tamper-evident hash chain.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jmerrifield20/recordchain/internal/audit"
	"github.com/jmerrifield20/recordchain/internal/chain"
	"github.com/jmerrifield20/recordchain/internal/config"
	"github.com/jmerrifield20/recordchain/internal/digest"
	"github.com/jmerrifield20/recordchain/internal/identity"
	"github.com/jmerrifield20/recordchain/internal/ledger"
	"github.com/jmerrifield20/recordchain/internal/records/handler"
	"github.com/jmerrifield20/recordchain/internal/webhooks"
)

func main() {
	cfgFile := flag.String("config", "", "path to ledgerd.yaml (default: configs/ or working directory)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("ledgerd exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Ledger ───────────────────────────────────────────────────────────────
	alg, err := digest.Lookup(cfg.Ledger.Digest)
	if err != nil {
		return fmt.Errorf("ledger.digest: %w", err)
	}
	mode, err := ledger.ParseVerifyMode(cfg.Ledger.VerifyOnLoad)
	if err != nil {
		return fmt.Errorf("ledger.verify_on_load: %w", err)
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	l := ledger.New(st, logger, ledger.WithAlgorithm(alg), ledger.WithVerifyMode(mode))
	if err := l.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize ledger: %w", err)
	}
	handler.SetLedgerBlocks(l.Len(ctx))
	logger.Info("ledger ready",
		zap.String("store", cfg.Ledger.Store),
		zap.String("digest", alg.Name()),
		zap.Int("blocks", l.Len(ctx)),
		zap.String("root", l.Root(ctx)),
	)

	// ── Upload tokens ────────────────────────────────────────────────────────
	var tokens *identity.TokenIssuer
	if cfg.AuthEnabled() {
		tokens, err = identity.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("token issuer: %w", err)
		}
		logger.Info("upload authentication enabled")
	} else {
		logger.Warn("upload authentication disabled (set auth.jwt_secret to enable)")
	}

	// ── Integrity auditor ────────────────────────────────────────────────────
	var notifier *webhooks.Notifier
	if len(cfg.Alerts.WebhookURLs) > 0 {
		notifier = webhooks.NewNotifier(cfg.Alerts.WebhookURLs, cfg.Alerts.WebhookSecret, logger)
		notifier.SetMetricsRecorder(handler.RecordWebhookDelivery)
		defer notifier.Wait()
		logger.Info("integrity alerts enabled", zap.Int("webhooks", len(cfg.Alerts.WebhookURLs)))
	}

	if cfg.Ledger.AuditInterval > 0 {
		auditor := audit.New(l, audit.Config{Interval: cfg.Ledger.AuditInterval}, logger)
		auditor.SetMetricsRecord(handler.RecordIntegrityCheck)
		if notifier != nil {
			auditor.SetAlert(func(ctx context.Context, err error) {
				payload := map[string]string{"error": err.Error(), "root": l.Root(ctx)}
				var ie *chain.IntegrityError
				if errors.As(err, &ie) {
					payload["index"] = strconv.Itoa(ie.Index)
				}
				notifier.Dispatch(ctx, webhooks.EventIntegrityFailed, payload)
			})
		}
		// Deferred after notifier.Wait, so it runs first: no alert can be
		// dispatched once the notifier is draining.
		defer goBackground(ctx, auditor.Start)()
		logger.Info("integrity auditor started", zap.Duration("interval", cfg.Ledger.AuditInterval))
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	router := newRouter(ctx, cfg, l, tokens, logger)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledgerd HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP listen: %w", err)
	}
	logger.Info("shutting down ledgerd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if err := l.Flush(shutdownCtx); err != nil {
		logger.Error("final ledger flush failed", zap.Error(err))
	}

	logger.Info("ledgerd stopped")
	return nil
}

// goBackground runs fn in a goroutine under a child of ctx. The returned
// func cancels it and blocks until fn has returned.
func goBackground(ctx context.Context, fn func(context.Context)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
