// Command trustraild runs one party's off-chain compliance service: an
// in-process ledger backing, the wallet engine, the background task
// drain, and the HTTP command exchange endpoint.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trustrail/trustrail/pkg/api"
	"github.com/trustrail/trustrail/pkg/config"
	"github.com/trustrail/trustrail/pkg/ledger"
	"github.com/trustrail/trustrail/pkg/observability"
	"github.com/trustrail/trustrail/pkg/offchain"
	"github.com/trustrail/trustrail/pkg/policy"
	"github.com/trustrail/trustrail/pkg/store"
	"github.com/trustrail/trustrail/pkg/wallet"
)

const (
	defaultCurrency = "XUS"
	seedBalance     = 1_000_000_000_000
	drainInterval   = 100 * time.Millisecond
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	profilePath := flag.String("profile", "", "path to an optional YAML profile file")
	flag.Parse()

	cfg := config.Load()
	var profile *config.Profile
	if *profilePath != "" {
		p, err := config.LoadProfile(*profilePath, cfg)
		if err != nil {
			return err
		}
		profile = p
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, observability.Config{
		ServiceName:    "trustraild",
		ServiceVersion: "dev",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTLPEndpoint != "",
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			logger.Warn("observability shutdown", "error", err)
		}
	}()

	compliancePub, complianceKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate compliance key: %w", err)
	}

	// A single-process ledger backing. Parent holds custody funds, the
	// child account is where user subaddresses are minted.
	localNet := ledger.NewLocalNet(cfg.HRP)
	parent, err := localNet.CreateAccount(compliancePub, cfg.BaseURL, defaultCurrency, seedBalance)
	if err != nil {
		return fmt.Errorf("create parent account: %w", err)
	}
	child, err := localNet.CreateAccount(compliancePub, cfg.BaseURL, defaultCurrency, seedBalance)
	if err != nil {
		return fmt.Errorf("create child account: %w", err)
	}

	var journal *store.Journal
	if cfg.JournalPath != "" {
		journal, err = store.OpenJournal(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open command journal: %w", err)
		}
		defer func() { _ = journal.Close() }()
	}

	opts := wallet.Options{
		Name:          cfg.WalletName,
		HRP:           cfg.HRP,
		ComplianceKey: complianceKey,
		ParentAccount: parent,
		Ledger:        localNet,
		Journal:       journal,
		KYCRule:       cfg.KYCRule,
		Logger:        logger,
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		defer func() { _ = redisClient.Close() }()
		opts.Store = func(onAccept store.OnAccept) store.CommandStore {
			return store.NewRedisStore(redisClient, 0, onAccept)
		}
	}

	w, err := wallet.New(opts)
	if err != nil {
		return err
	}
	w.AddChildAccount(child)
	w.SetTransport(offchain.NewClient(child.Address, cfg.HRP, complianceKey, localNet))
	applyProfile(w, profile, logger)

	srv := api.NewServer(api.Options{
		Addr:          ":" + cfg.Port,
		Handler:       w,
		Logger:        logger,
		Observability: obs,
		RateLimitRPS:  cfg.RateLimitRPS,
		RateBurst:     cfg.RateBurst,
	})

	go drainLoop(ctx, w, obs, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// drainLoop polls the deferred task queue until the context ends.
func drainLoop(ctx context.Context, w *wallet.Wallet, obs *observability.Provider, logger *slog.Logger) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			result, err := w.RunOnceBackgroundJob(ctx)
			if err != nil {
				logger.Error("background task failed", "error", err)
				obs.RecordTask(ctx, "", err)
				break
			}
			if result == nil {
				break
			}
			logger.Info("background task done", "action", result.Action, "result", result.Result)
			obs.RecordTask(ctx, string(result.Action), nil)
		}
	}
}

// applyProfile installs demo users and fixture verdicts.
func applyProfile(w *wallet.Wallet, profile *config.Profile, logger *slog.Logger) {
	if profile == nil {
		return
	}
	for _, name := range profile.Users {
		w.AddUser(name)
	}
	for givenName, verdict := range profile.KYCVerdicts {
		switch v := policy.Verdict(verdict); v {
		case policy.VerdictPass, policy.VerdictReject, policy.VerdictSoftMatch:
			w.SetEvaluateKYCDataResult(givenName, v)
		default:
			logger.Warn("ignoring unknown profile verdict", "given_name", givenName, "verdict", verdict)
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
