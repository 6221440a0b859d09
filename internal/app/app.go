// Package app assembles the services shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/gestapp/internal/analytics"
	"github.com/dvloznov/gestapp/internal/auth"
	"github.com/dvloznov/gestapp/internal/backup"
	"github.com/dvloznov/gestapp/internal/config"
	"github.com/dvloznov/gestapp/internal/infra/postgres"
	"github.com/dvloznov/gestapp/internal/jobs"
	"github.com/dvloznov/gestapp/internal/jobs/tasks"
	"github.com/dvloznov/gestapp/internal/liquidity"
	"github.com/dvloznov/gestapp/internal/nlparse"
	"github.com/dvloznov/gestapp/internal/notionsync"
	"github.com/dvloznov/gestapp/internal/transactions"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// App holds the wired services. Optional integrations are nil when their
// configuration is missing.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Pool   *pgxpool.Pool

	Users        *postgres.UserRepository
	Transactions *transactions.Service
	Liquidity    *liquidity.Service
	Auth         *auth.Service

	Parser    nlparse.Parser
	Backup    *backup.Service
	Notion    *notionsync.Syncer
	Analytics *analytics.Exporter
	Jobs      *jobs.Router

	closers []func() error
}

// New connects to PostgreSQL and builds every service cfg enables.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	pool, err := postgres.Connect(ctx, cfg.Database.URL, postgres.PoolOptions{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, Pool: pool, Jobs: jobs.NewRouter()}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	a.Users = postgres.NewUserRepository(pool)
	a.Transactions = transactions.NewService(postgres.NewTransactionRepository(pool))
	a.Liquidity = liquidity.NewService(postgres.NewLiquidityRepository(pool)).WithLocation(loc)

	if cfg.Auth.JWTSecret != "" {
		tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		mailer := auth.NewLogMailer(cfg.Server.FrontendURL, log)
		a.Auth = auth.NewService(a.Users, tokens, mailer)
	}

	if err := a.openIntegrations(ctx); err != nil {
		a.Close()
		return nil, err
	}

	tasks.Register(a.Jobs, tasks.Deps{
		Ledger:    a.Transactions,
		Notion:    nilIfNoSyncer(a.Notion),
		Backup:    nilIfNoBackup(a.Backup),
		Analytics: nilIfNoExporter(a.Analytics),
	})
	return a, nil
}

func (a *App) openIntegrations(ctx context.Context) error {
	cfg := a.Config

	if cfg.Gemini.APIKey != "" {
		gen, err := nlparse.NewGeminiGenerator(ctx, nlparse.GeminiConfig{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model})
		if err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
		a.Parser = nlparse.NewGeminiParser(gen)
	} else {
		a.Log.Warn().Msg("GEMINI_API_KEY not set, natural-language parsing disabled")
	}

	if cfg.Storage.Bucket != "" {
		gcs, err := backup.NewGCSStorage(ctx)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		a.closers = append(a.closers, gcs.Close)
		a.Backup = backup.NewService(gcs, a.Transactions, cfg.Storage.Bucket)
	}

	if cfg.Notion.Token != "" && cfg.Notion.DatabaseID != "" {
		a.Notion = notionsync.NewSyncer(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.DatabaseID)
	}

	if cfg.Analytics.ProjectID != "" {
		exp, err := analytics.NewExporter(ctx, cfg.Analytics.ProjectID, cfg.Analytics.Dataset)
		if err != nil {
			return fmt.Errorf("analytics: %w", err)
		}
		a.closers = append(a.closers, exp.Close)
		if err := exp.EnsureTable(ctx); err != nil {
			return fmt.Errorf("analytics: %w", err)
		}
		a.Analytics = exp
	}
	return nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Typed nil pointers must not reach tasks.Deps as non-nil interfaces.

func nilIfNoSyncer(s *notionsync.Syncer) tasks.NotionSyncer {
	if s == nil {
		return nil
	}
	return s
}

func nilIfNoBackup(b *backup.Service) tasks.BackupWriter {
	if b == nil {
		return nil
	}
	return b
}

func nilIfNoExporter(e *analytics.Exporter) tasks.AnalyticsExporter {
	if e == nil {
		return nil
	}
	return e
}
