package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/gestapp/internal/app"
	"github.com/dvloznov/gestapp/internal/config"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the flags shared by every subcommand.
type cli struct {
	configPath string
	userID     int64
	email      string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "gestapp",
		Short: "GestApp ledger maintenance",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
			cmd.SetContext(logger.WithContext(cmd.Context(), c.log))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (or set "+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().Int64Var(&c.userID, "user", 0, "id of the ledger owner")
	rootCmd.PersistentFlags().StringVar(&c.email, "email", "", "email of the ledger owner (alternative to --user)")

	rootCmd.AddCommand(
		newExportCommand(c),
		newImportCommand(c),
		newParseCommand(c),
		newPurgeCommand(c),
		newSyncNotionCommand(c),
		newBackupCommand(c),
		newAnalyticsCommand(c),
	)

	return rootCmd
}

// open wires the application against the configured database.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return app.New(ctx, c.cfg, c.log)
}

// owner resolves --user or --email to a user id.
func (c *cli) owner(ctx context.Context, a *app.App) (int64, error) {
	switch {
	case c.userID > 0 && c.email != "":
		return 0, errors.New("use either --user or --email, not both")
	case c.userID > 0:
		if _, err := a.Users.FindByID(ctx, c.userID); err != nil {
			return 0, fmt.Errorf("user %d: %w", c.userID, err)
		}
		return c.userID, nil
	case c.email != "":
		u, err := a.Users.FindByEmail(ctx, c.email)
		if err != nil {
			return 0, fmt.Errorf("user %s: %w", c.email, err)
		}
		return u.ID, nil
	default:
		return 0, errors.New("--user or --email is required")
	}
}

// withOwner opens the app, resolves the owner and runs fn.
func (c *cli) withOwner(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, userID int64) error) error {
	ctx := cmd.Context()
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	userID, err := c.owner(ctx, a)
	if err != nil {
		return err
	}
	ctx = logger.WithUser(ctx, userID)
	return fn(ctx, a, userID)
}
