package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/aigrader/internal/config"
	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/spf13/cobra"
)

const cliExecutable = "aigraderctl"

type globalOptions struct {
	databaseURL   string
	redisURL      string
	migrationsDir string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Administer an aigrader deployment",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil {
				var pathErr *os.PathError
				if !errors.As(err, &pathErr) {
					return fmt.Errorf("load .env file: %w", err)
				}
			}
			if opts.databaseURL == "" {
				opts.databaseURL = os.Getenv("DATABASE_URL")
			}
			if opts.redisURL == "" {
				opts.redisURL = os.Getenv("REDIS_URL")
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "Postgres URL (default: $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.redisURL, "redis-url", "", "Redis URL (default: $REDIS_URL)")
	cmd.PersistentFlags().StringVar(&opts.migrationsDir, "migrations", "migrations", "Migrations directory")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newKeysCommand(opts))
	cmd.AddCommand(newTasksCommand(opts))

	return cmd
}

func (o *globalOptions) requireDatabase() error {
	if o.databaseURL == "" {
		return errors.New("database URL is required: set --database-url or DATABASE_URL")
	}
	return nil
}

// openStore connects to Postgres; the caller closes the returned pool.
func (o *globalOptions) openStore(ctx context.Context) (*store.PostgresStore, *pgxpool.Pool, error) {
	if err := o.requireDatabase(); err != nil {
		return nil, nil, err
	}
	pool, err := store.Connect(ctx, config.DatabaseConfig{
		URL:             o.databaseURL,
		MaxOpenConns:    2,
		MaxIdleConns:    0,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return store.NewPostgresStore(pool), pool, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
