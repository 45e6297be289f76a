package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/aigrader/internal/cache"
	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/kiranshivaraju/aigrader/pkg/models"
	"github.com/spf13/cobra"
)

func newTasksCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect tasks",
	}
	cmd.AddCommand(newTasksStatusCommand(opts))
	cmd.AddCommand(newTasksListCommand(opts))
	return cmd
}

func newTasksStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Print the result store record of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.redisURL == "" {
				return errors.New("redis URL is required: set --redis-url or REDIS_URL")
			}
			rc, err := cache.NewRedisCache(opts.redisURL)
			if err != nil {
				return err
			}
			defer rc.Close()

			rec, found, err := rc.GetRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no record for task %s (never submitted or expired)", args[0])
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newTasksListCommand(opts *globalOptions) *cobra.Command {
	var (
		tenantName string
		kind       string
		status     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger rows, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind != "" && !models.IsValidKind(kind) {
				return fmt.Errorf("unknown kind %q: must be %s or %s", kind, models.TaskKindObjectives, models.TaskKindSentiment)
			}

			s, pool, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			tenant, err := resolveTenant(cmd.Context(), s, tenantName)
			if err != nil {
				return err
			}
			tasks, total, err := s.ListTasks(cmd.Context(), store.TaskFilter{
				TenantID: tenant.ID,
				Kind:     kind,
				Status:   strings.ToUpper(status),
				Page:     1,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			if tasks == nil {
				tasks = []*models.Task{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"total": total, "tasks": tasks})
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "Tenant name (default: the default tenant)")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (objectives, sentiment)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows")
	return cmd
}
