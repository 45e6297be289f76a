package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/aigrader/internal/apikey"
	"github.com/kiranshivaraju/aigrader/internal/store"
	"github.com/kiranshivaraju/aigrader/pkg/models"
	"github.com/spf13/cobra"
)

func newKeysCommand(opts *globalOptions) *cobra.Command {
	var tenantName string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.PersistentFlags().StringVar(&tenantName, "tenant", "", "Tenant name (default: the default tenant)")

	cmd.AddCommand(newKeysCreateCommand(opts, &tenantName))
	cmd.AddCommand(newKeysListCommand(opts, &tenantName))
	cmd.AddCommand(newKeysRevokeCommand(opts, &tenantName))
	return cmd
}

func newKeysCreateCommand(opts *globalOptions, tenantName *string) *cobra.Command {
	var (
		name   string
		scopes []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print it once",
		Example: `  # Bootstrap the first admin key
  aigraderctl keys create --name bootstrap --scopes admin

  # A key for a client application
  aigraderctl keys create --name thesis-portal --scopes predict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := apikey.ValidateScopes(scopes); err != nil {
				return err
			}

			s, pool, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			tenant, err := resolveTenant(cmd.Context(), s, *tenantName)
			if err != nil {
				return err
			}

			raw, key, err := apikey.Generate(tenant.ID, name, scopes)
			if err != nil {
				return err
			}
			if err := s.CreateAPIKey(cmd.Context(), key); err != nil {
				if errors.Is(err, store.ErrDuplicateKey) {
					return fmt.Errorf("a key named %q already exists for tenant %s", key.Name, tenant.Name)
				}
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"id":         key.ID,
				"tenant":     tenant.Name,
				"name":       key.Name,
				"key":        raw,
				"key_prefix": key.KeyPrefix,
				"scopes":     key.Scopes,
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Key name, unique per tenant")
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{models.ScopePredict}, "Scopes to grant (admin, predict)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newKeysListCommand(opts *globalOptions, tenantName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, pool, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			tenant, err := resolveTenant(cmd.Context(), s, *tenantName)
			if err != nil {
				return err
			}
			keys, err := s.ListAPIKeys(cmd.Context(), tenant.ID)
			if err != nil {
				return err
			}
			if keys == nil {
				keys = []*models.APIKey{}
			}
			return printJSON(cmd.OutOrStdout(), keys)
		},
	}
}

func newKeysRevokeCommand(opts *globalOptions, tenantName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke KEY_ID",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid key id %q: %w", args[0], err)
			}

			s, pool, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			tenant, err := resolveTenant(cmd.Context(), s, *tenantName)
			if err != nil {
				return err
			}
			if err := s.RevokeAPIKey(cmd.Context(), id, tenant.ID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no active key %s for tenant %s", id, tenant.Name)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", id)
			return nil
		},
	}
}

func resolveTenant(ctx context.Context, s store.Store, name string) (*models.Tenant, error) {
	if name == "" {
		t, err := s.GetDefaultTenant(ctx)
		if err != nil {
			return nil, fmt.Errorf("default tenant: %w", err)
		}
		return t, nil
	}
	t, err := s.GetTenantByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("tenant %q: %w", name, err)
	}
	return t, nil
}
