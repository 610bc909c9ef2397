package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	app "github.com/gestly/gestly/internal/app"
	"github.com/gestly/gestly/internal/app/runtime"
	"github.com/gestly/gestly/internal/config"
)

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apikey",
		Aliases: []string{"apikeys"},
		Short:   "Manage public API keys of a business",
	}

	var business string
	cmd.PersistentFlags().StringVar(&business, "business", "", "business id")
	_ = cmd.MarkPersistentFlagRequired("business")

	var (
		name   string
		scopes []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a new key; the plaintext is printed once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				issued, err := a.APIKeys.Create(ctx, business, name, scopes)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), issued)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	create.Flags().StringSliceVar(&scopes, "scope", nil, "scopes (read, write); defaults to both")

	list := &cobra.Command{
		Use:   "list",
		Short: "List keys of the business",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				keys, err := a.APIKeys.List(ctx, business)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), keys)
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				key, err := a.APIKeys.Revoke(ctx, business, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), key)
			})
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func withApplication(ctx context.Context, fn func(context.Context, *app.Application) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	plans, err := config.LoadPlans(cfg.PlansFile)
	if err != nil {
		return err
	}
	store, closeStore, err := runtime.OpenStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}
	a, err := app.New(store, app.Options{Plans: plans, DisableJobs: true}, log)
	if err != nil {
		return err
	}
	defer a.Stop(ctx)
	return fn(ctx, a)
}
