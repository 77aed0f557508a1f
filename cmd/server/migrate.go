package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/bookiez/backend/internal/config"
	"github.com/bookiez/backend/internal/store"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create MongoDB indexes and the PostgreSQL history table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), config.Load())
		},
	}
}

func migrate(ctx context.Context, cfg *config.Config) error {
	client, mongoStore, err := connectMongo(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		return err
	}
	log.Println("mongo indexes ready")

	pool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	if pool == nil {
		log.Println("POSTGRES_DSN not set, skipping history table")
		return nil
	}
	defer pool.Close()

	if err := store.NewHistoryStore(pool).Migrate(ctx); err != nil {
		return err
	}
	log.Println("postgres history table ready")
	return nil
}
