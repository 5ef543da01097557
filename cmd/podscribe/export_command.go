package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/pkg/config"
	"podscribe/pkg/db"
	"podscribe/pkg/replication"
	"podscribe/pkg/store"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Copy stored episodes to the configured MongoDB, Postgres or Supabase catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.configFor(config.PurposeExport)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg, "export")
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Paths.StoreDir)
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			targets := replication.Config{Logger: logger}

			if cfg.Export.MongoURI != "" {
				mongo := db.NewClient(cfg.Export.MongoURI, cfg.Export.MongoDatabase, cfg.Export.MongoCollection)
				if err := mongo.Connect(runCtx); err != nil {
					return fmt.Errorf("connect to mongo: %w", err)
				}
				defer mongo.Close(runCtx)
				targets.Mongo = mongo
			}

			if cfg.Export.PostgresDSN != "" {
				pg := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.Export.PostgresDSN})
				if err := pg.Connect(runCtx); err != nil {
					return err
				}
				defer pg.Close()
				targets.Postgres = pg
			}

			if cfg.Export.SupabaseURL != "" {
				sb := db.NewSupabaseClient(db.SupabaseConfig{
					SupabaseURL: cfg.Export.SupabaseURL,
					SupabaseKey: cfg.Export.SupabaseKey,
					Password:    cfg.Export.SupabasePassword,
				})
				if err := sb.Connect(runCtx); err != nil {
					return err
				}
				defer sb.Close()
				// Prefer the direct connection; it shares the Postgres schema and upsert path.
				if sb.HasDirectDB() && targets.Postgres == nil {
					targets.Postgres = sb
				} else {
					targets.Supabase = sb
				}
			}

			exporter, err := replication.NewExporter(targets)
			if err != nil {
				return err
			}
			stats, err := exporter.Export(runCtx, st)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d episodes (%d skipped): mongo %d, postgres %d new / %d updated, supabase %d\n",
				stats.Episodes, stats.Skipped, stats.MongoSaved, stats.PostgresInserted, stats.PostgresUpdated, stats.SupabaseUpserted)
			return nil
		},
	}
}
