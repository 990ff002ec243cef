package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/cerviscan/internal/infra/db/mongodb"
	mysqlp "github.com/bryanwahyu/cerviscan/internal/infra/db/mysql"
	"github.com/bryanwahyu/cerviscan/internal/infra/db/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables (mysql, postgres) or indexes (mongo) for the configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		var migrateErr error
		switch cfg.Database.Driver {
		case "mongo":
			db, err := mongodb.Connect(ctx, cfg.Database.MongoURI, cfg.Database.Name)
			if err != nil {
				return err
			}
			defer func() { _ = db.Client().Disconnect(context.Background()) }()
			migrateErr = mongodb.EnsureIndexes(ctx, db)
		case "mysql":
			db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
			if err != nil {
				return err
			}
			defer db.Close()
			migrateErr = mysqlp.Migrate(ctx, db)
		case "postgres":
			db, err := postgres.Connect(ctx, cfg.PostgresDSN())
			if err != nil {
				return err
			}
			defer db.Close()
			migrateErr = postgres.Migrate(ctx, db)
		default:
			return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
		}
		if migrateErr != nil {
			return fmt.Errorf("migrate %s: %w", cfg.Database.Driver, migrateErr)
		}
		log.Info("migration complete", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
