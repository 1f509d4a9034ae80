package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		svc := database.NewMigrationService(database.MigrationConfig{
			FolderPath:   cfg.DatabaseMigrationFolderPath,
			Version:      cfg.DatabaseMigrationVersion,
			Force:        cfg.DatabaseMigrationForce,
			AutoRollback: cfg.DatabaseMigrationAutoRollback,
		}, dbConfig(cfg), logger)

		if err := svc.Migrate(); err != nil {
			return err
		}

		logger.Info("Migrations complete")
		return nil
	},
}

func dbConfig(cfg *config.Config) database.Config {
	return database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}
