package database

import (
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationConfig controls how migrations are applied at startup.
type MigrationConfig struct {
	FolderPath   string
	Version      int // 0 means migrate to latest
	Force        int // non-zero forces the schema version before migrating
	AutoRollback bool
}

// MigrationService applies golang-migrate migrations against Postgres.
type MigrationService struct {
	cfg    MigrationConfig
	dsn    string
	logger ectologger.Logger
}

// NewMigrationService builds a migration service for the given database.
func NewMigrationService(cfg MigrationConfig, dbCfg Config, logger ectologger.Logger) *MigrationService {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbCfg.UserName, dbCfg.Password, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.SSLMode)
	return &MigrationService{
		cfg:    cfg,
		dsn:    dsn,
		logger: logger,
	}
}

// Migrate applies migrations up to the configured version.
func (s *MigrationService) Migrate() error {
	m, err := migrate.New("file://"+s.cfg.FolderPath, s.dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if s.cfg.Force != 0 {
		if err := m.Force(s.cfg.Force); err != nil {
			return fmt.Errorf("failed to force migration version %d: %w", s.cfg.Force, err)
		}
	}

	if s.cfg.Version > 0 {
		err = m.Migrate(uint(s.cfg.Version))
	} else {
		err = m.Up()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		if s.cfg.AutoRollback {
			version, _, verr := m.Version()
			if verr == nil && version > 0 {
				if derr := m.Force(int(version)); derr == nil {
					if derr := m.Steps(-1); derr != nil {
						s.logger.WithError(derr).Error("Failed to roll back after migration error")
					}
				}
			}
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.logger.Info("Database migrations applied")
	return nil
}
