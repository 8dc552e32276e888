package db

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/repokit/testrepo/internal/config"
	"github.com/repokit/testrepo/pkg/database"
	"github.com/repokit/testrepo/pkg/models"
	"gorm.io/gorm"
)

// NewDB returns a new migrated record store.
func NewDB(cfg config.Database, log hclog.Logger) (*gorm.DB, error) {
	db, err := database.Open(database.Config{
		Driver:   cfg.Driver,
		Path:     cfg.Path,
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
	}, log)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(models.ModelsToAutoMigrate()...); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return db, nil
}
