package server

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/repokit/testrepo/internal/config"
	"github.com/repokit/testrepo/internal/db"
	"github.com/repokit/testrepo/internal/services"
	"github.com/repokit/testrepo/pkg/records"
	"github.com/repokit/testrepo/pkg/search"
	"github.com/repokit/testrepo/pkg/search/adapters/bleve"
)

// Server contains the server configuration.
type Server struct {
	// SearchProvider is the search backend.
	SearchProvider search.Provider

	// Config is the config for the server.
	Config *config.Config

	// DB is the database for the server.
	DB *gorm.DB

	// Logger is the logger for the server.
	Logger hclog.Logger

	// Records serves the record endpoints, keyed by endpoint key.
	Records map[string]*services.RecordService
}

// New opens the database and the search index described by cfg and creates
// a record service for every endpoint in records.RESTEndpoints.
func New(cfg *config.Config, log hclog.Logger) (*Server, error) {
	database, err := db.NewDB(*cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	provider, err := bleve.NewAdapter(&bleve.Config{
		IndexPath:       cfg.Search.IndexPath,
		RefreshInterval: cfg.Search.RefreshIntervalDuration(),
		Logger:          log,
	})
	if err != nil {
		if sqlDB, dbErr := database.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("error initializing search provider: %w", err)
	}

	srv := &Server{
		SearchProvider: provider,
		Config:         cfg,
		DB:             database,
		Logger:         log,
		Records:        make(map[string]*services.RecordService, len(records.RESTEndpoints)),
	}
	for key, ep := range records.RESTEndpoints {
		svc, err := services.NewRecordService(database, provider, ep, log)
		if err != nil {
			_ = srv.Close()
			return nil, fmt.Errorf("error initializing endpoint %q: %w", key, err)
		}
		srv.Records[key] = svc
	}

	return srv, nil
}

// Close closes the search provider and the database.
func (s *Server) Close() error {
	var result *multierror.Error
	if s.SearchProvider != nil {
		if err := s.SearchProvider.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("error closing search provider: %w", err))
		}
	}
	if s.DB != nil {
		sqlDB, err := s.DB.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("error closing database: %w", err))
		}
	}
	return result.ErrorOrNil()
}
