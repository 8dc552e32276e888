package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

const (
	// DefaultServerName is used when the config file does not set server_name.
	DefaultServerName = "127.0.0.1:5000"

	// DefaultRefreshInterval is how often the search index makes pending writes
	// visible when nobody asks for an explicit refresh.
	DefaultRefreshInterval = time.Second

	// DefaultIndexTopic is the Kafka topic used by the bulk indexing queue.
	DefaultIndexTopic = "testrepo.record-index"

	// DefaultConsumerGroup is the Kafka consumer group of bulk index workers.
	DefaultConsumerGroup = "testrepo-indexer-workers"

	// DefaultMaxRetries is how often a failed index request is retried when
	// the indexer block does not set max_retries.
	DefaultMaxRetries = 5
)

// Config contains the testrepo configuration.
type Config struct {
	// ServerName is the host (and optional port) the application is reachable
	// at. The records command posts to https://<server_name>/api/records/.
	ServerName string `hcl:"server_name,optional"`

	// LogLevel is one of trace, debug, info, warn or error.
	LogLevel string `hcl:"log_level,optional"`

	// Server configures the HTTP listener.
	Server *Server `hcl:"server,block"`

	// Database configures the record store.
	Database *Database `hcl:"database,block"`

	// Search configures the embedded search index.
	Search *Search `hcl:"search,block"`

	// Indexer configures the bulk indexing queue.
	Indexer *Indexer `hcl:"indexer,block"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string `hcl:"addr,optional"`
	TLSCertFile     string `hcl:"tls_cert_file,optional"`
	TLSKeyFile      string `hcl:"tls_key_file,optional"`
	ShutdownTimeout string `hcl:"shutdown_timeout,optional"`
}

// Database configures the record store. Driver is "sqlite" or "postgres".
type Database struct {
	Driver string `hcl:"driver,optional"`

	// SQLite.
	Path string `hcl:"path,optional"`

	// PostgreSQL.
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"dbname,optional"`
	SSLMode  string `hcl:"sslmode,optional"`
}

// Search configures the embedded search index.
type Search struct {
	IndexPath       string `hcl:"index_path,optional"`
	RefreshInterval string `hcl:"refresh_interval,optional"`
}

// Indexer configures the Kafka/Redpanda bulk indexing queue.
type Indexer struct {
	Brokers       []string `hcl:"brokers,optional"`
	Topic         string   `hcl:"topic,optional"`
	ConsumerGroup string   `hcl:"consumer_group,optional"`
	MaxRetries    *int     `hcl:"max_retries,optional"`
}

// Retries returns max_retries, or DefaultMaxRetries when it is not set.
// Zero disables retries.
func (i *Indexer) Retries() int {
	if i == nil || i.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *i.MaxRetries
}

// NewConfig parses the HCL config file at path, applies defaults and validates
// the result.
func NewConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	cfg := &Config{}
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, fmt.Errorf("error decoding config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration usable for local development: SQLite
// and the search index under dir.
func DefaultConfig(dir string) *Config {
	cfg := &Config{
		Database: &Database{
			Driver: "sqlite",
			Path:   filepath.Join(dir, "testrepo.db"),
		},
		Search: &Search{
			IndexPath: filepath.Join(dir, "search"),
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ServerName == "" {
		c.ServerName = DefaultServerName
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Server == nil {
		c.Server = &Server{}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = c.ServerName
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.Database == nil {
		c.Database = &Database{}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "testrepo.db"
	}
	if c.Database.Driver == "postgres" {
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	}

	if c.Search == nil {
		c.Search = &Search{}
	}
	if c.Search.IndexPath == "" {
		c.Search.IndexPath = "search-index"
	}
	if c.Search.RefreshInterval == "" {
		c.Search.RefreshInterval = DefaultRefreshInterval.String()
	}

	if c.Indexer == nil {
		c.Indexer = &Indexer{}
	}
	if c.Indexer.Topic == "" {
		c.Indexer.Topic = DefaultIndexTopic
	}
	if c.Indexer.ConsumerGroup == "" {
		c.Indexer.ConsumerGroup = DefaultConsumerGroup
	}
	if c.Indexer.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.Indexer.MaxRetries = &retries
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServerName, validation.Required),
		validation.Field(&c.LogLevel,
			validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.Server, validation.Required),
		validation.Field(&c.Database, validation.Required),
		validation.Field(&c.Search, validation.Required),
		validation.Field(&c.Indexer),
	)
}

// Validate validates the server block.
func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.TLSCertFile,
			validation.When(s.TLSKeyFile != "", validation.Required)),
		validation.Field(&s.TLSKeyFile,
			validation.When(s.TLSCertFile != "", validation.Required)),
		validation.Field(&s.ShutdownTimeout, validation.By(isDuration)),
	)
}

// Validate validates the database block.
func (d Database) Validate() error {
	postgres := d.Driver == "postgres"
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required,
			validation.In("sqlite", "postgres")),
		validation.Field(&d.Path,
			validation.When(d.Driver == "sqlite", validation.Required)),
		validation.Field(&d.Host, validation.When(postgres, validation.Required)),
		validation.Field(&d.User, validation.When(postgres, validation.Required)),
		validation.Field(&d.DBName, validation.When(postgres, validation.Required)),
	)
}

// Validate validates the search block.
func (s Search) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.IndexPath, validation.Required),
		validation.Field(&s.RefreshInterval, validation.By(isDuration)),
	)
}

// Validate validates the indexer block.
func (i Indexer) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.MaxRetries, validation.Min(0)),
	)
}

// RefreshIntervalDuration returns the parsed search refresh interval.
func (s Search) RefreshIntervalDuration() time.Duration {
	d, err := time.ParseDuration(s.RefreshInterval)
	if err != nil || d <= 0 {
		return DefaultRefreshInterval
	}
	return d
}

// ShutdownTimeoutDuration returns the parsed graceful shutdown timeout.
func (s Server) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// TLSEnabled returns true if the server should serve HTTPS.
func (s Server) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

func isDuration(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("must be a duration such as \"1s\"")
	}
	return nil
}
