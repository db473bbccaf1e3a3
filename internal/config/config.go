// Package config provides configuration structures and validation for the
// application. It handles environment-based configuration for all major
// components: the query API server, the ledger database, the optional
// ingestion event producer and the batch importer.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Each field represents
// a major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Import      ImportConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// KafkaConfig contains the optional ingestion event producer configuration.
// When Enabled is false no producer is constructed and the remaining fields
// are ignored.
type KafkaConfig struct {
	Enabled           bool
	Brokers           string
	NoteEventsTopic   string
	NumPartitions     int // Number of partitions for topic creation
	ReplicationFactor int // Replication factor for topic creation
	MaxWait           time.Duration
}

// ImportConfig contains batch importer configuration
type ImportConfig struct {
	DocumentExtension string // Extension of importable documents, e.g. ".xml"
	WorkerPoolSize    int    // Parse worker pool size
}

// validate performs validation of all configuration values, ensuring they
// meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Kafka config only when the producer is enabled
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.Kafka.NoteEventsTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_NOTE_EVENTS_TOPIC is required when KAFKA_ENABLED is true")
		}
		if c.Kafka.MaxWait <= 0 {
			validationErrors = append(validationErrors, "KAFKA_MAX_WAIT must be greater than 0")
		}
	}

	// Validate Import config
	if !strings.HasPrefix(c.Import.DocumentExtension, ".") {
		validationErrors = append(validationErrors, "IMPORT_DOCUMENT_EXTENSION must start with a dot")
	}
	if c.Import.WorkerPoolSize <= 0 {
		validationErrors = append(validationErrors, "IMPORT_WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
