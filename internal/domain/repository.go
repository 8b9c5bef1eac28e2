// Package domain defines the core interfaces and types for Kite.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Complaint audit log
	LogComplaint(ctx context.Context, resp *Response, c *Case) error
	GetComplaint(ctx context.Context, complaintID string) (*Response, error)
	ListComplaints(ctx context.Context, filter ComplaintFilter) ([]*ComplaintRecord, int, error)

	// Customer reads
	HistorySnapshot(ctx context.Context, customerID string) (*HistorySnapshot, error)
	CustomerSummary(ctx context.Context, customerID string) (*CustomerSummary, error)
	TopComplainers(ctx context.Context, days int, limit int) ([]*TopComplainer, error)

	// Feedback
	SaveFeedback(ctx context.Context, fb *Feedback) error
	ListFeedback(ctx context.Context, limit int) ([]*Feedback, error)

	// Persisted policy rules (hot reload)
	SaveRule(ctx context.Context, rule *PolicyRule) error
	ListRules(ctx context.Context) ([]*PolicyRule, error)

	// Analytics
	OverviewStats(ctx context.Context, days int) (*OverviewStats, error)
	RootCauseStats(ctx context.Context, days int) ([]*RootCauseStat, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ComplaintFilter narrows and pages complaint listings.
type ComplaintFilter struct {
	CustomerID string
	Decision   string
	Severity   string
	Since      time.Time
	Limit      int
	Offset     int
}

// ComplaintRecord is a stored complaint row: the decision response plus the
// case snapshot it was made from.
type ComplaintRecord struct {
	Response *Response `json:"response"`
	Case     *Case     `json:"case"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgres_host"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgres_port"`
	PostgresUser     string `json:"postgresUser" yaml:"postgres_user"`
	PostgresPassword string `json:"postgresPassword" yaml:"postgres_password"`
	PostgresDB       string `json:"postgresDb" yaml:"postgres_db"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgres_ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"conn_max_lifetime"`
}
