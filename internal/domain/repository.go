// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Party operations
	SaveParty(ctx context.Context, tenantID string, party *Party) error
	GetParty(ctx context.Context, tenantID string, partyID string) (*Party, error)
	PartiesByID(ctx context.Context, tenantID string, partyIDs []string) (map[string]*Party, error)

	// Relationship edge operations
	SaveEdge(ctx context.Context, tenantID string, edge *OwnershipEdge) error

	// EdgesTouching returns edges with either endpoint in the given set.
	// This is the expansion query the graph loader iterates to a fixed point.
	EdgesTouching(ctx context.Context, tenantID string, partyIDs []string) ([]*OwnershipEdge, error)

	// EdgesWithin returns edges with both endpoints in the given set.
	EdgesWithin(ctx context.Context, tenantID string, partyIDs []string) ([]*OwnershipEdge, error)

	// EdgesFor returns all edges touching a single party. Used by the
	// complexity traversal, which expands one node at a time.
	EdgesFor(ctx context.Context, tenantID string, partyID string) ([]*OwnershipEdge, error)

	// Resolution snapshots
	SaveResolution(ctx context.Context, tenantID string, res *Resolution) error
	GetResolution(ctx context.Context, tenantID string, resolutionID string) (*Resolution, error)

	// Risk assessments
	SaveRiskAssessment(ctx context.Context, tenantID string, assessment *RiskAssessment) error
	GetRiskAssessment(ctx context.Context, tenantID string, partyID string) (*RiskAssessment, error)

	// Risk profile configuration operations
	SaveRiskProfile(ctx context.Context, tenantID string, profile *RiskProfile) error
	GetRiskProfile(ctx context.Context, tenantID string, profileID string) (*RiskProfile, error)
	ListRiskProfiles(ctx context.Context, tenantID string) ([]*RiskProfile, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
