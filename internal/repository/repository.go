// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveParty upserts a party record with tenant isolation.
func (r *SQLRepository) SaveParty(ctx context.Context, tenantID string, party *domain.Party) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if party.ID == "" {
		return fmt.Errorf("%w: party ID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO parties (
			id, tenant_id, kind, name, country, activities,
			senior_manager_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			country = excluded.country,
			activities = excluded.activities,
			senior_manager_id = excluded.senior_manager_id,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		party.ID, tenantID, party.Kind, party.Name,
		party.Country, party.Activities, party.SeniorManagerID,
		party.CreatedAt, party.UpdatedAt,
	)
	return err
}

// GetParty retrieves a party by ID with tenant isolation.
func (r *SQLRepository) GetParty(ctx context.Context, tenantID string, partyID string) (*domain.Party, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, kind, name, country, activities,
			   senior_manager_id, created_at, updated_at
		FROM parties
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, partyID)
	party, err := scanParty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return party, err
}

// PartiesByID retrieves multiple party records in one query.
func (r *SQLRepository) PartiesByID(ctx context.Context, tenantID string, partyIDs []string) (map[string]*domain.Party, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if len(partyIDs) == 0 {
		return map[string]*domain.Party{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, kind, name, country, activities,
			   senior_manager_id, created_at, updated_at
		FROM parties
		WHERE tenant_id = ? AND id IN (%s)
	`, placeholders(len(partyIDs)))

	args := make([]any, 0, len(partyIDs)+1)
	args = append(args, tenantID)
	for _, id := range partyIDs {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parties := make(map[string]*domain.Party)
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties[party.ID] = party
	}

	return parties, rows.Err()
}

// SaveEdge stores a relationship edge with tenant isolation.
func (r *SQLRepository) SaveEdge(ctx context.Context, tenantID string, edge *domain.OwnershipEdge) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if edge.OwnerID == "" || edge.OwnedID == "" {
		return fmt.Errorf("%w: owner and owned party IDs are required", ErrInvalidInput)
	}

	nominee := 0
	if edge.IsNominee {
		nominee = 1
	}

	query := `
		INSERT INTO ownership_edges (
			id, tenant_id, kind, owner_id, owned_id,
			percentage, voting_percentage, is_nominee, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			kind = excluded.kind,
			owner_id = excluded.owner_id,
			owned_id = excluded.owned_id,
			percentage = excluded.percentage,
			voting_percentage = excluded.voting_percentage,
			is_nominee = excluded.is_nominee
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		edge.ID, tenantID, edge.Kind, edge.OwnerID, edge.OwnedID,
		nullFloat(edge.Percentage), nullFloat(edge.VotingPercentage),
		nominee, edge.CreatedAt,
	)
	return err
}

// EdgesTouching returns edges where either endpoint is in the given set.
func (r *SQLRepository) EdgesTouching(ctx context.Context, tenantID string, partyIDs []string) ([]*domain.OwnershipEdge, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if len(partyIDs) == 0 {
		return nil, nil
	}

	ph := placeholders(len(partyIDs))
	query := fmt.Sprintf(`
		SELECT id, tenant_id, kind, owner_id, owned_id,
			   percentage, voting_percentage, is_nominee, created_at
		FROM ownership_edges
		WHERE tenant_id = ? AND (owner_id IN (%s) OR owned_id IN (%s))
		ORDER BY id
	`, ph, ph)

	args := make([]any, 0, 2*len(partyIDs)+1)
	args = append(args, tenantID)
	for _, id := range partyIDs {
		args = append(args, id)
	}
	for _, id := range partyIDs {
		args = append(args, id)
	}

	return r.queryEdges(ctx, query, args...)
}

// EdgesWithin returns edges with both endpoints in the given set.
func (r *SQLRepository) EdgesWithin(ctx context.Context, tenantID string, partyIDs []string) ([]*domain.OwnershipEdge, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if len(partyIDs) == 0 {
		return nil, nil
	}

	ph := placeholders(len(partyIDs))
	query := fmt.Sprintf(`
		SELECT id, tenant_id, kind, owner_id, owned_id,
			   percentage, voting_percentage, is_nominee, created_at
		FROM ownership_edges
		WHERE tenant_id = ? AND owner_id IN (%s) AND owned_id IN (%s)
		ORDER BY id
	`, ph, ph)

	args := make([]any, 0, 2*len(partyIDs)+1)
	args = append(args, tenantID)
	for _, id := range partyIDs {
		args = append(args, id)
	}
	for _, id := range partyIDs {
		args = append(args, id)
	}

	return r.queryEdges(ctx, query, args...)
}

// EdgesFor returns all edges touching a single party.
func (r *SQLRepository) EdgesFor(ctx context.Context, tenantID string, partyID string) ([]*domain.OwnershipEdge, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, kind, owner_id, owned_id,
			   percentage, voting_percentage, is_nominee, created_at
		FROM ownership_edges
		WHERE tenant_id = ? AND (owner_id = ? OR owned_id = ?)
		ORDER BY id
	`

	return r.queryEdges(ctx, query, tenantID, partyID, partyID)
}

func (r *SQLRepository) queryEdges(ctx context.Context, query string, args ...any) ([]*domain.OwnershipEdge, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []*domain.OwnershipEdge
	for rows.Next() {
		var e domain.OwnershipEdge
		var percentage, voting sql.NullFloat64
		var nominee int

		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.Kind, &e.OwnerID, &e.OwnedID,
			&percentage, &voting, &nominee, &e.CreatedAt,
		); err != nil {
			return nil, err
		}

		if percentage.Valid {
			v := percentage.Float64
			e.Percentage = &v
		}
		if voting.Valid {
			v := voting.Float64
			e.VotingPercentage = &v
		}
		e.IsNominee = nominee == 1
		edges = append(edges, &e)
	}

	return edges, rows.Err()
}

// SaveResolution stores a resolution snapshot with tenant isolation.
func (r *SQLRepository) SaveResolution(ctx context.Context, tenantID string, res *domain.Resolution) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	result, _ := json.Marshal(res.Result)
	metadata, _ := json.Marshal(res.Metadata)

	query := `
		INSERT INTO resolutions (
			id, tenant_id, root_id, result, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		res.ID, tenantID, res.RootID, string(result), res.Timestamp, string(metadata),
	)
	return err
}

// GetResolution retrieves a stored resolution snapshot by ID.
func (r *SQLRepository) GetResolution(ctx context.Context, tenantID string, resolutionID string) (*domain.Resolution, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, root_id, result, timestamp, metadata
		FROM resolutions
		WHERE tenant_id = ? AND id = ?
	`

	var res domain.Resolution
	var result, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, resolutionID).Scan(
		&res.ID, &res.TenantID, &res.RootID, &result, &res.Timestamp, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(result), &res.Result); err != nil {
		return nil, fmt.Errorf("failed to parse resolution result: %w", err)
	}
	json.Unmarshal([]byte(metadata), &res.Metadata)

	return &res, nil
}

// SaveRiskAssessment upserts the latest assessment for a party.
func (r *SQLRepository) SaveRiskAssessment(ctx context.Context, tenantID string, assessment *domain.RiskAssessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	factors, _ := json.Marshal(assessment.Factors)
	overrides, _ := json.Marshal(assessment.OverridesApplied)
	metadata, _ := json.Marshal(assessment.Metadata)

	query := `
		INSERT INTO risk_assessments (
			id, tenant_id, party_id, score, band, factors,
			overrides_applied, calculated_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, party_id) DO UPDATE SET
			id = excluded.id,
			score = excluded.score,
			band = excluded.band,
			factors = excluded.factors,
			overrides_applied = excluded.overrides_applied,
			calculated_at = excluded.calculated_at,
			metadata = excluded.metadata
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		assessment.ID, tenantID, assessment.PartyID,
		assessment.Score, assessment.Band, string(factors),
		string(overrides), assessment.CalculatedAt, string(metadata),
	)
	return err
}

// GetRiskAssessment retrieves the latest stored assessment for a party.
func (r *SQLRepository) GetRiskAssessment(ctx context.Context, tenantID string, partyID string) (*domain.RiskAssessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, party_id, score, band, factors,
			   overrides_applied, calculated_at, metadata
		FROM risk_assessments
		WHERE tenant_id = ? AND party_id = ?
	`

	var a domain.RiskAssessment
	var factors, metadata string
	var overrides sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, partyID).Scan(
		&a.ID, &a.TenantID, &a.PartyID, &a.Score, &a.Band,
		&factors, &overrides, &a.CalculatedAt, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(factors), &a.Factors)
	if overrides.Valid && overrides.String != "" {
		json.Unmarshal([]byte(overrides.String), &a.OverridesApplied)
	}
	json.Unmarshal([]byte(metadata), &a.Metadata)

	return &a, nil
}

// SaveRiskProfile upserts a risk profile with tenant isolation.
func (r *SQLRepository) SaveRiskProfile(ctx context.Context, tenantID string, profile *domain.RiskProfile) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	highCountries, _ := json.Marshal(profile.HighRiskCountries)
	mediumCountries, _ := json.Marshal(profile.MediumRiskCountries)
	highKeywords, _ := json.Marshal(profile.HighRiskKeywords)
	mediumKeywords, _ := json.Marshal(profile.MediumRiskKeywords)
	weights, _ := json.Marshal(profile.Weights)
	overrides, _ := json.Marshal(profile.Overrides)

	enabled := 0
	if profile.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO risk_profiles (
			id, tenant_id, name, version,
			high_risk_countries, medium_risk_countries,
			high_risk_keywords, medium_risk_keywords,
			weights, ubo_threshold, overrides, enabled,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			high_risk_countries = excluded.high_risk_countries,
			medium_risk_countries = excluded.medium_risk_countries,
			high_risk_keywords = excluded.high_risk_keywords,
			medium_risk_keywords = excluded.medium_risk_keywords,
			weights = excluded.weights,
			ubo_threshold = excluded.ubo_threshold,
			overrides = excluded.overrides,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		profile.ID, tenantID, profile.Name, profile.Version,
		string(highCountries), string(mediumCountries),
		string(highKeywords), string(mediumKeywords),
		string(weights), profile.UBOThreshold, string(overrides), enabled,
		now, now,
	)
	return err
}

// GetRiskProfile retrieves an active risk profile with tenant isolation.
func (r *SQLRepository) GetRiskProfile(ctx context.Context, tenantID string, profileID string) (*domain.RiskProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, version,
			   high_risk_countries, medium_risk_countries,
			   high_risk_keywords, medium_risk_keywords,
			   weights, ubo_threshold, overrides, enabled,
			   created_at, updated_at
		FROM risk_profiles
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, profileID)
	profile, err := scanRiskProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return profile, err
}

// ListRiskProfiles retrieves all active risk profiles for a tenant.
func (r *SQLRepository) ListRiskProfiles(ctx context.Context, tenantID string) ([]*domain.RiskProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, version,
			   high_risk_countries, medium_risk_countries,
			   high_risk_keywords, medium_risk_keywords,
			   weights, ubo_threshold, overrides, enabled,
			   created_at, updated_at
		FROM risk_profiles
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.RiskProfile
	for rows.Next() {
		profile, err := scanRiskProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}

	return profiles, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanParty(s scanner) (*domain.Party, error) {
	var p domain.Party
	var country, activities, seniorManager sql.NullString

	if err := s.Scan(
		&p.ID, &p.TenantID, &p.Kind, &p.Name,
		&country, &activities, &seniorManager,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Country = country.String
	p.Activities = activities.String
	p.SeniorManagerID = seniorManager.String
	return &p, nil
}

func scanRiskProfile(s scanner) (*domain.RiskProfile, error) {
	var p domain.RiskProfile
	var highCountries, mediumCountries, highKeywords, mediumKeywords, weights string
	var overrides sql.NullString
	var enabled int

	if err := s.Scan(
		&p.ID, &p.TenantID, &p.Name, &p.Version,
		&highCountries, &mediumCountries, &highKeywords, &mediumKeywords,
		&weights, &p.UBOThreshold, &overrides, &enabled,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(highCountries), &p.HighRiskCountries)
	json.Unmarshal([]byte(mediumCountries), &p.MediumRiskCountries)
	json.Unmarshal([]byte(highKeywords), &p.HighRiskKeywords)
	json.Unmarshal([]byte(mediumKeywords), &p.MediumRiskKeywords)
	json.Unmarshal([]byte(weights), &p.Weights)
	if overrides.Valid && overrides.String != "" {
		json.Unmarshal([]byte(overrides.String), &p.Overrides)
	}
	p.Enabled = enabled == 1
	return &p, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// placeholders returns n comma-separated ? placeholders for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
