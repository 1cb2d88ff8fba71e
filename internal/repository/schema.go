package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaParties = `
CREATE TABLE IF NOT EXISTS parties (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    country TEXT,
    activities TEXT,
    senior_manager_id TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_parties_tenant ON parties(tenant_id);
CREATE INDEX IF NOT EXISTS idx_parties_kind ON parties(tenant_id, kind);
`

const schemaOwnershipEdges = `
CREATE TABLE IF NOT EXISTS ownership_edges (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    owned_id TEXT NOT NULL,
    percentage REAL,
    voting_percentage REAL,
    is_nominee INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_tenant ON ownership_edges(tenant_id);
CREATE INDEX IF NOT EXISTS idx_edges_owner ON ownership_edges(tenant_id, owner_id);
CREATE INDEX IF NOT EXISTS idx_edges_owned ON ownership_edges(tenant_id, owned_id);
`

const schemaResolutions = `
CREATE TABLE IF NOT EXISTS resolutions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    root_id TEXT NOT NULL,
    result TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_tenant ON resolutions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_root ON resolutions(tenant_id, root_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_timestamp ON resolutions(tenant_id, timestamp);
`

const schemaRiskAssessments = `
CREATE TABLE IF NOT EXISTS risk_assessments (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    party_id TEXT NOT NULL,
    score REAL NOT NULL,
    band TEXT NOT NULL,
    factors TEXT NOT NULL,
    overrides_applied TEXT,
    calculated_at TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL,
    PRIMARY KEY (tenant_id, party_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_assessments_band ON risk_assessments(tenant_id, band);
`

// schemaRiskProfiles holds the injected risk configuration: country and
// keyword sets, factor weights, UBO threshold and CEL override rules.
const schemaRiskProfiles = `
CREATE TABLE IF NOT EXISTS risk_profiles (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    version TEXT NOT NULL,
    high_risk_countries TEXT NOT NULL,
    medium_risk_countries TEXT NOT NULL,
    high_risk_keywords TEXT NOT NULL,
    medium_risk_keywords TEXT NOT NULL,
    weights TEXT NOT NULL,
    ubo_threshold REAL NOT NULL DEFAULT 25.0,
    overrides TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_profiles_tenant ON risk_profiles(tenant_id);
CREATE INDEX IF NOT EXISTS idx_risk_profiles_enabled ON risk_profiles(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaParties,
		schemaOwnershipEdges,
		schemaResolutions,
		schemaRiskAssessments,
		schemaRiskProfiles,
	}
}
