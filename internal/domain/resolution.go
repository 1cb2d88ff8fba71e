package domain

import (
	"time"
)

// BeneficialOwner is a single identified UBO with the legal basis for
// the classification.
type BeneficialOwner struct {
	PartyID      string  `json:"partyId"`
	Name         string  `json:"name"`
	EffectivePct float64 `json:"effectivePct"`

	// ByOwnership is set when the effective ownership met the threshold.
	ByOwnership bool `json:"byOwnership"`

	// ByControl is set when the party holds direct, non-nominee control
	// or directorship over the root.
	ByControl bool `json:"byControl"`

	// SeniorManagerFallback marks the UBO-of-last-resort entry emitted
	// when neither ownership nor control identified anyone.
	SeniorManagerFallback bool `json:"seniorManagerFallback"`
}

// OwnershipPath is one distinct chain from an individual down to the
// root, with the compounded percentage it contributes.
type OwnershipPath struct {
	// Nodes is ordered root -> ... -> individual.
	Nodes []string `json:"nodes"`
	Pct   float64  `json:"pct"`
}

// ResolutionResult is the complete output of one UBO resolution.
// It is constructed per request and holds no state between calls;
// persistence of a snapshot is the caller's concern.
type ResolutionResult struct {
	RootID string            `json:"rootId"`
	UBOs   []BeneficialOwner `json:"ubos"`

	// EffectiveOwnership maps every individual reached to the sum of the
	// compounded percentages of all distinct paths to that individual.
	EffectiveOwnership map[string]float64 `json:"effectiveOwnership"`

	// Cycles lists every ownership cycle found in the loaded subgraph,
	// each as an ordered node list closing back to the start.
	Cycles [][]string `json:"cycles"`

	Warnings []string `json:"warnings,omitempty"`
}

// Resolution is a stored snapshot of a resolution run.
type Resolution struct {
	ID        string             `json:"id"`
	TenantID  string             `json:"tenantId"`
	RootID    string             `json:"rootId"`
	Result    ResolutionResult   `json:"result"`
	Timestamp time.Time          `json:"timestamp"`
	Metadata  ResolutionMetadata `json:"metadata"`
}

// ResolutionMetadata carries processing information for audit trails.
type ResolutionMetadata struct {
	TraceID       string `json:"traceId"`
	PartiesLoaded int    `json:"partiesLoaded"`
	EdgesLoaded   int    `json:"edgesLoaded"`
	ResolveMs     int64  `json:"resolveMs"`
	EngineVersion string `json:"engineVersion"`
}
