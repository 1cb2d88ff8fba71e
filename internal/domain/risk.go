package domain

import (
	"time"
)

// RiskBand classifies a composite score.
type RiskBand string

const (
	RiskBandLow    RiskBand = "low"
	RiskBandMedium RiskBand = "medium"
	RiskBandHigh   RiskBand = "high"
)

// Band thresholds: score >= 70 is high, >= 40 is medium, else low.
const (
	RiskBandHighThreshold   = 70.0
	RiskBandMediumThreshold = 40.0
)

// FactorScores holds the three contributing sub-scores, each in [0,100].
type FactorScores struct {
	Nationality float64 `json:"nationality"`
	Industry    float64 `json:"industry"`
	Complexity  float64 `json:"complexity"`
}

// RiskAssessment is the output of a risk scoring run. The engine returns
// it as plain data; the API layer persists it.
type RiskAssessment struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	PartyID  string `json:"partyId"`

	Score   float64      `json:"score"` // 0-100, one decimal
	Band    RiskBand     `json:"band"`
	Factors FactorScores `json:"factors"`

	// OverridesApplied lists the IDs of override rules that adjusted the
	// composite score, in evaluation order.
	OverridesApplied []string `json:"overridesApplied,omitempty"`

	CalculatedAt time.Time `json:"calculatedAt"`

	Metadata RiskMetadata `json:"metadata"`
}

// RiskMetadata carries processing information.
type RiskMetadata struct {
	TraceID       string `json:"traceId"`
	ScoreMs       int64  `json:"scoreMs"`
	EngineVersion string `json:"engineVersion"`
}

// OverrideRule is a tenant-defined CEL expression evaluated against the
// party attributes and computed factor scores. A non-zero numeric result
// is added to the composite score (clamped to [0,100]).
type OverrideRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

// RiskProfile is the injected risk configuration: country sets, activity
// keyword sets, factor weights, the UBO threshold and optional override
// rules. Profiles are stored per tenant and hot-reloadable, so the
// scoring algorithms never own the business data.
type RiskProfile struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Version  string `json:"version"`

	HighRiskCountries   []string `json:"highRiskCountries"`
	MediumRiskCountries []string `json:"mediumRiskCountries"`
	HighRiskKeywords    []string `json:"highRiskKeywords"`
	MediumRiskKeywords  []string `json:"mediumRiskKeywords"`

	// Weights for nationality / industry / complexity. A partial map is
	// valid: the composite is normalized by the sum actually supplied.
	Weights map[string]float64 `json:"weights"`

	// UBOThreshold is the effective-ownership percentage at or above
	// which an individual is classified as a UBO. Tunable per
	// jurisdiction; defaults to 25.
	UBOThreshold float64 `json:"uboThreshold"`

	Overrides []OverrideRule `json:"overrides,omitempty"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Weight map keys.
const (
	WeightNationality = "nationality"
	WeightIndustry    = "industry"
	WeightComplexity  = "complexity"
)

// DefaultRiskProfile returns the built-in profile used when a tenant has
// not configured one. The country and keyword sets are illustrative
// defaults; production deployments replace them via the risk-profiles API.
func DefaultRiskProfile() *RiskProfile {
	return &RiskProfile{
		ID:      "default",
		Name:    "Default Risk Profile",
		Version: "1.0.0",
		HighRiskCountries: []string{
			"IR", "KP", "SY", "RU", "BY",
		},
		MediumRiskCountries: []string{
			"AF", "MM", "IQ", "LY", "SO", "YE", "SD", "SS", "CD", "ML", "NG", "VE", "ET", "HT",
		},
		HighRiskKeywords: []string{
			"gambling", "casino", "weapon", "arms", "precious metal", "gem", "diamond",
			"cash", "money transfer", "crypto", "bitcoin", "forex", "trust", "foundation",
		},
		MediumRiskKeywords: []string{
			"real estate", "construction", "import", "export", "trading",
		},
		Weights: map[string]float64{
			WeightNationality: 40,
			WeightIndustry:    30,
			WeightComplexity:  30,
		},
		UBOThreshold: 25.0,
		Enabled:      true,
	}
}
