package risk

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

// EngineVersion is stamped into assessment metadata.
const EngineVersion = "harrier-1.0"

// Processor computes a party's risk assessment from the active profile.
// The profile and the override engine are swapped atomically on reload;
// scoring takes a read lock only, so reloads never stall requests.
type Processor struct {
	mu              sync.RWMutex
	profile         *domain.RiskProfile
	overrides       *OverrideEngine
	complexityDepth int
}

// NewProcessor creates a processor with the given profile. A nil profile
// selects the built-in default.
func NewProcessor(profile *domain.RiskProfile) (*Processor, error) {
	engine, err := NewOverrideEngine()
	if err != nil {
		return nil, err
	}
	p := &Processor{overrides: engine}
	if profile == nil {
		profile = domain.DefaultRiskProfile()
	}
	if err := p.Reload(profile); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload swaps in a new profile and recompiles its override rules.
// On compile failure the previous profile stays active.
func (p *Processor) Reload(profile *domain.RiskProfile) error {
	if err := p.overrides.ReloadRules(profile.Overrides); err != nil {
		return err
	}
	p.mu.Lock()
	p.profile = profile
	p.mu.Unlock()
	return nil
}

// SetComplexityDepth bounds the complexity traversal, from
// ResolutionConfig. Non-positive values keep DefaultComplexityDepth.
func (p *Processor) SetComplexityDepth(depth int) {
	if depth <= 0 {
		return
	}
	p.mu.Lock()
	p.complexityDepth = depth
	p.mu.Unlock()
}

// Profile returns the active profile.
func (p *Processor) Profile() *domain.RiskProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

// UBOThreshold returns the active profile's UBO threshold, falling back
// to the default when unset.
func (p *Processor) UBOThreshold() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.profile != nil && p.profile.UBOThreshold > 0 {
		return p.profile.UBOThreshold
	}
	return 25.0
}

// ScoreInput carries one scoring request.
type ScoreInput struct {
	TenantID string
	TraceID  string
	Party    *domain.Party

	// Edges feeds the complexity traversal. Nil scores complexity as an
	// isolated party.
	Edges EdgeSource

	// Weights overrides the profile weights for this request only.
	Weights map[string]float64
}

// Score computes the full assessment: three factor scores, the weighted
// composite, then any override adjustments (clamped back to [0,100] and
// re-banded). Pure apart from the edge reads; persistence is the caller's.
func (p *Processor) Score(ctx context.Context, in *ScoreInput) (*domain.RiskAssessment, error) {
	start := time.Now()

	p.mu.RLock()
	profile := p.profile
	complexityDepth := p.complexityDepth
	p.mu.RUnlock()

	factors := domain.FactorScores{
		Nationality: NationalityScore(profile, in.Party.Country),
		Industry:    IndustryScore(profile, in.Party.Activities),
		Complexity:  20.0,
	}
	if in.Edges != nil {
		c, err := ComplexityScore(ctx, in.Edges, in.TenantID, in.Party.ID, complexityDepth)
		if err != nil {
			return nil, err
		}
		factors.Complexity = c
	}

	weights := in.Weights
	if weights == nil {
		weights = profile.Weights
	}
	score := Composite(factors, weights)

	adjustment, applied := p.overrides.Evaluate(OverrideInput{
		Party:     in.Party,
		Factors:   factors,
		Composite: score,
	})
	if adjustment != 0 {
		score = round1(clamp(score+adjustment, 0, 100))
	}

	return &domain.RiskAssessment{
		ID:               uuid.New().String(),
		TenantID:         in.TenantID,
		PartyID:          in.Party.ID,
		Score:            score,
		Band:             BandFor(score),
		Factors:          factors,
		OverridesApplied: applied,
		CalculatedAt:     time.Now().UTC(),
		Metadata: domain.RiskMetadata{
			TraceID:       in.TraceID,
			ScoreMs:       time.Since(start).Milliseconds(),
			EngineVersion: EngineVersion,
		},
	}, nil
}
