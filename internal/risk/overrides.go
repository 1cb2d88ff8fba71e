package risk

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/harrier/internal/domain"
)

// OverrideEngine evaluates tenant-defined CEL override rules against a
// scored party. Each rule returns a numeric adjustment (or a boolean,
// which counts as 0/no adjustment and exists for dry-run rules); the
// adjustments of all enabled rules are summed onto the composite score.
// Rules are hot-reloadable; evaluation takes a read lock only.
type OverrideEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledOverride
}

type compiledOverride struct {
	rule    domain.OverrideRule
	program cel.Program
}

// NewOverrideEngine creates the engine with the party/score variable set.
func NewOverrideEngine() (*OverrideEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("party_id", cel.StringType),
		cel.Variable("party_kind", cel.StringType),
		cel.Variable("country", cel.StringType),
		cel.Variable("activities", cel.StringType),
		cel.Variable("nationality", cel.DoubleType),
		cel.Variable("industry", cel.DoubleType),
		cel.Variable("complexity", cel.DoubleType),
		cel.Variable("composite", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &OverrideEngine{
		env:      env,
		compiled: make(map[string]*compiledOverride),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *OverrideEngine) ValidateRule(rule domain.OverrideRule) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, err := e.compile(rule)
	return err
}

// ReloadRules replaces the loaded rule set atomically. Disabled rules
// are skipped. A compile failure leaves the previous set in place.
func (e *OverrideEngine) ReloadRules(rules []domain.OverrideRule) error {
	next := make(map[string]*compiledOverride)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		c, err := e.compile(rule)
		if err != nil {
			return err
		}
		next[rule.ID] = c
	}

	e.mu.Lock()
	e.compiled = next
	e.mu.Unlock()
	return nil
}

// OverrideInput is the activation data for one evaluation.
type OverrideInput struct {
	Party   *domain.Party
	Factors domain.FactorScores
	// Composite is the pre-override score.
	Composite float64
}

// Evaluate runs every loaded rule in rule-ID order and returns the
// total adjustment plus the IDs of rules that produced a non-zero one.
// A rule that fails at evaluation time contributes nothing; bad data in
// one tenant rule must not block scoring.
func (e *OverrideEngine) Evaluate(in OverrideInput) (float64, []string) {
	e.mu.RLock()
	rules := make([]*compiledOverride, 0, len(e.compiled))
	for _, c := range e.compiled {
		rules = append(rules, c)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return 0, nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].rule.ID < rules[j].rule.ID })

	activation := map[string]any{
		"party_id":    in.Party.ID,
		"party_kind":  string(in.Party.Kind),
		"country":     in.Party.Country,
		"activities":  in.Party.Activities,
		"nationality": in.Factors.Nationality,
		"industry":    in.Factors.Industry,
		"complexity":  in.Factors.Complexity,
		"composite":   in.Composite,
	}

	var total float64
	var applied []string
	for _, c := range rules {
		out, _, err := c.program.Eval(activation)
		if err != nil {
			continue
		}
		adj := toAdjustment(out)
		if adj != 0 {
			total += adj
			applied = append(applied, c.rule.ID)
		}
	}
	return total, applied
}

// RulesCount returns the number of loaded rules.
func (e *OverrideEngine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Close clears the loaded rules.
func (e *OverrideEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*compiledOverride)
	return nil
}

func (e *OverrideEngine) compile(rule domain.OverrideRule) (*compiledOverride, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile override %s: %w", rule.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("override %s: expression must return bool, int, or double, got %s", rule.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for override %s: %w", rule.ID, err)
	}
	return &compiledOverride{rule: rule, program: program}, nil
}

func toAdjustment(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0
	}
}
