// Package risk implements AML risk scoring for parties: nationality,
// declared-activity and structural-complexity factors, combined into a
// weighted composite with configurable per-tenant profiles and CEL
// override rules.
package risk

import (
	"math"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Factor scores are fixed points on the 0-100 scale; which inputs land
// on which point is driven by the profile's sets, not by code.
const (
	nationalityUnknown = 50.0
	nationalityHigh    = 90.0
	nationalityMedium  = 60.0
	nationalityLow     = 20.0

	industryHigh    = 85.0
	industryMedium  = 55.0
	industryNoMatch = 25.0
	industryMissing = 30.0
)

// NationalityScore maps a country code to a factor score using the
// profile's risk sets. Blank input is neutral-unknown, not low risk:
// missing data on regulated parties is itself a signal.
func NationalityScore(profile *domain.RiskProfile, country string) float64 {
	code := strings.TrimSpace(country)
	if code == "" {
		return nationalityUnknown
	}
	if len(code) > 2 {
		code = code[:2]
	}
	code = strings.ToUpper(code)
	if containsFold(profile.HighRiskCountries, code) {
		return nationalityHigh
	}
	if containsFold(profile.MediumRiskCountries, code) {
		return nationalityMedium
	}
	return nationalityLow
}

// IndustryScore matches the free-text activity description against the
// profile's keyword sets, case-insensitively, high set first.
func IndustryScore(profile *domain.RiskProfile, activities string) float64 {
	if activities == "" {
		return industryMissing
	}
	lower := strings.ToLower(activities)
	for _, kw := range profile.HighRiskKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return industryHigh
		}
	}
	for _, kw := range profile.MediumRiskKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return industryMedium
		}
	}
	return industryNoMatch
}

// Composite combines the factor scores into a weighted 0-100 score,
// normalized by the sum of the weights actually supplied so a partial
// weight map still yields a valid score. A nil or all-zero map falls
// back to the default 40/30/30 split. Rounded to one decimal.
func Composite(factors domain.FactorScores, weights map[string]float64) float64 {
	wn := weights[domain.WeightNationality]
	wi := weights[domain.WeightIndustry]
	wc := weights[domain.WeightComplexity]
	total := wn + wi + wc
	if total <= 0 {
		wn, wi, wc = 40, 30, 30
		total = 100
	}
	score := factors.Nationality*(wn/total) +
		factors.Industry*(wi/total) +
		factors.Complexity*(wc/total)
	return round1(clamp(score, 0, 100))
}

// BandFor classifies a composite score.
func BandFor(score float64) domain.RiskBand {
	switch {
	case score >= domain.RiskBandHighThreshold:
		return domain.RiskBandHigh
	case score >= domain.RiskBandMediumThreshold:
		return domain.RiskBandMedium
	}
	return domain.RiskBandLow
}

func containsFold(set []string, code string) bool {
	for _, s := range set {
		if strings.EqualFold(s, code) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
