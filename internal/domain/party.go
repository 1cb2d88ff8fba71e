package domain

import (
	"time"
)

// PartyKind distinguishes natural persons from corporate entities.
// Individuals and companies share the same identifier space.
type PartyKind string

const (
	PartyCompany    PartyKind = "company"
	PartyIndividual PartyKind = "individual"
)

// Party represents a corporate entity or natural person in the
// ownership graph. Party records are read-only to the resolution core.
type Party struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenantId"`
	Kind     PartyKind `json:"kind"`
	Name     string    `json:"name"`

	// Country is the ISO 3166-1 alpha-2 country of registration
	// (companies) or nationality (individuals). May be blank.
	Country string `json:"country,omitempty"`

	// Activities is the free-text declared business activity description,
	// matched against risk keyword sets during scoring.
	Activities string `json:"activities,omitempty"`

	// SeniorManagerID references the designated senior manager used for
	// the UBO fallback rule when no owner or controller can be identified.
	SeniorManagerID string `json:"seniorManagerId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsIndividual reports whether the party is a natural person.
func (p *Party) IsIndividual() bool {
	return p.Kind == PartyIndividual
}

// PartyRequest is the API request payload for creating a party.
type PartyRequest struct {
	ID              string    `json:"id,omitempty"`
	Kind            PartyKind `json:"kind"`
	Name            string    `json:"name"`
	Country         string    `json:"country,omitempty"`
	Activities      string    `json:"activities,omitempty"`
	SeniorManagerID string    `json:"seniorManagerId,omitempty"`
}

// ToParty converts a request to a Party domain object.
func (r *PartyRequest) ToParty(tenantID string) *Party {
	now := time.Now().UTC()
	return &Party{
		ID:              r.ID,
		TenantID:        tenantID,
		Kind:            r.Kind,
		Name:            r.Name,
		Country:         r.Country,
		Activities:      r.Activities,
		SeniorManagerID: r.SeniorManagerID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
