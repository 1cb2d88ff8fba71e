package domain

import (
	"time"
)

// EdgeKind is the closed set of relationship types between parties.
// Only Ownership, Control, Director and Manages participate in
// ownership math; Employee and Family edges are carried for record
// keeping but excluded from the graph the resolution core traverses.
type EdgeKind string

const (
	EdgeOwnership EdgeKind = "ownership"
	EdgeControl   EdgeKind = "control"
	EdgeDirector  EdgeKind = "director"
	EdgeManages   EdgeKind = "manages"
	EdgeEmployee  EdgeKind = "employee"
	EdgeFamily    EdgeKind = "family"
)

// ParticipatesInOwnership reports whether edges of this kind are part of
// the ownership/control graph used for UBO resolution.
func (k EdgeKind) ParticipatesInOwnership() bool {
	switch k {
	case EdgeOwnership, EdgeControl, EdgeDirector, EdgeManages:
		return true
	case EdgeEmployee, EdgeFamily:
		return false
	}
	return false
}

// OwnershipEdge is a directed relationship edge owner -> owned.
// Edge records are read-only to the resolution core; percentages outside
// [0,100] are accepted as given and surfaced through validation warnings
// rather than rejected.
type OwnershipEdge struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	Kind     EdgeKind `json:"kind"`

	OwnerID string `json:"ownerId"`
	OwnedID string `json:"ownedId"`

	// Percentage is the equity share, used only for ownership edges.
	Percentage *float64 `json:"percentage,omitempty"`

	// VotingPercentage is the voting/control share, used only for control
	// edges. A control edge with no voting percentage counts as 100%.
	VotingPercentage *float64 `json:"votingPercentage,omitempty"`

	// IsNominee marks control/director edges held on behalf of an
	// undisclosed principal; such edges never classify the holder as a
	// natural-control UBO.
	IsNominee bool `json:"isNominee"`

	CreatedAt time.Time `json:"createdAt"`
}

// TraversalWeight returns the percentage weight this edge contributes to
// a backward ownership walk, or false when the edge carries none
// (ownership edges without a declared percentage, non-equity kinds).
func (e *OwnershipEdge) TraversalWeight() (float64, bool) {
	switch e.Kind {
	case EdgeOwnership:
		if e.Percentage == nil {
			return 0, false
		}
		return *e.Percentage, true
	case EdgeControl:
		if e.VotingPercentage == nil {
			return 100.0, true
		}
		return *e.VotingPercentage, true
	}
	return 0, false
}

// EdgeRequest is the API request payload for creating a relationship edge.
type EdgeRequest struct {
	ID               string   `json:"id,omitempty"`
	Kind             EdgeKind `json:"kind"`
	OwnerID          string   `json:"ownerId"`
	OwnedID          string   `json:"ownedId"`
	Percentage       *float64 `json:"percentage,omitempty"`
	VotingPercentage *float64 `json:"votingPercentage,omitempty"`
	IsNominee        bool     `json:"isNominee,omitempty"`
}

// ToEdge converts a request to an OwnershipEdge domain object.
func (r *EdgeRequest) ToEdge(tenantID string) *OwnershipEdge {
	return &OwnershipEdge{
		ID:               r.ID,
		TenantID:         tenantID,
		Kind:             r.Kind,
		OwnerID:          r.OwnerID,
		OwnedID:          r.OwnedID,
		Percentage:       r.Percentage,
		VotingPercentage: r.VotingPercentage,
		IsNominee:        r.IsNominee,
		CreatedAt:        time.Now().UTC(),
	}
}
