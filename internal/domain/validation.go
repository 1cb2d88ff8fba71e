package domain

// DeadEnd is a corporate shareholder whose own ownership chain cannot be
// resolved to any natural person.
type DeadEnd struct {
	PartyID string `json:"partyId"`
	Name    string `json:"name"`
}

// ValidationResult combines the structure validator's findings for one
// entity: ownership completeness, cycles, and dead-end corporate
// shareholders, plus flat warning strings a caller can surface directly.
type ValidationResult struct {
	RootID string `json:"rootId"`

	// OwnershipSumValid is true when direct ownership edges into the root
	// sum to 100% within a 0.01 tolerance.
	OwnershipSumValid bool    `json:"ownershipSumValid"`
	TotalPercentage   float64 `json:"totalPercentage"`

	DeadEnds []DeadEnd  `json:"deadEnds"`
	Cycles   [][]string `json:"cycles"`

	Warnings []string `json:"warnings,omitempty"`
}
