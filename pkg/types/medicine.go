package types

import "time"

// MedicinePrice is a location-scoped price entry
type MedicinePrice struct {
	Location string  `json:"location"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
	Pharmacy string  `json:"pharmacy,omitempty"`
}

// Medicine is a catalog entry for a marketed medicine
type Medicine struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Conditions        []string        `json:"conditions,omitempty"`
	Ingredients       []string        `json:"ingredients,omitempty"`
	ActiveIngredients []string        `json:"active_ingredients,omitempty"`
	Prices            []MedicinePrice `json:"prices,omitempty"`
	PopularityScore   int             `json:"popularity_score,omitempty"`

	// Ledger bookkeeping; excluded from fingerprinting.
	VerifiedOnLedger bool   `json:"verified_on_ledger"`
	LedgerRecordID   string `json:"ledger_record_id,omitempty"`

	SimilarityScore float64 `json:"similarity_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MedicineSearchCriteria filters a medicine catalog query
type MedicineSearchCriteria struct {
	Condition   string   `json:"condition,omitempty"`
	Name        string   `json:"name,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
	Location    string   `json:"location,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
}
