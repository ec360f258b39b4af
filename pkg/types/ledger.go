package types

import "time"

// SubjectType identifies the kind of payload an integrity record attests to
type SubjectType string

const (
	SubjectDiagnosis     SubjectType = "diagnosis"
	SubjectMedicine      SubjectType = "medicine"
	SubjectMedicalRecord SubjectType = "medical_record"
	SubjectTransaction   SubjectType = "transaction"
)

// Valid reports whether s is a known subject type
func (s SubjectType) Valid() bool {
	switch s {
	case SubjectDiagnosis, SubjectMedicine, SubjectMedicalRecord, SubjectTransaction:
		return true
	}
	return false
}

// RecordStatus is the lifecycle state of an integrity record
type RecordStatus string

const (
	StatusPending   RecordStatus = "pending"
	StatusConfirmed RecordStatus = "confirmed"
	StatusFailed    RecordStatus = "failed"
	StatusMismatch  RecordStatus = "mismatch"
)

// CanTransitionTo reports whether a status change is allowed. Transitions are
// monotone: pending may confirm or fail, confirmed may only degrade to mismatch,
// failed and mismatch are terminal.
func (s RecordStatus) CanTransitionTo(next RecordStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusFailed
	case StatusConfirmed:
		return next == StatusMismatch
	}
	return false
}

// IntegrityRecord binds a subject payload to its fingerprint and status.
// DataHash is fixed at creation time; only Status, ChainReference and Metadata
// may change afterwards, and only through the ledger service.
type IntegrityRecord struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	SubjectType    SubjectType            `json:"subject_type"`
	DataHash       string                 `json:"data_hash"`
	ChainReference string                 `json:"chain_reference,omitempty"`
	Status         RecordStatus           `json:"status"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// VerificationOutcome is the result of re-fingerprinting a stored payload.
// A failed verification is a normal outcome, not an error.
type VerificationOutcome struct {
	Verified       bool   `json:"verified"`
	RecordID       string `json:"record_id"`
	RecomputedHash string `json:"recomputed_hash"`
	ExpectedHash   string `json:"expected_hash"`
	MismatchReason string `json:"mismatch_reason,omitempty"`
}

// AnchorReceipt is returned by an anchoring backend after submitting a hash
type AnchorReceipt struct {
	TransactionHash string    `json:"transaction_hash"`
	BlockNumber     uint64    `json:"block_number"`
	ChainID         int       `json:"chain_id"`
	Timestamp       time.Time `json:"timestamp"`
}

// TransactionStatus describes an anchoring transaction's state
type TransactionStatus struct {
	TransactionHash string    `json:"transaction_hash"`
	Status          string    `json:"status"`
	BlockNumber     uint64    `json:"block_number"`
	Confirmations   int       `json:"confirmations"`
	Timestamp       time.Time `json:"timestamp"`
}
