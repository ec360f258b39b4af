package types

import "time"

// DiagnosisSource identifies which inference path produced a result
type DiagnosisSource string

const (
	SourceRuleBased  DiagnosisSource = "rule_based"
	SourceClassifier DiagnosisSource = "classifier"
)

// DifferentialEntry is one alternative condition in a ranked differential list
type DifferentialEntry struct {
	Condition   string  `json:"condition"`
	Probability float64 `json:"probability"` // 0-100 scale
}

// AnchorAttachment carries the outcome of anchoring a diagnosis on the
// ledger. RecordID and DataHash identify the anchored projection; Error is
// set when anchoring degraded instead of blocking the diagnosis.
type AnchorAttachment struct {
	RecordID        string `json:"record_id,omitempty"`
	DataHash        string `json:"data_hash,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Status          string `json:"status,omitempty"`
	Error           string `json:"error,omitempty"`
}

// DiagnosisResult is the outcome of one inference request
type DiagnosisResult struct {
	Condition    string              `json:"diagnosis"`
	Confidence   float64             `json:"confidence"` // 0-100 scale
	Differential []DifferentialEntry `json:"differential_diagnoses"`
	Note         string              `json:"note,omitempty"`
	Source       DiagnosisSource     `json:"source"`

	BlockchainVerification *AnchorAttachment `json:"blockchain_verification,omitempty"`
}

// DiagnosisRequest is the external analyze surface
type DiagnosisRequest struct {
	Symptoms       []string `json:"symptoms"`
	MedicalHistory string   `json:"medical_history,omitempty"`
	VerifyOnChain  bool     `json:"verify_on_chain,omitempty"`
}

// DiagnosisDocument is a persisted diagnosis owned by a user
type DiagnosisDocument struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	Symptoms       []string            `json:"symptoms"`
	MedicalHistory string              `json:"medical_history,omitempty"`
	ConditionName  string              `json:"condition_name"`
	Confidence     float64             `json:"confidence"`
	Differential   []DifferentialEntry `json:"differential_diagnoses,omitempty"`
	Source         DiagnosisSource     `json:"source"`
	LedgerRecordID string              `json:"ledger_record_id,omitempty"`
	DataHash       string              `json:"data_hash,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
