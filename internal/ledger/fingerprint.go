package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medichain/telemed/pkg/types"
)

// mutableFields are verification bookkeeping keys stripped before hashing.
// They change after a record is built, so they can never be part of the
// fingerprinted content.
var mutableFields = map[string]struct{}{
	"blockchain_verification": {},
	"blockchain_status":       {},
	"verified_on_ledger":      {},
	"ledger_record_id":        {},
	"prices":                  {},
	"updated_at":              {},
}

// canonicalPayload returns a copy of payload without mutable bookkeeping
// fields. The copy is shallow; nested values are shared with the input.
func canonicalPayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if _, skip := mutableFields[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}

// Fingerprint computes the SHA-256 digest of the canonical serialization of
// payload as a 64-character lowercase hex string. Serialization sorts object
// keys at every level, so semantically identical payloads hash identically
// regardless of key order.
func Fingerprint(payload map[string]interface{}) (string, error) {
	canonical, err := json.Marshal(canonicalPayload(payload))
	if err != nil {
		return "", types.NewValidationError(types.ErrCodeInvalidInput,
			"payload is not serializable", map[string]interface{}{"cause": err.Error()})
	}

	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}

// HashOwnerID one-way hashes an owner identifier for privacy-reduced
// projections. The raw identifier never reaches the ledger.
func HashOwnerID(ownerID string) string {
	digest := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(digest[:])
}

// BuildRecord canonicalizes payload into an integrity record. The record
// starts pending; when receipt proves the anchoring step already succeeded
// it starts confirmed with the transaction hash as chain reference. The
// returned record is owned by the ledger; callers hold only its id.
func BuildRecord(subjectType types.SubjectType, payload map[string]interface{}, ownerID string, receipt *types.AnchorReceipt) (*types.IntegrityRecord, error) {
	if !subjectType.Valid() {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"unknown subject type", map[string]interface{}{"subject_type": string(subjectType)})
	}
	if payload == nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "payload is required", nil)
	}

	hash, err := Fingerprint(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &types.IntegrityRecord{
		ID:          uuid.New().String(),
		UserID:      ownerID,
		SubjectType: subjectType,
		DataHash:    hash,
		Status:      types.StatusPending,
		Metadata:    map[string]interface{}{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if receipt != nil {
		record.Status = types.StatusConfirmed
		record.ChainReference = receipt.TransactionHash
		record.Metadata["block_number"] = receipt.BlockNumber
		record.Metadata["chain_id"] = receipt.ChainID
	}

	return record, nil
}
