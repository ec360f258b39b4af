package ledger

import (
	"context"
	"fmt"

	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/monitoring"
	"github.com/medichain/telemed/pkg/store"
	"github.com/medichain/telemed/pkg/types"
)

// mismatchReason is the reported reason when a recomputed fingerprint does
// not equal the recorded one.
const mismatchReason = "hash mismatch"

// Service owns integrity records: it builds and anchors them, re-verifies
// stored payloads against them, and applies status transitions.
type Service struct {
	records  store.RecordStore
	anchorer Anchorer
	logger   *logger.Logger
}

// NewService creates a new ledger service. anchorer may be nil, in which
// case records stay pending until confirmed through UpdateStatus.
func NewService(records store.RecordStore, anchorer Anchorer, log *logger.Logger) *Service {
	return &Service{
		records:  records,
		anchorer: anchorer,
		logger:   log,
	}
}

// BuildRecord fingerprints payload, anchors the hash and persists the
// resulting record. An anchoring failure is absorbed: the record is stored
// with status failed and the failure noted in its metadata, so callers still
// receive a usable record id.
func (s *Service) BuildRecord(ctx context.Context, subjectType types.SubjectType, payload map[string]interface{}, ownerID string, metadata map[string]interface{}) (*types.IntegrityRecord, error) {
	if ownerID == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "owner id is required", nil)
	}

	record, err := BuildRecord(subjectType, payload, ownerID, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range metadata {
		record.Metadata[k] = v
	}

	if s.anchorer != nil {
		receipt, err := s.anchorer.Anchor(ctx, record.ID, record.DataHash)
		if err != nil {
			s.logger.WithError(err).WithField("record_id", record.ID).Error("Anchoring failed")
			record.Status = types.StatusFailed
			record.Metadata["anchor_error"] = err.Error()
		} else {
			record.Status = types.StatusConfirmed
			record.ChainReference = receipt.TransactionHash
			record.Metadata["block_number"] = receipt.BlockNumber
			record.Metadata["chain_id"] = receipt.ChainID
		}
	}

	if err := s.records.InsertRecord(ctx, record); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to persist integrity record", err)
	}

	monitoring.RecordLedgerRecord(string(subjectType), string(record.Status))
	s.logger.WithFields(map[string]interface{}{
		"record_id":    record.ID,
		"subject_type": subjectType,
		"status":       record.Status,
	}).Info("Integrity record built")

	return record, nil
}

// GetRecord retrieves an integrity record by id
func (s *Service) GetRecord(ctx context.Context, recordID string) (*types.IntegrityRecord, error) {
	record, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to load integrity record", err)
	}
	if record == nil {
		return nil, types.NewNotFoundError(types.ErrCodeRecordNotFound,
			fmt.Sprintf("integrity record not found: %s", recordID))
	}
	return record, nil
}

// Verify recomputes the fingerprint of payload and compares it to the
// record's stored hash. A mismatch is a normal outcome, not an error; it
// additionally degrades a confirmed record to mismatch. A missing record is
// an error, distinct from a negative verification.
func (s *Service) Verify(ctx context.Context, subjectType types.SubjectType, payload map[string]interface{}, recordID string) (*types.VerificationOutcome, error) {
	if !subjectType.Valid() {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"unknown subject type", map[string]interface{}{"subject_type": string(subjectType)})
	}

	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	recomputed, err := Fingerprint(payload)
	if err != nil {
		return nil, err
	}

	outcome := &types.VerificationOutcome{
		RecordID:       record.ID,
		RecomputedHash: recomputed,
		ExpectedHash:   record.DataHash,
	}

	if recomputed == record.DataHash {
		outcome.Verified = true
		monitoring.RecordVerification(string(subjectType), "verified")
		return outcome, nil
	}

	outcome.MismatchReason = mismatchReason
	monitoring.RecordVerification(string(subjectType), "mismatch")

	s.logger.WithFields(map[string]interface{}{
		"record_id": record.ID,
		"expected":  record.DataHash,
		"recomputed": recomputed,
	}).Warn("Integrity verification mismatch")

	// A confirmed record degrades to mismatch; other states stay put.
	if record.Status.CanTransitionTo(types.StatusMismatch) {
		if _, err := s.UpdateStatus(ctx, record.ID, types.StatusMismatch); err != nil {
			s.logger.WithError(err).WithField("record_id", record.ID).Error("Failed to mark record mismatch")
		}
	}

	return outcome, nil
}

// UpdateStatus applies a monotone status transition to a record
func (s *Service) UpdateStatus(ctx context.Context, recordID string, next types.RecordStatus) (*types.IntegrityRecord, error) {
	return s.records.UpdateRecord(ctx, recordID, func(record *types.IntegrityRecord) error {
		if !record.Status.CanTransitionTo(next) {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("illegal status transition %s -> %s", record.Status, next), nil)
		}
		record.Status = next
		return nil
	})
}

// ListRecords returns a user's integrity records, newest first
func (s *Service) ListRecords(ctx context.Context, userID string, limit int) ([]*types.IntegrityRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	records, err := s.records.ListRecordsByUser(ctx, userID, limit)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to list integrity records", err)
	}
	return records, nil
}

// TransactionStatus reports the anchoring transaction state for a chain
// reference
func (s *Service) TransactionStatus(ctx context.Context, txHash string) (*types.TransactionStatus, error) {
	if s.anchorer == nil {
		return nil, types.NewExternalError(types.ErrCodeExternalError, "no anchoring backend configured", nil)
	}
	return s.anchorer.TransactionStatus(ctx, txHash)
}
