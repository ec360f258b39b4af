package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medichain/telemed/internal/ledger"
	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/store"
	"github.com/medichain/telemed/pkg/types"
)

// defaultHistoryLimit caps diagnosis history listings
const defaultHistoryLimit = 10

// Ledger is the anchoring surface the orchestrator needs from the ledger
// service
type Ledger interface {
	BuildRecord(ctx context.Context, subjectType types.SubjectType, payload map[string]interface{}, ownerID string, metadata map[string]interface{}) (*types.IntegrityRecord, error)
}

// Service orchestrates diagnosis production: inference, optional ledger
// anchoring and persistence hand-off.
type Service struct {
	analyzer  *Analyzer
	ledger    Ledger
	diagnoses store.DiagnosisStore
	logger    *logger.Logger
	now       func() time.Time
}

// NewService creates the diagnosis orchestrator. ledgerSvc may be nil when
// no anchoring backend is wired; anchoring requests then degrade.
func NewService(analyzer *Analyzer, ledgerSvc Ledger, diagnoses store.DiagnosisStore, log *logger.Logger) *Service {
	return &Service{
		analyzer:  analyzer,
		ledger:    ledgerSvc,
		diagnoses: diagnoses,
		logger:    log,
		now:       time.Now,
	}
}

// ProduceDiagnosis infers a diagnosis, optionally anchors a privacy-reduced
// projection of it on the ledger, persists the document and returns the
// result. Anchoring failure never fails the diagnosis: it is attached as a
// diagnostic field instead.
func (s *Service) ProduceDiagnosis(ctx context.Context, userID string, req *types.DiagnosisRequest) (*types.DiagnosisResult, error) {
	if userID == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "user id is required", nil)
	}
	if req == nil || len(req.Symptoms) == 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "at least one symptom is required", nil)
	}

	result := s.analyzer.Infer(ctx, req.Symptoms, req.MedicalHistory)

	doc := &types.DiagnosisDocument{
		ID:             uuid.New().String(),
		UserID:         userID,
		Symptoms:       req.Symptoms,
		MedicalHistory: req.MedicalHistory,
		ConditionName:  result.Condition,
		Confidence:     result.Confidence,
		Differential:   result.Differential,
		Source:         result.Source,
		CreatedAt:      s.now().UTC(),
		UpdatedAt:      s.now().UTC(),
	}

	if req.VerifyOnChain {
		result.BlockchainVerification = s.anchorDiagnosis(ctx, userID, doc, result)
		if result.BlockchainVerification.Error == "" {
			doc.LedgerRecordID = result.BlockchainVerification.RecordID
			doc.DataHash = result.BlockchainVerification.DataHash
		}
	}

	if err := s.diagnoses.InsertDiagnosis(ctx, doc); err != nil {
		s.logger.WithUserID(userID).WithError(err).Error("Failed to persist diagnosis")
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to persist diagnosis", err)
	}

	s.logger.Audit(userID, "produce_diagnosis", doc.ID, true, map[string]interface{}{
		"condition":  result.Condition,
		"confidence": result.Confidence,
		"source":     result.Source,
		"anchored":   req.VerifyOnChain,
	})

	return result, nil
}

// anchorDiagnosis builds an integrity record over a privacy-reduced
// projection of the diagnosis. The projection carries a one-way hash of the
// owner id, never the raw identifier.
func (s *Service) anchorDiagnosis(ctx context.Context, userID string, doc *types.DiagnosisDocument, result *types.DiagnosisResult) *types.AnchorAttachment {
	if s.ledger == nil {
		return &types.AnchorAttachment{Error: "no ledger configured"}
	}

	projection := map[string]interface{}{
		"condition":    result.Condition,
		"confidence":   result.Confidence,
		"timestamp":    doc.CreatedAt.Format(time.RFC3339),
		"user_id_hash": ledger.HashOwnerID(userID),
	}

	record, err := s.ledger.BuildRecord(ctx, types.SubjectDiagnosis, projection, userID, map[string]interface{}{
		"diagnosis_id": doc.ID,
	})
	if err != nil {
		s.logger.WithUserID(userID).WithError(err).Error("Diagnosis anchoring failed")
		return &types.AnchorAttachment{Error: err.Error()}
	}

	attachment := &types.AnchorAttachment{
		RecordID:        record.ID,
		DataHash:        record.DataHash,
		TransactionHash: record.ChainReference,
		Status:          string(record.Status),
	}
	if record.Status == types.StatusFailed {
		if reason, ok := record.Metadata["anchor_error"].(string); ok {
			attachment.Error = reason
		} else {
			attachment.Error = "anchoring failed"
		}
	}
	return attachment
}

// GetDiagnosis retrieves one of the user's diagnoses by id
func (s *Service) GetDiagnosis(ctx context.Context, diagnosisID, userID string) (*types.DiagnosisDocument, error) {
	doc, err := s.diagnoses.GetDiagnosis(ctx, diagnosisID)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to load diagnosis", err)
	}
	if doc == nil || doc.UserID != userID {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("diagnosis not found: %s", diagnosisID))
	}
	return doc, nil
}

// ListUserDiagnoses returns the user's diagnosis history, newest first
func (s *Service) ListUserDiagnoses(ctx context.Context, userID string, limit int) ([]*types.DiagnosisDocument, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}
	docs, err := s.diagnoses.ListDiagnosesByUser(ctx, userID, limit)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to list diagnoses", err)
	}
	return docs, nil
}
