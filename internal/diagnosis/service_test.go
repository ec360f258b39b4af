package diagnosis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medichain/telemed/internal/ledger"
	"github.com/medichain/telemed/pkg/store"
	"github.com/medichain/telemed/pkg/types"
)

// stubLedger captures anchoring calls and answers with a canned record
type stubLedger struct {
	record   *types.IntegrityRecord
	err      error
	payload  map[string]interface{}
	metadata map[string]interface{}
	ownerID  string
	subject  types.SubjectType
}

func (s *stubLedger) BuildRecord(_ context.Context, subjectType types.SubjectType, payload map[string]interface{}, ownerID string, metadata map[string]interface{}) (*types.IntegrityRecord, error) {
	s.subject = subjectType
	s.payload = payload
	s.ownerID = ownerID
	s.metadata = metadata
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func newDiagnosisService(ledgerSvc Ledger) (*Service, *store.Memory) {
	mem := store.NewMemory()
	rules := DefaultRuleSet()
	analyzer := NewAnalyzer(NewEngine(rules, nil), nil, rules, testLogger())
	return NewService(analyzer, ledgerSvc, mem, testLogger()), mem
}

func TestProduceDiagnosisValidation(t *testing.T) {
	svc, _ := newDiagnosisService(nil)
	ctx := context.Background()

	_, err := svc.ProduceDiagnosis(ctx, "", &types.DiagnosisRequest{Symptoms: []string{"fever"}})
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidInput))

	_, err = svc.ProduceDiagnosis(ctx, "user-1", nil)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidInput))

	_, err = svc.ProduceDiagnosis(ctx, "user-1", &types.DiagnosisRequest{Symptoms: []string{}})
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidInput))
}

func TestProduceDiagnosisPersistsDocument(t *testing.T) {
	svc, mem := newDiagnosisService(nil)
	ctx := context.Background()

	result, err := svc.ProduceDiagnosis(ctx, "user-1", &types.DiagnosisRequest{
		Symptoms: []string{"frequent urination", "burning urination"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Urinary Tract Infection", result.Condition)
	assert.Nil(t, result.BlockchainVerification)

	docs, err := mem.ListDiagnosesByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Urinary Tract Infection", docs[0].ConditionName)
	assert.Equal(t, result.Confidence, docs[0].Confidence)
	assert.Equal(t, types.SourceRuleBased, docs[0].Source)
	assert.Empty(t, docs[0].LedgerRecordID)
}

func TestProduceDiagnosisAnchorsProjection(t *testing.T) {
	stub := &stubLedger{record: &types.IntegrityRecord{
		ID:             "rec-1",
		DataHash:       "abc123",
		ChainReference: "0xfeed",
		Status:         types.StatusConfirmed,
	}}
	svc, mem := newDiagnosisService(stub)
	ctx := context.Background()

	result, err := svc.ProduceDiagnosis(ctx, "user-1", &types.DiagnosisRequest{
		Symptoms:      []string{"fever", "cough"},
		VerifyOnChain: true,
	})

	require.NoError(t, err)
	require.NotNil(t, result.BlockchainVerification)
	assert.Equal(t, "rec-1", result.BlockchainVerification.RecordID)
	assert.Equal(t, "abc123", result.BlockchainVerification.DataHash)
	assert.Equal(t, "0xfeed", result.BlockchainVerification.TransactionHash)
	assert.Equal(t, string(types.StatusConfirmed), result.BlockchainVerification.Status)
	assert.Empty(t, result.BlockchainVerification.Error)

	// The anchored projection is privacy reduced: hashed owner id, no
	// symptoms, no raw identifier.
	assert.Equal(t, types.SubjectDiagnosis, stub.subject)
	assert.Equal(t, "user-1", stub.ownerID)
	assert.Equal(t, ledger.HashOwnerID("user-1"), stub.payload["user_id_hash"])
	assert.Equal(t, result.Condition, stub.payload["condition"])
	assert.Equal(t, result.Confidence, stub.payload["confidence"])
	assert.Contains(t, stub.payload, "timestamp")
	assert.NotContains(t, stub.payload, "symptoms")
	assert.NotContains(t, stub.payload, "user_id")

	docs, err := mem.ListDiagnosesByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "rec-1", docs[0].LedgerRecordID)
	assert.Equal(t, "abc123", docs[0].DataHash)
	assert.Equal(t, docs[0].ID, stub.metadata["diagnosis_id"])
}

func TestProduceDiagnosisSurvivesLedgerError(t *testing.T) {
	stub := &stubLedger{err: types.NewInternalError(types.ErrCodeInternalError, "store down", nil)}
	svc, mem := newDiagnosisService(stub)
	ctx := context.Background()

	result, err := svc.ProduceDiagnosis(ctx, "user-1", &types.DiagnosisRequest{
		Symptoms:      []string{"fever"},
		VerifyOnChain: true,
	})

	require.NoError(t, err)
	require.NotNil(t, result.BlockchainVerification)
	assert.NotEmpty(t, result.BlockchainVerification.Error)
	assert.Empty(t, result.BlockchainVerification.RecordID)

	docs, err := mem.ListDiagnosesByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].LedgerRecordID)
}

func TestProduceDiagnosisReportsFailedAnchoring(t *testing.T) {
	stub := &stubLedger{record: &types.IntegrityRecord{
		ID:       "rec-2",
		DataHash: "def456",
		Status:   types.StatusFailed,
		Metadata: map[string]interface{}{"anchor_error": "rpc endpoint unreachable"},
	}}
	svc, _ := newDiagnosisService(stub)

	result, err := svc.ProduceDiagnosis(context.Background(), "user-1", &types.DiagnosisRequest{
		Symptoms:      []string{"fever"},
		VerifyOnChain: true,
	})

	require.NoError(t, err)
	require.NotNil(t, result.BlockchainVerification)
	assert.Equal(t, "rec-2", result.BlockchainVerification.RecordID)
	assert.Equal(t, string(types.StatusFailed), result.BlockchainVerification.Status)
	assert.Equal(t, "rpc endpoint unreachable", result.BlockchainVerification.Error)
}

func TestProduceDiagnosisWithoutLedger(t *testing.T) {
	svc, _ := newDiagnosisService(nil)

	result, err := svc.ProduceDiagnosis(context.Background(), "user-1", &types.DiagnosisRequest{
		Symptoms:      []string{"fever"},
		VerifyOnChain: true,
	})

	require.NoError(t, err)
	require.NotNil(t, result.BlockchainVerification)
	assert.Equal(t, "no ledger configured", result.BlockchainVerification.Error)
}

func TestGetDiagnosisOwnership(t *testing.T) {
	svc, _ := newDiagnosisService(nil)
	ctx := context.Background()

	_, err := svc.ProduceDiagnosis(ctx, "user-1", &types.DiagnosisRequest{Symptoms: []string{"fever"}})
	require.NoError(t, err)

	docs, err := svc.ListUserDiagnoses(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc, err := svc.GetDiagnosis(ctx, docs[0].ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, docs[0].ID, doc.ID)

	// Another user's diagnosis looks identical to a missing one.
	_, err = svc.GetDiagnosis(ctx, docs[0].ID, "user-2")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeNotFound))

	_, err = svc.GetDiagnosis(ctx, "no-such-id", "user-1")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeNotFound))
}
