// Package store provides document persistence for diagnoses, medicines and
// integrity records. The core services depend only on the interfaces here;
// Postgres backs production and Memory backs tests.
package store

import (
	"context"

	"github.com/medichain/telemed/pkg/types"
)

// RecordStore persists integrity records. Updates go through a per-record
// read-modify-write so status transitions stay atomic for that record.
type RecordStore interface {
	InsertRecord(ctx context.Context, record *types.IntegrityRecord) error

	// GetRecord returns (nil, nil) when no record exists under id.
	GetRecord(ctx context.Context, id string) (*types.IntegrityRecord, error)

	// UpdateRecord applies mutate to the stored record under a per-record
	// lock and persists the result. Returns the updated record.
	UpdateRecord(ctx context.Context, id string, mutate func(*types.IntegrityRecord) error) (*types.IntegrityRecord, error)

	ListRecordsByUser(ctx context.Context, userID string, limit int) ([]*types.IntegrityRecord, error)
}

// DiagnosisStore persists diagnosis documents
type DiagnosisStore interface {
	InsertDiagnosis(ctx context.Context, doc *types.DiagnosisDocument) error

	// GetDiagnosis returns (nil, nil) when no document exists under id.
	GetDiagnosis(ctx context.Context, id string) (*types.DiagnosisDocument, error)

	ListDiagnosesByUser(ctx context.Context, userID string, limit int) ([]*types.DiagnosisDocument, error)
}

// MedicineStore persists the medicine catalog
type MedicineStore interface {
	InsertMedicine(ctx context.Context, med *types.Medicine) error

	// GetMedicine returns (nil, nil) when no medicine exists under id.
	GetMedicine(ctx context.Context, id string) (*types.Medicine, error)

	SearchMedicines(ctx context.Context, criteria *types.MedicineSearchCriteria) ([]*types.Medicine, error)
	ListPopularMedicines(ctx context.Context, limit int) ([]*types.Medicine, error)

	// FindAlternatives returns medicines other than id sharing at least one
	// active ingredient or treated condition.
	FindAlternatives(ctx context.Context, id string, activeIngredients, conditions []string, limit int) ([]*types.Medicine, error)

	// MarkMedicineVerified flips the ledger-verified flag and attaches the
	// integrity record id.
	MarkMedicineVerified(ctx context.Context, id, recordID string) error
}
