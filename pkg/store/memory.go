package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medichain/telemed/pkg/types"
)

// Memory is an in-memory implementation of the store interfaces, used by
// tests and local development. All methods are safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	records   map[string]*types.IntegrityRecord
	diagnoses map[string]*types.DiagnosisDocument
	medicines map[string]*types.Medicine
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		records:   make(map[string]*types.IntegrityRecord),
		diagnoses: make(map[string]*types.DiagnosisDocument),
		medicines: make(map[string]*types.Medicine),
	}
}

// InsertRecord stores a new integrity record
func (m *Memory) InsertRecord(_ context.Context, record *types.IntegrityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[record.ID]; exists {
		return fmt.Errorf("integrity record already exists: %s", record.ID)
	}
	cp := *record
	m.records[record.ID] = &cp
	return nil
}

// GetRecord retrieves an integrity record by id
func (m *Memory) GetRecord(_ context.Context, id string) (*types.IntegrityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	cp := *record
	return &cp, nil
}

// UpdateRecord applies mutate to the stored record under the store lock
func (m *Memory) UpdateRecord(_ context.Context, id string, mutate func(*types.IntegrityRecord) error) (*types.IntegrityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeRecordNotFound, fmt.Sprintf("integrity record not found: %s", id))
	}

	cp := *record
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now().UTC()
	m.records[id] = &cp

	out := cp
	return &out, nil
}

// ListRecordsByUser returns a user's integrity records, newest first
func (m *Memory) ListRecordsByUser(_ context.Context, userID string, limit int) ([]*types.IntegrityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*types.IntegrityRecord
	for _, r := range m.records {
		if r.UserID == userID {
			cp := *r
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// InsertDiagnosis stores a new diagnosis document
func (m *Memory) InsertDiagnosis(_ context.Context, doc *types.DiagnosisDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.diagnoses[doc.ID]; exists {
		return fmt.Errorf("diagnosis already exists: %s", doc.ID)
	}
	cp := *doc
	m.diagnoses[doc.ID] = &cp
	return nil
}

// GetDiagnosis retrieves a diagnosis document by id
func (m *Memory) GetDiagnosis(_ context.Context, id string) (*types.DiagnosisDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.diagnoses[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

// ListDiagnosesByUser returns a user's diagnoses, newest first
func (m *Memory) ListDiagnosesByUser(_ context.Context, userID string, limit int) ([]*types.DiagnosisDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*types.DiagnosisDocument
	for _, d := range m.diagnoses {
		if d.UserID == userID {
			cp := *d
			docs = append(docs, &cp)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// InsertMedicine stores a new medicine catalog entry
func (m *Memory) InsertMedicine(_ context.Context, med *types.Medicine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.medicines[med.ID]; exists {
		return fmt.Errorf("medicine already exists: %s", med.ID)
	}
	cp := *med
	m.medicines[med.ID] = &cp
	return nil
}

// GetMedicine retrieves a medicine by id
func (m *Memory) GetMedicine(_ context.Context, id string) (*types.Medicine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	med, ok := m.medicines[id]
	if !ok {
		return nil, nil
	}
	cp := *med
	return &cp, nil
}

// SearchMedicines filters the catalog by condition, name and ingredients
func (m *Memory) SearchMedicines(_ context.Context, criteria *types.MedicineSearchCriteria) ([]*types.Medicine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var meds []*types.Medicine
	for _, med := range m.medicines {
		if criteria.Condition != "" && !containsFold(med.Conditions, criteria.Condition) {
			continue
		}
		if criteria.Name != "" && !strings.Contains(strings.ToLower(med.Name), strings.ToLower(criteria.Name)) {
			continue
		}
		if len(criteria.Ingredients) > 0 && !containsAll(med.Ingredients, criteria.Ingredients) {
			continue
		}
		cp := *med
		meds = append(meds, &cp)
	}

	sort.Slice(meds, func(i, j int) bool {
		return meds[i].CreatedAt.After(meds[j].CreatedAt)
	})

	limit := criteria.Limit
	if limit <= 0 {
		limit = 10
	}
	if criteria.Offset > 0 {
		if criteria.Offset >= len(meds) {
			return nil, nil
		}
		meds = meds[criteria.Offset:]
	}
	if len(meds) > limit {
		meds = meds[:limit]
	}
	return meds, nil
}

// ListPopularMedicines returns the catalog ordered by popularity score
func (m *Memory) ListPopularMedicines(_ context.Context, limit int) ([]*types.Medicine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var meds []*types.Medicine
	for _, med := range m.medicines {
		cp := *med
		meds = append(meds, &cp)
	}
	sort.Slice(meds, func(i, j int) bool {
		return meds[i].PopularityScore > meds[j].PopularityScore
	})
	if limit > 0 && len(meds) > limit {
		meds = meds[:limit]
	}
	return meds, nil
}

// FindAlternatives returns medicines sharing ingredients or conditions
func (m *Memory) FindAlternatives(_ context.Context, id string, activeIngredients, conditions []string, limit int) ([]*types.Medicine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var meds []*types.Medicine
	for _, med := range m.medicines {
		if med.ID == id {
			continue
		}
		if !sharesAny(med.ActiveIngredients, activeIngredients) && !sharesAny(med.Conditions, conditions) {
			continue
		}
		cp := *med
		meds = append(meds, &cp)
		if limit > 0 && len(meds) >= limit {
			break
		}
	}
	return meds, nil
}

// MarkMedicineVerified flips the ledger-verified flag on a medicine
func (m *Memory) MarkMedicineVerified(_ context.Context, id, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	med, ok := m.medicines[id]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("medicine not found: %s", id))
	}
	med.VerifiedOnLedger = true
	med.LedgerRecordID = recordID
	med.UpdatedAt = time.Now().UTC()
	return nil
}

func containsFold(haystack []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, h := range haystack {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

func containsAll(haystack, needles []string) bool {
	for _, n := range needles {
		found := false
		for _, h := range haystack {
			if strings.EqualFold(h, n) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sharesAny(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
