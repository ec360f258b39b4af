package medicine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/store"
	"github.com/medichain/telemed/pkg/types"
)

const (
	defaultSearchLimit       = 10
	defaultAlternativesLimit = 5

	// Similarity weights for ranking alternatives
	ingredientWeight = 0.6
	conditionWeight  = 0.4
)

// Ledger is the integrity surface the medicine service needs
type Ledger interface {
	BuildRecord(ctx context.Context, subjectType types.SubjectType, payload map[string]interface{}, ownerID string, metadata map[string]interface{}) (*types.IntegrityRecord, error)
}

// Service serves the medicine catalog: search, recommendations, alternatives
// and ledger-backed verification.
type Service struct {
	medicines store.MedicineStore
	ledger    Ledger
	logger    *logger.Logger
}

// NewService creates a medicine service
func NewService(medicines store.MedicineStore, ledgerSvc Ledger, log *logger.Logger) *Service {
	return &Service{
		medicines: medicines,
		ledger:    ledgerSvc,
		logger:    log,
	}
}

// Search filters the catalog by the given criteria. When a location is set,
// each result keeps only the prices for that location.
func (s *Service) Search(ctx context.Context, criteria *types.MedicineSearchCriteria) ([]*types.Medicine, error) {
	if criteria == nil {
		criteria = &types.MedicineSearchCriteria{}
	}
	if criteria.Limit <= 0 {
		criteria.Limit = defaultSearchLimit
	}

	meds, err := s.medicines.SearchMedicines(ctx, criteria)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to search medicines", err)
	}

	filterPricesByLocation(meds, criteria.Location)
	return meds, nil
}

// MedicinesForCondition returns medicines recommended for a condition
func (s *Service) MedicinesForCondition(ctx context.Context, condition, location string, limit, offset int) ([]*types.Medicine, error) {
	if condition == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "condition is required", nil)
	}
	return s.Search(ctx, &types.MedicineSearchCriteria{
		Condition: condition,
		Location:  location,
		Limit:     limit,
		Offset:    offset,
	})
}

// Get retrieves a medicine by id
func (s *Service) Get(ctx context.Context, medicineID string) (*types.Medicine, error) {
	med, err := s.medicines.GetMedicine(ctx, medicineID)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to load medicine", err)
	}
	if med == nil {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("medicine not found: %s", medicineID))
	}
	return med, nil
}

// Popular lists the most popular medicines
func (s *Service) Popular(ctx context.Context, limit int, location string) ([]*types.Medicine, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	meds, err := s.medicines.ListPopularMedicines(ctx, limit)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to list popular medicines", err)
	}
	filterPricesByLocation(meds, location)
	return meds, nil
}

// Alternatives returns medicines similar to the given one, ranked by shared
// active ingredients and treated conditions.
func (s *Service) Alternatives(ctx context.Context, medicineID, location string, limit int) ([]*types.Medicine, error) {
	if limit <= 0 {
		limit = defaultAlternativesLimit
	}

	med, err := s.Get(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.medicines.FindAlternatives(ctx, medicineID, med.ActiveIngredients, med.Conditions, limit)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to find alternatives", err)
	}

	for _, alt := range candidates {
		alt.SimilarityScore = similarity(med, alt)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})

	filterPricesByLocation(candidates, location)
	return candidates, nil
}

// VerifyOnLedger builds an integrity record over the medicine's immutable
// fields and flips its verified flag. Mutable bookkeeping (prices, previous
// verification state) never enters the fingerprint.
func (s *Service) VerifyOnLedger(ctx context.Context, medicineID, userID string) (*types.IntegrityRecord, error) {
	med, err := s.Get(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	payload, err := toPayload(med)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to project medicine payload", err)
	}

	record, err := s.ledger.BuildRecord(ctx, types.SubjectMedicine, payload, userID, map[string]interface{}{
		"medicine_id":   med.ID,
		"medicine_name": med.Name,
	})
	if err != nil {
		return nil, err
	}

	if record.Status == types.StatusConfirmed {
		if err := s.medicines.MarkMedicineVerified(ctx, med.ID, record.ID); err != nil {
			s.logger.WithError(err).WithField("medicine_id", med.ID).Error("Failed to mark medicine verified")
		}
	}

	s.logger.Audit(userID, "verify_medicine", med.ID, record.Status == types.StatusConfirmed, map[string]interface{}{
		"record_id": record.ID,
		"data_hash": record.DataHash,
	})

	return record, nil
}

// toPayload converts a medicine to the generic payload form the ledger
// fingerprints
func toPayload(med *types.Medicine) (map[string]interface{}, error) {
	raw, err := json.Marshal(med)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// similarity scores how interchangeable two medicines are, in [0,1]
func similarity(a, b *types.Medicine) float64 {
	score := 0.0

	if len(a.ActiveIngredients) > 0 && len(b.ActiveIngredients) > 0 {
		common := intersectFold(a.ActiveIngredients, b.ActiveIngredients)
		score += float64(common) / float64(len(a.ActiveIngredients)) * ingredientWeight
	}

	if len(a.Conditions) > 0 && len(b.Conditions) > 0 {
		common := intersectFold(a.Conditions, b.Conditions)
		score += float64(common) / float64(len(a.Conditions)) * conditionWeight
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func intersectFold(a, b []string) int {
	count := 0
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				count++
				break
			}
		}
	}
	return count
}

// filterPricesByLocation keeps only the prices matching location; an empty
// location keeps everything.
func filterPricesByLocation(meds []*types.Medicine, location string) {
	if location == "" {
		return
	}
	for _, med := range meds {
		var prices []types.MedicinePrice
		for _, p := range med.Prices {
			if strings.EqualFold(p.Location, location) {
				prices = append(prices, p)
			}
		}
		med.Prices = prices
	}
}
