package medicine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medichain/telemed/internal/ledger"
	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/store"
	"github.com/medichain/telemed/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New("test", "error")
}

func seedCatalog(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()

	meds := []*types.Medicine{
		{
			ID:                "med-paracetamol",
			Name:              "Paracetamol 500mg",
			Conditions:        []string{"Common Cold", "Influenza", "Tension Headache"},
			Ingredients:       []string{"paracetamol"},
			ActiveIngredients: []string{"paracetamol"},
			Prices: []types.MedicinePrice{
				{Location: "Nairobi", Price: 3.50, Currency: "USD"},
				{Location: "Mombasa", Price: 4.00, Currency: "USD"},
			},
			PopularityScore: 90,
		},
		{
			ID:                "med-panadol",
			Name:              "Panadol Extra",
			Conditions:        []string{"Tension Headache", "Migraine"},
			Ingredients:       []string{"paracetamol", "caffeine"},
			ActiveIngredients: []string{"paracetamol", "caffeine"},
			Prices: []types.MedicinePrice{
				{Location: "Nairobi", Price: 5.25, Currency: "USD"},
			},
			PopularityScore: 75,
		},
		{
			ID:                "med-ibuprofen",
			Name:              "Ibuprofen 200mg",
			Conditions:        []string{"Migraine", "Arthritis"},
			Ingredients:       []string{"ibuprofen"},
			ActiveIngredients: []string{"ibuprofen"},
			PopularityScore:   60,
		},
	}
	for _, med := range meds {
		require.NoError(t, mem.InsertMedicine(ctx, med))
	}
}

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	seedCatalog(t, mem)
	anchorer := ledger.NewSimulatedAnchorer(80001, "0xcontract", testLogger())
	ledgerSvc := ledger.NewService(mem, anchorer, testLogger())
	return NewService(mem, ledgerSvc, testLogger()), mem
}

func TestSearchByConditionFiltersLocationPrices(t *testing.T) {
	svc, _ := newTestService(t)

	meds, err := svc.Search(context.Background(), &types.MedicineSearchCriteria{
		Condition: "Tension Headache",
		Location:  "Nairobi",
	})

	require.NoError(t, err)
	require.Len(t, meds, 2)
	for _, med := range meds {
		require.Len(t, med.Prices, 1)
		assert.Equal(t, "Nairobi", med.Prices[0].Location)
	}
}

func TestMedicinesForConditionRequiresCondition(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.MedicinesForCondition(context.Background(), "", "", 10, 0)

	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidInput))
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "no-such-medicine")

	assert.True(t, types.IsErrorCode(err, types.ErrCodeNotFound))
}

func TestPopularOrdersByScore(t *testing.T) {
	svc, _ := newTestService(t)

	meds, err := svc.Popular(context.Background(), 10, "")

	require.NoError(t, err)
	require.Len(t, meds, 3)
	assert.Equal(t, "med-paracetamol", meds[0].ID)
	assert.Equal(t, "med-panadol", meds[1].ID)
	assert.Equal(t, "med-ibuprofen", meds[2].ID)
}

func TestAlternativesRankedBySimilarity(t *testing.T) {
	svc, _ := newTestService(t)

	alts, err := svc.Alternatives(context.Background(), "med-panadol", "", 5)

	require.NoError(t, err)
	require.Len(t, alts, 2)

	// Paracetamol shares one of two active ingredients and one of two
	// conditions; ibuprofen shares a condition only.
	assert.Equal(t, "med-paracetamol", alts[0].ID)
	assert.InDelta(t, 0.5, alts[0].SimilarityScore, 1e-9)
	assert.Equal(t, "med-ibuprofen", alts[1].ID)
	assert.InDelta(t, 0.2, alts[1].SimilarityScore, 1e-9)
}

func TestSimilarityCappedAtOne(t *testing.T) {
	a := &types.Medicine{
		ActiveIngredients: []string{"paracetamol"},
		Conditions:        []string{"Migraine"},
	}
	b := &types.Medicine{
		ActiveIngredients: []string{"Paracetamol"},
		Conditions:        []string{"migraine"},
	}

	assert.InDelta(t, 1.0, similarity(a, b), 1e-9)
}

func TestVerifyOnLedger(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	record, err := svc.VerifyOnLedger(ctx, "med-paracetamol", "pharmacist-1")

	require.NoError(t, err)
	assert.Equal(t, types.SubjectMedicine, record.SubjectType)
	assert.Equal(t, types.StatusConfirmed, record.Status)
	assert.NotEmpty(t, record.ChainReference)

	med, err := mem.GetMedicine(ctx, "med-paracetamol")
	require.NoError(t, err)
	assert.True(t, med.VerifiedOnLedger)
	assert.Equal(t, record.ID, med.LedgerRecordID)
}

func TestVerifyOnLedgerStableAcrossBookkeeping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.VerifyOnLedger(ctx, "med-paracetamol", "pharmacist-1")
	require.NoError(t, err)

	// The first verification flipped the verified flag and record id on the
	// medicine; those fields never enter the fingerprint.
	second, err := svc.VerifyOnLedger(ctx, "med-paracetamol", "pharmacist-1")
	require.NoError(t, err)

	assert.Equal(t, first.DataHash, second.DataHash)
}

func TestVerifyOnLedgerUnknownMedicine(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.VerifyOnLedger(context.Background(), "no-such-medicine", "pharmacist-1")

	assert.True(t, types.IsErrorCode(err, types.ErrCodeNotFound))
}
