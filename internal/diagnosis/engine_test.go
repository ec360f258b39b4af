package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medichain/telemed/pkg/types"
)

func TestInferScoresOverlappingSymptoms(t *testing.T) {
	engine := NewEngine(DefaultRuleSet(), nil)

	result := engine.Infer([]string{"fever", "cough"})

	// Common Cold, Influenza and COVID-19 each match both symptoms;
	// the lexicographic tie-break selects COVID-19.
	assert.Equal(t, "COVID-19", result.Condition)
	assert.Equal(t, 40.0, result.Confidence)
	assert.Equal(t, types.SourceRuleBased, result.Source)
	assert.Empty(t, result.Note)

	require.Len(t, result.Differential, 3)
	assert.Equal(t, types.DifferentialEntry{Condition: "Common Cold", Probability: 40.0}, result.Differential[0])
	assert.Equal(t, types.DifferentialEntry{Condition: "Influenza", Probability: 40.0}, result.Differential[1])
	assert.Equal(t, types.DifferentialEntry{Condition: "Bronchitis", Probability: 20.0}, result.Differential[2])
}

func TestInferSelectsDominantCondition(t *testing.T) {
	engine := NewEngine(DefaultRuleSet(), nil)

	result := engine.Infer([]string{"frequent urination", "burning urination"})

	assert.Equal(t, "Urinary Tract Infection", result.Condition)
	assert.Equal(t, 40.0, result.Confidence)
	require.Len(t, result.Differential, 1)
	assert.Equal(t, "Diabetes Type 2", result.Differential[0].Condition)
	assert.Equal(t, 20.0, result.Differential[0].Probability)
}

func TestInferUnmatchedSymptomsDegrade(t *testing.T) {
	engine := NewEngine(DefaultRuleSet(), nil)

	result := engine.Infer([]string{"glowing skin", "levitation"})

	assert.Equal(t, "Unspecified condition", result.Condition)
	assert.Equal(t, 30.0, result.Confidence)
	assert.Empty(t, result.Differential)
	assert.NotEmpty(t, result.Note)
	assert.Equal(t, types.SourceRuleBased, result.Source)
}

func TestInferNormalizesInput(t *testing.T) {
	engine := NewEngine(DefaultRuleSet(), nil)

	canonical := engine.Infer([]string{"fever", "cough"})
	messy := engine.Infer([]string{"  FeVeR  ", "", "Cough "})

	assert.Equal(t, canonical, messy)
}

func TestInferConfidenceCapped(t *testing.T) {
	engine := NewEngine(DefaultRuleSet(), nil)

	// Common Cold matches all seven of these symptoms.
	result := engine.Infer([]string{
		"fever", "cough", "headache", "fatigue",
		"sore throat", "runny nose", "sinus pressure",
	})

	assert.Equal(t, "Common Cold", result.Condition)
	assert.Equal(t, 90.0, result.Confidence)
	for _, entry := range result.Differential {
		assert.LessOrEqual(t, entry.Probability, result.Confidence)
	}
}

func TestInferDeterministicAcrossRuns(t *testing.T) {
	engine := NewEngine(DefaultRuleSet(), nil)
	symptoms := []string{"nausea", "vomiting", "diarrhea", "abdominal pain"}

	first := engine.Infer(symptoms)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, engine.Infer(symptoms))
	}
}

func TestNewEngineAcceptsCustomTieBreak(t *testing.T) {
	last := func(candidates []string) string {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c > best {
				best = c
			}
		}
		return best
	}
	engine := NewEngine(DefaultRuleSet(), last)

	result := engine.Infer([]string{"fever", "cough"})

	assert.Equal(t, "Influenza", result.Condition)
}

func TestSeededRandomTieBreakReproducible(t *testing.T) {
	candidates := []string{"Common Cold", "Influenza", "COVID-19"}

	a := SeededRandomTieBreak(42)(candidates)
	b := SeededRandomTieBreak(42)(candidates)

	assert.Equal(t, a, b)
	assert.Contains(t, candidates, a)
}

func TestNormalizeSymptoms(t *testing.T) {
	assert.Equal(t,
		[]string{"fever", "sore throat"},
		NormalizeSymptoms([]string{" Fever ", "", "  ", "SORE Throat"}))
	assert.Empty(t, NormalizeSymptoms(nil))
}
