package diagnosis

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/medichain/telemed/pkg/types"
)

const (
	// unspecifiedCondition is the terminal answer for input no rule matches
	unspecifiedCondition = "Unspecified condition"

	// unspecifiedNote flags that the input was insufficient, not erroneous
	unspecifiedNote = "Insufficient symptoms for a specific diagnosis. Please consult a healthcare professional."

	unspecifiedConfidence = 30.0
	maxRuleConfidence     = 90.0
	confidencePerMatch    = 20.0
)

// TieBreaker selects the primary condition when several share the top score.
// The candidates slice is never empty.
type TieBreaker func(candidates []string) string

// LexicographicTieBreak picks the alphabetically first candidate. This is
// the default: it keeps equal-score selection deterministic and testable.
func LexicographicTieBreak(candidates []string) string {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c < best {
			best = c
		}
	}
	return best
}

// SeededRandomTieBreak picks uniformly at random from the tie set using the
// given seed, reproducing the legacy randomized behavior under test control.
func SeededRandomTieBreak(seed int64) TieBreaker {
	rng := rand.New(rand.NewSource(seed))
	return func(candidates []string) string {
		sorted := append([]string(nil), candidates...)
		sort.Strings(sorted)
		return sorted[rng.Intn(len(sorted))]
	}
}

// NormalizeSymptoms trims whitespace, lower-cases and drops empty entries
func NormalizeSymptoms(raw []string) []string {
	normalized := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		normalized = append(normalized, s)
	}
	return normalized
}

// Engine scores symptoms against a fixed rule set and ranks conditions
type Engine struct {
	rules    *RuleSet
	tieBreak TieBreaker
}

// NewEngine creates a rule-based diagnosis engine. A nil tieBreak defaults
// to the deterministic lexicographic strategy.
func NewEngine(rules *RuleSet, tieBreak TieBreaker) *Engine {
	if tieBreak == nil {
		tieBreak = LexicographicTieBreak
	}
	return &Engine{rules: rules, tieBreak: tieBreak}
}

// Infer produces a ranked differential diagnosis from reported symptoms.
// Pure over the rule set and input; unmatched input yields the degraded
// "Unspecified condition" result rather than an error.
func (e *Engine) Infer(symptoms []string) *types.DiagnosisResult {
	counts := make(map[string]int)
	for _, symptom := range NormalizeSymptoms(symptoms) {
		for _, condition := range e.rules.SymptomConditions[symptom] {
			counts[condition]++
		}
	}

	if len(counts) == 0 {
		return &types.DiagnosisResult{
			Condition:    unspecifiedCondition,
			Confidence:   unspecifiedConfidence,
			Differential: []types.DifferentialEntry{},
			Note:         unspecifiedNote,
			Source:       types.SourceRuleBased,
		}
	}

	maxCount := 0
	for _, count := range counts {
		if count > maxCount {
			maxCount = count
		}
	}

	var top []string
	for condition, count := range counts {
		if count == maxCount {
			top = append(top, condition)
		}
	}

	primary := top[0]
	if len(top) > 1 {
		primary = e.tieBreak(top)
	}

	confidence := confidencePerMatch * float64(maxCount)
	if confidence > maxRuleConfidence {
		confidence = maxRuleConfidence
	}

	differential := make([]types.DifferentialEntry, 0, len(counts)-1)
	for condition, count := range counts {
		if condition == primary {
			continue
		}
		differential = append(differential, types.DifferentialEntry{
			Condition:   condition,
			Probability: float64(count) / float64(maxCount) * confidence,
		})
	}
	sortDifferential(differential)

	return &types.DiagnosisResult{
		Condition:    primary,
		Confidence:   confidence,
		Differential: differential,
		Source:       types.SourceRuleBased,
	}
}

// sortDifferential orders entries by descending probability, breaking equal
// probabilities alphabetically so output ordering is stable.
func sortDifferential(entries []types.DifferentialEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Probability != entries[j].Probability {
			return entries[i].Probability > entries[j].Probability
		}
		return entries[i].Condition < entries[j].Condition
	})
}
