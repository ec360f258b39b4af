package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New("test", "error")
}

// stubClassifier answers with a fixed classification or error
type stubClassifier struct {
	result *Classification
	err    error
	text   string
	labels []string
}

func (s *stubClassifier) Classify(_ context.Context, text string, labels []string) (*Classification, error) {
	s.text = text
	s.labels = labels
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestZeroShotClassifierSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Inputs, "fever")
		assert.True(t, req.Options.WaitForModel)
		assert.Equal(t, []string{"Influenza", "Common Cold"}, req.Parameters.CandidateLabels)

		json.NewEncoder(w).Encode(Classification{
			Labels: []string{"Influenza", "Common Cold"},
			Scores: []float64{0.82, 0.11},
		})
	}))
	defer server.Close()

	classifier := NewZeroShotClassifier(server.URL, "test-key", 5*time.Second)
	result, err := classifier.Classify(context.Background(), "Patient symptoms: fever.", []string{"Influenza", "Common Cold"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Influenza", "Common Cold"}, result.Labels)
	assert.Equal(t, []float64{0.82, 0.11}, result.Scores)
}

func TestZeroShotClassifierBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	classifier := NewZeroShotClassifier(server.URL, "", 5*time.Second)
	_, err := classifier.Classify(context.Background(), "text", []string{"A"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned status 503")
}

func TestZeroShotClassifierMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Classification{
			Labels: []string{"A", "B"},
			Scores: []float64{0.5},
		})
	}))
	defer server.Close()

	classifier := NewZeroShotClassifier(server.URL, "", 5*time.Second)
	_, err := classifier.Classify(context.Background(), "text", []string{"A", "B"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestAnalyzerUsesClassifierResult(t *testing.T) {
	rules := DefaultRuleSet()
	stub := &stubClassifier{result: &Classification{
		Labels: []string{"Influenza", "Common Cold", "COVID-19", "Migraine"},
		Scores: []float64{0.71, 0.18, 0.06, 0.02},
	}}
	analyzer := NewAnalyzer(NewEngine(rules, nil), stub, rules, testLogger())

	result := analyzer.Infer(context.Background(), []string{"Fever", "chills"}, "asthma")

	assert.Equal(t, "Influenza", result.Condition)
	assert.InDelta(t, 71.0, result.Confidence, 1e-9)
	assert.Equal(t, types.SourceClassifier, result.Source)

	// Only labels above the score floor survive into the differential.
	require.Len(t, result.Differential, 1)
	assert.Equal(t, "Common Cold", result.Differential[0].Condition)
	assert.InDelta(t, 18.0, result.Differential[0].Probability, 1e-9)

	assert.Contains(t, stub.text, "fever, chills")
	assert.Contains(t, stub.text, "Medical history: asthma.")
	assert.Equal(t, rules.CandidateConditions, stub.labels)
}

func TestAnalyzerFallsBackOnClassifierError(t *testing.T) {
	rules := DefaultRuleSet()
	engine := NewEngine(rules, nil)
	stub := &stubClassifier{err: errors.New("connection refused")}
	analyzer := NewAnalyzer(engine, stub, rules, testLogger())

	result := analyzer.Infer(context.Background(), []string{"fever", "cough"}, "")

	assert.Equal(t, engine.Infer([]string{"fever", "cough"}), result)
	assert.Equal(t, types.SourceRuleBased, result.Source)
}

func TestAnalyzerNilClassifierUsesRuleEngine(t *testing.T) {
	rules := DefaultRuleSet()
	engine := NewEngine(rules, nil)
	analyzer := NewAnalyzer(engine, nil, rules, testLogger())

	result := analyzer.Infer(context.Background(), []string{"rash"}, "")

	assert.Equal(t, engine.Infer([]string{"rash"}), result)
}

func TestFallbackReasonBuckets(t *testing.T) {
	assert.Equal(t, "timeout", fallbackReason(errors.New("context deadline exceeded")))
	assert.Equal(t, "bad_status", fallbackReason(errors.New("classifier returned status 500: boom")))
	assert.Equal(t, "malformed_response", fallbackReason(errors.New("malformed classifier response: 2 labels, 1 scores")))
	assert.Equal(t, "network", fallbackReason(errors.New("dial tcp: connection refused")))
}
