package diagnosis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/monitoring"
	"github.com/medichain/telemed/pkg/types"
)

// differentialScoreFloor drops classifier labels below this score from the
// differential list.
const differentialScoreFloor = 0.10

// Classification is a remote classifier's label/score ranking
type Classification struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Classifier submits text with candidate labels to a remote zero-shot
// classification service
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (*Classification, error)
}

// ZeroShotClassifier calls an HTTP zero-shot classification endpoint
type ZeroShotClassifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewZeroShotClassifier creates a classifier client with a bounded timeout
func NewZeroShotClassifier(endpoint, apiKey string, timeout time.Duration) *ZeroShotClassifier {
	return &ZeroShotClassifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// classifyRequest is the wire format of the zero-shot endpoint
type classifyRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		CandidateLabels []string `json:"candidate_labels"`
	} `json:"parameters"`
	Options struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

// Classify submits text and candidate labels and returns the ranked scores
func (c *ZeroShotClassifier) Classify(ctx context.Context, text string, labels []string) (*Classification, error) {
	var reqBody classifyRequest
	reqBody.Inputs = text
	reqBody.Parameters.CandidateLabels = labels
	reqBody.Options.WaitForModel = true

	payload, err := json.Marshal(&reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	if len(result.Labels) == 0 || len(result.Labels) != len(result.Scores) {
		return nil, fmt.Errorf("malformed classifier response: %d labels, %d scores",
			len(result.Labels), len(result.Scores))
	}

	return &result, nil
}

// Analyzer prefers the remote classifier and falls back to the rule engine
// on any failure. Infer never returns an error: classifier trouble is
// absorbed, logged and counted, and the rule engine answers instead.
type Analyzer struct {
	engine     *Engine
	classifier Classifier
	rules      *RuleSet
	logger     *logger.Logger
}

// NewAnalyzer creates an analyzer. classifier may be nil, in which case the
// rule engine serves every request.
func NewAnalyzer(engine *Engine, classifier Classifier, rules *RuleSet, log *logger.Logger) *Analyzer {
	return &Analyzer{
		engine:     engine,
		classifier: classifier,
		rules:      rules,
		logger:     log,
	}
}

// Infer produces a diagnosis from symptoms and optional medical history
func (a *Analyzer) Infer(ctx context.Context, symptoms []string, history string) *types.DiagnosisResult {
	if a.classifier == nil {
		monitoring.RecordDiagnosisRequest(string(types.SourceRuleBased))
		return a.engine.Infer(symptoms)
	}

	result, err := a.classify(ctx, symptoms, history)
	if err != nil {
		a.logger.WithError(err).Warn("Classifier unavailable, falling back to rule engine")
		monitoring.RecordClassifierFallback(fallbackReason(err))
		monitoring.RecordDiagnosisRequest(string(types.SourceRuleBased))
		return a.engine.Infer(symptoms)
	}

	monitoring.RecordDiagnosisRequest(string(types.SourceClassifier))
	return result
}

// classify runs the remote path and converts scores to a diagnosis result
func (a *Analyzer) classify(ctx context.Context, symptoms []string, history string) (*types.DiagnosisResult, error) {
	text := "Patient symptoms: " + strings.Join(NormalizeSymptoms(symptoms), ", ") + ". "
	if history != "" {
		text += "Medical history: " + history + "."
	}

	classification, err := a.classifier.Classify(ctx, text, a.rules.CandidateConditions)
	if err != nil {
		return nil, err
	}

	topIndex := 0
	for i, score := range classification.Scores {
		if score > classification.Scores[topIndex] {
			topIndex = i
		}
	}

	differential := make([]types.DifferentialEntry, 0, len(classification.Labels)-1)
	for i, label := range classification.Labels {
		if i == topIndex || classification.Scores[i] <= differentialScoreFloor {
			continue
		}
		differential = append(differential, types.DifferentialEntry{
			Condition:   label,
			Probability: classification.Scores[i] * 100,
		})
	}
	sortDifferential(differential)

	return &types.DiagnosisResult{
		Condition:    classification.Labels[topIndex],
		Confidence:   classification.Scores[topIndex] * 100,
		Differential: differential,
		Source:       types.SourceClassifier,
	}, nil
}

// fallbackReason buckets a classifier failure for metrics
func fallbackReason(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "Client.Timeout"):
		return "timeout"
	case strings.Contains(msg, "returned status"):
		return "bad_status"
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "decode"):
		return "malformed_response"
	default:
		return "network"
	}
}
