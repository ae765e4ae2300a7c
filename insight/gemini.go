package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	customerrors "queue-twin/errors"
	"queue-twin/models"

	"google.golang.org/genai"
)

// geminiAPIVersion is the API surface response schemas are served on.
const geminiAPIVersion = "v1beta"

// GeminiConfig is the minimal transport config for the Gemini API.
type GeminiConfig struct {
	Endpoint string
	Model    string
	APIKey   string
	// HTTPClient defaults to the SDK client; deadlines come from ctx.
	HTTPClient *http.Client
	Now        func() time.Time
}

// GeminiClient implements Provider over generateContent, constraining the
// model output with a JSON response schema.
type GeminiClient struct {
	client *genai.Client
	model  string
	now    func() time.Time
}

// NewGeminiClient validates cfg and returns a client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("gemini: endpoint required")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini: model required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/",
			APIVersion: geminiAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model, now: now}, nil
}

// ---- response schemas ----

var summarySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary":         {Type: genai.TypeString},
		"riskLevel":       {Type: genai.TypeString},
		"recommendations": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"summary", "riskLevel", "recommendations"},
}

var scenarioSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"breachReduction": {Type: genai.TypeNumber, Description: "Percentage reduction in breaches"},
		"waitTimeChange":  {Type: genai.TypeNumber, Description: "Change in average wait time in minutes"},
		"recommendation":  {Type: genai.TypeString},
	},
	Required: []string{"breachReduction", "waitTimeChange", "recommendation"},
}

// Pointer fields distinguish a missing required field from a zero value.
type summaryPayload struct {
	Summary         *string  `json:"summary"`
	RiskLevel       *string  `json:"riskLevel"`
	Recommendations []string `json:"recommendations"`
}

type scenarioPayload struct {
	BreachReduction *float64 `json:"breachReduction"`
	WaitTimeChange  *float64 `json:"waitTimeChange"`
	Recommendation  *string  `json:"recommendation"`
}

// ---- Provider ----

func (c *GeminiClient) Summarize(ctx context.Context, s models.QueueSnapshot) (models.Insight, error) {
	var p summaryPayload
	if err := c.generate(ctx, summaryPrompt(s), summarySchema, &p); err != nil {
		return models.Insight{}, &customerrors.InsightError{Op: OpSummarize, Err: err}
	}
	if p.Summary == nil || p.RiskLevel == nil || p.Recommendations == nil {
		return models.Insight{}, &customerrors.InsightError{
			Op:  OpSummarize,
			Err: fmt.Errorf("%w: missing required field", customerrors.ErrMalformedResponse),
		}
	}
	return models.Insight{
		Summary:         *p.Summary,
		RiskLevel:       *p.RiskLevel,
		Recommendations: p.Recommendations,
		GeneratedAt:     c.now(),
		SnapshotAt:      s.Timestamp,
	}, nil
}

func (c *GeminiClient) Evaluate(ctx context.Context, s models.QueueSnapshot, sc models.Scenario) (models.ScenarioResult, error) {
	var p scenarioPayload
	if err := c.generate(ctx, scenarioPrompt(s, sc), scenarioSchema, &p); err != nil {
		return models.ScenarioResult{}, &customerrors.InsightError{Op: OpEvaluate, Err: err}
	}
	if p.BreachReduction == nil || p.WaitTimeChange == nil || p.Recommendation == nil {
		return models.ScenarioResult{}, &customerrors.InsightError{
			Op:  OpEvaluate,
			Err: fmt.Errorf("%w: missing required field", customerrors.ErrMalformedResponse),
		}
	}
	return models.ScenarioResult{
		BreachReduction: *p.BreachReduction,
		WaitTimeChange:  *p.WaitTimeChange,
		Recommendation:  *p.Recommendation,
	}, nil
}

// generate performs one generateContent round trip and decodes the model's
// JSON text into out.
func (c *GeminiClient) generate(ctx context.Context, prompt string, sch *genai.Schema, out any) error {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   sch,
	})
	if err != nil {
		return classify(err)
	}
	if resp == nil || len(resp.Candidates) == 0 ||
		resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("%w: no candidates", customerrors.ErrMalformedResponse)
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			text.WriteString(p.Text)
		}
	}
	if err := json.Unmarshal([]byte(text.String()), out); err != nil {
		return fmt.Errorf("%w: %v", customerrors.ErrMalformedResponse, err)
	}
	return nil
}

// classify maps an SDK error to an insight sentinel. Undecodable response
// bodies are malformed; any other failure is unavailable.
func classify(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %v", customerrors.ErrMalformedResponse, err)
	}
	return fmt.Errorf("%w: %v", customerrors.ErrInsightUnavailable, err)
}
