/**
 * @description
 * This package provides a client for the AI gateway that produces credit scores.
 * It sends a user's credit indicators as an OpenAI-compatible chat completion
 * request with a forced `credit_score_result` tool call, and turns the tool
 * arguments into a validated domain.ScoreAssessment.
 *
 * @dependencies
 * - bytes, context, encoding/json, errors, fmt, io, log/slog, math, net/http, strings, time: Standard Go libraries.
 * - internal/domain: Indicator and assessment models.
 */
package scoringclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/credible/credit-service/internal/domain"
)

const (
	DefaultBaseURL = "https://ai.gateway.lovable.dev"
	DefaultModel   = "google/gemini-2.5-flash"
	ToolName       = "credit_score_result"

	systemPrompt = `You are a credit scoring AI. Analyze user financial behavior and return a JSON response with:
1. score (0-1000)
2. explanation (short 2-3 sentence explanation)
3. factors (array of positive/negative factors)

Consider: KYC completion, loan history, repayment patterns, transaction frequency.`
)

// Client is a client for the scoring gateway.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a new scoring client. An empty baseURL or model falls back
// to the defaults; a non-positive timeout falls back to 60 seconds.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Logger: slog.Default(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolChoice struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

// ChatCompletionRequest is the payload sent to /v1/chat/completions.
type ChatCompletionRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []tool        `json:"tools"`
	ToolChoice toolChoice    `json:"tool_choice"`
}

// ChatCompletionResponse is the subset of the gateway response the client reads.
type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func scoreResultSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "integer",
				"minimum":     domain.MinCreditScore,
				"maximum":     domain.MaxCreditScore,
				"description": "Credit score from 0-1000",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "Brief 2-3 sentence explanation of the score",
			},
			"factors": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"factor": map[string]any{"type": "string"},
						"impact": map[string]any{
							"type": "string",
							"enum": []string{string(domain.ImpactPositive), string(domain.ImpactNegative), string(domain.ImpactNeutral)},
						},
					},
					"required":             []string{"factor", "impact"},
					"additionalProperties": false,
				},
			},
		},
		"required": []string{"score", "explanation", "factors"},
	}
}

// NewScoreRequest builds the chat completion request for a set of indicators.
func NewScoreRequest(model string, indicators domain.CreditIndicators) (*ChatCompletionRequest, error) {
	userData, err := json.Marshal(indicators)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal indicators: %w", err)
	}
	return &ChatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze this user's creditworthiness: " + string(userData)},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        ToolName,
				Description: "Return structured credit score analysis",
				Parameters:  scoreResultSchema(),
			},
		}},
		ToolChoice: toolChoice{Type: "function", Function: toolFunction{Name: ToolName}},
	}, nil
}

// Score sends exactly one scoring request. Errors wrap ErrUpstream, ErrRateLimited,
// ErrQuotaExhausted or ErrMalformedResponse.
func (c *Client) Score(ctx context.Context, indicators domain.CreditIndicators) (*domain.ScoreAssessment, error) {
	payload, err := NewScoreRequest(c.Model, indicators)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute scoring request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read scoring response: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger().Warn("scoring gateway returned non-2xx", "status", resp.StatusCode, "body", truncate(string(bodyBytes), 512))
		return nil, NewAPIError(resp.StatusCode, bodyBytes)
	}

	return parseAssessment(bodyBytes)
}

// scoreArguments is the tool call payload. Score stays a raw number so 720.0
// decodes as 720.
type scoreArguments struct {
	Score       json.Number          `json:"score"`
	Explanation string               `json:"explanation"`
	Factors     []domain.ScoreFactor `json:"factors"`
}

func wholeScore(raw json.Number) (int, error) {
	if raw == "" {
		return 0, errors.New("score missing")
	}
	f, err := raw.Float64()
	if err != nil {
		return 0, fmt.Errorf("score %q is not a number", raw)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("score %s is not a whole number", raw)
	}
	if f < domain.MinCreditScore || f > domain.MaxCreditScore {
		return 0, fmt.Errorf("%w: score %s outside [%d, %d]", domain.ErrInvalidAssessment, raw, domain.MinCreditScore, domain.MaxCreditScore)
	}
	return int(f), nil
}

func parseAssessment(body []byte) (*domain.ScoreAssessment, error) {
	var completion ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrMalformedResponse, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrMalformedResponse)
	}
	toolCalls := completion.Choices[0].Message.ToolCalls
	if len(toolCalls) == 0 {
		return nil, fmt.Errorf("%w: no tool call in response", ErrMalformedResponse)
	}
	call := toolCalls[0]
	if call.Function.Name != "" && call.Function.Name != ToolName {
		return nil, fmt.Errorf("%w: unexpected tool %q", ErrMalformedResponse, call.Function.Name)
	}

	var args scoreArguments
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("%w: failed to decode tool arguments: %v", ErrMalformedResponse, err)
	}
	score, err := wholeScore(args.Score)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	assessment := domain.ScoreAssessment{
		Score:       score,
		Explanation: args.Explanation,
		Factors:     args.Factors,
	}
	if err := assessment.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if assessment.Factors == nil {
		assessment.Factors = []domain.ScoreFactor{}
	}
	return &assessment, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
