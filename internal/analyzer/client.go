package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/denisplykin/sales-coach-service/internal/callplan"
)

// Config contains classifier client configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
}

// ItemResult is the classifier's raw verdict on one checklist item.
type ItemResult struct {
	Completed  bool    `json:"completed"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
	Reasoning  string  `json:"reasoning"`
}

// StageResult is the classifier's raw verdict on the current call stage.
type StageResult struct {
	StageID    string  `json:"stage_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ValidationResult is the second-pass judgement on evidence relevance.
type ValidationResult struct {
	Valid       bool   `json:"is_valid"`
	Explanation string `json:"explanation"`
}

// FieldResult is one extracted client card field proposal.
type FieldResult struct {
	Value      string  `json:"value"`
	Evidence   string  `json:"evidence"`
	Confidence float64 `json:"confidence"`
}

// ClientStats represents classifier client statistics.
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// Client calls an OpenAI-compatible chat completions API and parses the
// JSON-shaped answers the prompts demand.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{}

	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// NewClient creates a new classifier client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Model == "" {
		config.Model = "anthropic/claude-3-haiku"
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 8
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// CheckItem asks whether one checklist action was completed in the given
// transcript window. Returns the raw classifier verdict; the caller applies
// confidence, evidence, and duplicate guards.
func (c *Client) CheckItem(ctx context.Context, item callplan.ChecklistItem, transcript string) (ItemResult, error) {
	prompt := buildCheckItemPrompt(item, transcript)

	content, err := c.callChat(ctx, prompt, 0.2, 200)
	if err != nil {
		return ItemResult{}, err
	}

	var result ItemResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return ItemResult{}, fmt.Errorf("malformed item verdict: %w", err)
	}

	return result, nil
}

// ValidateEvidence re-checks that a quote actually proves the subject (an
// action description or a client fact). Catches first-pass false positives
// such as greetings accepted as evidence for unrelated actions.
func (c *Client) ValidateEvidence(ctx context.Context, subject, evidence string) (ValidationResult, error) {
	if len(strings.TrimSpace(evidence)) < 5 {
		return ValidationResult{Valid: false, Explanation: "evidence too short to validate"}, nil
	}

	prompt := buildValidationPrompt(subject, evidence)

	content, err := c.callChat(ctx, prompt, 0.1, 100)
	if err != nil {
		return ValidationResult{}, err
	}

	var result ValidationResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return ValidationResult{}, fmt.Errorf("malformed validation verdict: %w", err)
	}

	return result, nil
}

// DetectStage asks which call stage the conversation is currently in based on
// content, with elapsed time supplied only as reference context.
func (c *Client) DetectStage(ctx context.Context, transcript string, stages callplan.Structure, elapsedSeconds int) (StageResult, error) {
	prompt := buildStagePrompt(transcript, stages, elapsedSeconds)

	content, err := c.callChat(ctx, prompt, 0.2, 200)
	if err != nil {
		return StageResult{}, err
	}

	var result StageResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return StageResult{}, fmt.Errorf("malformed stage verdict: %w", err)
	}

	if _, ok := stages.StageByID(result.StageID); !ok {
		return StageResult{}, fmt.Errorf("classifier returned unknown stage id %q", result.StageID)
	}

	return result, nil
}

// ExtractFields proposes values for unpopulated client card fields. Known
// values are supplied so the classifier does not re-extract them; first-write
// enforcement happens in the session engine.
func (c *Client) ExtractFields(ctx context.Context, transcript string, known map[string]string, fields []callplan.ClientCardField) (map[string]FieldResult, error) {
	prompt := buildExtractionPrompt(transcript, known, fields)

	content, err := c.callChat(ctx, prompt, 0.3, 800)
	if err != nil {
		return nil, err
	}

	var result map[string]FieldResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("malformed extraction result: %w", err)
	}

	return result, nil
}

// chatRequest is the OpenAI-compatible completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// callChat performs one completion request and returns the stripped content.
func (c *Client) callChat(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		c.incrementFailedRequests()
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		c.incrementFailedRequests()
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.incrementFailedRequests()
		return "", fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.incrementFailedRequests()
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.incrementFailedRequests()
		return "", fmt.Errorf("classifier HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		c.incrementFailedRequests()
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		c.incrementFailedRequests()
		return "", fmt.Errorf("completion response contained no choices")
	}

	c.incrementSuccessRequests()
	c.updateAvgResponseTime(time.Since(startTime))

	return stripJSONFences(chatResp.Choices[0].Message.Content), nil
}

// stripJSONFences removes a markdown code fence wrapper if the model ignored
// the JSON-only instruction.
func stripJSONFences(content string) string {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+len("```"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}

	return strings.TrimSpace(content)
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}
