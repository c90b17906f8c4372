package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrPostProcess marks normalization failures. They are worth retrying
// since model output varies between calls.
var ErrPostProcess = errors.New("post-processing failed")

// Config holds the chat-completion model settings
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client normalizes raw extraction fields through a chat-completion model.
// The model output is validated against a JSON schema before being accepted.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a normalization client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

const systemPrompt = "You clean up fields extracted from scanned forms. " +
	"Fix OCR artifacts, trim whitespace, normalize dates to YYYY-MM-DD and numbers to plain decimals. " +
	"Keep every key from the input. Return ONLY a JSON object matching the provided schema."

// Normalize sends the raw fields through the model and returns the cleaned
// set. The input keys are preserved; only values change.
func (c *Client) Normalize(ctx context.Context, fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return fields, nil
	}

	start := time.Now()
	schema := BuildFieldsJSONSchema(fields)

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: encode fields: %v", ErrPostProcess, err)
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": string(fieldsJSON)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	raw, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPostProcess, err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrPostProcess)
	}

	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))
	if err := ValidateJSONAgainstSchema(schema, content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPostProcess, err)
	}

	var normalized map[string]any
	if err := json.Unmarshal(content, &normalized); err != nil {
		return nil, fmt.Errorf("%w: unmarshal fields: %v", ErrPostProcess, err)
	}

	c.logger.Info("Fields normalized",
		slog.String("model", c.cfg.Model),
		slog.Int("field_count", len(normalized)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	return normalized, nil
}

func (c *Client) post(ctx context.Context, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrPostProcess, err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrPostProcess, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrPostProcess, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrPostProcess, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrPostProcess, resp.StatusCode)
	}

	return raw, nil
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
