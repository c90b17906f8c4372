package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInference marks service-side extraction failures worth retrying
	// (timeouts, throttling, 5xx responses).
	ErrInference = errors.New("inference service error")

	// ErrInvalidDocument marks documents the service rejected. Retrying
	// the same bytes cannot succeed.
	ErrInvalidDocument = errors.New("document rejected by inference service")
)

// Config holds the extraction service settings
type Config struct {
	BaseURL     string
	ProcessorID string
	APIKey      string
	Timeout     time.Duration
}

// Client calls the document extraction service over HTTP
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an extraction service client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type processRequest struct {
	RawDocument rawDocument `json:"raw_document"`
}

type rawDocument struct {
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
}

type processResponse struct {
	Document struct {
		Entities []struct {
			Type        string  `json:"type"`
			MentionText string  `json:"mention_text"`
			Confidence  float64 `json:"confidence"`
		} `json:"entities"`
	} `json:"document"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Extract submits an image to the form processor and returns the extracted
// fields keyed by entity type
func (c *Client) Extract(ctx context.Context, image []byte, mimeType string) (map[string]any, error) {
	start := time.Now()

	reqBody := processRequest{
		RawDocument: rawDocument{
			Content:  base64.StdEncoding.EncodeToString(image),
			MimeType: mimeType,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrInference, err)
	}

	endpoint := fmt.Sprintf("%s/v1/processors/%s:process",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.ProcessorID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrInference, err)
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
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrInference, err)
	}

	c.logger.Info("Inference request completed",
		slog.Int("status", resp.StatusCode),
		slog.Int("image_bytes", len(image)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", ErrInference, resp.StatusCode, truncate(body, 256))

	default:
		// 4xx: the service will reject this document every time
		return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidDocument, resp.StatusCode, truncate(body, 256))
	}

	var parsed processResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrInference, err)
	}
	if parsed.Error.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, parsed.Error.Message)
	}

	fields := make(map[string]any, len(parsed.Document.Entities))
	for _, entity := range parsed.Document.Entities {
		if entity.Type == "" {
			continue
		}
		fields[entity.Type] = entity.MentionText
	}

	return fields, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
