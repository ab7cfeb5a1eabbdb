// Package openrouter is the OpenAI-compatible chat-completions client used
// for document analysis. It works against OpenRouter by default but accepts
// any base URL that speaks the same API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/complyscan/complyscan/internal/analyzer/domain"
	"github.com/complyscan/complyscan/internal/config"
	"go.uber.org/zap"
)

const (
	refererHeader = "https://complyscan.example.com"
	titleHeader   = "ComplyScan"

	maxTokens   = 1000
	temperature = 0.2
)

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *zap.Logger
}

var _ domain.Analyzer = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL points the client at a different OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimRight(url, "/") }
}

func New(cfg config.AnalyzerConfig, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.Named("analyzer.openrouter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiRequest is the OpenAI chat completion request format.
type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the OpenAI chat completion response format.
type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      apiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) Analyze(ctx context.Context, req domain.Request) (domain.Analysis, error) {
	text := strings.TrimSpace(req.DocumentText)
	if text == "" {
		return domain.Analysis{}, domain.ErrEmptyDocument
	}

	body := apiRequest{
		Model: c.model,
		Messages: []apiMessage{
			{Role: "user", Content: buildPrompt(req.ScanKind, text)},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	httpResp, err := c.doRequest(ctx, body)
	if err != nil {
		return domain.Analysis{}, err
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		c.log.Warn("analysis provider error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("scan_kind", req.ScanKind),
		)
		return domain.Analysis{}, err
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return domain.Analysis{}, fmt.Errorf("decode analysis response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Analysis{}, fmt.Errorf("%w: empty choices", domain.ErrProviderDown)
	}

	return domain.Analysis{
		Content:    resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, body apiRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create analysis request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", refererHeader)
	httpReq.Header.Set("X-Title", titleHeader)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderDown, err)
	}
	return resp, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return domain.ErrProviderRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrProviderAuth
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrProviderBadRequest, string(body))
	default:
		return domain.ErrProviderDown
	}
}

func buildPrompt(scanKind, text string) string {
	var instruction string
	switch scanKind {
	case "deep":
		instruction = "Scan this document for compliance or audit risks for ATO/IRS. Provide a detailed analysis: list every red flag with the relevant tax code citation, an estimated penalty exposure, and a short summary. Format as Markdown."
	case "ultra":
		instruction = "Scan this document for compliance or audit risks for ATO/IRS. Produce a full report: red flags with tax code citations and penalty estimates, prioritized remediation recommendations with deadlines, required forms, and an overall risk rating. Format as Markdown."
	default:
		instruction = "Scan this document for compliance or audit risks for ATO/IRS. List any red flags and a one-line summary. Format as Markdown."
	}
	return instruction + "\n\nDocument content:\n" + text
}
