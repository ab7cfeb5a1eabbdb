package domain

import (
	"context"
	"errors"
)

// Request is one document submitted for compliance analysis.
type Request struct {
	ScanKind      string
	DocumentText  string
	DocumentLabel string
}

// Analysis is the provider's markdown report plus accounting metadata.
type Analysis struct {
	Content    string `json:"content"`
	Model      string `json:"model"`
	TokensUsed int64  `json:"tokens_used"`
}

// Analyzer calls the external analysis provider. Implementations must not
// touch the balance store; charging is the caller's concern.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Analysis, error)
}

var (
	ErrEmptyDocument      = errors.New("empty_document")
	ErrProviderAuth       = errors.New("provider_auth_failed")
	ErrProviderRateLimit  = errors.New("provider_rate_limited")
	ErrProviderBadRequest = errors.New("provider_bad_request")
	ErrProviderDown       = errors.New("provider_unavailable")
)
