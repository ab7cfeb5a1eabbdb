package domain

import (
	"context"
	"errors"

	analyzerdomain "github.com/complyscan/complyscan/internal/analyzer/domain"
)

type ScanRequest struct {
	UserID        string
	ScanKind      string
	DocumentText  string
	DocumentLabel string
}

type ScanResult struct {
	ScanKind       string                  `json:"scan_kind"`
	CreditsCharged int64                   `json:"credits_charged"`
	Balance        int64                   `json:"balance"`
	Analysis       analyzerdomain.Analysis `json:"analysis"`
}

// Service runs one scan end to end: admission, analysis, then the debit.
// The debit is committed strictly after a successful analysis; a failed
// analysis never charges the user.
type Service interface {
	Scan(ctx context.Context, req ScanRequest) (ScanResult, error)
}

// Admission denials. These are user-facing and non-retryable without
// action: buy credits or wait for the daily reset.
var (
	ErrUnknownScanKind     = errors.New("unknown_scan_kind")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrDailyLimitReached   = errors.New("daily_limit_reached")
)
