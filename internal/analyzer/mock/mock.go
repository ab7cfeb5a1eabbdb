// Package mock is a canned analyzer for tests and local development.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/complyscan/complyscan/internal/analyzer/domain"
)

type Analyzer struct {
	mu sync.Mutex

	// Err, when set, is returned from every Analyze call.
	Err error

	// Content overrides the canned report.
	Content string

	calls []domain.Request
}

var _ domain.Analyzer = (*Analyzer)(nil)

func New() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Analyze(ctx context.Context, req domain.Request) (domain.Analysis, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	err := a.Err
	content := a.Content
	a.mu.Unlock()

	if err != nil {
		return domain.Analysis{}, err
	}
	if strings.TrimSpace(req.DocumentText) == "" {
		return domain.Analysis{}, domain.ErrEmptyDocument
	}
	if content == "" {
		content = "## Summary\nNo red flags found."
	}
	return domain.Analysis{Content: content, Model: "mock"}, nil
}

// Calls returns a copy of every request seen so far.
func (a *Analyzer) Calls() []domain.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Request, len(a.calls))
	copy(out, a.calls)
	return out
}
