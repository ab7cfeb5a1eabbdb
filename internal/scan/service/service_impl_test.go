package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	analyzermock "github.com/complyscan/complyscan/internal/analyzer/mock"
	balancedomain "github.com/complyscan/complyscan/internal/balance/domain"
	balancerepo "github.com/complyscan/complyscan/internal/balance/repository"
	balanceservice "github.com/complyscan/complyscan/internal/balance/service"
	"github.com/complyscan/complyscan/internal/clock"
	"github.com/complyscan/complyscan/internal/config"
	"github.com/complyscan/complyscan/internal/observability/metrics"
	scandomain "github.com/complyscan/complyscan/internal/scan/domain"
	scanservice "github.com/complyscan/complyscan/internal/scan/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	clk      *clock.FakeClock
	analyzer *analyzermock.Analyzer
	balance  balancedomain.Service
	scan     scandomain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_scan_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE balance_records (
			user_id TEXT PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0,
			lifetime_spent_cents BIGINT NOT NULL DEFAULT 0,
			daily_scan_count INTEGER NOT NULL DEFAULT 0,
			last_scan_date TEXT NOT NULL DEFAULT '',
			last_grant_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE usage_entries (
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			scan_kind TEXT NOT NULL,
			credits BIGINT NOT NULL,
			document_label TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	node, err := snowflake.NewNode(21)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	catalog := config.NewStaticCatalogHolder(config.DefaultCatalogConfig())

	balanceSvc := balanceservice.New(balanceservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Catalog: catalog,
		Repo:    balancerepo.Provide(),
	})

	mockAnalyzer := analyzermock.New()
	scanSvc := scanservice.New(scanservice.Params{
		Log:      zap.NewNop(),
		Clock:    clk,
		Catalog:  catalog,
		Metrics:  metrics.NewNop(),
		Balance:  balanceSvc,
		Analyzer: mockAnalyzer,
	})

	return &fixture{db: db, clk: clk, analyzer: mockAnalyzer, balance: balanceSvc, scan: scanSvc}
}

func (f *fixture) usageCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Raw("SELECT COUNT(1) FROM usage_entries").Scan(&n).Error; err != nil {
		t.Fatalf("count usage: %v", err)
	}
	return n
}

func TestScanChargesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	result, err := f.scan.Scan(ctx, scandomain.ScanRequest{
		UserID:        "user_1",
		ScanKind:      "basic",
		DocumentText:  "ledger entries",
		DocumentLabel: "ledger.csv",
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.CreditsCharged != 1 {
		t.Fatalf("expected 1 credit charged, got %d", result.CreditsCharged)
	}
	if result.Balance != 2 {
		t.Fatalf("expected remaining balance 2, got %d", result.Balance)
	}
	if result.Analysis.Content == "" {
		t.Fatalf("expected analysis content")
	}
	if got := f.usageCount(t); got != 1 {
		t.Fatalf("expected exactly one usage entry, got %d", got)
	}

	record, err := f.balance.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Balance != 2 {
		t.Fatalf("expected stored balance 2, got %d", record.Balance)
	}
}

func TestScanDeniedNeverCallsProvider(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	// Starter balance is 3; ultra costs 10.
	_, err := f.scan.Scan(ctx, scandomain.ScanRequest{
		UserID:       "user_1",
		ScanKind:     "ultra",
		DocumentText: "doc",
	})
	if !errors.Is(err, scandomain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if calls := f.analyzer.Calls(); len(calls) != 0 {
		t.Fatalf("provider must not be called on denial, saw %d calls", len(calls))
	}
	if got := f.usageCount(t); got != 0 {
		t.Fatalf("expected no usage entries, got %d", got)
	}
}

func TestScanUnknownKindDenied(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.scan.Scan(ctx, scandomain.ScanRequest{
		UserID:       "user_1",
		ScanKind:     "mega",
		DocumentText: "doc",
	})
	if !errors.Is(err, scandomain.ErrUnknownScanKind) {
		t.Fatalf("expected ErrUnknownScanKind, got %v", err)
	}
}

func TestScanFailedAnalysisDoesNotCharge(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	f.analyzer.Err = errors.New("provider exploded")
	_, err := f.scan.Scan(ctx, scandomain.ScanRequest{
		UserID:       "user_1",
		ScanKind:     "basic",
		DocumentText: "doc",
	})
	if err == nil {
		t.Fatalf("expected error from failed analysis")
	}

	record, err := f.balance.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Balance != 3 {
		t.Fatalf("expected untouched balance 3, got %d", record.Balance)
	}
	if got := f.usageCount(t); got != 0 {
		t.Fatalf("expected no usage entries, got %d", got)
	}
}

func TestScanDailyCeiling(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	// Fund the account well past the ceiling.
	if err := f.balance.Grant(ctx, balancedomain.GrantRequest{UserID: "user_1", Credits: 100, AmountCents: 2000}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	for i := 0; i < 10; i++ {
		_, err := f.scan.Scan(ctx, scandomain.ScanRequest{UserID: "user_1", ScanKind: "basic", DocumentText: "doc"})
		if err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}

	_, err := f.scan.Scan(ctx, scandomain.ScanRequest{UserID: "user_1", ScanKind: "basic", DocumentText: "doc"})
	if !errors.Is(err, scandomain.ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}

	// The ceiling resets on the next UTC day.
	f.clk.Advance(24 * time.Hour)
	if _, err := f.scan.Scan(ctx, scandomain.ScanRequest{UserID: "user_1", ScanKind: "basic", DocumentText: "doc"}); err != nil {
		t.Fatalf("scan after reset: %v", err)
	}
}
