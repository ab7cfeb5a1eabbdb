package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/complyscan/complyscan/internal/balance/domain"
	balancerepo "github.com/complyscan/complyscan/internal/balance/repository"
	"github.com/complyscan/complyscan/internal/balance/service"
	"github.com/complyscan/complyscan/internal/clock"
	"github.com/complyscan/complyscan/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_balance_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
		`CREATE INDEX ix_usage_entries_user ON usage_entries(user_id)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) domain.Service {
	t.Helper()

	node, err := snowflake.NewNode(20)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return service.New(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Catalog: config.NewStaticCatalogHolder(config.DefaultCatalogConfig()),
		Repo:    balancerepo.Provide(),
	})
}

func assertCount(t *testing.T, db *gorm.DB, query string, want int64) {
	t.Helper()

	var got int64
	if err := db.Raw(query).Scan(&got).Error; err != nil {
		t.Fatalf("count query: %v", err)
	}
	if got != want {
		t.Fatalf("expected count %d, got %d (%s)", want, got, query)
	}
}

func TestGetInitializesStarterBalance(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)

	record, err := svc.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Balance != 3 {
		t.Fatalf("expected starter balance 3, got %d", record.Balance)
	}

	// A second read must not grant again.
	record, err = svc.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Balance != 3 {
		t.Fatalf("expected balance 3 after second read, got %d", record.Balance)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM balance_records", 1)
}

func TestGetRejectsEmptyUser(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewFakeClock(time.Now()))

	if _, err := svc.Get(ctx, "  "); !errors.Is(err, domain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestDebitGuardsBalance(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)

	if _, err := svc.Get(ctx, "user_1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	err := svc.Debit(ctx, domain.DebitRequest{
		UserID:   "user_1",
		ScanKind: "ultra",
		Credits:  10,
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// The rejected debit must leave no trace.
	assertCount(t, db, "SELECT COUNT(1) FROM usage_entries", 0)
	record, err := svc.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Balance != 3 {
		t.Fatalf("expected balance 3 after rejected debit, got %d", record.Balance)
	}
	if record.DailyScanCount != 0 {
		t.Fatalf("expected daily count 0 after rejected debit, got %d", record.DailyScanCount)
	}
}

func TestDebitAppendsUsageAndDailyCounter(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)

	if _, err := svc.Get(ctx, "user_1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	for i := 0; i < 2; i++ {
		err := svc.Debit(ctx, domain.DebitRequest{
			UserID:        "user_1",
			ScanKind:      "basic",
			Credits:       1,
			DocumentLabel: "contract.pdf",
		})
		if err != nil {
			t.Fatalf("debit %d: %v", i, err)
		}
	}

	record, err := svc.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Balance != 1 {
		t.Fatalf("expected balance 1, got %d", record.Balance)
	}
	if record.DailyScanCount != 2 {
		t.Fatalf("expected daily count 2, got %d", record.DailyScanCount)
	}
	if record.LastScanDate != "2026-03-10" {
		t.Fatalf("expected last scan date 2026-03-10, got %s", record.LastScanDate)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM usage_entries", 2)

	// Crossing the UTC day boundary resets the counter to 1.
	clk.Advance(24 * time.Hour)
	err = svc.Debit(ctx, domain.DebitRequest{
		UserID:   "user_1",
		ScanKind: "basic",
		Credits:  1,
	})
	if err != nil {
		t.Fatalf("debit next day: %v", err)
	}

	record, err = svc.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.DailyScanCount != 1 {
		t.Fatalf("expected daily count reset to 1, got %d", record.DailyScanCount)
	}
	if record.LastScanDate != "2026-03-11" {
		t.Fatalf("expected last scan date 2026-03-11, got %s", record.LastScanDate)
	}
}

func TestDebitRejectsInvalidAmount(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewFakeClock(time.Now()))

	err := svc.Debit(ctx, domain.DebitRequest{UserID: "user_1", ScanKind: "basic", Credits: 0})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestGrantAddsCreditsAndCreatesRecord(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)

	// Grant for a user never seen before. The starter record is created
	// first, then topped up.
	err := svc.Grant(ctx, domain.GrantRequest{
		UserID:      "user_2",
		Credits:     50,
		AmountCents: 999,
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	record, err := svc.Get(ctx, "user_2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Balance != 53 {
		t.Fatalf("expected balance 53, got %d", record.Balance)
	}
	if record.LifetimeSpentCents != 999 {
		t.Fatalf("expected lifetime spend 999, got %d", record.LifetimeSpentCents)
	}
	if record.LastGrantAt == nil {
		t.Fatalf("expected last_grant_at to be set")
	}
}

func TestHistoryReturnsNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)

	if err := svc.Grant(ctx, domain.GrantRequest{UserID: "user_1", Credits: 20, AmountCents: 500}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	kinds := []string{"basic", "deep", "ultra"}
	for _, kind := range kinds {
		err := svc.Debit(ctx, domain.DebitRequest{UserID: "user_1", ScanKind: kind, Credits: 1})
		if err != nil {
			t.Fatalf("debit %s: %v", kind, err)
		}
		clk.Advance(time.Minute)
	}

	entries, err := svc.History(ctx, "user_1", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ScanKind != "ultra" || entries[1].ScanKind != "deep" {
		t.Fatalf("expected newest-first order, got %s then %s", entries[0].ScanKind, entries[1].ScanKind)
	}
}
