package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/complyscan/complyscan/internal/clock"
	"github.com/complyscan/complyscan/internal/identity/domain"
	"github.com/complyscan/complyscan/internal/identity/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_identity_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := db.Exec(`CREATE TABLE api_tokens (
		id BIGINT PRIMARY KEY,
		user_id TEXT NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedToken(t *testing.T, db *gorm.DB, id int64, userID, token string, active bool, expiresAt *time.Time) {
	t.Helper()

	err := db.Exec(
		`INSERT INTO api_tokens (id, user_id, token_hash, is_active, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, domain.HashToken(token), active, expiresAt, time.Now().UTC(),
	).Error
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
}

func TestVerifyResolvesUser(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), Clock: clk})

	seedToken(t, db, 1, "user_1", "tok_live_abc", true, nil)

	userID, err := svc.Verify(context.Background(), "tok_live_abc")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user_1" {
		t.Fatalf("expected user_1, got %s", userID)
	}
}

func TestVerifyRejectsUnknownToken(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now().UTC())
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), Clock: clk})

	if _, err := svc.Verify(context.Background(), "tok_unknown"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifyRejectsExpiredAndInactiveTokens(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), Clock: clk})

	expired := now.Add(-time.Hour)
	seedToken(t, db, 1, "user_1", "tok_expired", true, &expired)
	seedToken(t, db, 2, "user_2", "tok_inactive", false, nil)

	if _, err := svc.Verify(context.Background(), "tok_expired"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
	if _, err := svc.Verify(context.Background(), "tok_inactive"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for inactive token, got %v", err)
	}
}
