package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BalanceRecord is the per-user credit balance. It is mutated only through
// the repository's atomic delta statements, never read-modify-write.
type BalanceRecord struct {
	UserID             string     `gorm:"primaryKey;type:text" json:"user_id"`
	Balance            int64      `gorm:"not null;default:0" json:"balance"`
	LifetimeSpentCents int64      `gorm:"not null;default:0" json:"lifetime_spent_cents"`
	DailyScanCount     int        `gorm:"not null;default:0" json:"daily_scan_count"`
	LastScanDate       string     `gorm:"type:text;not null;default:''" json:"last_scan_date"`
	LastGrantAt        *time.Time `json:"last_grant_at,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BalanceRecord) TableName() string { return "balance_records" }

// UsageEntry is one committed debit. The table is append-only: rows are
// never edited or removed, and the row count per user equals the number of
// committed debits.
type UsageEntry struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID        string            `gorm:"type:text;not null;index" json:"user_id"`
	ScanKind      string            `gorm:"type:text;not null" json:"scan_kind"`
	Credits       int64             `gorm:"not null" json:"credits"`
	DocumentLabel string            `gorm:"type:text;not null;default:''" json:"document_label"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (UsageEntry) TableName() string { return "usage_entries" }
