package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIToken maps a bearer token hash to a verified user. Tokens are stored
// hashed only; the plaintext never touches the database.
type APIToken struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    string       `gorm:"type:text;not null;index" json:"user_id"`
	TokenHash string       `gorm:"type:text;not null;uniqueIndex" json:"-"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (APIToken) TableName() string { return "api_tokens" }

// Verifier resolves a bearer token to the user it belongs to.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var ErrUnauthorized = errors.New("unauthorized")
