// Package apikeys implements the API-Key Store Gateway and the in-process
// API-Key Validation Cache.
package apikeys

import "github.com/worldline-go/types"

// Status values for a Record. Transitions are active -> revoked only.
const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

// Record is one persisted API-key row. KeyHash is the primary key; the raw
// key is never stored, only its SHA-256 hex digest.
type Record struct {
	KeyHash   string `dynamodbav:"key_hash" json:"-"`
	KeyPrefix string `dynamodbav:"key_prefix" json:"key_prefix"`

	UserSub   string `dynamodbav:"user_sub" json:"-"`
	UserEmail string `dynamodbav:"user_email" json:"-"`

	Description string `dynamodbav:"description" json:"description,omitempty"`
	Status      string `dynamodbav:"status" json:"status"`

	CreatedAt types.Time           `dynamodbav:"created_at" json:"created_at"`
	ExpiresAt types.Time           `dynamodbav:"expires_at" json:"expires_at"`
	RevokedAt types.Null[types.Time] `dynamodbav:"revoked_at,omitempty" json:"revoked_at,omitempty"`
	LastUsedAt types.Null[types.Time] `dynamodbav:"last_used_at,omitempty" json:"last_used_at,omitempty"`

	// TTL is the epoch-seconds attribute DynamoDB uses to auto-delete the
	// item 30 days after ExpiresAt.
	TTL int64 `dynamodbav:"ttl" json:"-"`
}
