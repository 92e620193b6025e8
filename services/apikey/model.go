package apikey

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

const (
	ScopeTrackingWrite = "tracking.write"
	ScopeBillingRead   = "billing.read"
)

// APIKey authenticates a brand's server-to-server calls. Only the bcrypt
// hash of the secret is stored.
type APIKey struct {
	ID         string         `gorm:"column:id;primaryKey"`
	SaasID     string         `gorm:"column:saas_id;not null;index"`
	KeyID      string         `gorm:"column:key_id;uniqueIndex;not null"`
	SecretHash string         `gorm:"column:secret_hash;not null"`
	Scopes     pq.StringArray `gorm:"column:scopes;type:text[];not null"`
	Status     Status         `gorm:"column:status;default:'active';not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt  *time.Time     `gorm:"column:expires_at"`
	LastUsedAt *time.Time     `gorm:"column:last_used_at"`
}

func (k *APIKey) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

func Models() []any {
	return []any{&APIKey{}}
}
