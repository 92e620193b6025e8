package apikey

import (
	"context"
	"errors"
	"strings"
	"time"

	"naano-tracking/pkg/errutil"
	"naano-tracking/pkg/repository"
	"naano-tracking/pkg/util"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const keyPrefix = "nk_"

var errInvalidKey = errors.New("invalid api key")

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[APIKey]
	cost int
	now  func() time.Time
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[APIKey](p.DB),
		cost: bcrypt.DefaultCost,
		now:  time.Now,
	}
}

// Issued carries the plaintext token. It is returned once and never stored.
type Issued struct {
	Key   *APIKey
	Token string
}

// Issue creates a key for a brand. The token has the form <key_id>.<secret>.
func (s *Service) Issue(ctx context.Context, saasID string, scopes []string, expiresAt *time.Time) (*Issued, error) {
	if saasID == "" {
		return nil, errutil.BadRequest("saas_id is required", nil)
	}
	if len(scopes) == 0 {
		scopes = []string{ScopeTrackingWrite}
	}

	secret, err := util.RandomToken(24)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return nil, err
	}

	key := &APIKey{
		ID:         s.node.Generate().String(),
		SaasID:     saasID,
		KeyID:      keyPrefix + s.node.Generate().Base58(),
		SecretHash: string(hash),
		Scopes:     scopes,
		Status:     StatusActive,
		ExpiresAt:  expiresAt,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, err
	}
	return &Issued{Key: key, Token: key.KeyID + "." + secret}, nil
}

// Authenticate resolves a bearer token to an active key holding every
// required scope.
func (s *Service) Authenticate(ctx context.Context, token string, scopes ...string) (*APIKey, error) {
	keyID, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || keyID == "" || secret == "" || !strings.HasPrefix(keyID, keyPrefix) {
		return nil, errutil.Unauthorized("invalid api key", errInvalidKey)
	}

	key, err := s.repo.FindOne(ctx, &APIKey{KeyID: keyID})
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, errutil.Unauthorized("invalid api key", errInvalidKey)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, errutil.Unauthorized("invalid api key", errInvalidKey)
	}
	if key.Status != StatusActive {
		return nil, errutil.Unauthorized("api key revoked", nil)
	}
	now := s.now()
	if key.ExpiresAt != nil && !now.Before(*key.ExpiresAt) {
		return nil, errutil.Unauthorized("api key expired", nil)
	}
	for _, scope := range scopes {
		if !key.HasScope(scope) {
			return nil, errutil.Forbidden("api key lacks scope "+scope, nil)
		}
	}

	if err := s.repo.Update(ctx, key.ID, map[string]any{"last_used_at": now.UTC()}); err != nil {
		zap.L().Warn("failed to touch api key", zap.String("key_id", key.KeyID), zap.Error(err))
	}
	return key, nil
}

func (s *Service) Revoke(ctx context.Context, keyID string) error {
	key, err := s.repo.FindOne(ctx, &APIKey{KeyID: keyID})
	if err != nil {
		return err
	}
	if key == nil {
		return errutil.NotFound("api key not found", nil)
	}
	return s.repo.Update(ctx, key.ID, map[string]any{"status": StatusRevoked})
}
