package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"fairbet-service/internal/model"
	"fairbet-service/internal/service/fair"
	appErr "fairbet-service/pkg/errors"

	"gorm.io/gorm"
)

// Service is the commitment store: it issues single-use secrets whose
// hash is published before any outcome is derived from them.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Allocate creates a fresh secret and persists it already marked used,
// in one write. It runs against the caller's transaction so the seed
// row commits or rolls back together with the bet or round that binds
// it. The secret is never handed out here; only the commitment is.
func (s *Service) Allocate(tx *gorm.DB) (*model.Seed, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrInfra, err)
	}

	seed := &model.Seed{
		Secret:         secret,
		CommitmentHash: fair.Commitment(secret),
		Used:           true,
	}
	if err := tx.Create(seed).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrInfra, err)
	}
	return seed, nil
}

// Reveal returns the stored secret for audit. Callers must only invoke
// it once the outcome the seed backs is final; that ordering is
// enforced by the verify service, not here.
func (s *Service) Reveal(ctx context.Context, seedID int64) (string, error) {
	seed, err := s.Get(ctx, seedID)
	if err != nil {
		return "", err
	}
	return seed.Secret, nil
}

func (s *Service) Get(ctx context.Context, seedID int64) (*model.Seed, error) {
	var seed model.Seed
	err := s.db.WithContext(ctx).First(&seed, seedID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrSeedNotFound
		}
		return nil, err
	}
	return &seed, nil
}

// 32 bytes from crypto/rand, hex-encoded.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
