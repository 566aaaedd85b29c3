package seed_test

import (
	"context"
	"fmt"
	"testing"

	"fairbet-service/internal/model"
	"fairbet-service/internal/service/fair"
	"fairbet-service/internal/service/seed"
	appErr "fairbet-service/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.Seed{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestAllocate(t *testing.T) {
	db := newTestDB(t)
	svc := seed.NewService(db)

	allocated, err := svc.Allocate(db)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if allocated.ID == 0 {
		t.Fatalf("seed not persisted")
	}
	if len(allocated.Secret) != 64 {
		t.Fatalf("secret length %d, want 64 hex chars", len(allocated.Secret))
	}
	if allocated.CommitmentHash != fair.Commitment(allocated.Secret) {
		t.Fatalf("commitment %s does not hash secret", allocated.CommitmentHash)
	}
	if !allocated.Used {
		t.Fatalf("seed should be created already bound")
	}
}

func TestAllocateUniqueSecrets(t *testing.T) {
	db := newTestDB(t)
	svc := seed.NewService(db)

	secrets := map[string]bool{}
	for i := 0; i < 20; i++ {
		allocated, err := svc.Allocate(db)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		if secrets[allocated.Secret] {
			t.Fatalf("duplicate secret at allocation %d", i)
		}
		secrets[allocated.Secret] = true
	}
}

func TestRevealAndGet(t *testing.T) {
	db := newTestDB(t)
	svc := seed.NewService(db)
	ctx := context.Background()

	allocated, err := svc.Allocate(db)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	secret, err := svc.Reveal(ctx, allocated.ID)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if secret != allocated.Secret {
		t.Fatalf("revealed %s, want %s", secret, allocated.Secret)
	}

	if _, err := svc.Get(ctx, allocated.ID+1000); err != appErr.ErrSeedNotFound {
		t.Fatalf("missing seed err %v, want ErrSeedNotFound", err)
	}
}

func TestAllocateInsideRolledBackTransaction(t *testing.T) {
	db := newTestDB(t)
	svc := seed.NewService(db)
	ctx := context.Background()

	var seedID int64
	sentinel := fmt.Errorf("abort")
	err := db.Transaction(func(tx *gorm.DB) error {
		allocated, err := svc.Allocate(tx)
		if err != nil {
			return err
		}
		seedID = allocated.ID
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("transaction err %v, want sentinel", err)
	}

	if _, err := svc.Get(ctx, seedID); err != appErr.ErrSeedNotFound {
		t.Fatalf("rolled-back seed should not exist, got err %v", err)
	}
}
