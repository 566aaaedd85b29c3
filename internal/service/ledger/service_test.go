package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"fairbet-service/internal/model"
	"fairbet-service/internal/service/ledger"
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
	if err := db.AutoMigrate(&model.Wallet{}, &model.LedgerEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestEnsureWallet(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.NewService(db)
	ctx := context.Background()

	if err := svc.EnsureWallet(ctx, 1, 10000); err != nil {
		t.Fatalf("EnsureWallet: %v", err)
	}
	wallet, err := svc.GetWallet(ctx, 1)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if wallet.Balance != 10000 {
		t.Fatalf("balance %d, want 10000", wallet.Balance)
	}

	// Repeat call must not grant a second credit.
	if err := svc.EnsureWallet(ctx, 1, 10000); err != nil {
		t.Fatalf("EnsureWallet repeat: %v", err)
	}
	wallet, err = svc.GetWallet(ctx, 1)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if wallet.Balance != 10000 {
		t.Fatalf("balance after repeat %d, want 10000", wallet.Balance)
	}

	entries, err := svc.Entries(ctx, 1, 1, 10)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if entries.Total != 1 || entries.Items[0].Type != "signup_credit" {
		t.Fatalf("expected a single signup_credit entry, got %d entries", entries.Total)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.NewService(db)
	ctx := context.Background()

	if err := svc.EnsureWallet(ctx, 1, 100); err != nil {
		t.Fatalf("EnsureWallet: %v", err)
	}

	if _, err := svc.Debit(db, 1, 101, ledger.Entry{Type: "bet"}); err != appErr.ErrInsufficientFunds {
		t.Fatalf("err %v, want ErrInsufficientFunds", err)
	}

	wallet, err := svc.GetWallet(ctx, 1)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if wallet.Balance != 100 {
		t.Fatalf("balance %d changed by rejected debit", wallet.Balance)
	}
	entries, err := svc.Entries(ctx, 1, 1, 10)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if entries.Total != 1 {
		t.Fatalf("rejected debit wrote a ledger entry")
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.NewService(db)
	if err := svc.EnsureWallet(context.Background(), 1, 100); err != nil {
		t.Fatalf("EnsureWallet: %v", err)
	}
	for _, amount := range []int64{0, -5} {
		if _, err := svc.Debit(db, 1, amount, ledger.Entry{Type: "bet"}); err != appErr.ErrInvalidBetAmount {
			t.Fatalf("amount %d: err %v, want ErrInvalidBetAmount", amount, err)
		}
	}
}

func TestDebitCreditReconcile(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.NewService(db)
	ctx := context.Background()

	if err := svc.EnsureWallet(ctx, 1, 1000); err != nil {
		t.Fatalf("EnsureWallet: %v", err)
	}

	balance, err := svc.Debit(db, 1, 300, ledger.Entry{Type: "bet"})
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if balance != 700 {
		t.Fatalf("balance after debit %d, want 700", balance)
	}

	balance, err = svc.Credit(db, 1, 450, ledger.Entry{Type: "win"})
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if balance != 1150 {
		t.Fatalf("balance after credit %d, want 1150", balance)
	}

	// The entry deltas must sum to the wallet balance, and every entry
	// must carry the balance it left behind.
	entries, err := svc.Entries(ctx, 1, 1, 100)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	var sum int64
	for _, entry := range entries.Items {
		sum += entry.Delta
	}
	if sum != 1150 {
		t.Fatalf("entry deltas sum to %d, want 1150", sum)
	}
	// Entries come newest first.
	if entries.Items[0].BalanceAfter != 1150 {
		t.Fatalf("latest BalanceAfter %d, want 1150", entries.Items[0].BalanceAfter)
	}

	wallet, err := svc.GetWallet(ctx, 1)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if wallet.TotalWagered != 300 || wallet.TotalWon != 450 {
		t.Fatalf("aggregates wagered=%d won=%d, want 300/450", wallet.TotalWagered, wallet.TotalWon)
	}
}

func TestConcurrentDebitsNeverOverdraft(t *testing.T) {
	db := newTestDB(t)
	svc := ledger.NewService(db)
	ctx := context.Background()

	if err := svc.EnsureWallet(ctx, 1, 100); err != nil {
		t.Fatalf("EnsureWallet: %v", err)
	}

	const workers = 20
	const stake = 30

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(db, 1, stake, ledger.Entry{Type: "bet"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch err {
		case nil:
			succeeded++
		case appErr.ErrInsufficientFunds:
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("succeeded debits %d, want 3 (100 / 30)", succeeded)
	}

	wallet, err := svc.GetWallet(ctx, 1)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if wallet.Balance != 100-int64(succeeded)*stake {
		t.Fatalf("final balance %d, want %d", wallet.Balance, 100-int64(succeeded)*stake)
	}
	if wallet.Balance < 0 {
		t.Fatalf("wallet overdrawn: %d", wallet.Balance)
	}
}
