package ledger

import (
	"context"
	"encoding/json"
	"time"

	"fairbet-service/internal/model"
	appErr "fairbet-service/pkg/errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service owns every balance mutation. Debits and credits run against
// the caller's transaction so money moves atomically with the bet or
// round row that justified the move.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Entry describes the ledger record written alongside a movement.
type Entry struct {
	Type    string
	BetID   *int64
	RoundID *int64
	Meta    map[string]interface{}
}

// Debit takes amount from the user's balance. The sufficiency check is
// part of the UPDATE predicate, so two concurrent debits can never both
// pass against a stale read: the row update serializes them and the
// loser sees zero affected rows.
func (s *Service) Debit(tx *gorm.DB, userID, amount int64, entry Entry) (int64, error) {
	if amount <= 0 {
		return 0, appErr.ErrInvalidBetAmount
	}
	now := time.Now()

	res := tx.Model(&model.Wallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":       gorm.Expr("balance - ?", amount),
			"total_wagered": gorm.Expr("total_wagered + ?", amount),
			"updated_at":    now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, appErr.ErrInsufficientFunds
	}

	balance, err := s.balanceAfter(tx, userID)
	if err != nil {
		return 0, err
	}
	return balance, s.writeEntry(tx, userID, -amount, balance, entry, now)
}

// Credit adds amount to the user's balance.
func (s *Service) Credit(tx *gorm.DB, userID, amount int64, entry Entry) (int64, error) {
	if amount < 0 {
		return 0, appErr.ErrInvalidBetAmount
	}
	now := time.Now()

	if amount > 0 {
		res := tx.Model(&model.Wallet{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", amount),
				"total_won":  gorm.Expr("total_won + ?", amount),
				"updated_at": now,
			})
		if res.Error != nil {
			return 0, res.Error
		}
	}

	balance, err := s.balanceAfter(tx, userID)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return balance, nil
	}
	return balance, s.writeEntry(tx, userID, amount, balance, entry, now)
}

// EnsureWallet creates the user's wallet with an opening credit on
// first use. Safe to call repeatedly.
func (s *Service) EnsureWallet(ctx context.Context, userID, openingCredit int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet model.Wallet
		err := tx.Where("user_id = ?", userID).First(&wallet).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		now := time.Now()
		wallet = model.Wallet{UserID: userID, Balance: openingCredit, UpdatedAt: now}
		if err := tx.Create(&wallet).Error; err != nil {
			return err
		}
		if openingCredit == 0 {
			return nil
		}
		return s.writeEntry(tx, userID, openingCredit, openingCredit, Entry{Type: "signup_credit"}, now)
	})
}

func (s *Service) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	var wallet model.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &model.Wallet{UserID: userID}, nil
		}
		return nil, err
	}
	return &wallet, nil
}

type EntriesResult struct {
	Items []model.LedgerEntry `json:"items"`
	Total int64               `json:"total"`
}

func (s *Service) Entries(ctx context.Context, userID int64, page, size int) (*EntriesResult, error) {
	query := s.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []model.LedgerEntry
	err := query.Order("id DESC").Offset((page - 1) * size).Limit(size).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return &EntriesResult{Items: items, Total: total}, nil
}

func (s *Service) balanceAfter(tx *gorm.DB, userID int64) (int64, error) {
	var wallet model.Wallet
	if err := tx.Select("balance").Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func (s *Service) writeEntry(tx *gorm.DB, userID, delta, balanceAfter int64, entry Entry, now time.Time) error {
	record := model.LedgerEntry{
		UserID:       userID,
		Type:         entry.Type,
		Delta:        delta,
		BalanceAfter: balanceAfter,
		BetID:        entry.BetID,
		RoundID:      entry.RoundID,
		MetaJSON:     mustJSON(entry.Meta),
		CreatedAt:    now,
	}
	return tx.Create(&record).Error
}

func mustJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("{}")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}
