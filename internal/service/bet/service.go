package bet

import (
	"context"
	"encoding/json"
	"time"

	"fairbet-service/internal/model"
	"fairbet-service/internal/service/fair"
	"fairbet-service/internal/service/ledger"
	"fairbet-service/internal/service/seed"
	appErr "fairbet-service/pkg/errors"
	"fairbet-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Config struct {
	HouseEdge float64
}

func defaultConfig() Config {
	return Config{HouseEdge: 0.03}
}

// Service settles the single-shot games. A bet is created, derived and
// paid inside one transaction, so there is no open state to race on.
type Service struct {
	db     *gorm.DB
	seeds  *seed.Service
	ledger *ledger.Service
	cfg    Config
}

func NewService(db *gorm.DB, seeds *seed.Service, ledgerSvc *ledger.Service, cfg Config) *Service {
	if cfg.HouseEdge <= 0 || cfg.HouseEdge >= 1 {
		cfg.HouseEdge = defaultConfig().HouseEdge
	}
	return &Service{db: db, seeds: seeds, ledger: ledgerSvc, cfg: cfg}
}

type PlaceRequest struct {
	UserID     int64
	GameType   string
	Amount     int64
	ClientSeed string
	Dice       fair.DiceParams
	Plinko     fair.PlinkoParams
}

type PlaceResult struct {
	BetID          int64          `json:"betId"`
	GameType       string         `json:"gameType"`
	Outcome        string         `json:"outcome"`
	Payout         int64          `json:"payout"`
	NewBalance     int64          `json:"newBalance"`
	CommitmentHash string         `json:"seedCommitmentHash"`
	Result         datatypes.JSON `json:"result"`
}

// Place debits the stake, allocates a fresh seed, derives the outcome
// and credits any payout, all in one transaction. The commitment hash
// is fixed before the derivation runs.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	if req.Amount <= 0 {
		return nil, appErr.ErrInvalidBetAmount
	}

	var result *PlaceResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		balance, err := s.ledger.Debit(tx, req.UserID, req.Amount, ledger.Entry{
			Type: "bet",
			Meta: map[string]interface{}{"gameType": req.GameType},
		})
		if err != nil {
			return err
		}

		allocated, err := s.seeds.Allocate(tx)
		if err != nil {
			return err
		}

		outcome, payout, resultJSON, err := s.derive(allocated.Secret, req)
		if err != nil {
			return err
		}

		record := model.Bet{
			UserID:     req.UserID,
			GameType:   req.GameType,
			Amount:     req.Amount,
			SeedID:     allocated.ID,
			ClientSeed: req.ClientSeed,
			Nonce:      0,
			Outcome:    outcome,
			Payout:     payout,
			ResultJSON: resultJSON,
			CreatedAt:  now,
			SettledAt:  &now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		if payout > 0 {
			balance, err = s.ledger.Credit(tx, req.UserID, payout, ledger.Entry{
				Type:  "win",
				BetID: &record.ID,
				Meta:  map[string]interface{}{"gameType": req.GameType},
			})
			if err != nil {
				return err
			}
		}

		result = &PlaceResult{
			BetID:          record.ID,
			GameType:       req.GameType,
			Outcome:        outcome,
			Payout:         payout,
			NewBalance:     balance,
			CommitmentHash: allocated.CommitmentHash,
			Result:         resultJSON,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("bet settled",
		zap.Int64("userID", req.UserID),
		zap.String("gameType", req.GameType),
		zap.Int64("amount", req.Amount),
		zap.Int64("payout", result.Payout),
	)
	return result, nil
}

func (s *Service) derive(secret string, req PlaceRequest) (string, int64, datatypes.JSON, error) {
	switch req.GameType {
	case model.GameDice:
		res, err := fair.PlayDice(secret, req.ClientSeed, 0, req.Amount, req.Dice, s.cfg.HouseEdge)
		if err != nil {
			return "", 0, nil, err
		}
		return winLose(res.Win), res.Payout, mustJSON(res), nil
	case model.GamePlinko:
		res, err := fair.PlayPlinko(secret, req.ClientSeed, 0, req.Amount, req.Plinko)
		if err != nil {
			return "", 0, nil, err
		}
		return winLose(res.Payout > 0), res.Payout, mustJSON(res), nil
	case model.GameSlots:
		res := fair.PlaySlots(secret, req.ClientSeed, 0, req.Amount)
		return winLose(res.Win), res.Payout, mustJSON(res), nil
	case model.GameBlackjack:
		res := fair.PlayBlackjack(secret, req.ClientSeed, 0, req.Amount)
		outcome := model.BetOutcomeLose
		switch res.Outcome {
		case "blackjack", "win":
			outcome = model.BetOutcomeWin
		case "push":
			outcome = model.BetOutcomePush
		}
		return outcome, res.Payout, mustJSON(res), nil
	default:
		return "", 0, nil, appErr.ErrInvalidGameParams
	}
}

type HistoryResult struct {
	Items []model.Bet `json:"items"`
	Total int64       `json:"total"`
}

func (s *Service) History(ctx context.Context, userID int64, page, size int) (*HistoryResult, error) {
	query := s.db.WithContext(ctx).Model(&model.Bet{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []model.Bet
	err := query.Order("id DESC").Offset((page - 1) * size).Limit(size).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return &HistoryResult{Items: items, Total: total}, nil
}

func winLose(win bool) string {
	if win {
		return model.BetOutcomeWin
	}
	return model.BetOutcomeLose
}

func mustJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}
