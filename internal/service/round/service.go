package round

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"fairbet-service/internal/model"
	"fairbet-service/internal/service/fair"
	"fairbet-service/internal/service/ledger"
	"fairbet-service/internal/service/seed"
	appErr "fairbet-service/pkg/errors"
	"fairbet-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Config struct {
	GrowthRate    float64
	MinMultiplier float64
	MaxMultiplier float64
	TickInterval  time.Duration
	BetLockTTL    time.Duration
}

func defaultConfig() Config {
	return Config{
		GrowthRate:    0.5,
		MinMultiplier: 1.0,
		MaxMultiplier: 10.0,
		TickInterval:  100 * time.Millisecond,
		BetLockTTL:    5 * time.Second,
	}
}

// Notifier receives live round events for the websocket feed. Delivery
// is best effort; correctness never depends on it.
type Notifier interface {
	RoundTick(state State)
	RoundCrashed(state State)
}

// Service drives the shared crash round. No goroutine owns a round:
// every transition is a conditional update whose predicate re-verifies
// the state it depends on, so any number of concurrent requests can
// race safely and "read state, then write" never decides money.
type Service struct {
	db       *gorm.DB
	rdb      *redis.Client
	seeds    *seed.Service
	ledger   *ledger.Service
	cfg      Config
	notifier Notifier

	startOnce sync.Once
}

func NewService(db *gorm.DB, rdb *redis.Client, seeds *seed.Service, ledgerSvc *ledger.Service, cfg Config) *Service {
	def := defaultConfig()
	if cfg.GrowthRate <= 0 {
		cfg.GrowthRate = def.GrowthRate
	}
	if cfg.MinMultiplier < 1 {
		cfg.MinMultiplier = def.MinMultiplier
	}
	if cfg.MaxMultiplier <= cfg.MinMultiplier {
		cfg.MaxMultiplier = def.MaxMultiplier
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.BetLockTTL <= 0 {
		cfg.BetLockTTL = def.BetLockTTL
	}
	return &Service{db: db, rdb: rdb, seeds: seeds, ledger: ledgerSvc, cfg: cfg}
}

func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// State is the public snapshot of a round. CrashPoint is only filled
// in once the round has crashed.
type State struct {
	RoundID        int64     `json:"roundId"`
	Status         string    `json:"status"`
	StartedAt      time.Time `json:"startedAt"`
	Multiplier     float64   `json:"currentMultiplier"`
	CrashPoint     *float64  `json:"crashPoint,omitempty"`
	CommitmentHash string    `json:"seedCommitmentHash"`
}

// MultiplierAt evaluates the public elapsed-time curve for this
// service's configuration.
func (s *Service) MultiplierAt(startedAt, now time.Time) float64 {
	return fair.CrashMultiplier(now.Sub(startedAt), s.cfg.GrowthRate, s.cfg.MaxMultiplier)
}

// Current returns the running round, or nil when none is running. A
// caller that observes the multiplier at or past the crash point is
// also the trigger that initiates settlement.
func (s *Service) Current(ctx context.Context) (*State, error) {
	round, err := s.loadRunning(ctx)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, nil
	}

	now := time.Now()
	if s.MultiplierAt(round.StartedAt, now) >= round.CrashPoint {
		if _, err := s.Settle(ctx, round.ID); err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).First(round, round.ID).Error; err != nil {
			return nil, err
		}
	}
	return s.buildState(ctx, round, now)
}

type PlaceBetRequest struct {
	UserID     int64
	Amount     int64
	ClientSeed string
}

type PlaceBetResult struct {
	BetID          int64   `json:"betId"`
	RoundID        int64   `json:"roundId"`
	Amount         int64   `json:"amount"`
	NewBalance     int64   `json:"newBalance"`
	CommitmentHash string  `json:"seedCommitmentHash"`
	Multiplier     float64 `json:"multiplierAtPlacement"`
}

// PlaceBet attaches one bet to the running round, debiting the stake
// immediately. The transaction ends with a conditional touch of the
// round row: if the round stopped running while the bet was being
// written, the touch matches nothing and everything rolls back, so a
// bet can never attach to a crashed round.
func (s *Service) PlaceBet(ctx context.Context, req PlaceBetRequest) (*PlaceBetResult, error) {
	if req.Amount <= 0 {
		return nil, appErr.ErrInvalidBetAmount
	}

	if s.rdb != nil {
		lockKey := buildBetLockKey(req.UserID)
		gotLock, err := s.rdb.SetNX(ctx, lockKey, 1, s.cfg.BetLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", appErr.ErrInfra, err)
		}
		if !gotLock {
			return nil, appErr.ErrBetAlreadyPlaced
		}
		defer s.rdb.Del(ctx, lockKey)
	}

	round, err := s.EnsureRound(ctx)
	if err != nil {
		return nil, err
	}

	var result *PlaceBetResult
	var crashedRoundID int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Round
		if err := tx.First(&current, round.ID).Error; err != nil {
			return err
		}
		if current.Status != model.RoundStatusRunning {
			return appErr.ErrInvalidRoundState
		}

		now := time.Now()
		multiplier := s.MultiplierAt(current.StartedAt, now)
		if multiplier >= current.CrashPoint {
			crashedRoundID = current.ID
			return appErr.ErrRoundCrashed
		}

		// Only an open bet blocks another; a player who cashed out may
		// re-enter the same round.
		var open int64
		err := tx.Model(&model.Bet{}).
			Where("round_id = ? AND user_id = ? AND outcome = ?", current.ID, req.UserID, model.BetOutcomeOpen).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return appErr.ErrBetAlreadyPlaced
		}

		record := model.Bet{
			UserID:     req.UserID,
			GameType:   model.GameCrash,
			Amount:     req.Amount,
			SeedID:     current.SeedID,
			RoundID:    &current.ID,
			ClientSeed: req.ClientSeed,
			Nonce:      0,
			Outcome:    model.BetOutcomeOpen,
			CreatedAt:  now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		balance, err := s.ledger.Debit(tx, req.UserID, req.Amount, ledger.Entry{
			Type:    "bet",
			BetID:   &record.ID,
			RoundID: &current.ID,
			Meta:    map[string]interface{}{"gameType": model.GameCrash},
		})
		if err != nil {
			return err
		}

		// Re-verify as part of a write predicate: a concurrent
		// settlement either already committed (zero rows, roll back)
		// or will see this bet once we commit.
		guard := tx.Model(&model.Round{}).
			Where("id = ? AND status = ?", current.ID, model.RoundStatusRunning).
			Update("seed_id", current.SeedID)
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			crashedRoundID = current.ID
			return appErr.ErrRoundCrashed
		}

		// Must read through tx: a query on the root handle would wait
		// for a second pool connection while this transaction holds one.
		var seedRow model.Seed
		if err := tx.First(&seedRow, current.SeedID).Error; err != nil {
			return err
		}

		result = &PlaceBetResult{
			BetID:          record.ID,
			RoundID:        current.ID,
			Amount:         req.Amount,
			NewBalance:     balance,
			CommitmentHash: seedRow.CommitmentHash,
			Multiplier:     multiplier,
		}
		return nil
	})
	if crashedRoundID != 0 {
		// The placement discovered the crash; settle before surfacing it.
		if _, settleErr := s.Settle(ctx, crashedRoundID); settleErr != nil {
			logger.Log.Warn("settlement after crash discovery failed",
				zap.Int64("roundID", crashedRoundID),
				zap.Error(settleErr),
			)
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Log.Info("crash bet placed",
		zap.Int64("userID", req.UserID),
		zap.Int64("roundID", result.RoundID),
		zap.Int64("amount", req.Amount),
	)
	return result, nil
}

type CashOutResult struct {
	BetID      int64   `json:"betId"`
	RoundID    int64   `json:"roundId"`
	Multiplier float64 `json:"cashedOutAtMultiplier"`
	Payout     int64   `json:"payout"`
	NewBalance int64   `json:"newBalance"`
}

// CashOut locks in the current multiplier for the requester's bet.
// After the usual checks, the decisive step is a conditional update of
// the bet row predicated on it still being open and not cashed out:
// the first request to commit wins, and a concurrent duplicate or a
// concurrent settlement makes the predicate match nothing, yielding a
// deterministic rejection instead of a double payout.
func (s *Service) CashOut(ctx context.Context, userID, betID int64) (*CashOutResult, error) {
	var result *CashOutResult
	var crashedRoundID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bet model.Bet
		err := tx.First(&bet, betID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrBetNotFound
			}
			return err
		}
		if bet.UserID != userID || bet.GameType != model.GameCrash || bet.RoundID == nil {
			return appErr.ErrBetNotFound
		}
		if bet.CashedOutAt != nil {
			return appErr.ErrAlreadyCashedOut
		}
		if bet.Outcome != model.BetOutcomeOpen {
			return appErr.ErrRoundCrashed
		}

		var round model.Round
		if err := tx.First(&round, *bet.RoundID).Error; err != nil {
			return err
		}
		if round.Status != model.RoundStatusRunning {
			return appErr.ErrRoundCrashed
		}

		now := time.Now()
		multiplier := s.MultiplierAt(round.StartedAt, now)
		if multiplier >= round.CrashPoint {
			crashedRoundID = round.ID
			return appErr.ErrRoundCrashed
		}

		payout := int64(math.Floor(float64(bet.Amount) * multiplier))
		res := tx.Model(&model.Bet{}).
			Where("id = ? AND cashed_out_at IS NULL AND outcome = ?", bet.ID, model.BetOutcomeOpen).
			Updates(map[string]interface{}{
				"cashed_out_at": multiplier,
				"outcome":       model.BetOutcomeCashout,
				"payout":        payout,
				"settled_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race: either a duplicate cash-out or the
			// settlement got there first.
			var latest model.Bet
			if err := tx.First(&latest, bet.ID).Error; err != nil {
				return err
			}
			if latest.CashedOutAt != nil {
				return appErr.ErrAlreadyCashedOut
			}
			return appErr.ErrRoundCrashed
		}

		balance, err := s.ledger.Credit(tx, userID, payout, ledger.Entry{
			Type:    "cashout",
			BetID:   &bet.ID,
			RoundID: bet.RoundID,
			Meta:    map[string]interface{}{"multiplier": multiplier},
		})
		if err != nil {
			return err
		}

		result = &CashOutResult{
			BetID:      bet.ID,
			RoundID:    round.ID,
			Multiplier: multiplier,
			Payout:     payout,
			NewBalance: balance,
		}
		return nil
	})
	if crashedRoundID != 0 {
		if _, settleErr := s.Settle(ctx, crashedRoundID); settleErr != nil {
			logger.Log.Warn("settlement after crash discovery failed",
				zap.Int64("roundID", crashedRoundID),
				zap.Error(settleErr),
			)
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Log.Info("crash bet cashed out",
		zap.Int64("userID", userID),
		zap.Int64("betID", betID),
		zap.Float64("multiplier", result.Multiplier),
	)
	return result, nil
}

// Settle performs the exactly-once transition to CRASHED. The status
// swap is a compare-and-swap: of any number of concurrent callers,
// exactly one sees an affected row, and only that caller settles the
// outstanding bets. Swap and bet settlement share one transaction, so
// a failure leaves the round running and the trigger simply fires
// again. Returns whether this caller won the swap.
func (s *Service) Settle(ctx context.Context, roundID int64) (bool, error) {
	won := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&model.Round{}).
			Where("id = ? AND status = ?", roundID, model.RoundStatusRunning).
			Updates(map[string]interface{}{
				"status":     model.RoundStatusCrashed,
				"crashed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the swap: another observer is (or was) the settler.
			return nil
		}
		won = true
		return settleOpenBets(tx, roundID, now)
	})
	if err != nil {
		return false, err
	}
	if won {
		logger.Log.Info("round crashed", zap.Int64("roundID", roundID))
		s.notifyCrashed(ctx, roundID)
	}
	return won, nil
}

// ResettleCrashed sweeps bets left open on an already-crashed round.
// The predicate on outcome makes it idempotent per bet, so it is safe
// to run any number of times.
func (s *Service) ResettleCrashed(ctx context.Context, roundID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var round model.Round
		if err := tx.First(&round, roundID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return appErr.ErrRoundNotFound
			}
			return err
		}
		if round.Status != model.RoundStatusCrashed {
			return appErr.ErrInvalidRoundState
		}
		return settleOpenBets(tx, roundID, time.Now())
	})
}

// Stakes were debited at attachment; recording the loss moves no money.
func settleOpenBets(tx *gorm.DB, roundID int64, now time.Time) error {
	return tx.Model(&model.Bet{}).
		Where("round_id = ? AND outcome = ?", roundID, model.BetOutcomeOpen).
		Updates(map[string]interface{}{
			"outcome":    model.BetOutcomeCrashed,
			"payout":     0,
			"settled_at": now,
		}).Error
}

// EnsureRound returns the running round, creating one when none
// exists. The partial unique index on status='running' resolves a
// create race: the loser's insert fails and it re-reads the winner's
// row.
func (s *Service) EnsureRound(ctx context.Context) (*model.Round, error) {
	round, err := s.loadRunning(ctx)
	if err != nil {
		return nil, err
	}
	if round != nil {
		return round, nil
	}

	created, err := s.createRound(ctx)
	if err == nil {
		return created, nil
	}
	round, loadErr := s.loadRunning(ctx)
	if loadErr == nil && round != nil {
		return round, nil
	}
	return nil, err
}

func (s *Service) createRound(ctx context.Context) (*model.Round, error) {
	var round *model.Round
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allocated, err := s.seeds.Allocate(tx)
		if err != nil {
			return err
		}
		crashPoint := fair.CrashPoint(allocated.Secret, "", 0, s.cfg.MinMultiplier, s.cfg.MaxMultiplier)

		round = &model.Round{
			SeedID:     allocated.ID,
			CrashPoint: crashPoint,
			Status:     model.RoundStatusRunning,
			StartedAt:  time.Now(),
		}
		return tx.Create(round).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("round started",
		zap.Int64("roundID", round.ID),
		zap.Time("startedAt", round.StartedAt),
	)
	return round, nil
}

func (s *Service) loadRunning(ctx context.Context) (*model.Round, error) {
	var round model.Round
	err := s.db.WithContext(ctx).
		Where("status = ?", model.RoundStatusRunning).
		First(&round).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &round, nil
}

func (s *Service) buildState(ctx context.Context, round *model.Round, now time.Time) (*State, error) {
	state := &State{
		RoundID:   round.ID,
		Status:    round.Status,
		StartedAt: round.StartedAt,
	}
	if round.Status == model.RoundStatusCrashed {
		crashPoint := round.CrashPoint
		state.CrashPoint = &crashPoint
		state.Multiplier = crashPoint
	} else {
		state.Multiplier = s.MultiplierAt(round.StartedAt, now)
	}
	if seedRow, err := s.seeds.Get(ctx, round.SeedID); err == nil {
		state.CommitmentHash = seedRow.CommitmentHash
	}
	return state, nil
}

func (s *Service) notifyCrashed(ctx context.Context, roundID int64) {
	if s.notifier == nil {
		return
	}
	var round model.Round
	if err := s.db.WithContext(ctx).First(&round, roundID).Error; err != nil {
		return
	}
	state, err := s.buildState(ctx, &round, time.Now())
	if err != nil {
		return
	}
	s.notifier.RoundCrashed(*state)
}

func buildBetLockKey(userID int64) string {
	return fmt.Sprintf("crash:bet:lock:%d", userID)
}
