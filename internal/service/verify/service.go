package verify

import (
	"context"

	"fairbet-service/internal/model"
	"fairbet-service/internal/service/fair"
	"fairbet-service/internal/service/seed"
	appErr "fairbet-service/pkg/errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service exposes the commit-reveal audit trail. It refuses to reveal
// a secret before the outcome it backs is final, which is the only
// thing keeping the scheme from leaking randomness early.
type Service struct {
	db    *gorm.DB
	seeds *seed.Service
}

func NewService(db *gorm.DB, seeds *seed.Service) *Service {
	return &Service{db: db, seeds: seeds}
}

type Result struct {
	GameType           string         `json:"gameType"`
	Amount             int64          `json:"amount,omitempty"`
	Outcome            string         `json:"outcome"`
	Payout             int64          `json:"payout"`
	SeedCommitmentHash string         `json:"seedCommitmentHash"`
	RevealedSecret     string         `json:"revealedSecret"`
	ClientSeed         string         `json:"clientSeed"`
	Nonce              int            `json:"nonce"`
	Formula            string         `json:"formula"`
	Result             datatypes.JSON `json:"result,omitempty"`
	CrashPoint         *float64       `json:"crashPoint,omitempty"`
}

// Bet reveals the seed behind a settled bet. For crash bets the round
// must have crashed as well: a cashed-out bet's seed would otherwise
// disclose the crash point while the round is still live.
func (s *Service) Bet(ctx context.Context, betID int64) (*Result, error) {
	var bet model.Bet
	err := s.db.WithContext(ctx).First(&bet, betID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrBetNotFound
		}
		return nil, err
	}
	if bet.SettledAt == nil || bet.Outcome == model.BetOutcomeOpen {
		return nil, appErr.ErrNotFinalized
	}

	clientSeed := bet.ClientSeed
	nonce := bet.Nonce
	var crashPoint *float64
	if bet.RoundID != nil {
		var round model.Round
		if err := s.db.WithContext(ctx).First(&round, *bet.RoundID).Error; err != nil {
			return nil, err
		}
		if round.Status != model.RoundStatusCrashed {
			return nil, appErr.ErrNotFinalized
		}
		// The crash point is the round's outcome, drawn with the round's
		// own inputs; the bet's stored client seed never entered the
		// derivation, so returning it would break re-derivation.
		clientSeed = ""
		nonce = 0
		cp := round.CrashPoint
		crashPoint = &cp
	}

	seedRow, err := s.seeds.Get(ctx, bet.SeedID)
	if err != nil {
		return nil, err
	}

	return &Result{
		GameType:           bet.GameType,
		Amount:             bet.Amount,
		Outcome:            bet.Outcome,
		Payout:             bet.Payout,
		SeedCommitmentHash: seedRow.CommitmentHash,
		RevealedSecret:     seedRow.Secret,
		ClientSeed:         clientSeed,
		Nonce:              nonce,
		Formula:            fair.Formula,
		Result:             bet.ResultJSON,
		CrashPoint:         crashPoint,
	}, nil
}

// Round reveals the seed behind a crashed round.
func (s *Service) Round(ctx context.Context, roundID int64) (*Result, error) {
	var round model.Round
	err := s.db.WithContext(ctx).First(&round, roundID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrRoundNotFound
		}
		return nil, err
	}
	if round.Status != model.RoundStatusCrashed {
		return nil, appErr.ErrNotFinalized
	}

	seedRow, err := s.seeds.Get(ctx, round.SeedID)
	if err != nil {
		return nil, err
	}

	crashPoint := round.CrashPoint
	return &Result{
		GameType:           model.GameCrash,
		Outcome:            model.RoundStatusCrashed,
		SeedCommitmentHash: seedRow.CommitmentHash,
		RevealedSecret:     seedRow.Secret,
		ClientSeed:         "",
		Nonce:              0,
		Formula:            fair.Formula,
		CrashPoint:         &crashPoint,
	}, nil
}
