package model

import (
	"time"

	"gorm.io/datatypes"
)

// 2.1 User & Wallet

type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Phone     string `gorm:"unique;not null"`
	Nickname  string
	Avatar    string
	Status    string `gorm:"default:normal;not null"` // normal/banned
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Wallet struct {
	UserID       int64 `gorm:"primaryKey"`
	Balance      int64
	TotalWagered int64
	TotalWon     int64
	UpdatedAt    time.Time
}

// LedgerEntry records every balance movement with the balance after it,
// so a user's entry sequence reconciles to the wallet.
type LedgerEntry struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	UserID       int64 `gorm:"index"`
	Type         string // bet/win/cashout/crash_loss/signup_credit/adjust
	Delta        int64
	BalanceAfter int64
	BetID        *int64
	RoundID      *int64
	MetaJSON     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

// 2.2 Provably-fair entities

// Seed is single-use: created already bound to the bet or round that
// consumes it. Secret is only exposed through the verify service after
// the backed outcome is final.
type Seed struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Secret         string `gorm:"size:64;not null"`
	CommitmentHash string `gorm:"size:64;not null;index"`
	Used           bool   `gorm:"not null;default:true"`
	CreatedAt      time.Time
}

const (
	GameDice      = "dice"
	GamePlinko    = "plinko"
	GameSlots     = "slots"
	GameBlackjack = "blackjack"
	GameCrash     = "crash"
)

const (
	BetOutcomeOpen    = "open" // crash only: still at risk
	BetOutcomeWin     = "win"
	BetOutcomeLose    = "lose"
	BetOutcomePush    = "push"
	BetOutcomeCashout = "cashout"
	BetOutcomeCrashed = "crashed"
)

type Bet struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      int64  `gorm:"index"`
	GameType    string `gorm:"size:16;not null"`
	Amount      int64
	SeedID      int64 `gorm:"index"`
	RoundID     *int64
	ClientSeed  string
	Nonce       int
	Outcome     string `gorm:"size:16;not null"`
	Payout      int64
	CashedOutAt *float64       // crash: multiplier locked in, nil while at risk
	ResultJSON  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time
	SettledAt   *time.Time
}

const (
	RoundStatusRunning = "running"
	RoundStatusCrashed = "crashed"
)

// Round is the shared crash-game state. The partial unique index makes
// "at most one running round" a store constraint rather than an
// in-process one, so a concurrent duplicate create fails at insert.
type Round struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	SeedID     int64 `gorm:"index"`
	CrashPoint float64
	Status     string `gorm:"size:16;not null;index:uniq_running_round,unique,where:status = 'running'"`
	StartedAt  time.Time
	CrashedAt  *time.Time
}
