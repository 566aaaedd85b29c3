package service

import (
	"context"

	"fairbet-service/internal/config"
	"fairbet-service/internal/service/auth"
	"fairbet-service/internal/service/bet"
	"fairbet-service/internal/service/ledger"
	"fairbet-service/internal/service/round"
	"fairbet-service/internal/service/seed"
	"fairbet-service/internal/service/user"
	"fairbet-service/internal/service/verify"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth   *auth.Service
	User   *user.Service
	Ledger *ledger.Service
	Seed   *seed.Service
	Bet    *bet.Service
	Round  *round.Service
	Verify *verify.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	game := config.GlobalConfig.Game

	ledgerSvc := ledger.NewService(db)
	seedSvc := seed.NewService(db)

	return &Container{
		Auth:   auth.NewService(db, rdb, ledgerSvc),
		User:   user.NewService(db),
		Ledger: ledgerSvc,
		Seed:   seedSvc,
		Bet:    bet.NewService(db, seedSvc, ledgerSvc, bet.Config{HouseEdge: game.HouseEdge}),
		Round: round.NewService(db, rdb, seedSvc, ledgerSvc, round.Config{
			GrowthRate:    game.CrashGrowthRate,
			MinMultiplier: game.CrashMinMultiplier,
			MaxMultiplier: game.CrashMaxMultiplier,
		}),
		Verify: verify.NewService(db, seedSvc),
	}
}

func (c *Container) Start(ctx context.Context) error {
	return c.Round.Start(ctx)
}
