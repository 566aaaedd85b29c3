package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fairbet-service/internal/config"
	"fairbet-service/internal/model"
	"fairbet-service/internal/service/ledger"
	pkgAuth "fairbet-service/pkg/auth"
	appErr "fairbet-service/pkg/errors"
	"fairbet-service/pkg/logger"
	"fairbet-service/pkg/utils/random"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	rdb     *redis.Client
	ledger  *ledger.Service
	codeTTL time.Duration
}

type LoginResult struct {
	Token    string     `json:"token"`
	ExpireAt time.Time  `json:"expireAt"`
	User     model.User `json:"user"`
}

func NewService(db *gorm.DB, rdb *redis.Client, ledgerSvc *ledger.Service) *Service {
	return &Service{
		db:      db,
		rdb:     rdb,
		ledger:  ledgerSvc,
		codeTTL: 5 * time.Minute,
	}
}

const testOTPCode = "123456"

func (s *Service) SendSMS(ctx context.Context, phone string) error {
	if !isValidPhone(phone) {
		return appErr.ErrInvalidPhone
	}
	code := testOTPCode
	if !strings.EqualFold(config.GlobalConfig.Server.Mode, "debug") {
		code = random.Numeric(6)
	}

	key := buildSMSKey(phone)
	if err := s.rdb.Set(ctx, key, code, s.codeTTL).Err(); err != nil {
		return err
	}
	logger.Log.Info("otp generated",
		zap.String("phone", maskPhone(phone)),
		zap.Bool("testCode", strings.EqualFold(config.GlobalConfig.Server.Mode, "debug")),
	)
	return nil
}

func (s *Service) Login(ctx context.Context, phone, code string) (*LoginResult, error) {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(code) == "" {
		return nil, appErr.ErrInvalidPhone
	}

	key := buildSMSKey(phone)
	stored, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, appErr.ErrSMSCodeExpired
		}
		return nil, err
	}
	if stored != code {
		return nil, appErr.ErrInvalidSMSCode
	}
	s.rdb.Del(ctx, key)

	var user model.User
	err = s.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		user, err = s.createUser(ctx, phone)
		if err != nil {
			return nil, err
		}
	}

	if strings.EqualFold(user.Status, "banned") {
		return nil, appErr.ErrUserBanned
	}

	if err := s.ledger.EnsureWallet(ctx, user.ID, config.GlobalConfig.Game.SignupCredit); err != nil {
		return nil, err
	}

	token, err := pkgAuth.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}

	expireAt := time.Now().Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour)
	return &LoginResult{
		Token:    token,
		ExpireAt: expireAt,
		User:     user,
	}, nil
}

func (s *Service) createUser(ctx context.Context, phone string) (model.User, error) {
	user := model.User{
		Phone:    phone,
		Nickname: fmt.Sprintf("player_%s", random.Code(6)),
		Status:   "normal",
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return model.User{}, err
	}
	return user, nil
}

func buildSMSKey(phone string) string {
	return fmt.Sprintf("sms:otp:%s", phone)
}

func isValidPhone(phone string) bool {
	return len(strings.TrimSpace(phone)) >= 6
}

func maskPhone(phone string) string {
	if len(phone) < 7 {
		return phone
	}
	return phone[:3] + "****" + phone[len(phone)-3:]
}
