package api

import (
	"errors"
	"net/http"
	"strconv"

	"fairbet-service/internal/middleware"
	"fairbet-service/internal/model"
	"fairbet-service/internal/service"
	betSvc "fairbet-service/internal/service/bet"
	"fairbet-service/internal/service/fair"
	roundSvc "fairbet-service/internal/service/round"
	userSvc "fairbet-service/internal/service/user"
	"fairbet-service/internal/ws"
	appErr "fairbet-service/pkg/errors"
	"fairbet-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container, hub *ws.Hub) {
	handler := &Handler{services: services}

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/fairbet/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/sms/send", handler.SendSMSCode)
			authGroup.POST("/sms/login", handler.SMSLogin)
		}

		userGroup := v1.Group("/user")
		userGroup.Use(middleware.AuthRequired())
		{
			userGroup.GET("/profile", handler.GetProfile)
			userGroup.PUT("/profile", handler.UpdateProfile)
		}

		walletGroup := v1.Group("/wallet")
		walletGroup.Use(middleware.AuthRequired())
		{
			walletGroup.GET("", handler.GetWallet)
			walletGroup.GET("/entries", handler.ListWalletEntries)
		}

		betGroup := v1.Group("/bets")
		betGroup.Use(middleware.AuthRequired())
		{
			betGroup.POST("/:game", handler.PlaceBet)
			betGroup.GET("", handler.ListBets)
		}

		crashGroup := v1.Group("/crash")
		{
			crashGroup.GET("/round", handler.CurrentRound)
			crashGroup.POST("/bets", middleware.AuthRequired(), handler.PlaceCrashBet)
			crashGroup.POST("/cashout", middleware.AuthRequired(), handler.CashOut)
		}

		verifyGroup := v1.Group("/verify")
		{
			verifyGroup.GET("/bets/:id", handler.VerifyBet)
			verifyGroup.GET("/rounds/:id", handler.VerifyRound)
		}
	}

	r.GET("/ws/crash", hub.HandleCrashWS)
}

type smsSendBody struct {
	Phone string `json:"phone" binding:"required"`
}

type smsLoginBody struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type updateProfileBody struct {
	Nickname *string `json:"nickname"`
	Avatar   *string `json:"avatar"`
}

type placeBetBody struct {
	Amount     int64  `json:"amount" binding:"required,min=1"`
	ClientSeed string `json:"clientSeed"`
	Target     int    `json:"target"`                                         // dice
	Condition  string `json:"condition" binding:"omitempty,oneof=over under"` // dice
	Risk       string `json:"risk" binding:"omitempty,oneof=low medium high"` // plinko
}

type crashBetBody struct {
	Amount     int64  `json:"amount" binding:"required,min=1"`
	ClientSeed string `json:"clientSeed"`
}

type cashOutBody struct {
	BetID int64 `json:"betId" binding:"required"`
}

func (h *Handler) SendSMSCode(c *gin.Context) {
	var body smsSendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.services.Auth.SendSMS(c.Request.Context(), body.Phone); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{}, "code sent")
}

func (h *Handler) SMSLogin(c *gin.Context) {
	var body smsLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Auth.Login(c.Request.Context(), body.Phone, body.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.services.User.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		response.Error(c, http.StatusNotFound, "user not found")
		return
	}
	response.Success(c, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.services.User.UpdateProfile(c.Request.Context(), middleware.UserID(c), userSvc.UpdateProfileRequest{
		Nickname: body.Nickname,
		Avatar:   body.Avatar,
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, user)
}

func (h *Handler) GetWallet(c *gin.Context) {
	wallet, err := h.services.Ledger.GetWallet(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, wallet)
}

func (h *Handler) ListWalletEntries(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Ledger.Entries(c.Request.Context(), middleware.UserID(c), page, size)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{
		"items": result.Items,
		"total": result.Total,
		"page":  page,
		"size":  size,
	})
}

func (h *Handler) PlaceBet(c *gin.Context) {
	game := c.Param("game")
	switch game {
	case model.GameDice, model.GamePlinko, model.GameSlots, model.GameBlackjack:
	default:
		response.Error(c, http.StatusBadRequest, "unknown game")
		return
	}

	var body placeBetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Bet.Place(c.Request.Context(), betSvc.PlaceRequest{
		UserID:     middleware.UserID(c),
		GameType:   game,
		Amount:     body.Amount,
		ClientSeed: body.ClientSeed,
		Dice:       fair.DiceParams{Target: body.Target, Condition: body.Condition},
		Plinko:     fair.PlinkoParams{Risk: body.Risk},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) ListBets(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Bet.History(c.Request.Context(), middleware.UserID(c), page, size)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{
		"items": result.Items,
		"total": result.Total,
		"page":  page,
		"size":  size,
	})
}

func (h *Handler) CurrentRound(c *gin.Context) {
	state, err := h.services.Round.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if state == nil {
		response.Success(c, nil)
		return
	}
	response.Success(c, state)
}

func (h *Handler) PlaceCrashBet(c *gin.Context) {
	var body crashBetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Round.PlaceBet(c.Request.Context(), roundSvc.PlaceBetRequest{
		UserID:     middleware.UserID(c),
		Amount:     body.Amount,
		ClientSeed: body.ClientSeed,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) CashOut(c *gin.Context) {
	var body cashOutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Round.CashOut(c.Request.Context(), middleware.UserID(c), body.BetID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) VerifyBet(c *gin.Context) {
	betID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid bet id")
		return
	}

	result, err := h.services.Verify.Bet(c.Request.Context(), betID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) VerifyRound(c *gin.Context) {
	roundID, err := parseIDParam(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid round id")
		return
	}

	result, err := h.services.Verify.Round(c.Request.Context(), roundID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// respondError maps the service error taxonomy to HTTP statuses.
// Rejections carry their message through so callers can decide whether
// a retry makes sense.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, appErr.ErrInsufficientFunds),
		errors.Is(err, appErr.ErrInvalidBetAmount),
		errors.Is(err, appErr.ErrInvalidGameParams),
		errors.Is(err, appErr.ErrInvalidPhone),
		errors.Is(err, appErr.ErrInvalidSMSCode):
		status = http.StatusBadRequest
	case errors.Is(err, appErr.ErrSMSCodeExpired):
		status = http.StatusGone
	case errors.Is(err, appErr.ErrUserBanned):
		status = http.StatusForbidden
	case errors.Is(err, appErr.ErrBetNotFound),
		errors.Is(err, appErr.ErrRoundNotFound),
		errors.Is(err, appErr.ErrSeedNotFound),
		errors.Is(err, appErr.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, appErr.ErrInvalidRoundState),
		errors.Is(err, appErr.ErrRoundCrashed),
		errors.Is(err, appErr.ErrAlreadyCashedOut),
		errors.Is(err, appErr.ErrBetAlreadyPlaced),
		errors.Is(err, appErr.ErrNotFinalized):
		status = http.StatusConflict
	case errors.Is(err, appErr.ErrInfra):
		status = http.StatusServiceUnavailable
	}
	response.Error(c, status, err.Error())
}

func parseIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func parsePositiveIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return value, nil
}
