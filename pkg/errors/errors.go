package errors

import "errors"

// Auth / user
var (
	ErrInvalidPhone   = errors.New("invalid phone number")
	ErrInvalidSMSCode = errors.New("invalid sms code")
	ErrSMSCodeExpired = errors.New("sms code expired")
	ErrUserBanned     = errors.New("user is banned")
	ErrUserNotFound   = errors.New("user not found")
	ErrUnauthorized   = errors.New("unauthorized")
)

// Wagering
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidBetAmount  = errors.New("invalid bet amount")
	ErrInvalidGameParams = errors.New("invalid game params")
	ErrBetNotFound       = errors.New("bet not found")
	ErrBetAlreadyPlaced  = errors.New("bet already placed for this round")
)

// Crash round engine
var (
	ErrRoundNotFound     = errors.New("round not found")
	ErrInvalidRoundState = errors.New("round is not running")
	ErrRoundCrashed      = errors.New("round already crashed")
	ErrAlreadyCashedOut  = errors.New("bet already cashed out")
)

// Verification
var (
	ErrNotFinalized = errors.New("outcome not finalized yet")
	ErrSeedNotFound = errors.New("seed not found")
)

// Infrastructure. Callers may retry at the transaction boundary: nothing
// partial is left behind when a transaction fails.
var ErrInfra = errors.New("infrastructure error")
