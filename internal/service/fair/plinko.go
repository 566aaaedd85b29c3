package fair

import (
	"math"
	"strings"

	appErr "fairbet-service/pkg/errors"
)

const PlinkoRows = 8

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// One multiplier per landing bucket, symmetric around the center.
var plinkoPayouts = map[string][PlinkoRows + 1]float64{
	RiskLow:    {5.6, 2.1, 1.1, 1.0, 0.5, 1.0, 1.1, 2.1, 5.6},
	RiskMedium: {13, 3, 1.3, 0.7, 0.4, 0.7, 1.3, 3, 13},
	RiskHigh:   {29, 4, 1.5, 0.3, 0.2, 0.3, 1.5, 4, 29},
}

type PlinkoParams struct {
	Risk string
}

type PlinkoResult struct {
	Risk       string  `json:"risk"`
	Path       []int   `json:"path"` // 0 left, 1 right, one per row
	Bucket     int     `json:"bucket"`
	Multiplier float64 `json:"multiplier"`
	Payout     int64   `json:"payout"`
}

// PlayPlinko consumes one draw per row starting at nonce.
func PlayPlinko(secret, clientSeed string, nonce int, amount int64, params PlinkoParams) (PlinkoResult, error) {
	risk := strings.ToLower(strings.TrimSpace(params.Risk))
	payouts, ok := plinkoPayouts[risk]
	if !ok {
		return PlinkoResult{}, appErr.ErrInvalidGameParams
	}

	path := make([]int, PlinkoRows)
	bucket := 0
	for row := 0; row < PlinkoRows; row++ {
		if Draw(secret, clientSeed, nonce+row) < 0.5 {
			path[row] = 0
		} else {
			path[row] = 1
			bucket++
		}
	}

	multiplier := payouts[bucket]
	return PlinkoResult{
		Risk:       risk,
		Path:       path,
		Bucket:     bucket,
		Multiplier: multiplier,
		Payout:     int64(math.Floor(float64(amount) * multiplier)),
	}, nil
}
