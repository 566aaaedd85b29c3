package fair

import (
	"math"
	"strings"

	appErr "fairbet-service/pkg/errors"
)

const (
	ConditionOver  = "over"
	ConditionUnder = "under"
)

type DiceParams struct {
	Target    int
	Condition string // over/under
}

type DiceResult struct {
	Roll        int     `json:"roll"`
	Target      int     `json:"target"`
	Condition   string  `json:"condition"`
	Win         bool    `json:"win"`
	Probability float64 `json:"probability"`
	Multiplier  float64 `json:"multiplier"`
	Payout      int64   `json:"payout"`
}

// PlayDice consumes a single draw. Roll is uniform over [0,100).
func PlayDice(secret, clientSeed string, nonce int, amount int64, params DiceParams, houseEdge float64) (DiceResult, error) {
	condition := strings.ToLower(strings.TrimSpace(params.Condition))
	if condition != ConditionOver && condition != ConditionUnder {
		return DiceResult{}, appErr.ErrInvalidGameParams
	}
	if params.Target < 1 || params.Target > 99 {
		return DiceResult{}, appErr.ErrInvalidGameParams
	}

	roll := int(Draw(secret, clientSeed, nonce) * 100)

	var win bool
	var probability float64
	if condition == ConditionOver {
		win = roll > params.Target
		probability = float64(100-params.Target) / 100
	} else {
		win = roll < params.Target
		probability = float64(params.Target) / 100
	}

	multiplier := (1 - houseEdge) / probability
	result := DiceResult{
		Roll:        roll,
		Target:      params.Target,
		Condition:   condition,
		Win:         win,
		Probability: probability,
		Multiplier:  multiplier,
	}
	if win {
		result.Payout = int64(math.Floor(float64(amount) * multiplier))
	}
	return result, nil
}
