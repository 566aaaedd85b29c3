package fair

import "math"

const SlotsReels = 3

// Fixed-width symbol table: a draw maps to an index via floor(u * len).
var slotSymbols = []string{"cherry", "lemon", "orange", "plum", "bell", "bar", "seven", "diamond"}

var slotTriples = map[string]float64{
	"cherry":  4,
	"lemon":   6,
	"orange":  8,
	"plum":    10,
	"bell":    14,
	"bar":     20,
	"seven":   40,
	"diamond": 80,
}

// Two cherries anywhere pay a consolation line.
const cherryPairMultiplier = 2

type SlotsResult struct {
	Reels      []string `json:"reels"`
	Multiplier float64  `json:"multiplier"`
	Payout     int64    `json:"payout"`
	Win        bool     `json:"win"`
}

// PlaySlots consumes one draw per reel starting at nonce.
func PlaySlots(secret, clientSeed string, nonce int, amount int64) SlotsResult {
	reels := make([]string, SlotsReels)
	cherries := 0
	for reel := 0; reel < SlotsReels; reel++ {
		idx := int(Draw(secret, clientSeed, nonce+reel) * float64(len(slotSymbols)))
		reels[reel] = slotSymbols[idx]
		if slotSymbols[idx] == "cherry" {
			cherries++
		}
	}

	multiplier := 0.0
	if reels[0] == reels[1] && reels[1] == reels[2] {
		multiplier = slotTriples[reels[0]]
	} else if cherries >= 2 {
		multiplier = cherryPairMultiplier
	}

	return SlotsResult{
		Reels:      reels,
		Multiplier: multiplier,
		Payout:     int64(math.Floor(float64(amount) * multiplier)),
		Win:        multiplier > 0,
	}
}
