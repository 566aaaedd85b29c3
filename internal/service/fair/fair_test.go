package fair_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"testing"
	"time"

	"fairbet-service/internal/service/fair"
	appErr "fairbet-service/pkg/errors"
)

const testSecret = "b5a1c06d9f3e4a78210fb4cde6953817b5a1c06d9f3e4a78210fb4cde6953817"

func TestDrawDeterministic(t *testing.T) {
	for nonce := 0; nonce < 20; nonce++ {
		a := fair.Draw(testSecret, "client-seed", nonce)
		b := fair.Draw(testSecret, "client-seed", nonce)
		if a != b {
			t.Fatalf("nonce %d: draws differ: %v vs %v", nonce, a, b)
		}
		if a < 0 || a >= 1 {
			t.Fatalf("nonce %d: draw %v out of [0,1)", nonce, a)
		}
	}
}

func TestDrawMatchesFormula(t *testing.T) {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("abc:7"))
	sum := mac.Sum(nil)
	u := uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])
	want := float64(u) / 4294967296.0

	if got := fair.Draw(testSecret, "abc", 7); got != want {
		t.Fatalf("draw %v, want %v", got, want)
	}
}

func TestDrawNonceChangesResult(t *testing.T) {
	seen := map[float64]int{}
	for nonce := 0; nonce < 100; nonce++ {
		seen[fair.Draw(testSecret, "c", nonce)] = nonce
	}
	if len(seen) < 99 {
		t.Fatalf("expected distinct draws across nonces, got %d unique of 100", len(seen))
	}
}

func TestCommitment(t *testing.T) {
	h := sha256.Sum256([]byte(testSecret))
	want := hex.EncodeToString(h[:])
	if got := fair.Commitment(testSecret); got != want {
		t.Fatalf("commitment %s, want %s", got, want)
	}
	if len(fair.Commitment("x")) != 64 {
		t.Fatalf("commitment should be 64 hex chars")
	}
}

func TestPlayDicePayoutMath(t *testing.T) {
	result, err := fair.PlayDice(testSecret, "seed", 0, 10, fair.DiceParams{Target: 50, Condition: "over"}, 0.03)
	if err != nil {
		t.Fatalf("PlayDice: %v", err)
	}
	if result.Probability != 0.5 {
		t.Fatalf("probability %v, want 0.5", result.Probability)
	}
	if math.Abs(result.Multiplier-1.94) > 1e-9 {
		t.Fatalf("multiplier %v, want 1.94", result.Multiplier)
	}
	if result.Win {
		if result.Payout != int64(math.Floor(10*result.Multiplier)) {
			t.Fatalf("win payout %d, want %d", result.Payout, int64(math.Floor(10*result.Multiplier)))
		}
		if result.Roll <= 50 {
			t.Fatalf("won over-50 with roll %d", result.Roll)
		}
	} else {
		if result.Payout != 0 {
			t.Fatalf("losing payout %d, want 0", result.Payout)
		}
		if result.Roll > 50 {
			t.Fatalf("lost over-50 with roll %d", result.Roll)
		}
	}
	if result.Roll < 0 || result.Roll > 99 {
		t.Fatalf("roll %d out of [0,99]", result.Roll)
	}
}

func TestPlayDiceDeterministic(t *testing.T) {
	params := fair.DiceParams{Target: 30, Condition: "under"}
	a, err := fair.PlayDice(testSecret, "s", 0, 100, params, 0.03)
	if err != nil {
		t.Fatalf("PlayDice: %v", err)
	}
	b, err := fair.PlayDice(testSecret, "s", 0, 100, params, 0.03)
	if err != nil {
		t.Fatalf("PlayDice: %v", err)
	}
	if a.Roll != b.Roll || a.Payout != b.Payout || a.Win != b.Win {
		t.Fatalf("same inputs produced different results: %+v vs %+v", a, b)
	}
}

func TestPlayDiceRejectsBadParams(t *testing.T) {
	cases := []fair.DiceParams{
		{Target: 0, Condition: "over"},
		{Target: 100, Condition: "under"},
		{Target: 50, Condition: "exactly"},
	}
	for _, params := range cases {
		if _, err := fair.PlayDice(testSecret, "s", 0, 10, params, 0.03); err != appErr.ErrInvalidGameParams {
			t.Fatalf("params %+v: err %v, want ErrInvalidGameParams", params, err)
		}
	}
}

func TestPlayPlinkoPathAndBucket(t *testing.T) {
	result, err := fair.PlayPlinko(testSecret, "seed", 0, 100, fair.PlinkoParams{Risk: "medium"})
	if err != nil {
		t.Fatalf("PlayPlinko: %v", err)
	}
	if len(result.Path) != fair.PlinkoRows {
		t.Fatalf("path length %d, want %d", len(result.Path), fair.PlinkoRows)
	}
	rights := 0
	for i, step := range result.Path {
		if step != 0 && step != 1 {
			t.Fatalf("path[%d] = %d, want 0 or 1", i, step)
		}
		rights += step
	}
	if result.Bucket != rights {
		t.Fatalf("bucket %d, want %d rights", result.Bucket, rights)
	}
	if result.Payout != int64(math.Floor(100*result.Multiplier)) {
		t.Fatalf("payout %d does not match multiplier %v", result.Payout, result.Multiplier)
	}

	again, err := fair.PlayPlinko(testSecret, "seed", 0, 100, fair.PlinkoParams{Risk: "medium"})
	if err != nil {
		t.Fatalf("PlayPlinko: %v", err)
	}
	if again.Bucket != result.Bucket {
		t.Fatalf("replay bucket %d, want %d", again.Bucket, result.Bucket)
	}
}

func TestPlayPlinkoRejectsUnknownRisk(t *testing.T) {
	if _, err := fair.PlayPlinko(testSecret, "s", 0, 10, fair.PlinkoParams{Risk: "extreme"}); err != appErr.ErrInvalidGameParams {
		t.Fatalf("err %v, want ErrInvalidGameParams", err)
	}
}

func TestPlaySlots(t *testing.T) {
	result := fair.PlaySlots(testSecret, "seed", 0, 50)
	if len(result.Reels) != fair.SlotsReels {
		t.Fatalf("reels %d, want %d", len(result.Reels), fair.SlotsReels)
	}
	valid := map[string]bool{
		"cherry": true, "lemon": true, "orange": true, "plum": true,
		"bell": true, "bar": true, "seven": true, "diamond": true,
	}
	for _, symbol := range result.Reels {
		if !valid[symbol] {
			t.Fatalf("unknown symbol %q", symbol)
		}
	}
	if result.Win != (result.Multiplier > 0) {
		t.Fatalf("win flag %v disagrees with multiplier %v", result.Win, result.Multiplier)
	}
	if result.Payout != int64(math.Floor(50*result.Multiplier)) {
		t.Fatalf("payout %d does not match multiplier %v", result.Payout, result.Multiplier)
	}

	again := fair.PlaySlots(testSecret, "seed", 0, 50)
	for i := range result.Reels {
		if again.Reels[i] != result.Reels[i] {
			t.Fatalf("replay reel %d: %s, want %s", i, again.Reels[i], result.Reels[i])
		}
	}
}

func TestShuffleDeckIsPermutation(t *testing.T) {
	deck := fair.ShuffleDeck(testSecret, "seed", 0)
	if len(deck) != 52 {
		t.Fatalf("deck size %d, want 52", len(deck))
	}
	seen := map[string]bool{}
	for _, card := range deck {
		if seen[card] {
			t.Fatalf("duplicate card %s", card)
		}
		seen[card] = true
	}
}

func TestPlayBlackjackConsistency(t *testing.T) {
	result := fair.PlayBlackjack(testSecret, "seed", 0, 100)
	if len(result.PlayerHand) < 2 || len(result.DealerHand) < 2 {
		t.Fatalf("hands too short: %v / %v", result.PlayerHand, result.DealerHand)
	}
	switch result.Outcome {
	case "blackjack":
		if result.Payout != 250 {
			t.Fatalf("blackjack payout %d, want 250", result.Payout)
		}
	case "win":
		if result.Payout != 200 {
			t.Fatalf("win payout %d, want 200", result.Payout)
		}
	case "push":
		if result.Payout != 100 {
			t.Fatalf("push payout %d, want 100", result.Payout)
		}
	case "lose":
		if result.Payout != 0 {
			t.Fatalf("lose payout %d, want 0", result.Payout)
		}
	default:
		t.Fatalf("unknown outcome %q", result.Outcome)
	}

	again := fair.PlayBlackjack(testSecret, "seed", 0, 100)
	if again.Outcome != result.Outcome || again.Payout != result.Payout {
		t.Fatalf("replay diverged: %+v vs %+v", again, result)
	}
}

func TestCrashMultiplierCurve(t *testing.T) {
	if m := fair.CrashMultiplier(0, 0.5, 10); m != 1.0 {
		t.Fatalf("m(0) = %v, want 1.0", m)
	}
	if m := fair.CrashMultiplier(2*time.Second, 0.5, 10); m != 2.0 {
		t.Fatalf("m(2s) = %v, want 2.0", m)
	}
	if m := fair.CrashMultiplier(time.Hour, 0.5, 10); m != 10 {
		t.Fatalf("m(1h) = %v, want cap 10", m)
	}

	prev := 0.0
	for ms := 0; ms <= 5000; ms += 250 {
		m := fair.CrashMultiplier(time.Duration(ms)*time.Millisecond, 0.5, 10)
		if m < prev {
			t.Fatalf("curve not monotonic at %dms: %v < %v", ms, m, prev)
		}
		prev = m
	}
}

func TestCrashPointRange(t *testing.T) {
	for nonce := 0; nonce < 50; nonce++ {
		point := fair.CrashPoint(testSecret, "", nonce, 1.0, 10.0)
		if point < 1.0 || point >= 10.0 {
			t.Fatalf("nonce %d: crash point %v out of [1,10)", nonce, point)
		}
	}
	a := fair.CrashPoint(testSecret, "", 0, 1.0, 10.0)
	b := fair.CrashPoint(testSecret, "", 0, 1.0, 10.0)
	if a != b {
		t.Fatalf("crash point not deterministic: %v vs %v", a, b)
	}
}

func TestFormulaMentionsNonceSeparator(t *testing.T) {
	// A verifier reimplements Draw from this string; the separator and
	// byte width must be stated in it.
	for _, fragment := range []string{"HMAC-SHA256", "clientSeed", "nonce", "2^32"} {
		if !strings.Contains(fair.Formula, fragment) {
			t.Fatalf("formula %q missing %q", fair.Formula, fragment)
		}
	}
}
