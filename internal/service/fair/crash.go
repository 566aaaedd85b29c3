package fair

import "time"

// CrashPoint derives the multiplier at which a round busts. A single
// draw at round creation fixes it for the round's lifetime.
func CrashPoint(secret, clientSeed string, nonce int, minMultiplier, maxMultiplier float64) float64 {
	u := Draw(secret, clientSeed, nonce)
	return minMultiplier + u*(maxMultiplier-minMultiplier)
}

// CrashMultiplier is the public elapsed-time curve. No randomness:
// anyone holding startedAt can recompute it.
func CrashMultiplier(elapsed time.Duration, growthRate, maxMultiplier float64) float64 {
	m := 1 + elapsed.Seconds()*growthRate
	if m > maxMultiplier {
		return maxMultiplier
	}
	return m
}
