package fair

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Formula is the audit description returned by the verify endpoints.
// It must stay in sync with Draw.
const Formula = "u = uint32_be(HMAC-SHA256(key=secret, msg=clientSeed+\":\"+nonce)[0:4]) / 2^32"

// Draw maps (secret, clientSeed, nonce) to a uniform value in [0,1).
// The byte order and division constant are fixed: any reimplementation
// must reproduce results bit-for-bit for verification to work.
func Draw(secret, clientSeed string, nonce int) float64 {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(clientSeed + ":" + strconv.Itoa(nonce)))
	sum := mac.Sum(nil)
	u := uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])
	return float64(u) / 4294967296.0
}

// Commitment returns the public hash published before an outcome is
// derived from secret.
func Commitment(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}
