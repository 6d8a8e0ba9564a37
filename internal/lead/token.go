package lead

import (
	"crypto/sha256"
	"encoding/hex"
)

// Token derives the public tracking identifier for an email address.
// It is a plain SHA-256 over the stored email bytes: deterministic,
// case-sensitive and unsalted, so a re-send for the same address always
// produces the same URLs. The address cannot be recovered from the token
// other than by recomputing it for a known candidate.
func Token(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
