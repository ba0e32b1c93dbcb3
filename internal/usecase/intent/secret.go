package intent

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// deriveClientSecret produces the creator-scoped confirmation token for a
// party. The derivation is deterministic for a given salt, so the channel
// that created an intent can re-derive the secret to authorize confirmation.
func deriveClientSecret(salt []byte, party string) string {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(party))
	return "cs_" + hex.EncodeToString(mac.Sum(nil))
}
