package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short, human-comparable digest of a compressed public key.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	s := hex.EncodeToString(sum[:8])
	return s[0:4] + ":" + s[4:8] + ":" + s[8:12] + ":" + s[12:16]
}
