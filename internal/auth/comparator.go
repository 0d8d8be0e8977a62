package auth

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// DigestToken returns the hex-encoded SHA-512 digest of a credential.
// Stored admin API-token digests use this form.
func DigestToken(token []byte) []byte {
	sum := sha512.Sum512(token)
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}

// SecretsEqual compares two credential digests in constant time. It
// never short-circuits on a prefix mismatch, so comparison time carries
// no information about where the first differing byte is.
func SecretsEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
