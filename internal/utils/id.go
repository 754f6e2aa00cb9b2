package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// RecoveryTokenBytes is the entropy of an opaque recovery key.
const RecoveryTokenBytes = 24

// NewToken returns n random bytes encoded as unpadded URL-safe base64.
// It panics if the system randomness source fails.
func NewToken(n int) string {
	if n <= 0 {
		n = RecoveryTokenBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("utils: read random bytes: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// NewRecoveryKey returns an opaque recovery key.
func NewRecoveryKey() string {
	return NewToken(RecoveryTokenBytes)
}
