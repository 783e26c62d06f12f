package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltBytes     = 16
	argonTime     = 2
	argonMemoryKB = 19 * 1024
	argonThreads  = 1
	argonKeyLen   = 32
	hashSeparator = "$"
)

// HashPassword returns "salt$digest", both hex encoded. A fresh salt is drawn
// on every call so equal passwords never share a hash.
func HashPassword(plain string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(plain), salt, argonTime, argonMemoryKB, argonThreads, argonKeyLen)
	return hex.EncodeToString(salt) + hashSeparator + hex.EncodeToString(digest), nil
}

// VerifyPassword reports false for any malformed stored value.
func VerifyPassword(plain string, encoded string) bool {
	saltHex, digestHex, ok := strings.Cut(encoded, hashSeparator)
	if !ok || saltHex == "" || digestHex == "" || strings.Contains(digestHex, hashSeparator) {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil || len(want) != argonKeyLen {
		return false
	}

	got := argon2.IDKey([]byte(plain), salt, argonTime, argonMemoryKB, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}
