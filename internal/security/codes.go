// Package security implements cylinder identity generation, authenticity
// verification and scan anomaly detection.  Everything here is pure
// computation; persistence and transport live elsewhere.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// secretLen is the number of random bytes behind a cylinder secret key.
const secretLen = 64

// GenerateQRCode returns a new QR identifier of the form QR- followed by
// sixteen uppercase hex characters taken from a random 128-bit value.
func GenerateQRCode() string {
	return "QR-" + randomHex16()
}

// GenerateRFIDTag returns a new RFID identifier of the form RFID-
// followed by sixteen uppercase hex characters.
func GenerateRFIDTag() string {
	return "RFID-" + randomHex16()
}

// randomHex16 derives sixteen uppercase hex characters from a fresh
// random UUID.
func randomHex16() string {
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:])[:16])
}

// GenerateSecretKey produces the per-cylinder secret: 64 bytes of
// URL-safe random material.  The secret is stored with the cylinder and
// never exposed by read endpoints.  An entropy failure aborts
// registration.
func GenerateSecretKey() (string, error) {
	buf := make([]byte, secretLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ComputeAuthHash returns the hex-encoded SHA-256 digest of the four
// identity inputs concatenated in fixed order.  The inputs are immutable
// after registration, so the digest is computed exactly once per
// cylinder.
func ComputeAuthHash(serial, qrCode, rfidTag, secret string) string {
	sum := sha256.Sum256([]byte(serial + qrCode + rfidTag + secret))
	return hex.EncodeToString(sum[:])
}

// GenerateAuthToken derives the receipt token handed out on a successful
// verification: sha256(auth_hash + unix_timestamp) joined with the
// timestamp by a colon.  The token is a display artifact; nothing in the
// scan flow re-validates it later.
func GenerateAuthToken(authHash string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	sum := sha256.Sum256([]byte(authHash + ts))
	return hex.EncodeToString(sum[:]) + ":" + ts
}
