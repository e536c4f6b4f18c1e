package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateQRCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := GenerateQRCode()
		require.True(t, strings.HasPrefix(code, "QR-"))
		require.Len(t, code, len("QR-")+16)
		body := strings.TrimPrefix(code, "QR-")
		for _, r := range body {
			require.Contains(t, "0123456789ABCDEF", string(r))
		}
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestGenerateRFIDTag(t *testing.T) {
	tag := GenerateRFIDTag()
	require.True(t, strings.HasPrefix(tag, "RFID-"))
	require.Len(t, tag, len("RFID-")+16)
	require.Equal(t, strings.ToUpper(tag), tag)
}

func TestGenerateSecretKey(t *testing.T) {
	key, err := GenerateSecretKey()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(key), 64)
	require.NotContains(t, key, "+")
	require.NotContains(t, key, "/")
	require.NotContains(t, key, "=")

	other, err := GenerateSecretKey()
	require.NoError(t, err)
	require.NotEqual(t, key, other)
}

func TestComputeAuthHash(t *testing.T) {
	h1 := ComputeAuthHash("CYL-2024-001", "QR-AAAA", "RFID-BBBB", "secret")
	h2 := ComputeAuthHash("CYL-2024-001", "QR-AAAA", "RFID-BBBB", "secret")
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
	_, err := hex.DecodeString(h1)
	require.NoError(t, err)

	// Any single differing input must change the digest.
	require.NotEqual(t, h1, ComputeAuthHash("CYL-2024-002", "QR-AAAA", "RFID-BBBB", "secret"))
	require.NotEqual(t, h1, ComputeAuthHash("CYL-2024-001", "QR-AAAB", "RFID-BBBB", "secret"))
	require.NotEqual(t, h1, ComputeAuthHash("CYL-2024-001", "QR-AAAA", "RFID-BBBC", "secret"))
	require.NotEqual(t, h1, ComputeAuthHash("CYL-2024-001", "QR-AAAA", "RFID-BBBB", "secret2"))
}

func TestGenerateAuthToken(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	authHash := ComputeAuthHash("CYL-2024-001", "QR-AAAA", "RFID-BBBB", "secret")

	token := GenerateAuthToken(authHash, now)
	parts := strings.Split(token, ":")
	require.Len(t, parts, 2)
	require.Equal(t, "1741608000", parts[1])

	sum := sha256.Sum256([]byte(authHash + parts[1]))
	require.Equal(t, hex.EncodeToString(sum[:]), parts[0])
}
