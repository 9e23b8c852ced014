package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := testSecret()

	token := SignToken(secret, "user-42")
	got, err := verifyToken(secret, token)

	require.NoError(t, err)
	assert.Equal(t, "user-42", got)
}

func TestVerifyTokenRejects(t *testing.T) {
	secret := testSecret()
	other := append([]byte(nil), secret...)
	other[0] ^= 0xff

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", "user-42"},
		{"empty user", SignToken(secret, "")},
		{"bad signature", "user-42.deadbeef"},
		{"not hex", "user-42.zzzz"},
		{"signed with other key", SignToken(other, "user-42")},
		{"signature for different user", SignToken(secret, "user-1")[len("user-1"):]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifyToken(secret, tt.token)
			assert.Error(t, err)
		})
	}
}
