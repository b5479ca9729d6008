package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTokenRoundTrip(t *testing.T) {
	principal := &Principal{Subject: "reception@clinic", ClinicIDs: []int64{5, 7}}

	token, err := GenerateToken("secret", principal, time.Hour)
	require.NoError(t, err)

	got, err := NewTokenService("secret").ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, principal.Subject, got.Subject)
	assert.Equal(t, principal.ClinicIDs, got.ClinicIDs)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", &Principal{Subject: "x"}, time.Hour)
	require.NoError(t, err)

	_, err = NewTokenService("other").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := GenerateToken("secret", &Principal{Subject: "x"}, -time.Minute)
	require.NoError(t, err)

	_, err = NewTokenService("secret").ValidateToken(token)
	assert.Error(t, err)
}

func TestCanAccessClinic(t *testing.T) {
	p := &Principal{ClinicIDs: []int64{5}}
	assert.True(t, p.CanAccessClinic(5))
	assert.False(t, p.CanAccessClinic(6))
}
