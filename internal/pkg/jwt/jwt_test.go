package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken("ops", "admin", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "ops", claims.Subject)
	require.Equal(t, "admin", claims.Role)
}

func TestParse_WrongSecret(t *testing.T) {
	token, err := GenerateToken("ops", "admin", []byte("secret-a"), time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("secret-b"))
	require.Error(t, err)
}

func TestParse_Expired(t *testing.T) {
	token, err := GenerateToken("ops", "admin", []byte("secret"), -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("secret"))
	require.Error(t, err)
}
