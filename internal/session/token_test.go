package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectToken(t *testing.T) {
	t.Run("JWT", func(t *testing.T) {
		issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		claims := jwt.RegisteredClaims{
			Subject:   "ada",
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-our-key"))
		require.NoError(t, err)

		info, ok := InspectToken(signed)
		require.True(t, ok)
		assert.Equal(t, "ada", info.Subject)
		assert.True(t, info.IssuedAt.Equal(issued))
		assert.False(t, info.Expired(issued.Add(30*time.Minute)))
		assert.True(t, info.Expired(issued.Add(2*time.Hour)))
	})

	t.Run("Opaque Tokens", func(t *testing.T) {
		for _, token := range []string{"", "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b", "a.b.c"} {
			_, ok := InspectToken(token)
			assert.False(t, ok, token)
		}
	})

	t.Run("No Expiry Never Expires", func(t *testing.T) {
		assert.False(t, TokenInfo{}.Expired(time.Now()))
	})
}
