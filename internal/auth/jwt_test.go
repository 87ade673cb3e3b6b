package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/orkestra/internal/auth"
	"github.com/gosuda/orkestra/internal/domain"
)

func TestJWT_IssueAndValidateRoundTrip(t *testing.T) {
	t.Parallel()

	secret := "test-secret-key-very-long-and-secure"
	userID := uuid.New()

	token, err := auth.IssueAccessToken(secret, userID, domain.RoleProjectManager, 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auth.ValidateToken(secret, token)
	require.NoError(t, err)
	require.NotNil(t, claims)

	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "Project Manager", claims.Role)
	assert.Equal(t, "orkestra", claims.Issuer)
	assert.NotNil(t, claims.IssuedAt)
	assert.NotNil(t, claims.ExpiresAt)

	id, role, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, userID, id)
	assert.Equal(t, domain.RoleProjectManager, role)
}

func TestJWT_ExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	secret := "test-secret-key"

	// Issue a token that has already expired (negative TTL).
	token, err := auth.IssueAccessToken(secret, uuid.New(), domain.RoleTeamMember, -1*time.Second)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(secret, token)
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWT_InvalidSecretRejected(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueAccessToken("correct-secret", uuid.New(), domain.RoleTeamMember, 5*time.Minute)
	require.NoError(t, err)

	// Validate with a different secret.
	claims, err := auth.ValidateToken("wrong-secret", token)
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWT_ForeignIssuerRejected(t *testing.T) {
	t.Parallel()

	secret := "shared-secret"
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		UserID: uuid.NewString(),
		Role:   "Admin",
	})
	signed, err := foreign.SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = auth.ValidateToken(secret, signed)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWT_MalformedTokenRejected(t *testing.T) {
	t.Parallel()

	claims, err := auth.ValidateToken("secret", "not.a.valid.jwt.token")
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestClaims_Identity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims auth.Claims
	}{
		{name: "bad user id", claims: auth.Claims{UserID: "nope", Role: "Admin"}},
		{name: "unknown role", claims: auth.Claims{UserID: uuid.NewString(), Role: "Overlord"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := tt.claims.Identity()
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}
