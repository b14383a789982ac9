package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/tutoring-api/internal/models"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
)

func issueToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	svc := NewTokenService("shared-secret")

	signed := issueToken(t, "shared-secret", models.JWTClaims{
		TeacherID: "teacher-1",
		Email:     "karim@noor.example",
		FullName:  "Ustadh Karim",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.TeacherID)
	assert.Equal(t, "Ustadh Karim", claims.FullName)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := NewTokenService("shared-secret")

	signed := issueToken(t, "other-secret", models.JWTClaims{TeacherID: "teacher-1"})
	_, err := svc.ValidateToken(signed)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewTokenService("shared-secret")

	signed := issueToken(t, "shared-secret", models.JWTClaims{
		TeacherID: "teacher-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	_, err := svc.ValidateToken(signed)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewTokenService("shared-secret")

	_, err := svc.ValidateToken("definitely.not.a.jwt")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
