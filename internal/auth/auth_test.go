package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = strings.Repeat("k", MinSecretLen)

func newTestAuth(t *testing.T) *Authenticator {
	t.Helper()

	hash, err := hashWithCost("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	a, err := NewAuthenticator(testSecret, time.Hour, map[string]string{"builder": hash})
	require.NoError(t, err)
	return a
}

func TestLoginAndValidate(t *testing.T) {
	a := newTestAuth(t)

	token, expires, err := a.Login("builder", "s3cret")
	require.NoError(t, err)
	if strings.Count(token, ".") != 2 {
		t.Errorf("Неверный формат JWT токена: %s", token)
	}
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := a.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "builder", claims.Username)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newTestAuth(t)

	_, _, err := a.Login("builder", "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, _, err = a.Login("nobody", "s3cret")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestValidateRejects(t *testing.T) {
	a := newTestAuth(t)

	if _, err := a.Validate("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Мусорный токен принят: %v", err)
	}

	// Чужой ключ
	otherHash, err := hashWithCost("other", bcrypt.MinCost)
	require.NoError(t, err)
	other, err := NewAuthenticator(strings.Repeat("x", MinSecretLen), time.Hour, map[string]string{"builder": otherHash})
	require.NoError(t, err)
	foreign, _, err := other.Issue("builder")
	require.NoError(t, err)
	if _, err := a.Validate(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Токен с чужой подписью принят: %v", err)
	}

	// Удалённый из конфигурации оператор
	ghost, _, err := a.Issue("ghost")
	require.NoError(t, err)
	assert.ErrorIs(t, func() error { _, err := a.Validate(ghost); return err }(), ErrInvalidToken)

	// Алгоритм none
	claims := &Claims{Username: "builder", RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	if _, err := a.Validate(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Неподписанный токен принят: %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	a := newTestAuth(t)

	token, _, err := a.Issue("builder")
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := a.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Просроченный токен принят: %v", err)
	}
}

func TestWeakSecret(t *testing.T) {
	_, err := NewAuthenticator("short", time.Hour, nil)
	assert.True(t, errors.Is(err, ErrWeakSecret))

	decoded := GenerateSecureSecret()
	assert.GreaterOrEqual(t, len(decoded), MinSecretLen)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "pw"))
	assert.False(t, CheckPassword(hash, "px"))
	assert.False(t, CheckPassword("not-a-hash", "pw"))
}

func TestPlainPasswordRejected(t *testing.T) {
	_, err := NewAuthenticator(testSecret, time.Hour, map[string]string{"builder": "s3cret"})
	assert.ErrorIs(t, err, ErrPlainPassword)
}
