// Package auth выдаёт и проверяет JWT-токены операторов, которым разрешено
// изменять мир через REST API.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "voxel-engine"

// MinSecretLen - минимальная длина ключа HMAC
const MinSecretLen = 32

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakSecret         = errors.New("secret key must be at least 32 bytes")
)

// Claims - содержимое токена оператора
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator проверяет пароли операторов и подписывает токены HS256.
// Список операторов неизменяем после создания.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	users  map[string]string
	now    func() time.Time
}

// NewAuthenticator создаёт аутентификатор. users: имя -> bcrypt-хеш.
func NewAuthenticator(secret string, ttl time.Duration, users map[string]string) (*Authenticator, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	copied := make(map[string]string, len(users))
	for name, hash := range users {
		if err := validateHash(name, hash); err != nil {
			return nil, err
		}
		copied[name] = hash
	}

	return &Authenticator{
		secret: []byte(secret),
		ttl:    ttl,
		users:  copied,
		now:    time.Now,
	}, nil
}

// Login проверяет пароль и возвращает подписанный токен и момент его истечения
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	hash, ok := a.users[username]
	if !ok || !CheckPassword(hash, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.Issue(username)
}

// Issue подписывает токен для оператора
func (a *Authenticator) Issue(username string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate проверяет подпись, срок действия и издателя токена
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, known := a.users[claims.Username]; !known {
		return nil, fmt.Errorf("%w: unknown user %q", ErrInvalidToken, claims.Username)
	}
	return claims, nil
}

// GenerateSecureSecret генерирует случайный ключ для auth.secret
func GenerateSecureSecret() string {
	b := make([]byte, MinSecretLen)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}
