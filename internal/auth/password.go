package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPlainPassword - в auth.users вместо bcrypt-хеша записан сам пароль.
var ErrPlainPassword = errors.New("user entry is not a bcrypt hash")

// HashPassword возвращает bcrypt-хеш пароля для auth.users
func HashPassword(password string) (string, error) {
	return hashWithCost(password, bcrypt.DefaultCost)
}

func hashWithCost(password string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// CheckPassword сравнивает хеш с паролем
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateHash отсекает записи, которые bcrypt не сможет разобрать.
func validateHash(user, hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("%w: %s", ErrPlainPassword, user)
	}
	return nil
}
