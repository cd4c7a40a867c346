package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials — то, что пользователь вводит в форму логина.
type Credentials struct {
	PrimaryEmail string `json:"primary_email"`
	Password     string `json:"password"`
}

// TokenPair — пара учетных токенов внешнего API с независимыми
// временами жизни. LegacyToken — старый формат `Token <...>`, который
// часть инсталляций сервера все еще выдает вместо JWT-пары.
type TokenPair struct {
	AccessToken  string `json:"access,omitempty"`
	RefreshToken string `json:"refresh,omitempty"`
	LegacyToken  string `json:"token,omitempty"`
}

// Identity — кем аутентифицирован текущий процесс.
type Identity struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
}

// LoginResult — ответ внешнего API на обмен учетных данных.
type LoginResult struct {
	Tokens   TokenPair
	Identity Identity
}

// AccessClaims — клеймы access-токена. Подпись проверяет сервер,
// мы читаем их только ради exp/sub (решение refresh-vs-validate).
type AccessClaims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// ExpiresWithin — истекает ли токен в ближайшее окно.
func (c *AccessClaims) ExpiresWithin(d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Until(c.ExpiresAt.Time) < d
}
