package session

/*
Пакет session — владелец аутентифицированной личности процесса.

Store — единственный писатель собственного состояния: поллеры и
диспетчер читают его, но мутации идут только через операции Manager'а.
Отдельного кэша, который мог бы протухнуть, нет — любое изменение
видно остальным компонентам на следующем же обращении.
*/

import (
	stdsync "sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xela07ax/prabandh-gateway/internal/domain"
)

// Store держит текущую сессию в памяти. Персистентность — через Keeper.
type Store struct {
	mu            stdsync.RWMutex
	tokens        domain.TokenPair
	identity      domain.Identity
	authenticated bool
}

func NewStore() *Store {
	return &Store{}
}

// AuthHeader собирает Authorization-заголовок под тот вид учетных
// данных, который у нас есть: JWT-пара дает Bearer, старый формат —
// Token.
func (s *Store) AuthHeader() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.tokens.AccessToken != "":
		return "Bearer " + s.tokens.AccessToken, true
	case s.tokens.LegacyToken != "":
		return "Token " + s.tokens.LegacyToken, true
	default:
		return "", false
	}
}

// Identity возвращает текущую личность, если сессия есть.
func (s *Store) Identity() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.authenticated
}

// Role — роль актора; пустая строка без сессии.
func (s *Store) Role() domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated {
		return ""
	}
	return s.identity.Role
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Store) snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Tokens: s.tokens, Identity: s.identity}
}

func (s *Store) set(tokens domain.TokenPair, identity domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
	s.identity = identity
	s.authenticated = true
}

func (s *Store) setAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens.AccessToken = token
}

func (s *Store) refreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.RefreshToken
}

func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = domain.TokenPair{}
	s.identity = domain.Identity{}
	s.authenticated = false
}

// accessClaims читает клеймы access-токена без проверки подписи:
// подпись — дело сервера, нам нужны только exp и subject.
func accessClaims(token string) (*domain.AccessClaims, error) {
	claims := &domain.AccessClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
