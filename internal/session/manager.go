package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/domain"
)

// Gateway — сессионные endpoint'ы внешнего API, как их видит lifecycle.
type Gateway interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error)
	RefreshToken(ctx context.Context, refresh string) (string, error)
	CheckAuth(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Manager — операции жизненного цикла сессии поверх Store.
//
// OnExpired вызывается ровно в тот момент, когда сессия признана
// мертвой (оба токена невалидны). Композиционный корень вешает сюда
// гашение всех поллеров и рассылку сигнала соседним процессам.
type Manager struct {
	store     *Store
	keeper    Keeper
	gw        Gateway
	logger    *zap.Logger
	OnExpired func()
}

func NewManager(store *Store, keeper Keeper, gw Gateway, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		keeper: keeper,
		gw:     gw,
		logger: logger.Named("session"),
	}
}

func (m *Manager) Store() *Store { return m.store }

// Initialize восстанавливает сессию после рестарта. К моменту возврата
// стор находится ровно в одном из двух состояний: «аутентифицирован
// как роль R» или «не аутентифицирован» — промежуточных не бывает,
// зависимые компоненты могут стартовать сразу после.
func (m *Manager) Initialize(ctx context.Context) error {
	state, err := m.keeper.Load(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		m.logger.Info("no persisted session found")
		return nil
	}

	m.store.set(state.Tokens, state.Identity)

	if !m.ValidateAndRefresh(ctx) {
		m.logger.Info("persisted session is no longer valid, clearing")
		m.Clear(ctx)
		return nil
	}

	m.logger.Info("session restored",
		zap.String("actor", state.Identity.ActorID),
		zap.String("role", string(state.Identity.Role)))
	return nil
}

// Login обменивает учетные данные на токены и возвращает роль, чтобы
// вызывающий мог выбрать правильный дашборд.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) (domain.Role, error) {
	result, err := m.gw.Login(ctx, creds)
	if err != nil {
		return "", err
	}

	m.store.set(result.Tokens, result.Identity)
	if err := m.keeper.Save(ctx, m.store.snapshot()); err != nil {
		// Сессия рабочая, просто не переживет рестарт
		m.logger.Warn("failed to persist session", zap.Error(err))
	}

	m.logger.Info("login successful",
		zap.String("actor", result.Identity.ActorID),
		zap.String("role", string(result.Identity.Role)))
	return result.Identity.Role, nil
}

// Logout уведомляет сервер best-effort и безусловно чистит локальное
// состояние. Для пользователя логаут не может «не получиться».
func (m *Manager) Logout(ctx context.Context) {
	if err := m.gw.Logout(ctx); err != nil {
		m.logger.Warn("upstream logout failed, clearing local state anyway", zap.Error(err))
	}
	m.Clear(ctx)
}

// ValidateAndRefresh спрашивает сервер про текущий access-токен и при
// необходимости прозрачно обменивает refresh. false означает, что обе
// половины пары мертвы и сессию надо чистить.
func (m *Manager) ValidateAndRefresh(ctx context.Context) bool {
	if _, ok := m.store.AuthHeader(); !ok {
		return false
	}

	// Если access-токен формально еще жив, достаточно подтверждения
	// сервера. Истекающий локально токен сразу ведем на refresh.
	if token := m.accessTokenIfFresh(); token != "" {
		err := m.gw.CheckAuth(ctx)
		if err == nil {
			return true
		}
		if !errors.Is(err, domain.ErrSessionExpired) {
			// Транзиентный сбой — не повод выкидывать пользователя
			m.logger.Warn("check-auth failed transiently, keeping session", zap.Error(err))
			return true
		}
	}

	return m.tryRefresh(ctx)
}

// HandleAuthFailure — реакция на 401 из любого поллера или диспетчера:
// одна попытка спасти сессию через refresh, иначе полное выключение.
func (m *Manager) HandleAuthFailure(ctx context.Context) {
	if m.ValidateAndRefresh(ctx) {
		return
	}

	m.logger.Warn("session expired: disabling polling and clearing credentials")
	m.Clear(ctx)
	if m.OnExpired != nil {
		m.OnExpired()
	}
}

// Clear снимает все локальные следы сессии. Идемпотентен.
func (m *Manager) Clear(ctx context.Context) {
	m.store.clear()
	if err := m.keeper.Clear(ctx); err != nil {
		m.logger.Warn("failed to clear persisted session", zap.Error(err))
	}
}

func (m *Manager) accessTokenIfFresh() string {
	state := m.store.snapshot()
	token := state.Tokens.AccessToken
	if token == "" {
		// Legacy-токен не несет exp — пусть решает сервер
		return state.Tokens.LegacyToken
	}

	claims, err := accessClaims(token)
	if err != nil {
		// Нечитаемый токен — сразу на refresh
		return ""
	}
	if claims.ExpiresWithin(30 * time.Second) {
		return ""
	}
	return token
}

func (m *Manager) tryRefresh(ctx context.Context) bool {
	refresh := m.store.refreshToken()
	if refresh == "" {
		return false
	}

	access, err := m.gw.RefreshToken(ctx, refresh)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionExpired) {
			m.logger.Warn("token refresh failed transiently", zap.Error(err))
		}
		return false
	}

	m.store.setAccessToken(access)
	if err := m.keeper.Save(ctx, m.store.snapshot()); err != nil {
		m.logger.Warn("failed to persist refreshed session", zap.Error(err))
	}
	m.logger.Debug("access token refreshed")
	return true
}
