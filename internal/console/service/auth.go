package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/domain"
	"github.com/xela07ax/prabandh-gateway/internal/session"
	syncer "github.com/xela07ax/prabandh-gateway/internal/sync"
)

// AuthService связывает lifecycle сессии с поллерами: вход включает
// опрос, выход гасит его и чистит витрины.
type AuthService struct {
	manager *session.Manager
	pollers *syncer.Registry
	views   *Views
	logger  *zap.Logger
}

func NewAuthService(manager *session.Manager, pollers *syncer.Registry, views *Views, logger *zap.Logger) *AuthService {
	return &AuthService{
		manager: manager,
		pollers: pollers,
		views:   views,
		logger:  logger.Named("auth-service"),
	}
}

func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (domain.Role, error) {
	role, err := s.manager.Login(ctx, creds)
	if err != nil {
		return "", err
	}
	s.pollers.EnableAll()
	// Не ждем первого тика таймера — свежие очереди нужны сразу
	s.pollers.RefreshAll()
	return role, nil
}

func (s *AuthService) Logout(ctx context.Context) {
	s.pollers.DisableAll()
	s.manager.Logout(ctx)
	s.views.Reset()
}

func (s *AuthService) Session() (domain.Identity, bool) {
	return s.manager.Store().Identity()
}
