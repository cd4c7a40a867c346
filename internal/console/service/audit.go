package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/prabandh-gateway/internal/audit"
)

// DecisionProvider описывает контракт для чтения журнала решений.
// Используем структуру Decision из пакета audit, чтобы сохранить единую модель данных.
type DecisionProvider interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Decision, error)
}

type AuditService struct {
	repo DecisionProvider
}

func NewAuditService(repo DecisionProvider) *AuditService {
	return &AuditService{repo: repo}
}

// FetchDecisions запрашивает последние записи журнала.
func (s *AuditService) FetchDecisions(ctx context.Context, limit int) ([]audit.Decision, error) {
	decisions, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch decisions: %w", err)
	}
	return decisions, nil
}
