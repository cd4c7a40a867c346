package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/infra"
)

// ExpiryBroadcast рассылает сигнал «сессия мертва» всем процессам,
// делящим одни учетные данные (например, дашборд HR и дашборд декана
// на разных машинах одного оператора VC-Office).
//
// Каждый получатель обязан погасить свои поллеры: продолжать опрос с
// заведомо невалидным токеном — значит крутить цикл обреченных
// запросов и ложных ошибок.
type ExpiryBroadcast struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewExpiryBroadcast(rdb *redis.Client, logger *zap.Logger) *ExpiryBroadcast {
	return &ExpiryBroadcast{
		rdb:    rdb,
		logger: logger.Named("session-signal"),
	}
}

// Publish шлет сигнал. Сбой доставки не фатален: локальный процесс
// свои поллеры уже погасил, а соседи узнают при следующем 401.
func (b *ExpiryBroadcast) Publish(ctx context.Context, actorID string) {
	if err := b.rdb.Publish(ctx, infra.RedisChanSessionExpired, actorID).Err(); err != nil {
		b.logger.Warn("expiry signal delivery failed", zap.Error(err))
	}
}

// Listen — живучая подписка на сигналы истечения. Переподключается
// при обрывах; завершается только по контексту.
func (b *ExpiryBroadcast) Listen(ctx context.Context, onExpired func(actorID string)) {
	for {
		pubsub := b.rdb.Subscribe(ctx, infra.RedisChanSessionExpired)

		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("failed to subscribe to expiry channel", zap.Error(err))
			time.Sleep(5 * time.Second)
			continue
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // канал закрыт, идем на переподключение
				}
				b.logger.Info("session expiry signal received",
					zap.String("actor", msg.Payload))
				onExpired(msg.Payload)
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}
