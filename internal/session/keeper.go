package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xela07ax/prabandh-gateway/internal/domain"
	"github.com/xela07ax/prabandh-gateway/internal/infra"
)

// State — то, что переживает рестарт процесса: токены и последняя
// известная личность. Снимки заявок не персистятся никогда — каждый
// запуск начинается со свежего fetch'а.
type State struct {
	Tokens   domain.TokenPair `json:"tokens"`
	Identity domain.Identity  `json:"identity"`
}

// Keeper — явная граница save/load вместо размазанного по коду доступа
// к локальному хранилищу.
type Keeper interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context) (*State, error) // (nil, nil) если сессии нет
	Clear(ctx context.Context) error
}

// RedisKeeper хранит сериализованную сессию в Redis.
type RedisKeeper struct {
	rdb *redis.Client
}

func NewRedisKeeper(rdb *redis.Client) *RedisKeeper {
	return &RedisKeeper{rdb: rdb}
}

func (k *RedisKeeper) Save(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := k.rdb.Set(ctx, infra.RedisKeySession, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save session: %w", err)
	}
	return nil
}

func (k *RedisKeeper) Load(ctx context.Context) (*State, error) {
	data, err := k.rdb.Get(ctx, infra.RedisKeySession).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: load session: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		// Битую запись считаем отсутствующей: лучше заставить
		// пользователя перелогиниться, чем падать на старте.
		return nil, nil
	}
	return &state, nil
}

func (k *RedisKeeper) Clear(ctx context.Context) error {
	return k.rdb.Del(ctx, infra.RedisKeySession).Err()
}

// MemoryKeeper — персистентность в памяти процесса. Для тестов и для
// запуска без Redis.
type MemoryKeeper struct {
	state *State
}

func NewMemoryKeeper() *MemoryKeeper { return &MemoryKeeper{} }

func (k *MemoryKeeper) Save(_ context.Context, state State) error {
	cp := state
	k.state = &cp
	return nil
}

func (k *MemoryKeeper) Load(_ context.Context) (*State, error) {
	if k.state == nil {
		return nil, nil
	}
	cp := *k.state
	return &cp, nil
}

func (k *MemoryKeeper) Clear(_ context.Context) error {
	k.state = nil
	return nil
}
