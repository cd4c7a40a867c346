package infra

// RedisNamespace — базовый префикс для изоляции данных проекта в Redis.
const RedisNamespace = "prabandh"

// Ключи состояния
const (
	// RedisKeySession — сериализованная сессия дашборда (переживает рестарты).
	RedisKeySession = RedisNamespace + ":session:state"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanSessionExpired — сигнал «сессия мертва». Каждый процесс,
	// деливший эту сессию, обязан погасить свои поллеры и очистить стор.
	RedisChanSessionExpired = RedisNamespace + ":session:expired"
)
