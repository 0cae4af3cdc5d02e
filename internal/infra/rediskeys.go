package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "trufleet"
)

// Ключи состояния
const (
	// RedisKeyRolePrefix — TTL-кэш доверенных ролей: trufleet:roles:user:<email>
	RedisKeyRolePrefix = RedisNamespace + ":roles:user:"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanRoleUpdate — сигнал о смене роли пользователя,
	// инстансы по нему сбрасывают записи кэша справочника.
	RedisChanRoleUpdate = RedisNamespace + ":roles:update"
)

// GetRoleCacheKey — ключ кэша роли для конкретного email.
func GetRoleCacheKey(email string) string {
	return RedisKeyRolePrefix + email
}

// GetSequenceKey — ключ суточного счетчика авторизационных кодов.
// Атомарный INCR по нему закрывает гонку «прочитали одинаковый count —
// выдали одинаковый код» при конкурентных авторизациях.
func GetSequenceKey(prefix, day string) string {
	return fmt.Sprintf("%s:seq:%s:%s", RedisNamespace, prefix, day)
}
