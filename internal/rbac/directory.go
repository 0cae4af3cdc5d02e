package rbac

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/trufleet-authz/internal/infra"
	"go.uber.org/zap"
)

// CachedDirectory — Redis TTL-кэш поверх справочника доверенных ролей.
// Ранее роль читалась из users на каждый запрос; теперь горячий путь ходит
// в Redis, а внешнее keyed-хранилище с TTL заменяет всякие процессные мапы.
//
// Ключ: trufleet:roles:user:<email>. Пустое значение кэшируется тоже,
// чтобы не долбить базу по несуществующим email.
type CachedDirectory struct {
	next   RoleDirectory // обычно постгрес-репозиторий users
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// Маркер «в базе нет такого пользователя» внутри кэша.
const roleCacheMiss = "__none__"

func NewCachedDirectory(next RoleDirectory, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedDirectory{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.Named("role-cache"),
	}
}

// StoredRole реализует RoleDirectory. Сбой Redis не фатален — просто идем
// в базу напрямую, кэш догонит на следующем запросе.
func (d *CachedDirectory) StoredRole(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil
	}

	key := infra.GetRoleCacheKey(email)
	if cached, err := d.rdb.Get(ctx, key).Result(); err == nil {
		if cached == roleCacheMiss {
			return "", nil
		}
		return cached, nil
	} else if err != redis.Nil {
		d.logger.Warn("role cache read failed", zap.Error(err))
	}

	role, err := d.next.StoredRole(ctx, email)
	if err != nil {
		return "", err
	}

	val := role
	if val == "" {
		val = roleCacheMiss
	}
	if err := d.rdb.Set(ctx, key, val, d.ttl).Err(); err != nil {
		d.logger.Warn("role cache write failed", zap.Error(err))
	}
	return role, nil
}

// Invalidate сбрасывает запись кэша после смены роли.
func (d *CachedDirectory) Invalidate(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := d.rdb.Del(ctx, infra.GetRoleCacheKey(email)).Err(); err != nil {
		d.logger.Warn("role cache invalidation failed",
			zap.String("email", email), zap.Error(err))
	}
}

// PublishInvalidation сбрасывает локальную запись и оповещает остальные
// инстансы через Pub/Sub. Вызывается после смены сохраненной роли.
func (d *CachedDirectory) PublishInvalidation(ctx context.Context, email string) {
	d.Invalidate(ctx, email)
	if err := d.rdb.Publish(ctx, infra.RedisChanRoleUpdate, strings.ToLower(strings.TrimSpace(email))).Err(); err != nil {
		d.logger.Warn("role update publish failed",
			zap.String("email", email), zap.Error(err))
	}
}

// ListenInvalidations — «живучая» подписка на канал смены ролей.
// Другие инстансы публикуют email в RedisChanRoleUpdate после assign,
// и каждый инстанс выкидывает устаревшую запись из кэша.
// Обрабатывает переподключения с паузой, завершается по ctx.
func (d *CachedDirectory) ListenInvalidations(ctx context.Context) {
	for {
		pubsub := d.rdb.Subscribe(ctx, infra.RedisChanRoleUpdate)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			d.logger.Error("failed to subscribe", zap.String("chan", infra.RedisChanRoleUpdate), zap.Error(err))
			pubsub.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
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
				d.Invalidate(ctx, msg.Payload)
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}
