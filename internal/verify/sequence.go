package verify

/*
Файл sequence.go — выдача человекочитаемых авторизационных кодов
вида AUTH-2026-000042 из суточного счетчика.

Историческая схема «прочитай count из журнала аудита и прибавь единицу»
давала гонку: два одновременных AUTHORIZED читали одинаковый count и
получали одинаковый код. Основной путь теперь — атомарная резервация
номера через Redis INCR по ключу (префикс + UTC-дата). Старый подсчет по
журналу остался только как деградация при недоступном Redis.
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/trufleet-authz/internal/infra"
	"go.uber.org/zap"
)

// Reserver атомарно резервирует следующий номер по ключу.
// Интерфейс выделен, чтобы тесты не тянули реальный Redis.
type Reserver interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisReserver — боевая реализация поверх INCR + EXPIRE.
type RedisReserver struct {
	rdb *redis.Client
}

func NewRedisReserver(rdb *redis.Client) *RedisReserver {
	return &RedisReserver{rdb: rdb}
}

// Reserve инкрементирует суточный ключ. TTL ставим только на первом
// инкременте: счетчик живет двое суток и умирает сам.
func (r *RedisReserver) Reserve(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	seq, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if seq == 1 {
		if err := r.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			// Не фатально: ключ переживет TTL, но номер уже зарезервирован
			return seq, nil
		}
	}
	return seq, nil
}

// DailyCounter — деградационный источник номера: количество уже выданных
// сегодня авторизаций из журнала аудита. Допускает гонку и используется
// только когда Redis лег.
type DailyCounter interface {
	CountByActionSince(ctx context.Context, action string, since time.Time) (int64, error)
}

// SequenceGenerator выдает очередной код. Сам по себе stateless:
// все состояние живет в Redis либо во внешнем журнале.
// fallbackAction — действие журнала, по которому считается деградационный
// счетчик (у диспетчеризации и identity-проверок действия разные).
type SequenceGenerator struct {
	reserver       Reserver
	fallback       DailyCounter
	prefix         string
	fallbackAction string
	now            func() time.Time
	logger         *zap.Logger
	onFallback     func() // хук для метрики деградаций, может быть nil
}

// OnFallback регистрирует хук, вызываемый при уходе на деградационный путь.
func (g *SequenceGenerator) OnFallback(fn func()) {
	g.onFallback = fn
}

func NewSequenceGenerator(reserver Reserver, fallback DailyCounter, prefix, fallbackAction string, logger *zap.Logger) *SequenceGenerator {
	if prefix == "" {
		prefix = "AUTH"
	}
	return &SequenceGenerator{
		reserver:       reserver,
		fallback:       fallback,
		prefix:         prefix,
		fallbackAction: fallbackAction,
		now:            time.Now,
		logger:         logger.Named("seqgen"),
	}
}

// Next возвращает следующий код PREFIX-YEAR-NNNNNN для текущих UTC-суток.
func (g *SequenceGenerator) Next(ctx context.Context) (string, error) {
	now := g.now().UTC()
	day := now.Format("2006-01-02")
	key := infra.GetSequenceKey(g.prefix, day)

	seq, err := g.reserver.Reserve(ctx, key, 48*time.Hour)
	if err != nil {
		g.logger.Warn("sequence reservation failed, falling back to audit count", zap.Error(err))
		if g.onFallback != nil {
			g.onFallback()
		}

		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		count, cErr := g.fallback.CountByActionSince(ctx, g.fallbackAction, midnight)
		if cErr != nil {
			return "", fmt.Errorf("sequence fallback count failed: %w", cErr)
		}
		seq = count + 1
	}

	return fmt.Sprintf("%s-%d-%06d", g.prefix, now.Year(), seq), nil
}
