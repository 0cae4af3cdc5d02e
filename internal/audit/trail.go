package audit

/*
Файл trail.go — асинхронный сборщик решений в журнал аудита (Decision Trail).

Ключевые свойства:
- Non-blocking: хендлер отдает вердикт, не дожидаясь записи — сбой или
  задержка журнала никогда не меняет и не тормозит уже принятое решение.
- Batching: события копятся в памяти и уходят в PostgreSQL пачками по
  таймеру или при достижении лимита.
- Drain Pattern: при остановке сервиса канал закрывается, воркер вычитывает
  остатки и делает финальный flush — решения не теряются на рестарте.
- Load Shedding: при переполненном буфере событие не блокирует запрос,
  а уходит в обычный лог как сигнал о backpressure.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняются записи журнала.
type StorageInterface interface {
	// WriteBatch сохраняет пачку записей за один запрос
	WriteBatch(ctx context.Context, entries []Entry) error
}

// Appender — то, что видит движок: fire-and-forget добавление записи.
type Appender interface {
	Append(entry Entry)
}

type Trail struct {
	ch     chan Entry
	repo   StorageInterface
	logger *zap.Logger
	wg     sync.WaitGroup

	flushInterval time.Duration
	batchSize     int

	// Атомарный флаг (0 - открыт, 1 - закрыт): защита от Append после Stop
	isClosed int32
}

func NewTrail(repo StorageInterface, bufferSize int, flushInterval time.Duration, logger *zap.Logger) *Trail {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Trail{
		ch:            make(chan Entry, bufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "audit-trail")),
		flushInterval: flushInterval,
		batchSize:     100,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Крошечная пауза, чтобы текущие Append успели проскочить
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

// Append ставит запись в очередь. Никогда не блокирует и не возвращает
// ошибку вызывающему: неудача аудита — забота воркера и логов.
func (t *Trail) Append(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit entry dropped: trail is stopping", zap.String("id", entry.ID))
		return
	}

	select {
	case t.ch <- entry:
	default:
		// Буфер переполнен (backpressure) — не теряем молча, фиксируем в логе
		t.logger.Error("audit_buffer_overflow",
			zap.String("action", entry.Action),
			zap.String("entity_id", entry.EntityID),
		)
	}
}

// Depth — текущее заполнение буфера (для метрики backpressure).
func (t *Trail) Depth() int {
	return len(t.ch)
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Entry, 0, t.batchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст на остановке может быть закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case entry, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали остатки, финальный flush и выход
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, entry)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
