package verify

import (
	"context"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/trufleet-authz/internal/domain"
)

// GuardedSource оборачивает SnapshotSource в Circuit Breaker и ретраи.
// Чтение снапшота — единственное место, где движок ходит во внешнее
// хранилище на горячем пути решения; при деградации базы предохранитель
// быстро переводит запросы в UpstreamError вместо висящих таймаутов.
//
// Важно: «не найдено» приходит как (nil, nil) и ретраев не вызывает —
// повторяем только реальные сбои.
type GuardedSource struct {
	next SnapshotSource
	cb   *gobreaker.CircuitBreaker
}

func NewGuardedSource(next SnapshotSource) *GuardedSource {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "record-store",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // время, через которое CB попробует закрыться
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &GuardedSource{next: next, cb: cb}
}

// call — общий контур: CB снаружи, ретраи с экспоненциальным бэкоффом внутри.
func (g *GuardedSource) call(ctx context.Context, fn func(context.Context) error) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
		)
		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return fn(tCtx)
		})
		return nil, retryErr
	})
	return err
}

func (g *GuardedSource) VehicleByID(ctx context.Context, id string) (*domain.VehicleSnapshot, error) {
	var out *domain.VehicleSnapshot
	err := g.call(ctx, func(c context.Context) error {
		var innerErr error
		out, innerErr = g.next.VehicleByID(c, id)
		return innerErr
	})
	return out, err
}

func (g *GuardedSource) CurrentOwnership(ctx context.Context, vehicleID string) (*domain.OwnershipRecord, *domain.OwnerProfile, error) {
	var rec *domain.OwnershipRecord
	var owner *domain.OwnerProfile
	err := g.call(ctx, func(c context.Context) error {
		var innerErr error
		rec, owner, innerErr = g.next.CurrentOwnership(c, vehicleID)
		return innerErr
	})
	return rec, owner, err
}

func (g *GuardedSource) ActivePolicy(ctx context.Context, vehicleID string) (*domain.InsurancePolicy, error) {
	var out *domain.InsurancePolicy
	err := g.call(ctx, func(c context.Context) error {
		var innerErr error
		out, innerErr = g.next.ActivePolicy(c, vehicleID)
		return innerErr
	})
	return out, err
}
