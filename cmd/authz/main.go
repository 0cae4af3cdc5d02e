package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/trufleet-authz/internal/audit"
	"github.com/xela07ax/trufleet-authz/internal/handler"
	"github.com/xela07ax/trufleet-authz/internal/infra"
	"github.com/xela07ax/trufleet-authz/internal/rbac"
	"github.com/xela07ax/trufleet-authz/internal/repository/postgres"
	"github.com/xela07ax/trufleet-authz/internal/server"
	"github.com/xela07ax/trufleet-authz/internal/service"
	"github.com/xela07ax/trufleet-authz/internal/verify"
)

func main() {
	// 1. Конфигурация
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Логгер
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. PostgreSQL
	store, err := postgres.NewStore(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Fatal("failed to create postgres pool", zap.Error(err))
	}
	defer store.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		pingCancel()
		logger.Fatal("postgres is unreachable", zap.Error(err))
	}
	pingCancel()
	logger.Info("postgres connected")

	// 4. Redis: суточные счетчики кодов, кэш ролей, Pub/Sub инвалидаций.
	// Недоступность не фатальна: генератор уходит на подсчет по журналу,
	// справочник ролей — напрямую в базу.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis is unreachable, degraded mode", zap.Error(err))
	} else {
		logger.Info("redis connected")
	}

	// 5. Метрики
	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)

	// 6. Журнал решений: fire-and-forget батчер поверх audit_logs
	trail := audit.NewTrail(store, cfg.Engine.AuditBufferSize, cfg.Engine.AuditFlushInterval, logger)
	trail.Start()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.AuditBufferDepth.Set(float64(trail.Depth()))
			}
		}
	}()

	// 7. RBAC: общий каталог, резолвер с потолком привилегий, гейт
	catalog := rbac.NewCatalog()
	resolver := rbac.NewResolver(catalog)
	gate := rbac.NewGate(catalog)

	directory := rbac.NewCachedDirectory(store, rdb, cfg.Engine.RoleCacheTTL, logger)
	go directory.ListenInvalidations(ctx)

	guard := rbac.NewGuard(resolver, gate, directory, logger)

	// 8. Цепочки проверок поверх защищенного источника снапшотов
	source := verify.NewGuardedSource(store)
	identityChain := verify.NewChain(source, cfg.Engine.InsuranceWarnDays, logger)
	dispatchChain := verify.NewDispatchChain(source, logger)

	reserver := verify.NewRedisReserver(rdb)
	dispatchSeq := verify.NewSequenceGenerator(reserver, store,
		cfg.Engine.SequencePrefix, audit.ActionDispatchAuthorized, logger)
	dispatchSeq.OnFallback(metrics.SequenceFallbacks.Inc)
	identitySeq := verify.NewSequenceGenerator(reserver, store,
		"VRF", audit.ActionIdentityAuthorized, logger)
	identitySeq.OnFallback(metrics.SequenceFallbacks.Inc)

	// 9. Сервисы
	dispatchSvc := service.NewDispatchService(dispatchChain, dispatchSeq, trail, store, metrics, logger)
	identitySvc := service.NewIdentityService(identityChain, identitySeq, store, trail, store,
		metrics, cfg.Engine.InsuranceWarnDays, logger)
	roleSvc := service.NewRoleService(catalog, resolver, gate, store, trail, directory, logger)
	auditSvc := service.NewAuditService(store)

	// 10. HTTP-сервер
	limiter := rate.NewLimiter(rate.Limit(cfg.Engine.DecisionRateLimit), cfg.Engine.DecisionRateBurst)
	srv := server.New(cfg.Server, guard, server.Handlers{
		Roles:    handler.NewRolesHandler(roleSvc, logger),
		Dispatch: handler.NewDispatchHandler(dispatchSvc, logger),
		Identity: handler.NewIdentityHandler(identitySvc, logger),
		Audit:    handler.NewAuditHandler(auditSvc, logger),
	}, limiter, reg, logger)

	go func() {
		if err := srv.Run(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 11. Graceful shutdown: сначала перестаем принимать запросы,
	// затем дописываем хвост журнала решений
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}

	trail.Stop()
	logger.Info("service stopped")
}
