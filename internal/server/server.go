package server

/*
Файл server.go — сборка HTTP-поверхности движка решений.

Три группы роутов:
- публичные: health, каталог ролей, матрица, identity-карточка;
- модульные: гейт по матрице каталога (dispatch, identity);
- служебные: явный admin-набор (назначение ролей, чтение журнала).

Решающие эндпоинты дополнительно прикрыты общим rate-лимитером.
*/

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/trufleet-authz/internal/handler"
	"github.com/xela07ax/trufleet-authz/internal/infra"
	"github.com/xela07ax/trufleet-authz/internal/rbac"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handlers — все HTTP-хендлеры, которые монтирует сервер.
type Handlers struct {
	Roles    *handler.RolesHandler
	Dispatch *handler.DispatchHandler
	Identity *handler.IdentityHandler
	Audit    *handler.AuditHandler
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

func New(cfg infra.ServerConfig, guard *rbac.Guard, h Handlers,
	limiter *rate.Limiter, reg *prometheus.Registry, logger *zap.Logger) *Server {

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Tracing(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		// Публичная часть: справочные данные без гейта.
		// Авторитетная проверка прав все равно остается на защищенных роутах.
		r.Get("/roles", h.Roles.List)
		r.Get("/roles/matrix", h.Roles.Matrix)
		r.Get("/roles/check", h.Roles.Check)
		r.Get("/identity/{vehicleID}", h.Identity.Card)

		// Назначение ролей — только admin-набор
		r.Group(func(r chi.Router) {
			r.Use(guard.Require("roles.assign", rbac.AdminOnly()))
			r.Post("/roles/assign", h.Roles.Assign)
		})

		// Диспетчерский модуль
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireModule(rbac.ModuleDispatch))
			r.With(Throttle(limiter)).Post("/dispatch/authorize", h.Dispatch.Authorize)
			r.Get("/dispatch/stats", h.Dispatch.Stats)
			r.Get("/dispatch/logs", h.Dispatch.Logs)
		})

		// Identity-модуль
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireModule(rbac.ModuleIdentity))
			r.With(Throttle(limiter)).Post("/identity/verify", h.Identity.Verify)
			r.Get("/identity/stats", h.Identity.Stats)
		})

		// Журнал решений — только admin-набор
		r.Group(func(r chi.Router) {
			r.Use(guard.Require("audit.read", rbac.AdminOnly()))
			r.Get("/audit", h.Audit.Entries)
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger.Named("server"),
	}
}

func (s *Server) Run() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
