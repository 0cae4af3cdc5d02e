package rbac

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/trufleet-authz/internal/domain"
	"go.uber.org/zap"
)

// Заголовки, через которые запрос несет ролевую претензию.
// Роль — самодекларация; доверенная роль подтягивается из users по email.
const (
	HeaderRole  = "X-Trufleet-Role"
	HeaderEmail = "X-Trufleet-Email"
)

// RoleDirectory — откуда берем доверенную сохраненную роль субъекта.
// Реализуется постгрес-репозиторием, обернутым в Redis TTL-кэш.
type RoleDirectory interface {
	StoredRole(ctx context.Context, email string) (string, error)
}

// Тип для ключей контекста (избегаем коллизий).
type ctxKey string

const (
	roleCtxKey  ctxKey = "trufleet_role"
	emailCtxKey ctxKey = "trufleet_email"
)

// RoleFromContext достает эффективную роль, положенную Middleware.
func RoleFromContext(ctx context.Context) domain.RoleID {
	if r, ok := ctx.Value(roleCtxKey).(domain.RoleID); ok {
		return r
	}
	return domain.RoleViewer
}

// EmailFromContext — подтвержденный email субъекта, если был передан.
func EmailFromContext(ctx context.Context) string {
	if e, ok := ctx.Value(emailCtxKey).(string); ok {
		return e
	}
	return ""
}

// Guard строит chi-совместимые middleware для гейтинга роутов по модулям.
type Guard struct {
	resolver  *Resolver
	gate      *Gate
	directory RoleDirectory
	logger    *zap.Logger
}

func NewGuard(resolver *Resolver, gate *Gate, directory RoleDirectory, logger *zap.Logger) *Guard {
	return &Guard{
		resolver:  resolver,
		gate:      gate,
		directory: directory,
		logger:    logger.Named("rbac"),
	}
}

// RequireModule возвращает middleware, пускающий дальше только роли из
// набора модуля. Порядок внутри: claim → stored role → resolve (потолок
// привилегий) → gate. Эффективная роль кладется в контекст для хендлеров.
func (g *Guard) RequireModule(moduleID string) func(http.Handler) http.Handler {
	return g.protect(moduleID, func(role domain.RoleID) Decision {
		return g.gate.Check(role, moduleID)
	})
}

// Require — то же самое для явного набора ролей (пресеты вроде AdminOnly,
// у которых нет собственного модуля в каталоге).
func (g *Guard) Require(scope string, required []domain.RoleID) func(http.Handler) http.Handler {
	return g.protect(scope, func(role domain.RoleID) Decision {
		return g.gate.CheckSet(role, required)
	})
}

func (g *Guard) protect(scope string, check func(domain.RoleID) Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claimed := r.Header.Get(HeaderRole)
			if claimed == "" {
				claimed = r.URL.Query().Get("role")
			}

			// Доверенная роль из хранилища. Сбой справочника не валит запрос:
			// работаем по заявленной роли, потолок просто не применится.
			stored := ""
			email := r.Header.Get(HeaderEmail)
			if email != "" && g.directory != nil {
				dbRole, err := g.directory.StoredRole(r.Context(), email)
				if err != nil {
					g.logger.Warn("stored role lookup failed",
						zap.String("email", email), zap.Error(err))
				} else {
					stored = dbRole
				}
			}

			role := g.resolver.Resolve(claimed, stored)

			decision := check(role)
			if !decision.Allowed {
				g.logger.Info("access denied",
					zap.String("scope", scope),
					zap.String("role", string(role)))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":    "Insufficient permissions",
					"required": decision.Required,
					"current":  role,
				})
				return
			}

			ctx := context.WithValue(r.Context(), roleCtxKey, role)
			ctx = context.WithValue(ctx, emailCtxKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
