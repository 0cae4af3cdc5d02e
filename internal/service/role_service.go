package service

/*
Файл role_service.go — ролевые операции поверх общего каталога:
выдача каталога и матрицы прав для UI, проверка эффективной роли
по email и назначение сохраненной роли с аудитом и инвалидацией кэша.
*/

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/trufleet-authz/internal/audit"
	"github.com/xela07ax/trufleet-authz/internal/domain"
	"github.com/xela07ax/trufleet-authz/internal/rbac"
	"go.uber.org/zap"
)

// UserStore — операции над таблицей users, нужные ролевому сервису.
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*domain.StoredUser, error)
	AssignRole(ctx context.Context, userID, role string) (*domain.StoredUser, error)
}

// CacheInvalidator оповещает все инстансы о смене сохраненной роли.
type CacheInvalidator interface {
	PublishInvalidation(ctx context.Context, email string)
}

// ModuleAccess — одна строка матрицы прав для UI.
type ModuleAccess struct {
	Module string          `json:"module"`
	Label  string          `json:"label"`
	Public bool            `json:"public"`
	Roles  []domain.RoleID `json:"roles,omitempty"`
}

// AccessMatrix — полная матрица: модули с наборами ролей плюс сам каталог.
type AccessMatrix struct {
	Modules []ModuleAccess `json:"modules"`
	Roles   []domain.Role  `json:"roles"`
}

// RoleCheck — результат проверки доступа субъекта к одному модулю.
// При отказе Required называет полный набор достаточных ролей, чтобы
// вызывающий мог показать, чего именно не хватает.
type RoleCheck struct {
	Email     string          `json:"email"`
	Claimed   string          `json:"claimed,omitempty"`
	Stored    string          `json:"stored,omitempty"`
	Module    string          `json:"module"`
	Effective domain.RoleID   `json:"role"`
	Level     int             `json:"level"`
	Allowed   bool            `json:"allowed"`
	Required  []domain.RoleID `json:"required,omitempty"`
}

type RoleService struct {
	catalog     *rbac.Catalog
	resolver    *rbac.Resolver
	gate        *rbac.Gate
	users       UserStore
	trail       audit.Appender
	invalidator CacheInvalidator
	logger      *zap.Logger
}

func NewRoleService(catalog *rbac.Catalog, resolver *rbac.Resolver, gate *rbac.Gate,
	users UserStore, trail audit.Appender, invalidator CacheInvalidator, logger *zap.Logger) *RoleService {
	return &RoleService{
		catalog:     catalog,
		resolver:    resolver,
		gate:        gate,
		users:       users,
		trail:       trail,
		invalidator: invalidator,
		logger:      logger.Named("role-svc"),
	}
}

// Catalog — все роли в порядке убывания привилегий.
func (s *RoleService) Catalog() []domain.Role {
	return s.catalog.Roles()
}

// Matrix — матрица доступа модулей для UI-подсказок. Авторитетной остается
// серверная проверка в Guard; матрица лишь показывает ту же таблицу.
func (s *RoleService) Matrix() AccessMatrix {
	moduleIDs := s.catalog.Modules()
	modules := make([]ModuleAccess, 0, len(moduleIDs))
	for _, id := range moduleIDs {
		allowed := s.catalog.AllowedRoles(id)
		modules = append(modules, ModuleAccess{
			Module: id,
			Label:  rbac.ModuleLabel(id),
			Public: allowed == nil,
			Roles:  allowed,
		})
	}
	return AccessMatrix{Modules: modules, Roles: s.catalog.Roles()}
}

// Check вычисляет эффективную роль пары (заявленная роль, email) и решает
// доступ к одному модулю. ErrNotFound — пользователя с таким email нет.
// Неизвестный модуль не ошибка: каталог отдает пустой набор, allowed=false.
func (s *RoleService) Check(ctx context.Context, email, claimed, module string) (RoleCheck, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return RoleCheck{}, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	module = strings.TrimSpace(module)
	if module == "" {
		return RoleCheck{}, fmt.Errorf("%w: module is required", domain.ErrValidation)
	}

	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return RoleCheck{}, domain.Upstream("user lookup", err)
	}
	if user == nil {
		return RoleCheck{}, fmt.Errorf("%w: user %q", domain.ErrNotFound, email)
	}

	effective := s.resolver.Resolve(claimed, user.Role)
	decision := s.gate.Check(effective, module)

	return RoleCheck{
		Email:     email,
		Claimed:   claimed,
		Stored:    user.Role,
		Module:    module,
		Effective: effective,
		Level:     s.catalog.Level(effective),
		Allowed:   decision.Allowed,
		Required:  decision.Required,
	}, nil
}

// Assign меняет сохраненную роль пользователя. Роль обязана быть каноничным
// id из каталога — свободный текст здесь не нормализуем, а отклоняем:
// запись в источник правды должна быть точной.
func (s *RoleService) Assign(ctx context.Context, userID, role, actor string) (*domain.StoredUser, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if _, ok := s.catalog.RoleOf(domain.RoleID(role)); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}

	user, err := s.users.AssignRole(ctx, userID, role)
	if err != nil {
		return nil, domain.Upstream("role assign", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %q", domain.ErrNotFound, userID)
	}

	if s.invalidator != nil {
		s.invalidator.PublishInvalidation(ctx, user.Email)
	}

	if actor == "" {
		actor = "RBAC Service"
	}
	s.trail.Append(audit.Entry{
		ID:          uuid.NewString(),
		Action:      audit.ActionRoleAssigned,
		EntityID:    user.ID,
		Description: fmt.Sprintf("Role %s assigned to %s", role, user.Email),
		Status:      "SUCCESS",
		Severity:    "medium",
		Detail:      role,
		Actor:       actor,
		Module:      "RBAC",
		Details: map[string]interface{}{
			"email": user.Email,
			"role":  role,
		},
		Timestamp: time.Now(),
	})

	s.logger.Info("role assigned",
		zap.String("user_id", user.ID),
		zap.String("role", role),
		zap.String("actor", actor),
	)
	return user, nil
}
