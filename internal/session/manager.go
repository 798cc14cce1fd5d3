// Пакет session — жизненный цикл сессии на паре токенов.
// Выпуск пары access/refresh при входе и разрешение сессии по паре
// с тихой ротацией: протухший access прозрачно заменяется свежим,
// если refresh ещё жив. Клиент не замечает смены токена.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/repository"
	"github.com/bigkaa/gosecvault/internal/token"
)

var (
	// ErrUnauthenticated — запрос не удалось связать с сессией:
	// токены отсутствуют, подделаны или субъект недействителен.
	ErrUnauthenticated = errors.New("не аутентифицирован")
	// ErrSessionExpired — оба токена мертвы, сессию не восстановить.
	// Клиент обязан сбросить cookie и пройти вход заново.
	ErrSessionExpired = errors.New("сессия истекла")
)

// PrincipalStore — доступ к пользователям для разрешения сессии.
// Реализуется repository.UserRepository.
type PrincipalStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Manager — менеджер сессий.
type Manager struct {
	codec      *token.Codec
	users      PrincipalStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewManager создаёт менеджер сессий.
// accessTTL — срок жизни access-токена (SV_ACCESS_TOKEN_LIFETIME).
// refreshTTL — срок жизни refresh-токена (SV_REFRESH_TOKEN_LIFETIME).
func NewManager(
	codec *token.Codec,
	users PrincipalStore,
	accessTTL, refreshTTL time.Duration,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		codec:      codec,
		users:      users,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger.With(slog.String("component", "session_manager")),
	}
}

// Issue выпускает пару токенов для пользователя.
// Access несёт снапшот роли и mfa_enabled, refresh — только личность.
func (m *Manager) Issue(u *model.User) (access, refresh string, err error) {
	now := time.Now().UTC()

	access, err = m.codec.Encode(&model.SessionClaims{
		PrincipalID: u.ID,
		Username:    u.Username,
		Role:        u.Role,
		TokenKind:   model.TokenKindAccess,
		MFAEnabled:  u.MFAEnabled(),
		ExpiresAt:   now.Add(m.accessTTL),
	})
	if err != nil {
		return "", "", fmt.Errorf("выпуск access-токена: %w", err)
	}

	refresh, err = m.codec.Encode(&model.SessionClaims{
		PrincipalID: u.ID,
		Username:    u.Username,
		TokenKind:   model.TokenKindRefresh,
		ExpiresAt:   now.Add(m.refreshTTL),
	})
	if err != nil {
		return "", "", fmt.Errorf("выпуск refresh-токена: %w", err)
	}

	return access, refresh, nil
}

// AccessTTL возвращает срок жизни access-токена (для Max-Age cookie).
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL возвращает срок жизни refresh-токена (для Max-Age cookie).
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// Resolve разрешает сессию по паре токенов.
// Возвращает актуального пользователя из БД и, если произошла тихая
// ротация, свежий access-токен (иначе пустую строку).
//
// Лестница разрешения:
//  1. Оба токена пусты → ErrUnauthenticated.
//  2. Access валиден, но это refresh в слоте access → ErrUnauthenticated
//     сразу, без fallback: подмена слота — не «протухание».
//  3. Access валиден и верного вида → пользователь из БД; исчез или
//     деактивирован → ErrUnauthenticated.
//  4. Access структурно невалиден или протух → пробуем refresh.
//     Refresh мёртв, не того вида или субъект исчез → ErrSessionExpired.
//     Иначе — свежий access от ТЕКУЩЕГО состояния пользователя
//     (роль и mfa перечитываются, не копируются из старого токена).
func (m *Manager) Resolve(ctx context.Context, access, refresh string) (*model.User, string, error) {
	if access == "" && refresh == "" {
		return nil, "", ErrUnauthenticated
	}

	if access != "" {
		claims, err := m.codec.Decode(access)
		if err == nil {
			if claims.TokenKind != model.TokenKindAccess {
				m.logger.Warn("в слоте access токен другого вида",
					slog.String("token_kind", claims.TokenKind),
				)
				return nil, "", ErrUnauthenticated
			}
			u, err := m.loadPrincipal(ctx, claims.PrincipalID)
			if err != nil {
				return nil, "", err
			}
			return u, "", nil
		}
		m.logger.Debug("access-токен отклонён, пробуем refresh",
			slog.String("error", err.Error()),
		)
	}

	return m.rotate(ctx, refresh)
}

// rotate разрешает сессию по refresh-токену и выпускает свежий access.
func (m *Manager) rotate(ctx context.Context, refresh string) (*model.User, string, error) {
	if refresh == "" {
		return nil, "", ErrSessionExpired
	}

	claims, err := m.codec.Decode(refresh)
	if err != nil {
		m.logger.Debug("refresh-токен отклонён",
			slog.String("error", err.Error()),
		)
		return nil, "", ErrSessionExpired
	}
	if claims.TokenKind != model.TokenKindRefresh {
		return nil, "", ErrSessionExpired
	}

	u, err := m.users.GetByID(ctx, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrSessionExpired
		}
		return nil, "", fmt.Errorf("ошибка получения пользователя при ротации: %w", err)
	}
	if !u.Active {
		return nil, "", ErrSessionExpired
	}

	// Свежий access от текущего состояния: повышение роли или включение
	// MFA подхватываются на ближайшей ротации.
	newAccess, err := m.codec.Encode(&model.SessionClaims{
		PrincipalID: u.ID,
		Username:    u.Username,
		Role:        u.Role,
		TokenKind:   model.TokenKindAccess,
		MFAEnabled:  u.MFAEnabled(),
		ExpiresAt:   time.Now().UTC().Add(m.accessTTL),
	})
	if err != nil {
		return nil, "", fmt.Errorf("выпуск access-токена при ротации: %w", err)
	}

	m.logger.Debug("тихая ротация access-токена",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return u, newAccess, nil
}

// loadPrincipal загружает пользователя для живого access-токена.
func (m *Manager) loadPrincipal(ctx context.Context, id string) (*model.User, error) {
	u, err := m.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	if !u.Active {
		return nil, ErrUnauthenticated
	}
	return u, nil
}
