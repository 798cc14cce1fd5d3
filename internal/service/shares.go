// shares.go — сервис прямых выдач доступа.
// Все мутации — только владелец файла. Дубликат пары
// (файл, получатель) отсекается уникальным индексом БД, а не
// предварительным чтением: гонка двух одинаковых выдач даёт
// ровно одну запись.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/repository"
)

// ShareService — сервис выдач доступа.
type ShareService struct {
	shares repository.ShareRepository
	users  repository.UserRepository
	logger *slog.Logger
}

// NewShareService создаёт сервис выдач.
func NewShareService(shares repository.ShareRepository, users repository.UserRepository, logger *slog.Logger) *ShareService {
	return &ShareService{
		shares: shares,
		users:  users,
		logger: logger.With(slog.String("component", "share_service")),
	}
}

// Grant выдаёт доступ к файлу пользователю granteeUsername.
// Предусловия: principal — владелец, получатель существует,
// выдача себе запрещена, разрешение валидно.
func (s *ShareService) Grant(
	ctx context.Context,
	principal *model.User,
	f *model.File,
	granteeUsername, permission string,
) (*model.ShareGrant, error) {
	if f.OwnerID != principal.ID {
		return nil, ErrNotOwner
	}
	if granteeUsername == principal.Username {
		return nil, ErrSelfShare
	}
	if !model.IsValidPermission(permission) {
		return nil, fmt.Errorf("%w: недопустимое разрешение %q", ErrValidation, permission)
	}

	if _, err := s.users.GetByUsername(ctx, granteeUsername); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGranteeNotFound
		}
		return nil, err
	}

	g := &model.ShareGrant{
		ID:              uuid.New().String(),
		FileID:          f.ID,
		GranteeUsername: granteeUsername,
		GrantorID:       principal.ID,
		Permission:      permission,
	}
	if err := s.shares.Create(ctx, g); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateGrant
		}
		return nil, err
	}

	s.logger.Info("выдан доступ к файлу",
		slog.String("file_id", f.ID),
		slog.String("grantee", granteeUsername),
		slog.String("permission", permission),
	)
	return g, nil
}

// UpdatePermission меняет разрешение существующей выдачи.
// Только владелец файла; выдача должна принадлежать этому файлу.
func (s *ShareService) UpdatePermission(
	ctx context.Context,
	principal *model.User,
	f *model.File,
	shareID, permission string,
) (*model.ShareGrant, error) {
	if f.OwnerID != principal.ID {
		return nil, ErrNotOwner
	}
	if !model.IsValidPermission(permission) {
		return nil, fmt.Errorf("%w: недопустимое разрешение %q", ErrValidation, permission)
	}

	g, err := s.getOwned(ctx, f, shareID)
	if err != nil {
		return nil, err
	}

	if err := s.shares.UpdatePermission(ctx, g.ID, permission); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	g.Permission = permission

	s.logger.Info("изменено разрешение выдачи",
		slog.String("file_id", f.ID),
		slog.String("share_id", g.ID),
		slog.String("permission", permission),
	)
	return g, nil
}

// Revoke отзывает выдачу. Только владелец файла.
func (s *ShareService) Revoke(ctx context.Context, principal *model.User, f *model.File, shareID string) error {
	if f.OwnerID != principal.ID {
		return ErrNotOwner
	}

	g, err := s.getOwned(ctx, f, shareID)
	if err != nil {
		return err
	}

	if err := s.shares.Delete(ctx, g.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.Info("отозвана выдача доступа",
		slog.String("file_id", f.ID),
		slog.String("share_id", g.ID),
		slog.String("grantee", g.GranteeUsername),
	)
	return nil
}

// ListForFile возвращает выдачи файла. Только владелец.
func (s *ShareService) ListForFile(ctx context.Context, principal *model.User, f *model.File) ([]*model.ShareGrant, error) {
	if f.OwnerID != principal.ID {
		return nil, ErrNotOwner
	}
	return s.shares.ListByFile(ctx, f.ID)
}

// getOwned возвращает выдачу shareID, убедившись, что она относится
// к файлу f. Чужая выдача не раскрывается: тот же ErrNotFound.
func (s *ShareService) getOwned(ctx context.Context, f *model.File, shareID string) (*model.ShareGrant, error) {
	g, err := s.shares.GetByID(ctx, shareID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if g.FileID != f.ID {
		return nil, ErrNotFound
	}
	return g, nil
}
