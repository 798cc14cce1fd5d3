package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gosecvault/internal/domain/model"
)

// ShareRepository — интерфейс для таблицы share_grants.
type ShareRepository interface {
	// Create создаёт выдачу доступа.
	// Дубликат (file_id, grantee_username) отклоняется через ErrConflict —
	// уникальный индекс, а не проверка чтением.
	Create(ctx context.Context, g *model.ShareGrant) error
	// GetByID возвращает выдачу по UUID.
	GetByID(ctx context.Context, id string) (*model.ShareGrant, error)
	// GetByFileAndGrantee возвращает выдачу для пары (файл, получатель).
	GetByFileAndGrantee(ctx context.Context, fileID, granteeUsername string) (*model.ShareGrant, error)
	// ListByFile возвращает все выдачи файла.
	ListByFile(ctx context.Context, fileID string) ([]*model.ShareGrant, error)
	// UpdatePermission изменяет разрешение выдачи.
	UpdatePermission(ctx context.Context, id, permission string) error
	// Delete удаляет выдачу.
	Delete(ctx context.Context, id string) error
}

// shareRepo — реализация ShareRepository.
type shareRepo struct {
	db DBTX
}

// NewShareRepository создаёт репозиторий выдач доступа.
func NewShareRepository(db DBTX) ShareRepository {
	return &shareRepo{db: db}
}

const shareColumns = `id, file_id, grantee_username, grantor_id, permission, created_at`

func (r *shareRepo) Create(ctx context.Context, g *model.ShareGrant) error {
	query := `
		INSERT INTO share_grants (id, file_id, grantee_username, grantor_id, permission)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		g.ID, g.FileID, g.GranteeUsername, g.GrantorID, g.Permission,
	).Scan(&g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл уже расшарен этому пользователю", ErrConflict)
		}
		return fmt.Errorf("ошибка создания выдачи доступа: %w", err)
	}
	return nil
}

func (r *shareRepo) GetByID(ctx context.Context, id string) (*model.ShareGrant, error) {
	return r.getOne(ctx, `SELECT `+shareColumns+` FROM share_grants WHERE id = $1`, id)
}

func (r *shareRepo) GetByFileAndGrantee(ctx context.Context, fileID, granteeUsername string) (*model.ShareGrant, error) {
	query := `SELECT ` + shareColumns + ` FROM share_grants WHERE file_id = $1 AND grantee_username = $2`

	g := &model.ShareGrant{}
	err := r.db.QueryRow(ctx, query, fileID, granteeUsername).Scan(
		&g.ID, &g.FileID, &g.GranteeUsername, &g.GrantorID, &g.Permission, &g.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения выдачи доступа: %w", err)
	}
	return g, nil
}

// getOne выполняет запрос одной выдачи по условию с одним аргументом.
func (r *shareRepo) getOne(ctx context.Context, query string, arg any) (*model.ShareGrant, error) {
	g := &model.ShareGrant{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&g.ID, &g.FileID, &g.GranteeUsername, &g.GrantorID, &g.Permission, &g.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения выдачи доступа: %w", err)
	}
	return g, nil
}

func (r *shareRepo) ListByFile(ctx context.Context, fileID string) ([]*model.ShareGrant, error) {
	query := `SELECT ` + shareColumns + ` FROM share_grants WHERE file_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка выдач: %w", err)
	}
	defer rows.Close()

	var result []*model.ShareGrant
	for rows.Next() {
		g := &model.ShareGrant{}
		if err := rows.Scan(
			&g.ID, &g.FileID, &g.GranteeUsername, &g.GrantorID, &g.Permission, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования выдачи: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *shareRepo) UpdatePermission(ctx context.Context, id, permission string) error {
	query := `UPDATE share_grants SET permission = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, permission)
	if err != nil {
		return fmt.Errorf("ошибка обновления разрешения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *shareRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM share_grants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления выдачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
