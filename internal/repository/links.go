package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gosecvault/internal/domain/model"
)

// LinkRepository — интерфейс для таблицы share_links.
// Истёкшие ссылки не вычищаются фоном: срок проверяется при использовании.
type LinkRepository interface {
	// Create создаёт ссылку общего доступа.
	Create(ctx context.Context, l *model.ShareLink) error
	// GetByID возвращает ссылку по UUID.
	GetByID(ctx context.Context, id string) (*model.ShareLink, error)
	// GetByToken возвращает ссылку по токену.
	GetByToken(ctx context.Context, token string) (*model.ShareLink, error)
	// ListByFile возвращает ссылки файла.
	ListByFile(ctx context.Context, fileID string) ([]*model.ShareLink, error)
	// Delete удаляет ссылку.
	Delete(ctx context.Context, id string) error
}

// linkRepo — реализация LinkRepository.
type linkRepo struct {
	db DBTX
}

// NewLinkRepository создаёт репозиторий ссылок общего доступа.
func NewLinkRepository(db DBTX) LinkRepository {
	return &linkRepo{db: db}
}

const linkColumns = `id, file_id, token, expires_at, creator_id, created_at`

func (r *linkRepo) Create(ctx context.Context, l *model.ShareLink) error {
	query := `
		INSERT INTO share_links (id, file_id, token, expires_at, creator_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		l.ID, l.FileID, l.Token, l.ExpiresAt, l.CreatorID,
	).Scan(&l.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: коллизия токена ссылки", ErrConflict)
		}
		return fmt.Errorf("ошибка создания ссылки: %w", err)
	}
	return nil
}

func (r *linkRepo) GetByID(ctx context.Context, id string) (*model.ShareLink, error) {
	query := `SELECT ` + linkColumns + ` FROM share_links WHERE id = $1`

	l := &model.ShareLink{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.FileID, &l.Token, &l.ExpiresAt, &l.CreatorID, &l.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ссылки: %w", err)
	}
	return l, nil
}

func (r *linkRepo) GetByToken(ctx context.Context, token string) (*model.ShareLink, error) {
	query := `SELECT ` + linkColumns + ` FROM share_links WHERE token = $1`

	l := &model.ShareLink{}
	err := r.db.QueryRow(ctx, query, token).Scan(
		&l.ID, &l.FileID, &l.Token, &l.ExpiresAt, &l.CreatorID, &l.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ссылки: %w", err)
	}
	return l, nil
}

func (r *linkRepo) ListByFile(ctx context.Context, fileID string) ([]*model.ShareLink, error) {
	query := `SELECT ` + linkColumns + ` FROM share_links WHERE file_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ссылок: %w", err)
	}
	defer rows.Close()

	var result []*model.ShareLink
	for rows.Next() {
		l := &model.ShareLink{}
		if err := rows.Scan(
			&l.ID, &l.FileID, &l.Token, &l.ExpiresAt, &l.CreatorID, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ссылки: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (r *linkRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM share_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления ссылки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
