package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gosecvault/internal/domain/model"
)

// FileRepository — интерфейс CRUD для таблицы files.
type FileRepository interface {
	// Create регистрирует файл.
	Create(ctx context.Context, f *model.File) error
	// GetByID возвращает файл по UUID.
	GetByID(ctx context.Context, id string) (*model.File, error)
	// ListByOwner возвращает файлы владельца, новые первыми.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.File, error)
	// ListSharedWith возвращает файлы, выданные пользователю по прямым грантам.
	ListSharedWith(ctx context.Context, granteeUsername string) ([]*model.File, error)
	// Delete удаляет файл (каскадно — выдачи и ссылки).
	Delete(ctx context.Context, id string) error
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `f.id, f.file_name, f.storage_locator, f.owner_id, u.username, f.encrypted_key, f.created_at`

func (r *fileRepo) Create(ctx context.Context, f *model.File) error {
	query := `
		INSERT INTO files (id, file_name, storage_locator, owner_id, encrypted_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.FileName, f.StorageLocator, f.OwnerID, f.EncryptedKey,
	).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		JOIN users u ON u.id = f.owner_id
		WHERE f.id = $1`

	f := &model.File{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.FileName, &f.StorageLocator, &f.OwnerID, &f.OwnerUsername,
		&f.EncryptedKey, &f.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		JOIN users u ON u.id = f.owner_id
		WHERE f.owner_id = $1
		ORDER BY f.created_at DESC`

	return r.list(ctx, query, ownerID)
}

func (r *fileRepo) ListSharedWith(ctx context.Context, granteeUsername string) ([]*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		JOIN users u ON u.id = f.owner_id
		JOIN share_grants sg ON sg.file_id = f.id
		WHERE sg.grantee_username = $1
		ORDER BY sg.created_at DESC`

	return r.list(ctx, query, granteeUsername)
}

// list выполняет запрос списка файлов.
func (r *fileRepo) list(ctx context.Context, query string, args ...any) ([]*model.File, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.File
	for rows.Next() {
		f := &model.File{}
		if err := rows.Scan(
			&f.ID, &f.FileName, &f.StorageLocator, &f.OwnerID, &f.OwnerUsername,
			&f.EncryptedKey, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
