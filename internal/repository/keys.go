package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gosecvault/internal/domain/model"
)

// KeyRepository — интерфейс для таблицы key_records.
// Обновления не предусмотрены: пара создаётся один раз и не ротируется.
type KeyRepository interface {
	// CreateIfAbsent вставляет пару, если записи для owner_username ещё нет.
	// Возвращает true, если вставка произошла. Под гонкой проигравший
	// получает false и обязан перечитать запись победителя.
	CreateIfAbsent(ctx context.Context, k *model.KeyRecord) (bool, error)
	// GetByOwner возвращает пару по имени владельца.
	GetByOwner(ctx context.Context, ownerUsername string) (*model.KeyRecord, error)
}

// keyRepo — реализация KeyRepository.
type keyRepo struct {
	db DBTX
}

// NewKeyRepository создаёт репозиторий ключевых пар.
func NewKeyRepository(db DBTX) KeyRepository {
	return &keyRepo{db: db}
}

func (r *keyRepo) CreateIfAbsent(ctx context.Context, k *model.KeyRecord) (bool, error) {
	query := `
		INSERT INTO key_records (owner_username, public_key, private_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_username) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, k.OwnerUsername, k.PublicKey, k.PrivateKey)
	if err != nil {
		return false, fmt.Errorf("ошибка создания ключевой пары: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *keyRepo) GetByOwner(ctx context.Context, ownerUsername string) (*model.KeyRecord, error) {
	query := `
		SELECT owner_username, public_key, private_key, created_at
		FROM key_records
		WHERE owner_username = $1`

	k := &model.KeyRecord{}
	err := r.db.QueryRow(ctx, query, ownerUsername).Scan(
		&k.OwnerUsername, &k.PublicKey, &k.PrivateKey, &k.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ключевой пары: %w", err)
	}
	return k, nil
}
