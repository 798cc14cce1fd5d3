package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/gosecvault/internal/domain/model"
)

// DelegationRepository — интерфейс для таблицы delegation_grants.
type DelegationRepository interface {
	// Upsert создаёт делегирование идемпотентно: повтор — no-op, не дубликат.
	Upsert(ctx context.Context, g *model.DelegationGrant) error
	// Exists проверяет наличие делегирования owner → delegate.
	Exists(ctx context.Context, ownerUsername, delegateUsername string) (bool, error)
	// Delete удаляет делегирование; отсутствие — не ошибка.
	Delete(ctx context.Context, ownerUsername, delegateUsername string) error
	// ListByOwner возвращает делегирования, выданные владельцем.
	ListByOwner(ctx context.Context, ownerUsername string) ([]*model.DelegationGrant, error)
}

// delegationRepo — реализация DelegationRepository.
type delegationRepo struct {
	db DBTX
}

// NewDelegationRepository создаёт репозиторий делегирований.
func NewDelegationRepository(db DBTX) DelegationRepository {
	return &delegationRepo{db: db}
}

func (r *delegationRepo) Upsert(ctx context.Context, g *model.DelegationGrant) error {
	query := `
		INSERT INTO delegation_grants (id, key_owner_username, delegate_username)
		VALUES ($1, $2, $3)
		ON CONFLICT (key_owner_username, delegate_username) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, g.ID, g.KeyOwnerUsername, g.DelegateUsername); err != nil {
		return fmt.Errorf("ошибка создания делегирования: %w", err)
	}
	return nil
}

func (r *delegationRepo) Exists(ctx context.Context, ownerUsername, delegateUsername string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM delegation_grants
			WHERE key_owner_username = $1 AND delegate_username = $2
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, ownerUsername, delegateUsername).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки делегирования: %w", err)
	}
	return exists, nil
}

func (r *delegationRepo) Delete(ctx context.Context, ownerUsername, delegateUsername string) error {
	query := `
		DELETE FROM delegation_grants
		WHERE key_owner_username = $1 AND delegate_username = $2`

	if _, err := r.db.Exec(ctx, query, ownerUsername, delegateUsername); err != nil {
		return fmt.Errorf("ошибка отзыва делегирования: %w", err)
	}
	return nil
}

func (r *delegationRepo) ListByOwner(ctx context.Context, ownerUsername string) ([]*model.DelegationGrant, error) {
	query := `
		SELECT id, key_owner_username, delegate_username, created_at
		FROM delegation_grants
		WHERE key_owner_username = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, ownerUsername)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка делегирований: %w", err)
	}
	defer rows.Close()

	var result []*model.DelegationGrant
	for rows.Next() {
		g := &model.DelegationGrant{}
		if err := rows.Scan(&g.ID, &g.KeyOwnerUsername, &g.DelegateUsername, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования делегирования: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}
