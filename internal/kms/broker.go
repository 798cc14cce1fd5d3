// Пакет kms — хранитель ключевых пар и делегированная расшифровка.
// Приватные ключи не покидают сервис: клиенты шифруют публичным
// ключом владельца, а расшифровку выполняет брокер — для самого
// владельца или для явно делегированного пользователя.
package kms

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/repository"
)

var (
	// ErrKeyNotFound — ключевая пара владельца не существует.
	ErrKeyNotFound = errors.New("ключевая пара не найдена")
	// ErrAccessDenied — запрашивающий не владелец и не делегат.
	ErrAccessDenied = errors.New("нет доступа к ключу")
	// ErrDecryptionFailed — расшифровка не удалась. Причина (битый
	// base64, чужой ключ, повреждённый шифртекст) наружу не
	// раскрывается — единый непрозрачный отказ.
	ErrDecryptionFailed = errors.New("ошибка расшифровки")
	// ErrSelfDelegation — делегирование самому себе запрещено.
	ErrSelfDelegation = errors.New("делегирование самому себе не имеет смысла")
	// ErrDelegateNotFound — делегат не зарегистрирован.
	ErrDelegateNotFound = errors.New("делегат не найден")
)

// PrincipalDirectory — поиск пользователей для проверки делегатов.
type PrincipalDirectory interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// rsaKeyBits — размер генерируемых ключей. Не конфигурируется:
// все пары в хранилище одного размера.
const rsaKeyBits = 2048

// Broker — хранитель ключей.
type Broker struct {
	keys        repository.KeyRepository
	delegations repository.DelegationRepository
	users       PrincipalDirectory
	cache       *publicKeyCache
	logger      *slog.Logger
}

// NewBroker создаёт хранителя ключей.
// cacheSize, cacheTTL — параметры LRU-кэша публичных ключей
// (SV_KEY_CACHE_SIZE, SV_KEY_CACHE_TTL).
func NewBroker(
	keys repository.KeyRepository,
	delegations repository.DelegationRepository,
	users PrincipalDirectory,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Broker {
	return &Broker{
		keys:        keys,
		delegations: delegations,
		users:       users,
		cache:       newPublicKeyCache(cacheSize, cacheTTL),
		logger:      logger.With(slog.String("component", "kms_broker")),
	}
}

// GetOrCreateKey возвращает публичный ключ владельца в PEM,
// при первом обращении генерируя пару RSA-2048.
// Гонка параллельных генераций разрешается уникальностью
// owner_username: проигравший выбрасывает свою пару и перечитывает
// победившую.
func (b *Broker) GetOrCreateKey(ctx context.Context, ownerUsername string) (publicPEM string, created bool, err error) {
	if pub, ok := b.cache.get(ownerUsername); ok {
		return pub, false, nil
	}

	rec, err := b.keys.GetByOwner(ctx, ownerUsername)
	if err == nil {
		b.cache.set(ownerUsername, rec.PublicKey)
		return rec.PublicKey, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", false, err
	}

	pubPEM, privPEM, err := generateKeyPair()
	if err != nil {
		return "", false, err
	}

	inserted, err := b.keys.CreateIfAbsent(ctx, &model.KeyRecord{
		OwnerUsername: ownerUsername,
		PublicKey:     pubPEM,
		PrivateKey:    privPEM,
	})
	if err != nil {
		return "", false, err
	}
	if !inserted {
		// Проиграли гонку: читаем пару победителя
		rec, err := b.keys.GetByOwner(ctx, ownerUsername)
		if err != nil {
			return "", false, fmt.Errorf("перечитывание пары после гонки: %w", err)
		}
		b.cache.set(ownerUsername, rec.PublicKey)
		return rec.PublicKey, false, nil
	}

	b.logger.Info("сгенерирована ключевая пара",
		slog.String("owner", ownerUsername),
	)
	b.cache.set(ownerUsername, pubPEM)
	return pubPEM, true, nil
}

// Decrypt расшифровывает base64-шифртекст приватным ключом владельца.
// requester — кто просит; keyOwner — чьим ключом (пустая строка — своим).
// Чужим ключом можно только при живом делегировании.
// Возвращает base64 открытого текста.
func (b *Broker) Decrypt(ctx context.Context, requester, keyOwner, ciphertextB64 string) (string, error) {
	if keyOwner == "" {
		keyOwner = requester
	}

	if requester != keyOwner {
		ok, err := b.delegations.Exists(ctx, keyOwner, requester)
		if err != nil {
			return "", err
		}
		if !ok {
			b.logger.Warn("отказ в делегированной расшифровке",
				slog.String("requester", requester),
				slog.String("key_owner", keyOwner),
			)
			return "", ErrAccessDenied
		}
	}

	rec, err := b.keys.GetByOwner(ctx, keyOwner)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrKeyNotFound
		}
		return "", err
	}

	plaintext, err := decryptOAEP(rec.PrivateKey, ciphertextB64)
	if err != nil {
		// Детали только в лог, клиенту — непрозрачный отказ
		b.logger.Debug("расшифровка не удалась",
			slog.String("key_owner", keyOwner),
			slog.String("error", err.Error()),
		)
		return "", ErrDecryptionFailed
	}

	return base64.StdEncoding.EncodeToString(plaintext), nil
}

// GrantDelegation выдаёт делегирование owner → delegate. Идемпотентно.
// Делегат должен существовать: опечатка в имени не оседает в БД.
func (b *Broker) GrantDelegation(ctx context.Context, ownerUsername, delegateUsername string) error {
	if ownerUsername == delegateUsername {
		return ErrSelfDelegation
	}

	if _, err := b.users.GetByUsername(ctx, delegateUsername); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDelegateNotFound
		}
		return err
	}

	err := b.delegations.Upsert(ctx, &model.DelegationGrant{
		ID:               uuid.New().String(),
		KeyOwnerUsername: ownerUsername,
		DelegateUsername: delegateUsername,
	})
	if err != nil {
		return err
	}

	b.logger.Info("выдано делегирование расшифровки",
		slog.String("owner", ownerUsername),
		slog.String("delegate", delegateUsername),
	)
	return nil
}

// RevokeDelegation отзывает делегирование. Отсутствие — не ошибка.
func (b *Broker) RevokeDelegation(ctx context.Context, ownerUsername, delegateUsername string) error {
	if err := b.delegations.Delete(ctx, ownerUsername, delegateUsername); err != nil {
		return err
	}

	b.logger.Info("отозвано делегирование расшифровки",
		slog.String("owner", ownerUsername),
		slog.String("delegate", delegateUsername),
	)
	return nil
}

// ListDelegations возвращает делегирования, выданные владельцем.
func (b *Broker) ListDelegations(ctx context.Context, ownerUsername string) ([]*model.DelegationGrant, error) {
	return b.delegations.ListByOwner(ctx, ownerUsername)
}

// generateKeyPair генерирует пару RSA-2048 и кодирует её в PEM:
// приватный ключ — PKCS#8, публичный — PKIX.
func generateKeyPair() (publicPEM, privatePEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("генерация ключа RSA: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("кодирование приватного ключа: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("кодирование публичного ключа: %w", err)
	}

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return publicPEM, privatePEM, nil
}

// decryptOAEP расшифровывает base64-шифртекст приватным ключом в PEM.
// Схема: RSA-OAEP, SHA-256 и для хэша, и для MGF1, без label.
func decryptOAEP(privatePEM, ciphertextB64 string) ([]byte, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return nil, errors.New("невалидный PEM приватного ключа")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("разбор приватного ключа: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("приватный ключ не RSA")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("декодирование base64 шифртекста: %w", err)
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("RSA-OAEP: %w", err)
	}
	return plaintext, nil
}
