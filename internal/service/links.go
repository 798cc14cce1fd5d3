// links.go — сервис ссылок-капабилити.
// Токен ссылки — 32 байта из crypto/rand в base64url, неугадываемый.
// Срок жизни проверяется при использовании (access.Resolver),
// фоновой чистки истёкших ссылок нет.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/repository"
)

// linkTokenBytes — длина токена ссылки до кодирования.
const linkTokenBytes = 32

// LinkService — сервис ссылок общего доступа.
type LinkService struct {
	links         repository.LinkRepository
	defaultExpiry time.Duration
	logger        *slog.Logger
}

// NewLinkService создаёт сервис ссылок.
// defaultExpiry — срок жизни ссылки, если клиент не указал свой
// (SV_LINK_DEFAULT_EXPIRY).
func NewLinkService(links repository.LinkRepository, defaultExpiry time.Duration, logger *slog.Logger) *LinkService {
	return &LinkService{
		links:         links,
		defaultExpiry: defaultExpiry,
		logger:        logger.With(slog.String("component", "link_service")),
	}
}

// Generate создаёт ссылку на файл. Только владелец.
// expiresIn — срок жизни; 0 — срок по умолчанию; отрицательное
// значение отклоняется. eternal — бессрочная ссылка.
func (s *LinkService) Generate(
	ctx context.Context,
	principal *model.User,
	f *model.File,
	expiresIn time.Duration,
	eternal bool,
) (*model.ShareLink, error) {
	if f.OwnerID != principal.ID {
		return nil, ErrNotOwner
	}
	if expiresIn < 0 {
		return nil, fmt.Errorf("%w: срок жизни ссылки не может быть отрицательным", ErrValidation)
	}

	token, err := generateLinkToken()
	if err != nil {
		return nil, err
	}

	link := &model.ShareLink{
		ID:        uuid.New().String(),
		FileID:    f.ID,
		Token:     token,
		CreatorID: principal.ID,
	}
	if !eternal {
		if expiresIn == 0 {
			expiresIn = s.defaultExpiry
		}
		exp := time.Now().UTC().Add(expiresIn)
		link.ExpiresAt = &exp
	}

	if err := s.links.Create(ctx, link); err != nil {
		return nil, err
	}

	s.logger.Info("создана ссылка общего доступа",
		slog.String("file_id", f.ID),
		slog.String("link_id", link.ID),
		slog.Bool("eternal", eternal),
	)
	return link, nil
}

// ListForFile возвращает ссылки файла. Только владелец.
func (s *LinkService) ListForFile(ctx context.Context, principal *model.User, f *model.File) ([]*model.ShareLink, error) {
	if f.OwnerID != principal.ID {
		return nil, ErrNotOwner
	}
	return s.links.ListByFile(ctx, f.ID)
}

// Revoke удаляет ссылку. Только владелец файла.
// Чужая ссылка не раскрывается: тот же ErrNotFound.
func (s *LinkService) Revoke(ctx context.Context, principal *model.User, f *model.File, linkID string) error {
	if f.OwnerID != principal.ID {
		return ErrNotOwner
	}

	l, err := s.getOwned(ctx, f, linkID)
	if err != nil {
		return err
	}

	if err := s.links.Delete(ctx, l.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.Info("отозвана ссылка общего доступа",
		slog.String("file_id", f.ID),
		slog.String("link_id", l.ID),
	)
	return nil
}

// getOwned возвращает ссылку linkID, убедившись, что она относится
// к файлу f. Чужая ссылка не раскрывается: тот же ErrNotFound.
func (s *LinkService) getOwned(ctx context.Context, f *model.File, linkID string) (*model.ShareLink, error) {
	l, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if l.FileID != f.ID {
		return nil, ErrNotFound
	}
	return l, nil
}

// generateLinkToken возвращает неугадываемый токен ссылки.
func generateLinkToken() (string, error) {
	buf := make([]byte, linkTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("генерация токена ссылки: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
