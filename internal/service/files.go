// files.go — сервис файлов: загрузка, выдача содержимого, списки, удаление.
// Содержимое файлов зашифровано на клиенте: сервис хранит шифртекст
// и зашифрованный ключ шифрования (encrypted_key), не заглядывая внутрь.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/bigkaa/gosecvault/internal/domain/model"
	"github.com/bigkaa/gosecvault/internal/repository"
	"github.com/bigkaa/gosecvault/internal/storage/filestore"
)

// FileService — сервис файлов.
type FileService struct {
	files  repository.FileRepository
	store  *filestore.FileStore
	logger *slog.Logger
}

// NewFileService создаёт сервис файлов.
func NewFileService(files repository.FileRepository, store *filestore.FileStore, logger *slog.Logger) *FileService {
	return &FileService{
		files:  files,
		store:  store,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// Upload сохраняет блоб на диск и регистрирует файл в БД.
// encryptedKey — ключ шифрования файла, зашифрованный публичным
// ключом владельца (base64); хранится как есть.
// При ошибке регистрации блоб убирается с диска.
func (s *FileService) Upload(
	ctx context.Context,
	owner *model.User,
	fileName, encryptedKey string,
	content io.Reader,
) (*model.File, error) {
	if fileName == "" {
		return nil, fmt.Errorf("%w: имя файла обязательно", ErrValidation)
	}
	if encryptedKey == "" {
		return nil, fmt.Errorf("%w: зашифрованный ключ обязателен", ErrValidation)
	}

	res, err := s.store.Save(content)
	if err != nil {
		return nil, fmt.Errorf("сохранение блоба: %w", err)
	}

	f := &model.File{
		ID:             uuid.New().String(),
		FileName:       fileName,
		StorageLocator: res.Locator,
		OwnerID:        owner.ID,
		OwnerUsername:  owner.Username,
		EncryptedKey:   encryptedKey,
	}
	if err := s.files.Create(ctx, f); err != nil {
		// БД отказала — блоб на диске осиротел, убираем
		if rmErr := s.store.Delete(res.Locator); rmErr != nil {
			s.logger.Error("не удалось убрать осиротевший блоб",
				slog.String("locator", res.Locator),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("загружен файл",
		slog.String("file_id", f.ID),
		slog.String("file_name", f.FileName),
		slog.String("owner", owner.Username),
		slog.Int64("size", res.Size),
	)
	return f, nil
}

// Get возвращает метаданные файла.
func (s *FileService) Get(ctx context.Context, fileID string) (*model.File, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// OpenContent открывает блоб файла для отдачи клиенту.
// Вызывающий код обязан закрыть файл.
func (s *FileService) OpenContent(f *model.File) (*os.File, error) {
	blob, err := s.store.Open(f.StorageLocator)
	if err != nil {
		return nil, fmt.Errorf("открытие блоба файла %s: %w", f.ID, err)
	}
	return blob, nil
}

// ListOwn возвращает файлы владельца.
func (s *FileService) ListOwn(ctx context.Context, owner *model.User) ([]*model.File, error) {
	return s.files.ListByOwner(ctx, owner.ID)
}

// ListSharedWith возвращает файлы, выданные пользователю по прямым грантам.
func (s *FileService) ListSharedWith(ctx context.Context, u *model.User) ([]*model.File, error) {
	return s.files.ListSharedWith(ctx, u.Username)
}

// Delete удаляет файл. Только владелец.
// Сначала запись в БД (каскадно убирает выдачи и ссылки), затем блоб.
func (s *FileService) Delete(ctx context.Context, principal *model.User, f *model.File) error {
	if f.OwnerID != principal.ID {
		return ErrNotOwner
	}

	if err := s.files.Delete(ctx, f.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.store.Delete(f.StorageLocator); err != nil {
		// Метаданные уже удалены, блоб доберём позже вручную
		s.logger.Error("блоб не удалён вместе с файлом",
			slog.String("file_id", f.ID),
			slog.String("locator", f.StorageLocator),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("удалён файл",
		slog.String("file_id", f.ID),
		slog.String("owner", principal.Username),
	)
	return nil
}
