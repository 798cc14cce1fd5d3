// Пакет filestore — хранение зашифрованных блобов на диске.
// Содержимое непрозрачно для сервиса: файлы шифруются на клиенте,
// сюда попадает уже шифртекст. Имена на диске — UUID-локаторы,
// исходное имя файла живёт только в БД.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore — управление блобами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (SV_STORAGE_DIR)
	dataDir string
}

// SaveResult — результат сохранения блоба.
type SaveResult struct {
	// Locator — имя блоба в dataDir; персистится в files.storage_locator
	Locator string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт FileStore. Создаёт директорию, если её нет.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// Save записывает блоб на диск под свежим UUID-локатором.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) Save(reader io.Reader) (*SaveResult, error) {
	locator := uuid.New().String() + ".bin"
	fullPath := filepath.Join(fs.dataDir, locator)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{Locator: locator, Size: size}, nil
}

// Open открывает блоб для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(locator string) (*os.File, error) {
	if err := validateLocator(locator); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(fs.dataDir, locator))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("блоб не найден: %s", locator)
		}
		return nil, fmt.Errorf("ошибка открытия блоба %s: %w", locator, err)
	}
	return f, nil
}

// Delete удаляет блоб. Отсутствие — не ошибка: метаданные в БД
// могли быть удалены раньше файла.
func (fs *FileStore) Delete(locator string) error {
	if err := validateLocator(locator); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(fs.dataDir, locator)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления блоба %s: %w", locator, err)
	}
	return nil
}

// validateLocator отклоняет локаторы с попыткой выхода из dataDir.
func validateLocator(locator string) error {
	if locator == "" || strings.Contains(locator, "/") || strings.Contains(locator, "\\") ||
		strings.Contains(locator, "..") {
		return fmt.Errorf("невалидный локатор: %q", locator)
	}
	return nil
}
