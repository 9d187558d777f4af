// Пакет filestore — операции с бинарными файлами моделей на диске.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету,
// проверку существования, открытие и идемпотентное удаление.
// Все операции адресуются путём, производным от имени файла на диске;
// сопоставление идентификатора модели и имени файла — задача каталога.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// tmpSuffix — суффикс временных файлов незавершённой записи.
const tmpSuffix = ".tmp"

// ErrInvalidName — имя файла не является простым именем внутри директории.
var ErrInvalidName = errors.New("недопустимое имя файла")

// FileStore — управление бинарными файлами в директории контента.
type FileStore struct {
	// contentDir — директория хранения бинарных файлов
	contentDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// Filename — имя файла в contentDir
	Filename string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт FileStore. Директория создаётся при первой записи.
func New(contentDir string) (*FileStore, error) {
	abs, err := filepath.Abs(contentDir)
	if err != nil {
		return nil, fmt.Errorf("некорректный путь директории контента %s: %w", contentDir, err)
	}
	return &FileStore{contentDir: abs}, nil
}

// Save записывает данные из reader на диск с подсчётом SHA-256 на лету.
// id используется только для диагностики; файл адресуется storedFilename.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) Save(id, storedFilename string, reader io.Reader) (*SaveResult, error) {
	if !isPlainName(storedFilename) {
		return nil, fmt.Errorf("%w: %q (модель %s)", ErrInvalidName, storedFilename, id)
	}

	if err := os.MkdirAll(fs.contentDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию контента %s: %w", fs.contentDir, err)
	}

	fullPath := filepath.Join(fs.contentDir, storedFilename)
	tmpPath := fullPath + tmpSuffix

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных модели %s: %w", id, err)
	}

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

	return &SaveResult{
		Filename: storedFilename,
		FullPath: fullPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// PathFor возвращает абсолютный путь файла по имени на диске.
func (fs *FileStore) PathFor(storedFilename string) string {
	return filepath.Join(fs.contentDir, storedFilename)
}

// Exists проверяет существование обычного файла по пути.
func (fs *FileStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove удаляет файл. Возвращает nil, если файл уже не существует.
func (fs *FileStore) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", path, err)
	}
	return nil
}

// Size возвращает размер файла на диске.
func (fs *FileStore) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", path, err)
	}
	return info.Size(), nil
}

// Checksum вычисляет SHA-256 содержимого файла.
func (fs *FileStore) Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Open открывает файл для чтения по имени на диске.
// Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(storedFilename string) (*os.File, error) {
	if !isPlainName(storedFilename) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, storedFilename)
	}

	f, err := os.Open(fs.PathFor(storedFilename))
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storedFilename, err)
	}
	return f, nil
}

// List возвращает имена всех бинарных файлов (без временных и служебных).
// Для несуществующей директории возвращает пустой список.
func (fs *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(fs.contentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения директории контента %s: %w", fs.contentDir, err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// ContentDir возвращает путь к директории контента.
func (fs *FileStore) ContentDir() string {
	return fs.contentDir
}

// isPlainName проверяет, что имя не содержит разделителей пути и не ссылается
// на служебные записи директории.
func isPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}
