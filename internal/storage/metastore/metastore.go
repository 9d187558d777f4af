// Пакет metastore — чтение и запись sidecar-файлов метаданных моделей.
// Каждая модель имеет файл {id}.json в директории метаданных.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package metastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bigkaa/goartstore/model-catalog/internal/domain/ident"
	"github.com/bigkaa/goartstore/model-catalog/internal/domain/model"
)

// Suffix — расширение файла метаданных.
const Suffix = ".json"

// ErrNotFound — файл метаданных для идентификатора отсутствует.
var ErrNotFound = errors.New("метаданные не найдены")

// CorruptError — файл метаданных не удалось разобрать.
type CorruptError struct {
	// Path — путь к файлу метаданных
	Path string
	// Err — исходная ошибка чтения или десериализации
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("повреждённый файл метаданных %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Store — хранилище sidecar-файлов метаданных.
type Store struct {
	dir string
}

// New создаёт Store. Директория создаётся при первой записи.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("некорректный путь директории метаданных %s: %w", dir, err)
	}
	return &Store{dir: abs}, nil
}

// Dir возвращает путь к директории метаданных.
func (s *Store) Dir() string {
	return s.dir
}

// PathFor возвращает путь к файлу метаданных для идентификатора.
func (s *Store) PathFor(id string) string {
	return filepath.Join(s.dir, id+Suffix)
}

// Save атомарно записывает запись в {id}.json.
func (s *Store) Save(rec *model.ModelRecord) error {
	if !ident.ValidID(rec.ID) {
		return fmt.Errorf("недопустимый идентификатор модели %q", rec.ID)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", s.dir, err)
	}

	path := s.PathFor(rec.ID)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Load читает запись по идентификатору.
// Возвращает ErrNotFound, если файла нет или идентификатор недопустим,
// и *CorruptError, если файл не разбирается.
func (s *Store) Load(id string) (*model.ModelRecord, error) {
	if !ident.ValidID(id) {
		return nil, ErrNotFound
	}

	path := s.PathFor(id)
	rec, err := readFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := checkOwner(path, id, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// LoadAll читает все файлы метаданных директории.
// Повреждённые файлы пропускаются и возвращаются во втором срезе,
// чтобы одна испорченная запись не блокировала перечисление остальных.
// Отсутствие директории — не ошибка: возвращается пустой результат.
func (s *Store) LoadAll() ([]*model.ModelRecord, []*CorruptError, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("ошибка сканирования директории %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, Suffix) || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		records []*model.ModelRecord
		corrupt []*CorruptError
	)
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		rec, err := readFile(path)
		if err == nil {
			err = checkOwner(path, strings.TrimSuffix(name, Suffix), rec)
		}
		if err != nil {
			// Файл удалён между ReadDir и чтением — параллельный DeleteModel
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			var ce *CorruptError
			if errors.As(err, &ce) {
				corrupt = append(corrupt, ce)
				continue
			}
			corrupt = append(corrupt, &CorruptError{Path: path, Err: err})
			continue
		}
		records = append(records, rec)
	}

	return records, corrupt, nil
}

// Remove удаляет файл метаданных. Возвращает nil, если файла уже нет.
func (s *Store) Remove(id string) error {
	if !ident.ValidID(id) {
		return nil
	}
	err := os.Remove(s.PathFor(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления метаданных %s: %w", id, err)
	}
	return nil
}

// readFile читает и десериализует запись.
// Ошибки открытия возвращаются как есть, ошибки разбора — как *CorruptError.
func readFile(path string) (*model.ModelRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}

	var rec model.ModelRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	// Запись без идентификатора или имени файла не может быть сопоставлена с бинарным файлом
	if rec.ID == "" || rec.Filename == "" {
		return nil, &CorruptError{Path: path, Err: errors.New("отсутствуют обязательные поля id/filename")}
	}

	return &rec, nil
}

// checkOwner проверяет, что id записи совпадает с именем файла {id}.json.
// Копия sidecar-файла под чужим именем считается повреждённой.
func checkOwner(path, id string, rec *model.ModelRecord) error {
	if rec.ID != id {
		return &CorruptError{
			Path: path,
			Err:  fmt.Errorf("id записи %q не совпадает с именем файла %q", rec.ID, id),
		}
	}
	return nil
}
