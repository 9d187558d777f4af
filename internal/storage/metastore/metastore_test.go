package metastore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/model-catalog/internal/domain/model"
)

// testRecord создаёт тестовую запись.
func testRecord(id string) *model.ModelRecord {
	filename := id + "_tower.ifc"
	return &model.ModelRecord{
		ID:           id,
		OriginalName: "tower.ifc",
		Filename:     filename,
		MIMEType:     "model/ifc",
		Size:         2048,
		Format:       ".ifc",
		UploadDate:   time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
		Path:         "/data/uploads/models/" + filename,
		URL:          model.PublicURL(filename),
		Checksum:     "abc123",
	}
}

const (
	id1 = "11111111-1111-4111-8111-111111111111"
	id2 = "22222222-2222-4222-8222-222222222222"
	id3 = "33333333-3333-4333-8333-333333333333"
)

// TestSaveAndLoad проверяет запись и чтение метаданных.
func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metadata")
	s, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}

	rec := testRecord(id1)
	if err := s.Save(rec); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, id1+Suffix)); err != nil {
		t.Fatalf("файл метаданных не создан: %v", err)
	}

	got, err := s.Load(id1)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}

	if !got.UploadDate.Equal(rec.UploadDate) {
		t.Errorf("UploadDate потерял точность: %v", got.UploadDate)
	}
	got.UploadDate = rec.UploadDate
	if *got != *rec {
		t.Errorf("запись не совпадает:\nожидалось %+v\nполучено  %+v", rec, got)
	}
}

// TestSave_InvalidID проверяет отказ для идентификатора, непригодного для имени файла.
func TestSave_InvalidID(t *testing.T) {
	s, _ := New(t.TempDir())

	rec := testRecord(id1)
	rec.ID = "../escape"
	if err := s.Save(rec); err == nil {
		t.Fatal("ожидалась ошибка для недопустимого идентификатора")
	}
}

// TestLoad_NotFound проверяет ErrNotFound для отсутствующей записи.
func TestLoad_NotFound(t *testing.T) {
	s, _ := New(t.TempDir())

	for _, id := range []string{id2, "not-a-uuid", "../../etc/passwd"} {
		if _, err := s.Load(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q): ожидалась ErrNotFound, получено %v", id, err)
		}
	}
}

// TestLoad_Corrupt проверяет *CorruptError для невалидного JSON.
func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)

	if err := os.WriteFile(filepath.Join(dir, id1+Suffix), []byte("{not json"), 0o640); err != nil {
		t.Fatal(err)
	}

	_, err := s.Load(id1)
	var ce *CorruptError
	if !errors.As(err, &ce) {
		t.Fatalf("ожидался *CorruptError, получено %v", err)
	}
	if ce.Path != filepath.Join(dir, id1+Suffix) {
		t.Errorf("Path: %s", ce.Path)
	}
}

// TestLoadAll_SkipsCorrupt проверяет, что повреждённые записи не блокируют перечисление.
func TestLoadAll_SkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)

	for _, id := range []string{id1, id2} {
		if err := s.Save(testRecord(id)); err != nil {
			t.Fatal(err)
		}
	}

	// Невалидный JSON и JSON без обязательных полей
	_ = os.WriteFile(filepath.Join(dir, id3+Suffix), []byte("garbage"), 0o640)
	_ = os.WriteFile(filepath.Join(dir, "44444444-4444-4444-8444-444444444444"+Suffix), []byte(`{"size": 1}`), 0o640)
	// Посторонние файлы игнорируются
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o640)
	_ = os.WriteFile(filepath.Join(dir, id3+Suffix+".tmp"), []byte("x"), 0o640)

	records, corrupt, err := s.LoadAll()
	if err != nil {
		t.Fatalf("ошибка LoadAll: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("ожидалось 2 записи, получено %d", len(records))
	}
	if len(corrupt) != 2 {
		t.Errorf("ожидалось 2 повреждённые записи, получено %d", len(corrupt))
	}
}

// TestLoadAll_MissingDir проверяет пустой результат для отсутствующей директории.
func TestLoadAll_MissingDir(t *testing.T) {
	s, _ := New(filepath.Join(t.TempDir(), "absent"))

	records, corrupt, err := s.LoadAll()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(records) != 0 || len(corrupt) != 0 {
		t.Errorf("ожидался пустой результат: %d, %d", len(records), len(corrupt))
	}
}

// TestRemove проверяет идемпотентное удаление.
func TestRemove(t *testing.T) {
	s, _ := New(t.TempDir())

	if err := s.Save(testRecord(id1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(id1); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if _, err := s.Load(id1); !errors.Is(err, ErrNotFound) {
		t.Errorf("запись доступна после удаления: %v", err)
	}
	if err := s.Remove(id1); err != nil {
		t.Errorf("повторное удаление вернуло ошибку: %v", err)
	}
}

// TestIDMismatch проверяет, что копия sidecar-файла под чужим именем
// считается повреждённой и не даёт второй записи с тем же id.
func TestIDMismatch(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)

	if err := s.Save(testRecord(id1)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(s.PathFor(id1))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.PathFor(id2), data, 0o640); err != nil {
		t.Fatal(err)
	}

	var ce *CorruptError
	if _, err := s.Load(id2); !errors.As(err, &ce) {
		t.Fatalf("Load(id2): ожидался *CorruptError, получено %v", err)
	}
	if ce.Path != s.PathFor(id2) {
		t.Errorf("Path: ожидалось %s, получено %s", s.PathFor(id2), ce.Path)
	}
	if _, err := s.Load(id1); err != nil {
		t.Errorf("Load(id1): %v", err)
	}

	records, corrupt, err := s.LoadAll()
	if err != nil {
		t.Fatalf("ошибка LoadAll: %v", err)
	}
	if len(records) != 1 || records[0].ID != id1 {
		t.Errorf("ожидалась одна запись %s, получено %d", id1, len(records))
	}
	if len(corrupt) != 1 || corrupt[0].Path != s.PathFor(id2) {
		t.Errorf("ожидалась одна повреждённая запись %s: %+v", s.PathFor(id2), corrupt)
	}
}
