package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// failingReader возвращает ошибку после первой порции данных.
type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, errors.New("обрыв соединения")
	}
	r.sent = true
	return copy(p, "partial"), nil
}

// TestNew_LazyDirectory проверяет, что директория создаётся только при первой записи.
func TestNew_LazyDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("директория создана до первой записи")
	}

	if _, err := fs.Save("id-1", "id-1_a.obj", strings.NewReader("v 0 0 0")); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestSave проверяет сохранение файла с подсчётом SHA-256.
func TestSave(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("ISO-10303-21; HEADER; ENDSEC; DATA; ENDSEC; END-ISO-10303-21;")
	result, err := fs.Save("id-1", "id-1_tower.ifc", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	expectedHash := sha256.Sum256(content)
	if result.Checksum != hex.EncodeToString(expectedHash[:]) {
		t.Errorf("checksum не совпадает: %s", result.Checksum)
	}

	if result.FullPath != fs.PathFor("id-1_tower.ifc") {
		t.Errorf("FullPath: ожидалось %s, получено %s", fs.PathFor("id-1_tower.ifc"), result.FullPath)
	}
	if !filepath.IsAbs(result.FullPath) {
		t.Errorf("путь должен быть абсолютным: %s", result.FullPath)
	}

	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}

	// Временный файл не должен оставаться
	if _, err := os.Stat(result.FullPath + tmpSuffix); !os.IsNotExist(err) {
		t.Error("временный файл не удалён")
	}
}

// TestSave_ReaderError проверяет очистку временного файла при ошибке чтения.
func TestSave_ReaderError(t *testing.T) {
	dir := t.TempDir()
	fs, _ := New(dir)

	if _, err := fs.Save("id-2", "id-2_broken.obj", &failingReader{}); err == nil {
		t.Fatal("ожидалась ошибка")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("после ошибки остались файлы: %d", len(entries))
	}
}

// TestSave_InvalidName проверяет отказ для имён с разделителями пути.
func TestSave_InvalidName(t *testing.T) {
	fs, _ := New(t.TempDir())

	for _, name := range []string{"", ".", "..", "../escape.obj", "a/b.obj", `a\b.obj`} {
		_, err := fs.Save("id", name, strings.NewReader("x"))
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q): ожидалась ErrInvalidName, получено %v", name, err)
		}
	}
}

// TestExistsAndRemove проверяет проверку существования и идемпотентное удаление.
func TestExistsAndRemove(t *testing.T) {
	fs, _ := New(t.TempDir())

	result, err := fs.Save("id-3", "id-3_a.glb", strings.NewReader("glTF"))
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if !fs.Exists(result.FullPath) {
		t.Fatal("Exists вернул false для сохранённого файла")
	}

	if err := fs.Remove(result.FullPath); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if fs.Exists(result.FullPath) {
		t.Error("файл существует после удаления")
	}

	// Повторное удаление — не ошибка
	if err := fs.Remove(result.FullPath); err != nil {
		t.Errorf("повторное удаление вернуло ошибку: %v", err)
	}
}

// TestExists_Directory проверяет, что директория не считается бинарным файлом.
func TestExists_Directory(t *testing.T) {
	dir := t.TempDir()
	fs, _ := New(dir)

	if fs.Exists(dir) {
		t.Error("Exists вернул true для директории")
	}
	if fs.Exists(filepath.Join(dir, "missing.obj")) {
		t.Error("Exists вернул true для несуществующего файла")
	}
}

// TestOpen проверяет чтение сохранённого файла.
func TestOpen(t *testing.T) {
	fs, _ := New(t.TempDir())

	if _, err := fs.Save("id-4", "id-4_part.stp", strings.NewReader("STEP")); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	f, err := fs.Open("id-4_part.stp")
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer f.Close()

	data, _ := io.ReadAll(f)
	if string(data) != "STEP" {
		t.Errorf("содержимое: %q", data)
	}

	if _, err := fs.Open("../id-4_part.stp"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("ожидалась ErrInvalidName, получено %v", err)
	}
	if _, err := fs.Open("missing.stp"); err == nil {
		t.Error("ожидалась ошибка для несуществующего файла")
	}
}

// TestList проверяет перечисление файлов без временных и служебных.
func TestList(t *testing.T) {
	dir := t.TempDir()
	fs, _ := New(filepath.Join(dir, "models"))

	names, err := fs.List()
	if err != nil {
		t.Fatalf("List для отсутствующей директории: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("ожидался пустой список, получено %v", names)
	}

	if _, err := fs.Save("id-5", "id-5_a.obj", strings.NewReader("a")); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(fs.ContentDir(), "id-6_b.obj.tmp"), []byte("b"), 0o640)
	_ = os.WriteFile(filepath.Join(fs.ContentDir(), ".health_check"), []byte("ok"), 0o640)
	_ = os.Mkdir(filepath.Join(fs.ContentDir(), "subdir"), 0o750)

	names, err = fs.List()
	if err != nil {
		t.Fatalf("ошибка List: %v", err)
	}
	if len(names) != 1 || names[0] != "id-5_a.obj" {
		t.Errorf("ожидалось [id-5_a.obj], получено %v", names)
	}
}

func TestChecksumAndSize(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("glTF binary payload")
	result, err := fs.Save("id-2", "id-2_bridge.glb", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	sum, err := fs.Checksum(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка вычисления checksum: %v", err)
	}
	if sum != result.Checksum {
		t.Errorf("checksum: ожидалось %s, получено %s", result.Checksum, sum)
	}

	size, err := fs.Size(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка получения размера: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), size)
	}

	if _, err := fs.Checksum(fs.PathFor("missing.glb")); err == nil {
		t.Error("ожидалась ошибка для несуществующего файла")
	}
}
