package lockfile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestLoadMissing(t *testing.T) {
	lf, discarded := Load(filepath.Join(t.TempDir(), DefaultName))
	if discarded {
		t.Error("missing file should not be reported as discarded")
	}
	if lf.Len() != 0 {
		t.Errorf("Len() = %d, want 0", lf.Len())
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	os.WriteFile(path, []byte("{broken"), 0o644)

	lf, discarded := Load(path)
	if !discarded {
		t.Error("invalid file should be reported as discarded")
	}
	if lf.Len() != 0 {
		t.Errorf("Len() = %d, want 0", lf.Len())
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)

	lf := New(path)
	lf.Set("react", "^16.0.0", "16.2.0")
	lf.Set("lib", "^1.0.0", "1.1.0")
	lf.Set("@scope/pkg", "latest", "2.0.0")
	if !lf.Dirty() {
		t.Error("Dirty() = false after Set")
	}
	if err := lf.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if lf.Dirty() {
		t.Error("Dirty() = true after Save")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `{
  "@scope/pkg@latest": "2.0.0",
  "lib@^1.0.0": "1.1.0",
  "react@^16.0.0": "16.2.0"
}
`
	if string(data) != want {
		t.Errorf("file content:\n%s\nwant:\n%s", data, want)
	}

	reloaded, _ := Load(path)
	if v, ok := reloaded.Get("lib", "^1.0.0"); !ok || v != "1.1.0" {
		t.Errorf("Get(lib, ^1.0.0) = %q, %v", v, ok)
	}
	if reloaded.Dirty() {
		t.Error("freshly loaded lockfile should not be dirty")
	}
}

func TestSetSameValueNotDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	os.WriteFile(path, []byte(`{"a@1": "1.0.0"}`), 0o644)

	lf, _ := Load(path)
	lf.Set("a", "1", "1.0.0")
	if lf.Dirty() {
		t.Error("re-pinning the same version should not mark the lockfile dirty")
	}
}

func TestConcurrentSet(t *testing.T) {
	lf := New(filepath.Join(t.TempDir(), DefaultName))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lf.Set("pkg", string(rune('a'+i%26)), "1.0.0")
			lf.Get("pkg", "a")
		}(i)
	}
	wg.Wait()

	if lf.Len() != 26 {
		t.Errorf("Len() = %d, want 26", lf.Len())
	}
}
