package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	return p
}

func TestNewManagerWithPath(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "settings_test_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	filePath := filepath.Join(tempDir, "nested", SettingsFileName)
	m := NewManagerWithPath(filePath, 3)

	if m.GetFilePath() != filePath {
		t.Errorf("expected file path %s, got %s", filePath, m.GetFilePath())
	}
	if len(m.RecentFiles()) != 0 {
		t.Errorf("expected empty list, got %v", m.RecentFiles())
	}
}

func TestAddRecentOrderAndLimit(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, SettingsFileName)
	a, b, c, d := touch(t, tempDir, "a.tex"), touch(t, tempDir, "b.tex"), touch(t, tempDir, "c.tex"), touch(t, tempDir, "d.tex")

	m := NewManagerWithPath(filePath, 3)
	for _, p := range []string{a, b, c, a, d} {
		if err := m.AddRecent(p); err != nil {
			t.Fatalf("AddRecent(%s) error = %v", p, err)
		}
	}

	want := []string{d, a, c}
	got := m.RecentFiles()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %s, want %s", i, got[i], want[i])
		}
	}

	// Reload from disk
	reloaded := NewManagerWithPath(filePath, 3)
	if len(reloaded.RecentFiles()) != 3 || reloaded.RecentFiles()[0] != d {
		t.Errorf("reloaded list = %v", reloaded.RecentFiles())
	}
}

func TestLoadDropsMissingFiles(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, SettingsFileName)
	keep := touch(t, tempDir, "keep.tex")
	gone := touch(t, tempDir, "gone.tex")

	m := NewManagerWithPath(filePath, 5)
	if err := m.AddRecent(gone); err != nil {
		t.Fatal(err)
	}
	if err := m.AddRecent(keep); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	got := NewManagerWithPath(filePath, 5).RecentFiles()
	if len(got) != 1 || got[0] != keep {
		t.Errorf("expected only %s, got %v", keep, got)
	}
}

func TestRemoveRecent(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, SettingsFileName)
	a := touch(t, tempDir, "a.tex")

	m := NewManagerWithPath(filePath, 5)
	if err := m.AddRecent(a); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveRecent(a); err != nil {
		t.Fatalf("RemoveRecent() error = %v", err)
	}
	if len(m.RecentFiles()) != 0 {
		t.Errorf("expected empty list, got %v", m.RecentFiles())
	}
	if err := m.RemoveRecent("not-there"); err != nil {
		t.Errorf("RemoveRecent(absent) error = %v", err)
	}
}

func TestInvalidJSON(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, SettingsFileName)
	if err := os.WriteFile(filePath, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	m := NewManagerWithPath(filePath, 5)
	if len(m.RecentFiles()) != 0 {
		t.Errorf("expected empty list for invalid file, got %v", m.RecentFiles())
	}
	if err := m.Load(); err == nil {
		t.Error("expected error loading invalid JSON")
	}
}

func TestDefaultMaxRecent(t *testing.T) {
	tempDir := t.TempDir()
	m := NewManagerWithPath(filepath.Join(tempDir, SettingsFileName), 0)
	for i := 0; i < DefaultMaxRecent+2; i++ {
		if err := m.AddRecent(touch(t, tempDir, string(rune('a'+i))+".tex")); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(m.RecentFiles()); got != DefaultMaxRecent {
		t.Errorf("kept %d entries, want %d", got, DefaultMaxRecent)
	}
}
