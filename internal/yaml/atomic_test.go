package yaml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	yamlv3 "gopkg.in/yaml.v3"
)

func TestAtomicWrite_Success(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")

	data := map[string]any{"date": "2026-08-31", "workout_mode": true}
	if err := AtomicWrite(path, data); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	var result map[string]any
	if err := yamlv3.Unmarshal(content, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if result["date"] != "2026-08-31" {
		t.Errorf("date: got %v", result["date"])
	}
	if result["workout_mode"] != true {
		t.Errorf("workout_mode: got %v", result["workout_mode"])
	}
}

func TestAtomicWrite_CreatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")

	if err := AtomicWrite(path, map[string]string{"energy_level": "low"}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := AtomicWrite(path, map[string]string{"energy_level": "high"}); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	bakContent, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("ReadFile .bak failed: %v", err)
	}
	var bakData map[string]string
	if err := yamlv3.Unmarshal(bakContent, &bakData); err != nil {
		t.Fatalf("Unmarshal .bak failed: %v", err)
	}
	if bakData["energy_level"] != "low" {
		t.Errorf(".bak energy_level = %q, want low", bakData["energy_level"])
	}
}

func TestAtomicWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")

	if err := AtomicWrite(path, map[string]int{"n": 1}); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".planday-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestQuarantine_MovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte("{{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	qdir := filepath.Join(dir, "quarantine")
	qpath, err := Quarantine(qdir, path)
	if err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupted file still present at original path")
	}
	if _, err := os.Stat(qpath); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}
	if !strings.HasSuffix(qpath, ".corrupt") {
		t.Errorf("quarantine name %q lacks .corrupt suffix", qpath)
	}
}

func TestRestoreFromBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")

	if err := AtomicWrite(path, map[string]string{"date": "2026-08-30"}); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWrite(path, map[string]string{"date": "2026-08-31"}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if err := RestoreFromBackup(path); err != nil {
		t.Fatalf("RestoreFromBackup failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "2026-08-30") {
		t.Errorf("restored content = %q, want first write", content)
	}
}

func TestRestoreFromBackup_NoBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := RestoreFromBackup(path); err == nil {
		t.Error("expected error when no backup exists")
	}
}
