package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTables_FallsBackToDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		tables, err := LoadTables(path)
		if err != nil {
			t.Fatalf("LoadTables(%q): %v", path, err)
		}
		if len(tables.Categories) == 0 {
			t.Errorf("LoadTables(%q) returned empty categories", path)
		}
		if len(tables.Priority.High) == 0 {
			t.Errorf("LoadTables(%q) returned empty priority terms", path)
		}
	}
}

func TestLoadTables_CustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	content := `
categories:
  backend:
    concepts:
      weight: 5
      terms: ["grpc", "queue"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}

	group := tables.Categories["backend"]["concepts"]
	if group.Weight != 5 || len(group.Terms) != 2 {
		t.Errorf("parsed group = %+v", group)
	}
	// Omitted sections fall back to the built-in tables.
	if len(tables.Technologies) == 0 {
		t.Error("technologies not defaulted")
	}
	if len(tables.Priority.High) == 0 {
		t.Error("priority terms not defaulted")
	}
}

func TestLoadTables_EmptyCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	if err := os.WriteFile(path, []byte("technologies:\n  .go: Go\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadTables(path); err == nil {
		t.Fatal("expected error for tables without categories")
	}
}

func TestDefaultTables_PrecedenceCategoriesExist(t *testing.T) {
	tables := DefaultTables()
	for _, name := range []string{"backend", "frontend", "config", "data", "documentation"} {
		if _, ok := tables.Categories[name]; !ok {
			t.Errorf("default tables missing category %q", name)
		}
	}
}
