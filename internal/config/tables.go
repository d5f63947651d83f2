package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TermGroup is one weighted group of keywords inside a category
// (e.g. "frameworks" or "languages").
type TermGroup struct {
	Weight int      `yaml:"weight"`
	Terms  []string `yaml:"terms"`
}

// Tables holds the static lookup tables driving task categorization, task
// prioritization and technology detection. Loaded once at startup into an
// immutable value; scoring over it is a pure function.
type Tables struct {
	// Categories maps category name -> group name -> weighted terms.
	Categories map[string]map[string]TermGroup `yaml:"categories"`

	// Priority keyword lists. A description matching a high term is ordered
	// before one matching none, which is ordered before a low match.
	Priority struct {
		High []string `yaml:"high"`
		Low  []string `yaml:"low"`
	} `yaml:"priority"`

	// Technologies maps file extension (with dot) -> technology name.
	Technologies map[string]string `yaml:"technologies"`

	// ExtensionCategories maps file extension -> category name, used by the
	// analyzer to tag files.
	ExtensionCategories map[string]string `yaml:"extension_categories"`
}

// LoadTables reads lookup tables from a YAML file, falling back to the
// built-in defaults when the path is empty or the file does not exist.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultTables(), nil
		}
		return nil, fmt.Errorf("reading tables %s: %w", path, err)
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing tables %s: %w", path, err)
	}

	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("tables %s: categories section is empty", path)
	}

	// Sections the file omits keep their defaults.
	def := DefaultTables()
	if len(t.Priority.High) == 0 && len(t.Priority.Low) == 0 {
		t.Priority = def.Priority
	}
	if len(t.Technologies) == 0 {
		t.Technologies = def.Technologies
	}
	if len(t.ExtensionCategories) == 0 {
		t.ExtensionCategories = def.ExtensionCategories
	}

	return &t, nil
}

// DefaultTables returns the built-in lookup tables.
func DefaultTables() *Tables {
	t := &Tables{
		Categories: map[string]map[string]TermGroup{
			"frontend": {
				"frameworks": {Weight: 3, Terms: []string{"react", "vue", "angular", "svelte", "next.js"}},
				"concepts":   {Weight: 2, Terms: []string{"component", "ui", "css", "style", "layout", "button", "form", "render", "page", "view"}},
				"languages":  {Weight: 1, Terms: []string{"html", "javascript", "typescript", "jsx", "tsx"}},
			},
			"backend": {
				"frameworks": {Weight: 3, Terms: []string{"django", "flask", "fastapi", "express", "gin", "spring", "rails"}},
				"concepts":   {Weight: 2, Terms: []string{"endpoint", "api", "service", "handler", "middleware", "validation", "authentication", "database", "query", "model"}},
				"languages":  {Weight: 1, Terms: []string{"python", "go", "java", "ruby", "sql"}},
			},
			"config": {
				"concepts": {Weight: 2, Terms: []string{"configuration", "environment", "dockerfile", "docker-compose", "ci", "pipeline", "workflow", "makefile", "settings"}},
			},
			"data": {
				"concepts": {Weight: 2, Terms: []string{"migration", "schema", "dataset", "csv", "etl", "seed"}},
			},
			"documentation": {
				"concepts": {Weight: 2, Terms: []string{"readme", "docs", "documentation", "comment", "changelog", "tutorial"}},
			},
		},
		Technologies: map[string]string{
			".go":    "Go",
			".py":    "Python",
			".js":    "JavaScript",
			".jsx":   "React",
			".ts":    "TypeScript",
			".tsx":   "React",
			".vue":   "Vue",
			".rb":    "Ruby",
			".java":  "Java",
			".rs":    "Rust",
			".html":  "HTML",
			".css":   "CSS",
			".scss":  "Sass",
			".sql":   "SQL",
			".sh":    "Shell",
			".tf":    "Terraform",
			".proto": "Protobuf",
		},
		ExtensionCategories: map[string]string{
			".html": "frontend", ".css": "frontend", ".scss": "frontend",
			".jsx": "frontend", ".tsx": "frontend", ".vue": "frontend",
			".js": "frontend", ".ts": "frontend",
			".go": "backend", ".py": "backend", ".rb": "backend",
			".java": "backend", ".rs": "backend",
			".yaml": "config", ".yml": "config", ".toml": "config",
			".json": "config", ".tf": "config", ".sh": "config",
			".sql": "data", ".csv": "data", ".proto": "data",
			".md": "documentation", ".rst": "documentation", ".txt": "documentation",
		},
	}
	t.Priority.High = []string{
		"critical", "urgent", "security", "fix", "bug", "error", "crash",
		"broken", "authentication", "login", "api", "database", "endpoint",
	}
	t.Priority.Low = []string{
		"nice to have", "optional", "enhancement", "polish", "cosmetic",
		"future", "minor", "style", "visual", "layout", "color", "font",
	}
	return t
}
