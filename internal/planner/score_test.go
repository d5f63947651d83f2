package planner

import (
	"testing"

	"github.com/repoforge/repoforge/internal/analysis"
	"github.com/repoforge/repoforge/internal/config"
)

func TestCategorize(t *testing.T) {
	tables := config.DefaultTables()

	tests := []struct {
		name        string
		description string
		want        Category
	}{
		{
			name:        "backend keywords",
			description: "Add a new endpoint to the user service with validation",
			want:        CategoryBackend,
		},
		{
			name:        "frontend keywords",
			description: "Restyle the login button and fix the form layout css",
			want:        CategoryFrontend,
		},
		{
			name:        "config keywords",
			description: "Update the dockerfile and ci pipeline settings",
			want:        CategoryConfig,
		},
		{
			name:        "data keywords",
			description: "Write a migration for the new schema",
			want:        CategoryData,
		},
		{
			name:        "documentation keywords",
			description: "Rewrite the readme and changelog",
			want:        CategoryDocumentation,
		},
		{
			name:        "no keywords",
			description: "Do the thing",
			want:        CategoryMixed,
		},
		{
			// "api" scores backend (2), "ui" scores frontend (2); the fixed
			// precedence order resolves the tie toward backend.
			name:        "tie resolves to backend",
			description: "Adjust the api and the ui",
			want:        CategoryBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.description, tables, nil); got != tt.want {
				t.Errorf("Categorize(%q) = %s, want %s", tt.description, got, tt.want)
			}
		})
	}
}

func TestCategorize_TechnologyReinforcement(t *testing.T) {
	tables := config.DefaultTables()
	profile := &analysis.Profile{
		Technologies: map[string][]string{
			"frontend": {"React"},
		},
	}

	// "component" alone scores frontend 2 and backend 0. Mentioning a detected
	// technology adds reinforcement on top.
	got := Categorize("Refactor the React component", tables, profile)
	if got != CategoryFrontend {
		t.Errorf("Categorize with detected tech = %s, want %s", got, CategoryFrontend)
	}
}

func TestPrioritize(t *testing.T) {
	tables := config.DefaultTables()

	tests := []struct {
		description string
		want        Priority
	}{
		{"Fix the crash on startup", PriorityHigh},
		{"Polish the button color", PriorityLow},
		{"Refactor the import ordering", PriorityMedium},
		// A description matching both lists is high: high terms are checked first.
		{"Fix the broken layout style", PriorityHigh},
	}

	for _, tt := range tests {
		if got := Prioritize(tt.description, tables); got != tt.want {
			t.Errorf("Prioritize(%q) = %s, want %s", tt.description, got, tt.want)
		}
	}
}
