package planner

import (
	"strings"

	"github.com/repoforge/repoforge/internal/analysis"
	"github.com/repoforge/repoforge/internal/config"
)

// Categorize scores a task description against every category's weighted term
// groups and returns the winner. Ties are broken by the fixed precedence
// order; a description matching nothing is CategoryMixed.
//
// Scoring is a pure function of the description, the detection tables and the
// profile's detected technologies.
func Categorize(description string, tables *config.Tables, profile *analysis.Profile) Category {
	text := strings.ToLower(description)

	scores := make(map[Category]int, len(tables.Categories))
	for name, groups := range tables.Categories {
		scores[Category(name)] = scoreCategory(text, groups)
	}

	// A detected technology whose name appears in the description reinforces
	// the categories that technology belongs to.
	if profile != nil {
		for categoryName, techs := range profile.Technologies {
			for _, tech := range techs {
				if strings.Contains(text, strings.ToLower(tech)) {
					scores[Category(categoryName)] += 2
				}
			}
		}
	}

	best := CategoryMixed
	bestScore := 0
	for _, candidate := range categoryPrecedence {
		if s := scores[candidate]; s > bestScore {
			best = candidate
			bestScore = s
		}
	}
	return best
}

func scoreCategory(text string, groups map[string]config.TermGroup) int {
	total := 0
	for _, group := range groups {
		for _, term := range group.Terms {
			if strings.Contains(text, term) {
				total += group.Weight
			}
		}
	}
	return total
}

// Prioritize derives the ordinal priority of a task description from the
// configured high/low keyword lists. High terms win over low terms; no match
// defaults to medium.
func Prioritize(description string, tables *config.Tables) Priority {
	text := strings.ToLower(description)

	for _, term := range tables.Priority.High {
		if strings.Contains(text, term) {
			return PriorityHigh
		}
	}
	for _, term := range tables.Priority.Low {
		if strings.Contains(text, term) {
			return PriorityLow
		}
	}
	return PriorityMedium
}
