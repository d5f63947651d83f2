package analysis

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/repoforge/repoforge/internal/config"
)

// ErrEmptySnapshot is returned when the snapshot contains no readable files.
var ErrEmptySnapshot = errors.New("repository snapshot is empty")

// FileInfo describes one file of the snapshot.
type FileInfo struct {
	Path       string // Relative to the snapshot root, slash-separated
	Size       int64
	Technology string // Detected technology name, empty if unknown
	Category   string // frontend, backend, config, data, documentation, or ""
}

// Profile is the immutable structural and technology profile of a repository
// snapshot. Produced once per run and shared read-only afterwards.
type Profile struct {
	Root            string
	Files           []FileInfo
	Directories     []string
	Technologies    map[string][]string // category -> sorted technology names
	ComplexityScore float64             // 0..1
	EstimatedHours  int
}

// Viability is a quick technical feasibility assessment derived from a Profile.
type Viability struct {
	Viable     bool
	Confidence float64 // 0..100
	Reasoning  string
}

// Analyzer scans repository snapshots. It is a pure function of repository
// state plus the detection tables; identical contents produce identical
// profiles.
type Analyzer struct {
	tables *config.Tables
}

// New creates an Analyzer over the given detection tables.
func New(tables *config.Tables) *Analyzer {
	return &Analyzer{tables: tables}
}

// skipDirs are directory names never included in a snapshot scan.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"__pycache__": true, ".venv": true, "dist": true, "build": true,
}

// Analyze walks the snapshot rooted at root and produces its Profile.
// Fails with ErrEmptySnapshot if no files are found, or with the underlying
// error if the root is unreadable.
func (a *Analyzer) Analyze(root string) (*Profile, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", root, err)
	}

	profile := &Profile{
		Root:         root,
		Technologies: make(map[string][]string),
	}
	techSeen := make(map[string]map[string]bool)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			profile.Directories = append(profile.Directories, rel)
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		fi := FileInfo{
			Path:       rel,
			Size:       info.Size(),
			Technology: a.tables.Technologies[ext],
			Category:   a.tables.ExtensionCategories[ext],
		}
		profile.Files = append(profile.Files, fi)

		if fi.Technology != "" && fi.Category != "" {
			if techSeen[fi.Category] == nil {
				techSeen[fi.Category] = make(map[string]bool)
			}
			techSeen[fi.Category][fi.Technology] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning snapshot %s: %w", root, err)
	}

	if len(profile.Files) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrEmptySnapshot)
	}

	// Deterministic ordering regardless of filesystem iteration order.
	sort.Slice(profile.Files, func(i, j int) bool { return profile.Files[i].Path < profile.Files[j].Path })
	sort.Strings(profile.Directories)
	for category, set := range techSeen {
		techs := make([]string, 0, len(set))
		for tech := range set {
			techs = append(techs, tech)
		}
		sort.Strings(techs)
		profile.Technologies[category] = techs
	}

	profile.ComplexityScore = complexity(profile)
	profile.EstimatedHours = estimateHours(profile)

	return profile, nil
}

// complexity blends technology spread and file count into a 0..1 score.
func complexity(p *Profile) float64 {
	totalTechs := 0
	for _, techs := range p.Technologies {
		totalTechs += len(techs)
	}
	techComplexity := min(float64(totalTechs)/10, 1.0)
	fileComplexity := min(float64(len(p.Files))/100, 1.0)
	return min(techComplexity*0.5+fileComplexity*0.5, 1.0)
}

// estimateHours derives a rough development-hours estimate, clamped to 8..200.
func estimateHours(p *Profile) int {
	hours := 8 + p.ComplexityScore*50 + float64(len(p.Files))/10*2
	if hours < 8 {
		return 8
	}
	if hours > 200 {
		return 200
	}
	return int(hours)
}

// AssessViability performs the basic technical feasibility check over a profile.
func AssessViability(p *Profile) Viability {
	technical := 1.0 - p.ComplexityScore
	timeScore := timeFeasibility(p.EstimatedHours)
	confidence := technical*0.6 + timeScore*0.4

	return Viability{
		Viable:     confidence > 0.4 && technical > 0.2 && timeScore > 0.2,
		Confidence: confidence * 100,
		Reasoning: fmt.Sprintf("technical feasibility %.2f, time feasibility %.2f",
			technical, timeScore),
	}
}

func timeFeasibility(hours int) float64 {
	switch {
	case hours <= 40:
		return 1.0
	case hours <= 100:
		return 0.8
	case hours <= 150:
		return 0.5
	default:
		return 0.2
	}
}
