package coordinator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/repoforge/repoforge/internal/analysis"
	"github.com/repoforge/repoforge/internal/chunk"
	"github.com/repoforge/repoforge/internal/gitrepo"
	"github.com/repoforge/repoforge/internal/planner"
)

// systemPrompts maps a task category to its agent persona.
var systemPrompts = map[planner.Category]string{
	planner.CategoryFrontend:      "You are a senior frontend engineer. You modify UI code precisely and conservatively.",
	planner.CategoryBackend:       "You are a senior backend engineer. You modify server-side code precisely and conservatively.",
	planner.CategoryConfig:        "You are a build and configuration specialist. You edit configuration files precisely.",
	planner.CategoryData:          "You are a data engineer. You edit schemas and data pipelines precisely.",
	planner.CategoryDocumentation: "You are a technical writer. You edit documentation precisely.",
	planner.CategoryMixed:         "You are a senior software engineer. You modify code precisely and conservatively.",
}

const editFormatInstructions = `Respond with the complete updated content of every file you change.
Precede each file with a line of the form:
=== FILE: path/to/file ===
Do not include any other commentary.`

// planningPrompt asks the agent to decompose a change request into discrete
// tasks over the analyzed repository.
func planningPrompt(req Request, profile *analysis.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Change request for repository %s:\n%s\n\n", req.RepoURL, req.Description)

	b.WriteString("Repository files:\n")
	for _, f := range profile.Files {
		fmt.Fprintf(&b, "- %s\n", f.Path)
	}
	b.WriteString("\nDetected technologies:\n")
	for category, techs := range profile.Technologies {
		fmt.Fprintf(&b, "- %s: %s\n", category, strings.Join(techs, ", "))
	}

	b.WriteString(`
Decompose the change request into discrete, independently implementable tasks.
Respond with JSON only, of the shape:
{"tasks": [{"id": "task-001", "file_path": "relative/path", "specific_changes": "what to change and why"}]}
List tasks in the order they should be implemented.`)
	return b.String()
}

// chunkPrompt builds the prompt for one chunk of one task. Retry diagnostics
// from failed validation are appended so the agent can correct its output.
func chunkPrompt(task *planner.Task, c *chunk.Chunk, total int, diagnostics string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", task.Description)

	if total > 1 {
		fmt.Fprintf(&b, "The context is split into %d parts; this is part %d. ", total, c.Index+1)
		b.WriteString("Apply the task only to the files in this part.\n\n")
	}
	if c.OverlapPrefix != "" {
		b.WriteString("Preceding lines for context (do not repeat them in your output):\n")
		b.WriteString(c.OverlapPrefix)
		b.WriteString("\n")
	}

	b.WriteString(c.Header())
	b.WriteString(c.Content)
	b.WriteString("\n\n")

	if diagnostics != "" {
		b.WriteString("A previous attempt failed validation with this output:\n")
		b.WriteString(diagnostics)
		b.WriteString("\nFix the problems above in this attempt.\n\n")
	}

	b.WriteString(editFormatInstructions)
	return b.String()
}

var fileHeaderRe = regexp.MustCompile(`(?m)^=== FILE: (.+?)(?: \(part \d+/\d+, lines \d+-\d+\))? ===\s*$`)

// parseFileEdits extracts file edits from merged agent output. Output with no
// file headers is treated as the full content of the task's target file.
func parseFileEdits(task *planner.Task, output string) []gitrepo.FileEdit {
	output = stripFences(output)

	matches := fileHeaderRe.FindAllStringSubmatchIndex(output, -1)
	if len(matches) == 0 {
		return []gitrepo.FileEdit{{Path: task.TargetPath, Content: output}}
	}

	var edits []gitrepo.FileEdit
	for i, m := range matches {
		path := strings.TrimSpace(output[m[2]:m[3]])
		start := m[1]
		end := len(output)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimLeft(output[start:end], "\n")

		// Split pieces of the same file arrive as separate sections; stitch
		// them back together in order.
		if n := len(edits); n > 0 && edits[n-1].Path == path {
			edits[n-1].Content += content
			continue
		}
		edits = append(edits, gitrepo.FileEdit{Path: path, Content: content})
	}
	return edits
}

func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}
