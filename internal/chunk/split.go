package chunk

import (
	"fmt"
	"strings"

	"github.com/repoforge/repoforge/internal/config"
)

// Splitter partitions task context into ordered, budget-bounded chunks.
type Splitter struct {
	budget  int // Max estimated tokens per chunk
	overlap int // Lines repeated between consecutive pieces of a split file
}

// NewSplitter creates a Splitter from chunking configuration.
func NewSplitter(cfg config.ChunkingConfig) *Splitter {
	budget := cfg.TokenBudget
	if budget <= 0 {
		budget = 24000
	}
	overlap := cfg.OverlapLines
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{budget: budget, overlap: overlap}
}

// Split partitions files into chunks, each within the token budget. Files are
// processed in the given order and packed greedily into consecutive chunks;
// a file whose content alone exceeds the budget is split by line ranges. The
// chunk sequence is deterministic for identical input.
func (s *Splitter) Split(taskID string, files []File) ([]*Chunk, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("task %s: no context to split", taskID)
	}

	var chunks []*Chunk
	var current *Chunk

	flush := func() {
		if current != nil && len(current.Spans) > 0 {
			chunks = append(chunks, current)
		}
		current = nil
	}

	for _, f := range files {
		tokens := EstimateTokens(f.Content)

		if tokens > s.budget {
			// Oversized file: gets its own sequence of chunks.
			flush()
			pieces, err := s.splitFile(taskID, f)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, pieces...)
			continue
		}

		if current != nil && current.Tokens+tokens > s.budget {
			flush()
		}
		if current == nil {
			current = &Chunk{TaskID: taskID}
		}
		lines := countLines(f.Content)
		current.Spans = append(current.Spans, Span{Path: f.Path, StartLine: 1, EndLine: lines})
		current.Content += f.Content
		current.Tokens += tokens
	}
	flush()

	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks, nil
}

// splitFile cuts one oversized file into line-range pieces, each within
// budget, repeating the last overlap lines of a piece at the head of the next.
func (s *Splitter) splitFile(taskID string, f File) ([]*Chunk, error) {
	lines := splitLines(f.Content)

	var pieces []*Chunk
	start := 0
	for start < len(lines) {
		first := EstimateTokens(lines[start])
		if first > s.budget {
			// A single line larger than the whole budget cannot be split
			// further along logical boundaries.
			return nil, fmt.Errorf("task %s: line %d of %s exceeds chunk budget",
				taskID, start+1, f.Path)
		}

		// The overlap prefix shrinks when it would crowd out the first fresh
		// line, so prefix plus content always stays within budget.
		overlapStart := start - s.overlap
		if overlapStart < 0 {
			overlapStart = 0
		}
		prefix := strings.Join(lines[overlapStart:start], "")
		for overlapStart < start && EstimateTokens(prefix)+first > s.budget {
			overlapStart++
			prefix = strings.Join(lines[overlapStart:start], "")
		}
		budget := s.budget - EstimateTokens(prefix)

		end := start
		used := 0
		for end < len(lines) {
			lineTokens := EstimateTokens(lines[end])
			if end > start && used+lineTokens > budget {
				break
			}
			used += lineTokens
			end++
		}

		content := strings.Join(lines[start:end], "")
		pieces = append(pieces, &Chunk{
			TaskID: taskID,
			Spans: []Span{{
				Path:      f.Path,
				StartLine: start + 1,
				EndLine:   end,
				Part:      len(pieces) + 1,
			}},
			Content:       content,
			OverlapPrefix: prefix,
			Tokens:        EstimateTokens(prefix) + EstimateTokens(content),
		})
		start = end
	}

	for i := range pieces {
		pieces[i].Spans[0].Parts = len(pieces)
	}
	return pieces, nil
}

// splitLines splits text into lines keeping the trailing newline on each, so
// joining the pieces reproduces the input exactly.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:idx+1])
		text = text[idx+1:]
		if text == "" {
			break
		}
	}
	return lines
}

func countLines(text string) int {
	return len(splitLines(text))
}
