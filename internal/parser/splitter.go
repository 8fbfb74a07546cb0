package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"memo-rag/internal/config"
	"memo-rag/internal/models"
)

// natural boundaries, strongest first
var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// WindowSplitter cuts text into windows of at most ChunkSize characters.
// Consecutive windows share at least ChunkOverlap characters. Both cuts
// prefer a paragraph break, then a line break, a sentence end and finally
// a space.
type WindowSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	separators   [][]rune
}

var _ textsplitter.TextSplitter = WindowSplitter{}

func NewWindowSplitter(chunkSize, chunkOverlap int) WindowSplitter {
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	seps := make([][]rune, len(defaultSeparators))
	for i, s := range defaultSeparators {
		seps[i] = []rune(s)
	}
	return WindowSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap, separators: seps}
}

// NewSplitter returns the splitter selected in the rag config.
func NewSplitter(cfg config.RAGConfig) textsplitter.TextSplitter {
	if cfg.Splitter == config.SplitterRecursive {
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		)
	}
	return NewWindowSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
}

func (s WindowSplitter) SplitText(text string) ([]string, error) {
	if s.separators == nil {
		return NewWindowSplitter(s.ChunkSize, s.ChunkOverlap).SplitText(text)
	}
	r := []rune(strings.TrimSpace(text))
	n := len(r)
	if n == 0 {
		return nil, nil
	}
	if n <= s.ChunkSize {
		return []string{string(r)}, nil
	}

	var chunks []string
	start := 0
	for {
		end := min(start+s.ChunkSize, n)
		if end < n {
			// never cut so early that the next window could not move forward
			lo := start + max(s.ChunkSize/2, s.ChunkOverlap+1)
			if p, ok := s.lastBreak(r, lo, end); ok {
				end = p
			}
		}

		if chunk := string(r[start:end]); strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == n {
			break
		}

		limit := end - s.ChunkOverlap
		next := limit
		if p, ok := s.lastBreak(r, max(start+1, limit-s.ChunkOverlap), limit); ok {
			next = p
		}
		for next < limit && unicode.IsSpace(r[next]) {
			next++
		}
		start = next
	}
	return chunks, nil
}

// lastBreak returns the latest position in [lo, hi] directly behind a
// separator, trying the separators in order of strength.
func (s WindowSplitter) lastBreak(r []rune, lo, hi int) (int, bool) {
	for _, sep := range s.separators {
		for p := hi; p >= lo && p-len(sep) >= 0; p-- {
			if runesEqual(r[p-len(sep):p], sep) {
				return p, true
			}
		}
	}
	return 0, false
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SplitPages splits every page document and numbers the chunks of each page
// starting at 1.
func SplitPages(splitter textsplitter.TextSplitter, pages []schema.Document) ([]models.Chunk, error) {
	docs, err := textsplitter.SplitDocuments(splitter, pages)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(docs))
	var lastKey string
	chunkID := 0
	for _, doc := range docs {
		source, _ := doc.Metadata[models.MetaSource].(string)
		page, _ := doc.Metadata[models.MetaPage].(int)
		if key := fmt.Sprintf("%s#%d", source, page); key != lastKey {
			lastKey = key
			chunkID = 0
		}
		chunkID++
		chunks = append(chunks, models.Chunk{
			Content:    doc.PageContent,
			Source:     source,
			PageNumber: page,
			ChunkID:    chunkID,
		})
	}
	return chunks, nil
}
