package rag

import (
	"bufio"
	"fmt"
	"strings"
)

// SectionEndSentinel is the literal marker the OCR step instructs the vision
// model to emit, alone on its own line, at the end of each logical section.
// It is the only channel by which OCR communicates section boundaries to the
// chunker and is matched exactly — no tolerance for near variants, per the
// spec's explicit decision to preserve exact-match behavior.
const SectionEndSentinel = "[[SECTION_END]]"

// ChunkerConfig holds the size/overlap bounds for Chunker.
type ChunkerConfig struct {
	// MaxChars bounds each emitted chunk. Optional, defaults to 800.
	MaxChars int
	// Overlap is how many trailing characters of one chunk are re-included
	// at the start of the next. Optional, defaults to 120.
	Overlap int
}

func (c *ChunkerConfig) validate() error {
	if c == nil {
		return fmt.Errorf("chunker config is required")
	}
	if c.MaxChars == 0 {
		c.MaxChars = 800
	}
	if c.Overlap == 0 {
		c.Overlap = 120
	}
	if c.MaxChars <= 0 {
		return fmt.Errorf("chunker config: max chars must be positive")
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChars {
		return fmt.Errorf("chunker config: overlap must be in [0, maxChars)")
	}
	return nil
}

// Chunker splits page-tagged text into sentinel-delimited sections and then
// into overlapping, size-bounded windows within each section.
type Chunker struct {
	config *ChunkerConfig
}

func NewChunker(config *ChunkerConfig) (*Chunker, error) {
	if config == nil {
		config = &ChunkerConfig{}
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// sectionBuffer accumulates lines between sentinels.
type sectionBuffer struct {
	lines     []string
	pageStart *int
	pageEnd   *int
}

func (b *sectionBuffer) observePage(page *int, nonBlank bool) {
	if !nonBlank || page == nil {
		return
	}
	if b.pageStart == nil {
		p := *page
		b.pageStart = &p
	}
	p := *page
	b.pageEnd = &p
}

func (b *sectionBuffer) flush(out *[]SectionText) {
	text := strings.Join(b.lines, "\n")
	if strings.TrimSpace(text) != "" {
		*out = append(*out, SectionText{
			Text:      text,
			PageStart: b.pageStart,
			PageEnd:   b.pageEnd,
		})
	}
	b.lines = nil
	b.pageStart = nil
	b.pageEnd = nil
}

// Sectionize consumes pages in order, line by line, splitting at
// SectionEndSentinel occurrences and flushing a SectionText each time (plus
// once more at EOF for any remaining buffered text).
func (c *Chunker) Sectionize(pages []PageText) []SectionText {
	var (
		sections []SectionText
		buf      sectionBuffer
	)

	for i := range pages {
		page := pages[i]
		scanner := bufio.NewScanner(strings.NewReader(page.Text))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			parts := strings.Split(line, SectionEndSentinel)

			for partIdx, part := range parts {
				if partIdx > 0 {
					buf.flush(&sections)
				}
				if part == "" {
					continue
				}
				buf.observePage(page.PageNumber, strings.TrimSpace(part) != "")
				buf.lines = append(buf.lines, part)
			}
		}
	}

	buf.flush(&sections)
	return sections
}

// Chunk splits one section's trimmed text into ordered, overlapping windows
// of at most config.MaxChars characters, preferring to break at a line
// boundary within the back half of the window, and assigns dense zero-based
// chunk ids of the form chunk_<docId>_<n> starting at startOrdinal.
func (c *Chunker) Chunk(docID string, section SectionText, startOrdinal int) []RagChunk {
	text := strings.TrimSpace(section.Text)
	if text == "" {
		return nil
	}

	var (
		chunks  []RagChunk
		start   = 0
		ordinal = startOrdinal
		n       = len(text)
	)

	for {
		end := start + c.config.MaxChars
		if end > n {
			end = n
		}

		if end < n {
			half := start + c.config.MaxChars/2
			if idx := strings.LastIndexByte(text[half:end], '\n'); idx >= 0 {
				end = half + idx
			}
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, RagChunk{
				ID:        fmt.Sprintf("chunk_%s_%d", docID, ordinal),
				DocID:     docID,
				Text:      piece,
				PageStart: section.PageStart,
				PageEnd:   section.PageEnd,
			})
			ordinal++
		}

		if end == n {
			break
		}

		next := end - c.config.Overlap
		if next < 0 {
			next = 0
		}
		if next <= start {
			// Guard against a pathological non-advancing window (e.g. a
			// line break that leaves the window no longer than Overlap);
			// force forward progress so the loop always terminates.
			next = end
		}
		start = next
	}

	return chunks
}

// ChunkAll sectionizes pages and chunks every resulting section in order,
// assigning dense ordinals across the whole document.
func (c *Chunker) ChunkAll(docID string, pages []PageText) []RagChunk {
	sections := c.Sectionize(pages)

	var (
		all     []RagChunk
		ordinal int
	)
	for _, section := range sections {
		chunks := c.Chunk(docID, section, ordinal)
		ordinal += len(chunks)
		all = append(all, chunks...)
	}
	return all
}
