package ingestion_engine

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/markdave123-py/docembed/internal/models"
)

// ErrInvalidChunkConfig is returned when the chunk parameters cannot produce chunks.
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// ChunkConfig tunes the chunker. Lengths are counted in characters.
//
// MaxLength:     upper bound for every emitted chunk (CHUNK_SIZE).
// Overlap:       characters shared by consecutive windows in simple mode (CHUNK_OVERLAP).
// MinLength:     sentence-aware chunks shorter than this are dropped (MIN_CHUNK_LENGTH).
// SentenceSplit: accumulate whole sentences instead of slicing fixed windows.
type ChunkConfig struct {
	MaxLength     int
	Overlap       int
	MinLength     int
	SentenceSplit bool
}

// Validate fails fast on parameters that cannot be chunked with.
func (c ChunkConfig) Validate() error {
	if c.MaxLength <= c.Overlap {
		return fmt.Errorf("%w: CHUNK_SIZE (%d) must be larger than CHUNK_OVERLAP (%d)", ErrInvalidChunkConfig, c.MaxLength, c.Overlap)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be non-negative", ErrInvalidChunkConfig, c.Overlap)
	}
	if c.MinLength <= 0 {
		return fmt.Errorf("%w: MIN_CHUNK_LENGTH (%d) must be positive", ErrInvalidChunkConfig, c.MinLength)
	}
	return nil
}

// Chunker splits extracted text into ordered chunks. It holds no state
// besides its configuration and is safe for concurrent use.
type Chunker struct {
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Split returns the chunks of text in document order, indexed from 0.
func (c *Chunker) Split(text string) []models.Chunk {
	var parts []string
	if c.cfg.SentenceSplit {
		parts = sentenceChunks(text, c.cfg.MaxLength, c.cfg.MinLength)
	} else {
		parts = windowChunks(text, c.cfg.MaxLength, c.cfg.Overlap)
	}

	out := make([]models.Chunk, len(parts))
	for i, p := range parts {
		out[i] = models.Chunk{Index: i, Text: p}
	}
	return out
}

// windowChunks slices text into windows of maxLen characters, each starting
// maxLen-overlap characters after the previous one, until the start passes the end.
func windowChunks(text string, maxLen, overlap int) []string {
	runes := []rune(text)
	stride := maxLen - overlap

	var out []string
	for start := 0; start < len(runes); start += stride {
		end := min(start+maxLen, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// sentenceChunks greedily packs whole sentences into chunks of at most maxLen
// characters, then widens every chunk with its neighbours for context bleed.
func sentenceChunks(text string, maxLen, minLen int) []string {
	sentences := splitSentences(normalizeWhitespace(text))

	var (
		chunks  []string
		current []string
		curLen  int
	)
	flush := func() {
		chunks = append(chunks, strings.Join(current, " "))
		current = current[:0]
		curLen = 0
	}

	for i, s := range sentences {
		n := runeLen(s)
		if curLen+n > maxLen && len(current) > 0 {
			flush()
		}

		current = append(current, s)
		curLen += n + 1 // joining space

		if curLen >= maxLen || i == len(sentences)-1 {
			flush()
		}
	}

	out := make([]string, 0, len(chunks))
	for i := range chunks {
		lo := max(0, i-1)
		hi := min(len(chunks), i+2)
		merged := truncateRunes(strings.TrimSpace(strings.Join(chunks[lo:hi], " ")), maxLen)

		if runeLen(merged) >= minLen {
			out = append(out, merged)
		}
	}
	return out
}

// normalizeWhitespace trims text and collapses every whitespace run to one space.
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// splitSentences cuts after '.', '!' or '?' when followed by a space.
// Input must already be whitespace-normalised.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				out = append(out, string(runes[start:i+1]))
				start = i + 2
				i++
			}
		}
	}
	return append(out, string(runes[start:]))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func runeLen(s string) int {
	return len([]rune(s))
}
