package ingestion_engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docembed/internal/models"
)

func texts(chunks []models.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestChunkConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  ChunkConfig
		ok   bool
	}{
		{"defaults", ChunkConfig{MaxLength: 1800, Overlap: 200, MinLength: 100}, true},
		{"zero overlap", ChunkConfig{MaxLength: 10, Overlap: 0, MinLength: 1}, true},
		{"overlap larger than size", ChunkConfig{MaxLength: 100, Overlap: 150, MinLength: 100}, false},
		{"overlap equal to size", ChunkConfig{MaxLength: 100, Overlap: 100, MinLength: 10}, false},
		{"negative overlap", ChunkConfig{MaxLength: 100, Overlap: -1, MinLength: 10}, false},
		{"zero minimum", ChunkConfig{MaxLength: 100, Overlap: 10, MinLength: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidChunkConfig)
		})
	}
}

func TestNewChunker_RejectsOverlapLargerThanSize(t *testing.T) {
	c, err := NewChunker(ChunkConfig{MaxLength: 100, Overlap: 150, MinLength: 100, SentenceSplit: true})
	require.ErrorIs(t, err, ErrInvalidChunkConfig)
	assert.Nil(t, c)
}

func TestSplit_SimpleModeScenario(t *testing.T) {
	var sb strings.Builder
	for sb.Len() < 5000 {
		sb.WriteString("0123456789")
	}
	text := sb.String()

	c, err := NewChunker(ChunkConfig{MaxLength: 1800, Overlap: 200, MinLength: 100})
	require.NoError(t, err)

	chunks := c.Split(text)
	require.Len(t, chunks, 4)
	assert.Equal(t, text[0:1800], chunks[0].Text)
	assert.Equal(t, text[1600:3400], chunks[1].Text)
	assert.Equal(t, text[3200:5000], chunks[2].Text)
	assert.Equal(t, text[4800:5000], chunks[3].Text)
	assert.Less(t, len(chunks[3].Text), 1800)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestSplit_SimpleModeCoverage(t *testing.T) {
	base := []rune(strings.Repeat("The quick brown fox jumps över the lazy dög. ", 10))
	for _, n := range []int{0, 1, 7, 50, 99, 100, 101, 433} {
		runes := base[:n]
		for _, p := range [][2]int{{10, 0}, {10, 3}, {10, 9}, {37, 12}, {200, 50}} {
			maxLen, overlap := p[0], p[1]
			t.Run(fmt.Sprintf("len=%d/max=%d/overlap=%d", n, maxLen, overlap), func(t *testing.T) {
				c, err := NewChunker(ChunkConfig{MaxLength: maxLen, Overlap: overlap, MinLength: 1})
				require.NoError(t, err)

				stride := maxLen - overlap
				chunks := c.Split(string(runes))
				require.Len(t, chunks, (n+stride-1)/stride)

				covered := 0
				for i, ch := range chunks {
					start := i * stride
					end := min(start+maxLen, n)
					assert.Equal(t, string(runes[start:end]), ch.Text)
					assert.LessOrEqual(t, len([]rune(ch.Text)), maxLen)
					assert.LessOrEqual(t, start, covered, "gap before window %d", i)
					covered = end
				}
				assert.Equal(t, n, covered)
			})
		}
	}
}

func TestSplit_SimpleModeKeepsWhitespace(t *testing.T) {
	c, err := NewChunker(ChunkConfig{MaxLength: 5, Overlap: 1, MinLength: 1})
	require.NoError(t, err)

	got := texts(c.Split("ab  \n\tcdefgh"))
	assert.Equal(t, []string{"ab  \n", "\n\tcde", "efgh"}, got)
}

func TestSplit_EmptyText(t *testing.T) {
	for _, sentence := range []bool{true, false} {
		c, err := NewChunker(ChunkConfig{MaxLength: 100, Overlap: 10, MinLength: 1, SentenceSplit: sentence})
		require.NoError(t, err)
		assert.Empty(t, c.Split(""))
	}

	c, err := NewChunker(ChunkConfig{MaxLength: 100, Overlap: 10, MinLength: 1, SentenceSplit: true})
	require.NoError(t, err)
	assert.Empty(t, c.Split(" \n\t "))
}

func TestSplit_SentenceModeShortText(t *testing.T) {
	c, err := NewChunker(ChunkConfig{MaxLength: 200, Overlap: 20, MinLength: 10, SentenceSplit: true})
	require.NoError(t, err)

	chunks := c.Split("  Hello   world.\n\nThis is a  test!  ")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world. This is a test!", chunks[0].Text)
}

func TestSplit_SentenceModeGroupsAndOverlaps(t *testing.T) {
	// Each sentence is 10 characters; with max 25 two sentences fit per chunk.
	text := "Aaaaaaaaa. Bbbbbbbbb. Ccccccccc. Ddddddddd. Eeeeeeeee."
	c, err := NewChunker(ChunkConfig{MaxLength: 25, Overlap: 5, MinLength: 5, SentenceSplit: true})
	require.NoError(t, err)

	got := texts(c.Split(text))
	// base chunks: "Aaaaaaaaa. Bbbbbbbbb." | "Ccccccccc. Ddddddddd." | "Eeeeeeeee."
	assert.Equal(t, []string{
		"Aaaaaaaaa. Bbbbbbbbb. Ccc",
		"Aaaaaaaaa. Bbbbbbbbb. Ccc",
		"Ccccccccc. Ddddddddd. Eee",
	}, got)
}

func TestSplit_SentenceModeBounds(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&sb, "Sentence number %d talks about item %d in some detail", i, i*7)
		switch i % 3 {
		case 0:
			sb.WriteString(". ")
		case 1:
			sb.WriteString("! ")
		default:
			sb.WriteString("?\n")
		}
	}
	text := sb.String()

	cfg := ChunkConfig{MaxLength: 400, Overlap: 40, MinLength: 120, SentenceSplit: true}
	c, err := NewChunker(cfg)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		n := len([]rune(ch.Text))
		assert.LessOrEqual(t, n, cfg.MaxLength, "chunk %d too long", i)
		assert.GreaterOrEqual(t, n, cfg.MinLength, "chunk %d too short", i)
		assert.Equal(t, i, ch.Index)
	}
}

func TestSplit_SentenceModeDropsShortChunks(t *testing.T) {
	c, err := NewChunker(ChunkConfig{MaxLength: 100, Overlap: 10, MinLength: 50, SentenceSplit: true})
	require.NoError(t, err)

	assert.Empty(t, c.Split("Too short."))
}

func TestSplit_SentenceModeLongSentenceIsTruncated(t *testing.T) {
	c, err := NewChunker(ChunkConfig{MaxLength: 50, Overlap: 10, MinLength: 1, SentenceSplit: true})
	require.NoError(t, err)

	long := strings.Repeat("word ", 40) + "end."
	chunks := c.Split(long)
	require.Len(t, chunks, 1)
	assert.Equal(t, 50, len([]rune(chunks[0].Text)))
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma. Delta epsilon! Zeta eta theta? ", 200)
	for _, sentence := range []bool{true, false} {
		c, err := NewChunker(ChunkConfig{MaxLength: 300, Overlap: 60, MinLength: 20, SentenceSplit: sentence})
		require.NoError(t, err)
		assert.Equal(t, c.Split(text), c.Split(text))
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two! Three? Four.5 stays. Trailing")
	assert.Equal(t, []string{"One.", "Two!", "Three?", "Four.5 stays.", "Trailing"}, got)
}
