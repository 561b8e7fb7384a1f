package splitters

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"Memora/backend/go/internal/rag/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconstruct(chunks []chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		runes := []rune(c.text)
		sb.WriteString(string(runes[c.lead:]))
	}
	return sb.String()
}

func randomText(r *rand.Rand, n int) string {
	alphabet := []string{"a", "b", "c", "路", "京", " ", " ", ", ", ". ", "。", "，", "\n", "\n\n", "hello", "世界"}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(alphabet[r.Intn(len(alphabet))])
	}
	return sb.String()
}

func TestSplitText_ShortTextIsSingleChunk(t *testing.T) {
	chunks, err := SplitText("Paris is great.", 350, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris is great."}, chunks)
}

func TestSplitText_BlankInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t"} {
		chunks, err := SplitText(in, 10, 2)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestSplitText_RejectsInvalidConfig(t *testing.T) {
	for _, cfg := range [][2]int{{10, 10}, {5, 10}, {0, 0}, {10, -1}} {
		_, err := SplitText("some text", cfg[0], cfg[1])
		assert.ErrorIs(t, err, ErrInvalidChunkConfig, "size=%d overlap=%d", cfg[0], cfg[1])
	}
	_, err := NewRecursiveSplitter(100, 100)
	assert.ErrorIs(t, err, ErrInvalidChunkConfig)
}

func TestSplitText_PrefersParagraphBreaks(t *testing.T) {
	text := "first paragraph here\n\nsecond paragraph here"
	chunks, err := SplitText(text, 25, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"first paragraph here\n\n", "second paragraph here"}, chunks)
}

func TestSplitText_SeedsOverlapFromPreviousChunk(t *testing.T) {
	text := "aaaa bbbb cccc dddd"
	chunks, err := splitChunks(text, 10, 3, DefaultSeparators)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "aaaa bbbb ", chunks[0].text)
	assert.Equal(t, 0, chunks[0].lead)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].text)
		cur := []rune(chunks[i].text)
		lead := chunks[i].lead
		assert.LessOrEqual(t, lead, 3)
		assert.Equal(t, string(prev[len(prev)-lead:]), string(cur[:lead]))
	}
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplitText_CJKSentences(t *testing.T) {
	text := "今天天气很好。我们去公园散步。然后去吃饭。"
	chunks, err := SplitText(text, 8, 2)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 8)
	}
	assert.True(t, strings.HasSuffix(chunks[0], "。"))
}

func TestSplitText_CharacterFallback(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks, err := splitChunks(text, 10, 4, DefaultSeparators)
	require.NoError(t, err)

	got := make([]string, len(chunks))
	for i, c := range chunks {
		got[i] = c.text
	}
	// stride 6: [0,10) [6,16) [12,22) [18,25)
	assert.Equal(t, []string{
		strings.Repeat("x", 10),
		strings.Repeat("x", 10),
		strings.Repeat("x", 10),
		strings.Repeat("x", 7),
	}, got)
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplitText_OversizedPieceIsSplitRecursively(t *testing.T) {
	text := "short.\n" + strings.Repeat("word ", 10) + "\nend"
	chunks, err := splitChunks(text, 12, 2, DefaultSeparators)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.text), 12)
		assert.NotEmpty(t, c.text)
	}
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplitText_RoundTripAndSizeBound(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	configs := [][2]int{{350, 100}, {50, 10}, {20, 0}, {7, 6}, {3, 1}, {1, 0}}
	for iter := 0; iter < 200; iter++ {
		text := randomText(r, r.Intn(400))
		for _, cfg := range configs {
			chunks, err := splitChunks(text, cfg[0], cfg[1], DefaultSeparators)
			require.NoError(t, err)
			if strings.TrimSpace(text) == "" {
				assert.Empty(t, chunks)
				continue
			}
			for _, c := range chunks {
				n := utf8.RuneCountInString(c.text)
				require.NotZero(t, n)
				require.LessOrEqual(t, n, cfg[0], "size=%d overlap=%d", cfg[0], cfg[1])
				require.LessOrEqual(t, c.lead, cfg[1])
				require.Less(t, c.lead, n)
			}
			require.Equal(t, text, reconstruct(chunks), "size=%d overlap=%d", cfg[0], cfg[1])
		}
	}
}

func TestSplitText_Deterministic(t *testing.T) {
	text := randomText(rand.New(rand.NewSource(3)), 300)
	a, err := SplitText(text, 40, 10)
	require.NoError(t, err)
	b, err := SplitText(text, 40, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRecursiveSplitter_Split(t *testing.T) {
	s, err := NewRecursiveSplitter(10, 2)
	require.NoError(t, err)

	docs := []*schema.Document{
		{ID: "doc-1", Text: "alpha beta gamma delta", Metadata: map[string]interface{}{schema.MetadataKeySourceURL: "https://example.com"}},
		{ID: "doc-2", Text: "   "},
	}
	chunks, err := s.Split(context.Background(), docs)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	ids := map[string]bool{}
	for i, c := range chunks {
		assert.NotEmpty(t, c.ID)
		assert.False(t, ids[c.ID], "chunk ids must be unique")
		ids[c.ID] = true
		assert.Equal(t, "doc-1", c.Metadata[schema.MetadataKeyOriginalDocID])
		assert.Equal(t, i+1, c.Metadata[schema.MetadataKeyChunkNumber])
		assert.Equal(t, "https://example.com", c.Metadata[schema.MetadataKeySourceURL])
	}
	_, shared := docs[0].Metadata[schema.MetadataKeyChunkNumber]
	assert.False(t, shared, "source metadata must not be mutated")
}

func TestRecursiveSplitter_SplitHonoursCancellation(t *testing.T) {
	s, err := NewRecursiveSplitter(10, 2)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Split(ctx, []*schema.Document{{ID: "x", Text: "hello"}})
	assert.ErrorIs(t, err, context.Canceled)
}
