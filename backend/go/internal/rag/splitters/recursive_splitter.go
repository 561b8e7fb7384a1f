package splitters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"Memora/backend/go/internal/rag/interfaces"
	"Memora/backend/go/internal/rag/schema"

	"github.com/google/uuid"
)

// ErrInvalidChunkConfig is returned when the chunk size does not exceed the overlap.
var ErrInvalidChunkConfig = errors.New("chunk size must be positive and greater than overlap")

// DefaultSeparators are tried in order: paragraph, line, sentence terminators
// (CJK and Latin), clause punctuation, space. Raw character slicing is the
// last resort.
var DefaultSeparators = []string{
	"\n\n",
	"\n",
	"。", "！", "？",
	". ", "! ", "? ",
	"；", "; ",
	"，", ", ",
	" ",
}

// SplitText splits text into chunks of at most chunkSize runes, each chunk
// beginning with up to overlap runes repeated from the previous one.
// Blank text yields no chunks.
func SplitText(text string, chunkSize, overlap int) ([]string, error) {
	chunks, err := splitChunks(text, chunkSize, overlap, DefaultSeparators)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.text
	}
	return out, nil
}

// chunk is an emitted piece of text. The first lead runes duplicate the tail
// of the previous chunk.
type chunk struct {
	text string
	lead int
}

func splitChunks(text string, size, overlap int, separators []string) ([]chunk, error) {
	if size <= 0 || overlap < 0 || size <= overlap {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunkConfig, size, overlap)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	p := packer{size: size, overlap: overlap}
	return p.split(text, separators), nil
}

type packer struct {
	size    int
	overlap int
}

func (p packer) split(text string, separators []string) []chunk {
	if utf8.RuneCountInString(text) <= p.size {
		return []chunk{{text: text}}
	}
	for i, sep := range separators {
		pieces := splitKeepSeparator(text, sep)
		if len(pieces) < 2 {
			continue
		}
		return p.merge(pieces, separators[i+1:])
	}
	return p.slice(text)
}

// merge packs pieces greedily. buf always ends either with fresh text or
// holds only the carried-over tail of the last emitted chunk.
func (p packer) merge(pieces []string, rest []string) []chunk {
	var (
		out    []chunk
		buf    string
		bufLen int
		lead   int
	)
	flush := func() {
		if bufLen > lead {
			out = append(out, chunk{text: buf, lead: lead})
		}
	}

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if n > p.size {
			flush()
			sub := p.split(piece, rest)
			out = append(out, sub...)
			buf = tail(sub[len(sub)-1].text, p.overlap)
			bufLen = utf8.RuneCountInString(buf)
			lead = bufLen
			continue
		}
		if bufLen+n <= p.size {
			buf += piece
			bufLen += n
			continue
		}

		flush()
		seed := tail(buf, min(p.overlap, p.size-n))
		lead = utf8.RuneCountInString(seed)
		buf = seed + piece
		bufLen = lead + n
	}
	flush()
	return out
}

// slice cuts text into fixed windows with stride size-overlap until the end is reached.
func (p packer) slice(text string) []chunk {
	runes := []rune(text)
	stride := p.size - p.overlap
	var out []chunk
	for start := 0; ; start += stride {
		end := min(start+p.size, len(runes))
		c := chunk{text: string(runes[start:end])}
		if start > 0 {
			c.lead = p.overlap
		}
		out = append(out, c)
		if end == len(runes) {
			return out
		}
	}
}

// splitKeepSeparator splits on sep and re-attaches sep to every piece but the last.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// RecursiveSplitter implements the Splitter interface with separator-priority
// splitting and character overlap.
type RecursiveSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewRecursiveSplitter creates a RecursiveSplitter using DefaultSeparators.
func NewRecursiveSplitter(chunkSize, chunkOverlap int) (*RecursiveSplitter, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkSize <= chunkOverlap {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunkConfig, chunkSize, chunkOverlap)
	}
	return &RecursiveSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}, nil
}

// SplitText splits a single text with the splitter's settings.
func (s *RecursiveSplitter) SplitText(text string) ([]string, error) {
	chunks, err := splitChunks(text, s.ChunkSize, s.ChunkOverlap, s.Separators)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.text
	}
	return out, nil
}

// Split splits every document into chunk documents with fresh ids.
func (s *RecursiveSplitter) Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	var chunks []*schema.Document
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		texts, err := s.SplitText(doc.Text)
		if err != nil {
			return nil, err
		}
		for i, text := range texts {
			md := copyMetadata(doc.Metadata)
			md[schema.MetadataKeyOriginalDocID] = doc.ID
			md[schema.MetadataKeyChunkNumber] = i + 1
			chunks = append(chunks, &schema.Document{
				ID:       uuid.New().String(),
				Text:     text,
				Metadata: md,
			})
		}
	}
	return chunks, nil
}

func copyMetadata(md map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(md)+2)
	for k, v := range md {
		out[k] = v
	}
	return out
}

var _ interfaces.Splitter = (*RecursiveSplitter)(nil)
