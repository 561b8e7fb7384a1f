package interfaces

import (
	"context"

	"Memora/backend/go/internal/rag/schema"
)

// Loader loads a source (a URL) into documents.
type Loader interface {
	Load(ctx context.Context, path string) ([]*schema.Document, error)
}

// Splitter splits documents into smaller chunks.
type Splitter interface {
	Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error)
}

// KnowledgeBase is a store of named vector collections. Callers only deal in
// text; embedding happens inside the implementation.
type KnowledgeBase interface {
	CreateCollection(ctx context.Context, name string) error
	// Upsert stores documents[i] under ids[i], replacing any previous text for that id.
	Upsert(ctx context.Context, name string, documents, ids []string) error
	// Query returns up to k documents ordered by decreasing similarity to text.
	Query(ctx context.Context, name, text string, k int) ([]*schema.Document, error)
}

// EmbeddingModel is the interface for a text embedding model.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// LLM is the interface for a large language model that can generate text.
type LLM interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}
