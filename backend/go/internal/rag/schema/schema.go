package schema

const (
	// MetadataKeySourceURL is the URL the document text was fetched from.
	MetadataKeySourceURL = "source_url"
	// MetadataKeyTitle is the page title reported by the loader, if any.
	MetadataKeyTitle = "title"
	// MetadataKeyMIMEType is the detected media type of the fetched body.
	MetadataKeyMIMEType = "mime_type"
	// MetadataKeyOriginalDocID links a chunk back to the document it was split from.
	MetadataKeyOriginalDocID = "original_doc_id"
	// MetadataKeyChunkNumber is the 1-based position of a chunk inside its document.
	MetadataKeyChunkNumber = "chunk_number"
	// MetadataKeyScore is the similarity score attached to query results.
	MetadataKeyScore = "score"
	// MetadataKeyCollectionID is the collection whose content produced the chunk.
	MetadataKeyCollectionID = "collection_id"
)

// Document is the central data structure representing a piece of text and its associated data.
type Document struct {
	// ID is the unique identifier for this document or chunk.
	ID string

	// Text is the string content.
	Text string

	// Embedding is the vector representation of the text, set only inside vector stores.
	Embedding []float32

	// Metadata holds arbitrary data about the document.
	Metadata map[string]interface{}
}
