package vectorstore

import "errors"

var (
	// ErrCollectionNotFound is returned when a named collection does not exist.
	ErrCollectionNotFound = errors.New("vectorstore: collection not found")
	// ErrCollectionExists is returned when creating a collection that already exists.
	ErrCollectionExists = errors.New("vectorstore: collection already exists")
	// ErrLengthMismatch is returned when documents and ids differ in length.
	ErrLengthMismatch = errors.New("vectorstore: documents and ids length mismatch")
)
