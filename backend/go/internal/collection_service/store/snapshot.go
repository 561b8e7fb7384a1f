package store

import (
	"context"
	"fmt"

	memminio "Memora/backend/go/internal/database/minio"

	"github.com/minio/minio-go/v7"
)

// SnapshotStore keeps a copy of the raw fetched content of a collection.
type SnapshotStore interface {
	Save(ctx context.Context, collectionID int64, content string) error
}

// MinioSnapshotStore writes snapshots to collections/<id>/content.md in a bucket.
type MinioSnapshotStore struct {
	client *minio.Client
	bucket string
}

// NewMinioSnapshotStore creates a snapshot store on an existing bucket.
func NewMinioSnapshotStore(client *minio.Client, bucket string) *MinioSnapshotStore {
	return &MinioSnapshotStore{client: client, bucket: bucket}
}

func (s *MinioSnapshotStore) Save(ctx context.Context, collectionID int64, content string) error {
	return memminio.PutBytes(ctx, s.client, s.bucket, SnapshotObject(collectionID), []byte(content), "text/markdown; charset=utf-8")
}

// SnapshotObject returns the object name used for a collection's snapshot.
func SnapshotObject(collectionID int64) string {
	return fmt.Sprintf("collections/%d/content.md", collectionID)
}

// NopSnapshotStore discards snapshots.
type NopSnapshotStore struct{}

func (NopSnapshotStore) Save(context.Context, int64, string) error { return nil }

var (
	_ SnapshotStore = (*MinioSnapshotStore)(nil)
	_ SnapshotStore = NopSnapshotStore{}
)
