// Package storage writes task run results to the configured artifact
// backend.
package storage

import (
	"context"
	"io"
	"path"

	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
)

// ArtifactStore holds run artifacts by key.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Bucket names where artifacts live, for artifact records.
	Bucket() string
	// URL returns a link to the artifact stored under key.
	URL(key string) string
}

// New returns the store selected by the storage settings. Only the GridFS
// backend uses the environment.
func New(ctx context.Context, env scrapedash.Environment, conf scrapedash.StorageConfig) (ArtifactStore, error) {
	switch conf.Backend {
	case scrapedash.StorageBackendLocal:
		return NewLocalStore(conf)
	case scrapedash.StorageBackendGridFS:
		return NewGridFSStore(ctx, env, conf)
	case scrapedash.StorageBackendS3:
		return NewS3Store(ctx, conf)
	default:
		return nil, errors.Errorf("unknown storage backend '%s'", conf.Backend)
	}
}

// RunResultKey is where the full result of a run is stored.
func RunResultKey(taskID, instanceID, ext string) string {
	return path.Join("runs", taskID, instanceID, "result."+ext)
}

// ResultExtension maps an output format to a file extension.
func ResultExtension(format string) string {
	switch format {
	case scrapedash.OutputFormatJSON:
		return "json"
	case scrapedash.OutputFormatCSV:
		return "csv"
	case scrapedash.OutputFormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// ContentType maps an output format to the MIME type of its artifact.
func ContentType(format string) string {
	switch format {
	case scrapedash.OutputFormatJSON:
		return "application/json"
	case scrapedash.OutputFormatCSV:
		return "text/csv"
	case scrapedash.OutputFormatMarkdown:
		return "text/markdown"
	default:
		return "text/plain"
	}
}
