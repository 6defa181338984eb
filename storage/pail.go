package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/evergreen-ci/pail"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
)

type localStore struct {
	bucket pail.Bucket
	path   string
	prefix string
}

// NewLocalStore keeps artifacts in a directory on the local file system.
func NewLocalStore(conf scrapedash.StorageConfig) (ArtifactStore, error) {
	dir, err := filepath.Abs(conf.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving storage path '%s'", conf.Path)
	}

	bucket, err := pail.NewLocalBucket(pail.LocalOptions{
		Path:   dir,
		Prefix: conf.Prefix,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating local bucket")
	}

	return &localStore{bucket: bucket, path: dir, prefix: conf.Prefix}, nil
}

func (s *localStore) Put(ctx context.Context, key string, r io.Reader) error {
	return errors.Wrapf(s.bucket.Put(ctx, key, r), "writing artifact '%s'", key)
}

func (s *localStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.bucket.Get(ctx, key)
	return rc, errors.Wrapf(err, "reading artifact '%s'", key)
}

func (s *localStore) Bucket() string { return s.path }

func (s *localStore) URL(key string) string {
	return "file://" + filepath.ToSlash(filepath.Join(s.path, s.prefix, key))
}

// gridFSStore keeps artifacts in the service database.
type gridFSStore struct {
	bucket pail.Bucket
	prefix string
}

// NewGridFSStore keeps artifacts in GridFS collections of the environment's
// database, named after the configured bucket.
func NewGridFSStore(ctx context.Context, env scrapedash.Environment, conf scrapedash.StorageConfig) (ArtifactStore, error) {
	if env == nil || env.Client() == nil {
		return nil, errors.New("gridfs storage requires a database connection")
	}

	bucket, err := pail.NewGridFSBucketWithClient(ctx, env.Client(), pail.GridFSOptions{
		Database: env.DB().Name(),
		Name:     conf.Bucket,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating gridfs bucket '%s'", conf.Bucket)
	}

	return &gridFSStore{bucket: bucket, prefix: conf.Bucket}, nil
}

func (s *gridFSStore) Put(ctx context.Context, key string, r io.Reader) error {
	return errors.Wrapf(s.bucket.Put(ctx, key, r), "writing artifact '%s'", key)
}

func (s *gridFSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.bucket.Get(ctx, key)
	return rc, errors.Wrapf(err, "reading artifact '%s'", key)
}

func (s *gridFSStore) Bucket() string { return s.prefix }

func (s *gridFSStore) URL(key string) string {
	return fmt.Sprintf("gridfs://%s/%s", s.prefix, key)
}
