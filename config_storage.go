package scrapedash

import (
	"github.com/pkg/errors"
)

const (
	StorageBackendLocal  = "local"
	StorageBackendGridFS = "gridfs"
	StorageBackendS3     = "s3"
)

// StorageConfig selects where run artifacts are written.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// Path is the directory for the local backend.
	Path string `yaml:"path"`
	// Bucket is the GridFS prefix or the S3 bucket name.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
	// Endpoint points the S3 backend at an S3-compatible service.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

func (c *StorageConfig) SectionId() string { return "storage" }

func (c *StorageConfig) ValidateAndDefault() error {
	switch c.Backend {
	case "":
		c.Backend = StorageBackendGridFS
		fallthrough
	case StorageBackendGridFS:
		if c.Bucket == "" {
			c.Bucket = DefaultArtifactStorageFolder
		}
	case StorageBackendLocal:
		if c.Path == "" {
			return errors.New("local artifact storage requires a path")
		}
	case StorageBackendS3:
		if c.Bucket == "" {
			return errors.New("s3 artifact storage requires a bucket")
		}
		if c.Region == "" {
			c.Region = "us-east-1"
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			return errors.New("s3 access key and secret key must be set together")
		}
	default:
		return errors.Errorf("unknown storage backend '%s'", c.Backend)
	}
	return nil
}
