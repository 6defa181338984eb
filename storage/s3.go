package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/util"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
	region string
}

// NewS3Store keeps artifacts in an S3 bucket. Credentials come from the
// settings when both keys are set, otherwise from the default AWS chain.
func NewS3Store(ctx context.Context, conf scrapedash.StorageConfig) (ArtifactStore, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(conf.Region),
		config.WithHTTPClient(util.NewInstrumentedHTTPClient(0)),
	}
	if conf.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return &s3Store{client: client, bucket: conf.Bucket, prefix: conf.Prefix, region: conf.Region}, nil
}

func (s *s3Store) objectKey(key string) string {
	return strings.TrimPrefix(path.Join(s.prefix, key), "/")
}

// Put uploads the artifact. Results are small, so the body is buffered to
// give the SDK a seekable payload to sign.
func (s *s3Store) Put(ctx context.Context, key string, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "reading artifact '%s'", key)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	return errors.Wrapf(err, "uploading artifact '%s' to bucket '%s'", key, s.bucket)
}

func (s *s3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "downloading artifact '%s' from bucket '%s'", key, s.bucket)
	}
	return out.Body, nil
}

func (s *s3Store) Bucket() string { return s.bucket }

func (s *s3Store) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, s.objectKey(key))
}
