package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const s3Scheme = "s3://"

// Source opens frame images by path
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// FileSource reads frames from the local filesystem
type FileSource struct{}

// Open opens a local file
func (FileSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	return f, nil
}

// S3Source downloads frames addressed as s3://bucket/key
type S3Source struct {
	downloader *s3manager.Downloader
}

// S3Config selects the S3 endpoint. Empty fields fall back to the AWS environment.
type S3Config struct {
	Region   string
	Endpoint string
}

// NewS3Source creates an S3 backed source
func NewS3Source(cfg S3Config) (*S3Source, error) {
	awsCfg := &aws.Config{}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}
	return &S3Source{downloader: s3manager.NewDownloader(sess)}, nil
}

// Open downloads the whole object into memory
func (s *S3Source) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := SplitS3(path)
	if err != nil {
		return nil, err
	}

	buf := aws.NewWriteAtBuffer(nil)
	_, err = s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download '%s': %w", path, err)
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

// SplitS3 splits s3://bucket/key into bucket and key
func SplitS3(path string) (string, string, error) {
	rest, ok := strings.CutPrefix(path, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 path: '%s'", path)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 path needs a bucket and a key: '%s'", path)
	}
	return bucket, key, nil
}

// IsS3 reports whether path uses the s3 scheme
func IsS3(path string) bool {
	return strings.HasPrefix(path, s3Scheme)
}

// Router sends s3:// paths to S3 and everything else to Local.
// S3 is created on first use so local-only runs never touch AWS configuration.
type Router struct {
	Local Source
	S3    func() (Source, error)

	once  sync.Once
	s3    Source
	s3Err error
}

// Open dispatches on the path scheme
func (r *Router) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if !IsS3(path) {
		return r.Local.Open(ctx, path)
	}
	if r.S3 == nil {
		return nil, fmt.Errorf("no S3 source configured for '%s'", path)
	}
	r.once.Do(func() {
		r.s3, r.s3Err = r.S3()
	})
	if r.s3Err != nil {
		return nil, r.s3Err
	}
	return r.s3.Open(ctx, path)
}
