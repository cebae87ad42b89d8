package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
)

// S3Options mirror the AWS_* environment variables.
type S3Options struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint is set for S3 compatible stores (MinIO etc).
	Endpoint string
}

// ParseS3 splits s3://bucket/key.
func ParseS3(path string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", path)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 url needs bucket and object key: %q", path)
	}
	return bucket, key, nil
}

// S3Store downloads objects into a local cache directory so they can be
// demuxed with seeking.
type S3Store struct {
	client s3iface.S3API
	dir    string
	log    zerolog.Logger
}

func NewS3Store(opts S3Options, dir string, log zerolog.Logger) (*S3Store, error) {
	if opts.Region == "" {
		return nil, errors.New("missing AWS region (AWS_DEFAULT_REGION)")
	}
	cfg := &aws.Config{Region: aws.String(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return NewS3StoreWithClient(s3.New(sess), dir, log), nil
}

func NewS3StoreWithClient(client s3iface.S3API, dir string, log zerolog.Logger) *S3Store {
	return &S3Store{client: client, dir: dir, log: log}
}

// Fetch returns the local path of bucket/key, downloading it unless a cached
// copy of the same size already exists.
func (s *S3Store) Fetch(ctx context.Context, bucket, key string) (string, error) {
	localPath := filepath.Join(s.dir, bucket, filepath.FromSlash(key))
	logger := s.log.With().Str("bucket", bucket).Str("key", key).Logger()

	head, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("s3 head %s/%s: %w", bucket, key, err)
	}
	if st, err := os.Stat(localPath); err == nil && st.Size() == aws.Int64Value(head.ContentLength) {
		logger.Debug().Str("path", localPath).Msg("Fetch: cache hit")
		return localPath, nil
	}

	if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
		return "", err
	}

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return "", err
	}
	n, err := io.Copy(tmp, result.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	logger.Info().Str("path", localPath).Int64("bytes", n).Msg("Fetch: downloaded")
	return localPath, nil
}
