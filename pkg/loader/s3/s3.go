package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/loader"
)

// S3ArchiveLoader is an ArchiveLoader implementation that loads archives
// from an S3 bucket. It uses the AWS SDK v2 for Go.
type S3ArchiveLoader struct {
	bucket string
	client *s3.Client

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewS3ArchiveLoaderWithClient creates a new S3ArchiveLoader using an
// existing s3.Client.
func NewS3ArchiveLoaderWithClient(bucket string, client *s3.Client) *S3ArchiveLoader {
	return &S3ArchiveLoader{
		bucket: bucket,
		client: client,
		cache:  make(map[string][]byte),
	}
}

// NewS3ArchiveLoaderParams defines the configuration parameters for
// creating a new S3ArchiveLoader.
//
// Endpoint allows overriding the S3 endpoint (useful for S3-compatible
// storage like MinIO).
type NewS3ArchiveLoaderParams struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3ArchiveLoader creates a new S3ArchiveLoader with static credentials
// and the given endpoint and region.
//
// Example:
//
//	l, err := s3.NewS3ArchiveLoader(ctx, s3.NewS3ArchiveLoaderParams{
//		Bucket:    "reddit-archives",
//		Endpoint:  "http://minio:9000",
//		Region:    "us-east-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey: os.Getenv("AWS_SECRET_KEY"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	file := loader.ArchiveFile{ID: "b1", FilePath: "austinfood/2024-05.jsonl.gz", Loader: l}
//	units, err := file.Units(ctx, loader.DecodeOptions{})
func NewS3ArchiveLoader(ctx context.Context, params NewS3ArchiveLoaderParams) (*S3ArchiveLoader, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(params.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	}
	if params.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(params.Endpoint))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = params.Endpoint != ""
	})

	return NewS3ArchiveLoaderWithClient(params.Bucket, client), nil
}

// GetFileBytes retrieves the archive from the configured bucket. It
// implements the ArchiveLoader interface.
func (l *S3ArchiveLoader) GetFileBytes(ctx context.Context, file loader.ArchiveFile) ([]byte, error) {
	cacheKey := loader.CacheKey(file)

	l.cacheMu.RLock()
	if cached, ok := l.cache[cacheKey]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(cacheKey, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[cacheKey]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(file.FilePath),
		})
		if err != nil {
			return nil, fmt.Errorf("get s3://%s/%s: %w", l.bucket, file.FilePath, err)
		}
		defer out.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, out.Body); err != nil {
			return nil, err
		}
		byts := buf.Bytes()

		l.cacheMu.Lock()
		l.cache[cacheKey] = byts
		l.cacheMu.Unlock()

		return byts, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

// Forget drops the cached content of file. Workers call it once a batch
// is finished so archives do not pile up in memory.
func (l *S3ArchiveLoader) Forget(file loader.ArchiveFile) {
	l.cacheMu.Lock()
	delete(l.cache, loader.CacheKey(file))
	l.cacheMu.Unlock()
}
