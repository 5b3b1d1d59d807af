// Package s3 is a news.ObjectStorage on any S3-compatible service (MinIO,
// AWS, or the hosted backend's S3 gateway).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/news"
)

// Config describes the S3 endpoint.
type Config struct {
	Endpoint  string // host[:port], no scheme
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// PublicBaseURL, when set, replaces the endpoint URL when building public
	// object links (a CDN in front of the bucket, say).
	PublicBaseURL string
}

// Storage implements news.ObjectStorage.
type Storage struct {
	client *minio.Client
	public string
	logger *zap.Logger
}

// New builds a client. It does not contact the endpoint.
func New(cfg Config, logger *zap.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client for %s: %w", cfg.Endpoint, err)
	}
	public := strings.TrimRight(cfg.PublicBaseURL, "/")
	if public == "" {
		public = strings.TrimRight(client.EndpointURL().String(), "/")
	}
	return &Storage{client: client, public: public, logger: logger}, nil
}

// EnsureBucket creates bucket unless it already exists.
func (s *Storage) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("s3: check bucket %s: %w", bucket, err)
	}
	if exists {
		s.logger.Info("bucket already exists", zap.String("bucket", bucket))
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("s3: make bucket %s: %w", bucket, err)
	}
	s.logger.Info("bucket created", zap.String("bucket", bucket))
	return nil
}

// Upload implements news.ObjectStorage.
func (s *Storage) Upload(ctx context.Context, bucket, key string, data []byte, opts news.UploadOptions) error {
	info, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		s.logger.Error("put object failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("s3: upload %s/%s: %w", bucket, key, err)
	}
	s.logger.Debug("object uploaded",
		zap.String("bucket", info.Bucket),
		zap.String("key", info.Key),
		zap.String("etag", info.ETag),
		zap.Int64("size", info.Size))
	return nil
}

// PublicURL implements news.ObjectStorage using path-style addressing.
func (s *Storage) PublicURL(bucket, key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.public + "/" + url.PathEscape(bucket) + "/" + strings.Join(segs, "/")
}
