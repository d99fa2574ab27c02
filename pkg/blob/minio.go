package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"whisperboard/pkg/logger"
)

// MinioProvider stores attachment payloads in a MinIO/S3 bucket.
type MinioProvider struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// MinioOptions configures NewMinio.
type MinioOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// NewMinio connects to the object store and ensures the bucket exists.
func NewMinio(ctx context.Context, opts MinioOptions) (*MinioProvider, error) {
	cl, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	ok, err := cl.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", opts.Bucket, err)
	}
	if !ok {
		if err := cl.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", opts.Bucket, err)
		}
	}
	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, opts.Endpoint, opts.Bucket)
	}
	logger.Log.Info("blob_provider_ready", zap.String("endpoint", opts.Endpoint), zap.String("bucket", opts.Bucket))
	return &MinioProvider{client: cl, bucket: opts.Bucket, publicBaseURL: base}, nil
}

// Put uploads an object and returns its public URL plus the object key used
// for later deletion.
func (p *MinioProvider) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) (PutResult, error) {
	_, err := p.client.PutObject(ctx, p.bucket, path, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		logger.Log.Error("blob_put_failed", zap.String("path", path), zap.Error(err))
		return PutResult{}, fmt.Errorf("blob upload failed: %w", err)
	}
	logger.Log.Info("blob_put", zap.String("path", path), zap.Int64("size", size))
	return PutResult{URL: p.publicBaseURL + "/" + path, StorageRef: path}, nil
}

// Delete removes an object by its storage ref.
func (p *MinioProvider) Delete(ctx context.Context, storageRef string) error {
	if err := p.client.RemoveObject(ctx, p.bucket, storageRef, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("blob delete failed: %w", err)
	}
	logger.Log.Debug("blob_deleted", zap.String("ref", storageRef))
	return nil
}
