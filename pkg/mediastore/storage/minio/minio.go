// Package minio provides a blob store over MinIO using its native
// client. Deployments already running MinIO elsewhere tend to prefer
// this over the S3-compatibility backend.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/wavecms/mediastore/pkg/mediastore"
)

// Config options for the MinIO backend.
type Config struct {
	Endpoint        string // host:port of the MinIO server
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool

	// PublicBaseURL is the stable URL prefix objects are served under.
	// See the s3 backend for why this is never a presigned URL.
	PublicBaseURL string

	CreateBucketIfNotExist bool
}

// Backend is a MinIO implementation of the mediastore.BlobStore
// interface.
type Backend struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// New creates a new MinIO storage backend.
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.PublicBaseURL == "" {
		return nil, errors.New("public base URL is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if config.CreateBucketIfNotExist {
		ctx := context.Background()
		exists, err := client.BucketExists(ctx, config.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket existence: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("failed to create bucket: %w", err)
			}
		}
	}

	return &Backend{
		client:        client,
		bucket:        config.Bucket,
		publicBaseURL: strings.TrimSuffix(config.PublicBaseURL, "/"),
	}, nil
}

// Upload stores the content under the key. Size -1 streams with
// multipart upload.
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return &mediastore.StorageError{Backend: "minio", Key: key, Op: "upload", Err: err}
	}
	return nil
}

// Download returns a reader over the stored object. MinIO defers the
// existence check to the first read, so probe with Stat first to report
// missing keys consistently.
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, &mediastore.StorageError{Backend: "minio", Key: key, Op: "download", Err: mediastore.ErrBlobNotFound}
		}
		return nil, &mediastore.StorageError{Backend: "minio", Key: key, Op: "download", Err: err}
	}

	object, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &mediastore.StorageError{Backend: "minio", Key: key, Op: "download", Err: err}
	}
	return object, nil
}

// Delete removes the object. Removing a missing key succeeds.
func (b *Backend) Delete(ctx context.Context, key string) error {
	err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return &mediastore.StorageError{Backend: "minio", Key: key, Op: "delete", Err: err}
	}
	return nil
}

// Exists reports whether the key holds an object.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, &mediastore.StorageError{Backend: "minio", Key: key, Op: "exists", Err: err}
	}
	return true, nil
}

// URLFor returns the stable public URL for the key.
func (b *Backend) URLFor(key string) string {
	return b.publicBaseURL + "/" + key
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}
