package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New connects to MinIO and ensures the default bucket exists
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// Bucket returns the default bucket name
func (s *Store) Bucket() string { return s.bucketName }

// GetObject reads an object's bytes and its stored content type. An empty
// bucket falls back to the store's default bucket.
func (s *Store) GetObject(ctx context.Context, bucket, key string) ([]byte, string, error) {
	if bucket == "" {
		bucket = s.bucketName
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", err
	}
	contentType := ""
	if stat, err := obj.Stat(); err == nil {
		contentType = stat.ContentType
	}
	return data, contentType, nil
}

// PutObject writes bytes under the given key and returns the object
// locator. Writing an existing key overwrites it, which is what makes
// retried result uploads safe.
func (s *Store) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if bucket == "" {
		bucket = s.bucketName
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", bucket, key), nil
}

// Ping verifies the bucket is reachable, for health checks
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}
