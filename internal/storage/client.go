package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

var ErrBucketRequired = errors.New("bucket is required")

type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	UseSSL   bool
	// Region is sent with every request, which also skips bucket location
	// lookups. Empty means us-east-1.
	Region string
}

// Client reads and writes objects. Calls with an empty bucket use the
// configured default bucket.
type Client struct {
	minio  *minio.Client
	bucket string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{
		minio:  mc,
		bucket: strings.TrimSpace(cfg.Bucket),
	}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) resolve(bucket string) (string, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		bucket = c.bucket
	}
	if bucket == "" {
		return "", ErrBucketRequired
	}
	return bucket, nil
}

func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	bucket, err := c.resolve(bucket)
	if err != nil {
		return err
	}

	exists, err := c.minio.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	return nil
}

func (c *Client) ObjectExists(ctx context.Context, bucket, objectKey string) (bool, error) {
	bucket, err := c.resolve(bucket)
	if err != nil {
		return false, err
	}

	_, err = c.minio.StatObject(ctx, bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s/%s: %w", bucket, objectKey, err)
}

func (c *Client) ReadObject(ctx context.Context, bucket, objectKey string) ([]byte, error) {
	bucket, err := c.resolve(bucket)
	if err != nil {
		return nil, err
	}

	obj, err := c.minio.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, objectKey, err)
	}
	return data, nil
}

func (c *Client) WriteObject(ctx context.Context, bucket, objectKey string, data []byte, contentType string) error {
	bucket, err := c.resolve(bucket)
	if err != nil {
		return err
	}

	_, err = c.minio.PutObject(
		ctx,
		bucket,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, objectKey, err)
	}
	return nil
}
