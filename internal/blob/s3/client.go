// Package s3blob keeps catalogue mirrors and opportunity archives in an
// S3-compatible bucket (AWS, MinIO, R2).
package s3blob

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	// minPartSize is the smallest part S3 accepts in a multipart upload.
	minPartSize int64 = 5 * 1024 * 1024
	// DefaultMultipartThreshold is the body size above which PutObject
	// switches to the multipart uploader.
	DefaultMultipartThreshold int64 = 16 * 1024 * 1024
)

// ClientConfig locates the bucket.
type ClientConfig struct {
	// Endpoint is empty for AWS S3, e.g. "minio.local:9000" otherwise.
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// UseSSL picks the scheme when Endpoint has none.
	UseSSL bool
	// ForcePathStyle is needed by MinIO and most S3-compatible providers.
	ForcePathStyle     bool
	MultipartThreshold int64
}

// Client reads and writes whole objects in one bucket.
type Client struct {
	s3        *s3.Client
	uploader  *manager.Uploader
	bucket    string
	threshold int64
}

// New creates a Client with static credentials.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	threshold := cfg.MultipartThreshold
	if threshold <= 0 {
		threshold = DefaultMultipartThreshold
	}
	return &Client{
		s3: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = minPartSize
		}),
		bucket:    cfg.Bucket,
		threshold: threshold,
	}, nil
}

// Ping checks that the bucket exists and the credentials can reach it.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string { return c.bucket }

func normaliseEndpoint(endpoint string, useSSL bool) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
