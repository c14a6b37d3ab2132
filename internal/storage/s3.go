package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appConfig "s3mirror/config"
	"s3mirror/internal/models"
)

type S3Client struct {
	s3Client *s3.Client
	config   *appConfig.Config
	maxKeys  int32
}

func NewS3Client(ctx context.Context, cfg *appConfig.Config) (*S3Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.HasCredentials() {
		opts = append(opts, config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Client *s3.Client
	if cfg.ApiURL != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.ApiURL)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	return &S3Client{
		s3Client: s3Client,
		config:   cfg,
	}, nil
}

// SetPageSize caps the number of keys per listing page. Zero leaves the
// service default (1000).
func (c *S3Client) SetPageSize(n int32) {
	c.maxKeys = n
}

func (c *S3Client) ListObjects(ctx context.Context, bucket, prefix string) (*Page, error) {
	return c.listPage(ctx, bucket, prefix, "")
}

func (c *S3Client) ListNextPage(ctx context.Context, page *Page) (*Page, error) {
	if page == nil || !page.Truncated {
		return nil, nil
	}
	return c.listPage(ctx, page.Bucket, page.Prefix, page.NextToken)
}

func (c *S3Client) listPage(ctx context.Context, bucket, prefix, token string) (*Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}
	if c.maxKeys > 0 {
		input.MaxKeys = aws.Int32(c.maxKeys)
	}

	out, err := c.s3Client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	page := &Page{
		Bucket:    bucket,
		Prefix:    prefix,
		Objects:   make([]models.ObjectSummary, 0, len(out.Contents)),
		Truncated: aws.ToBool(out.IsTruncated),
		NextToken: aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, models.ObjectSummary{
			Bucket: bucket,
			Key:    aws.ToString(obj.Key),
			Size:   aws.ToInt64(obj.Size),
		})
	}

	return page, nil
}

func (c *S3Client) GetObject(ctx context.Context, bucket, key string) (*Object, error) {
	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	return &Object{
		Size: aws.ToInt64(out.ContentLength),
		Body: out.Body,
	}, nil
}

func (c *S3Client) GetObjectRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get range %d-%d of %s: %w", start, end, key, err)
	}

	// Some S3-compatible servers ignore Range and send the whole object.
	if out.ContentRange == nil && start > 0 {
		out.Body.Close()
		return nil, ErrRangeNotSupported
	}

	return out.Body, nil
}

func (c *S3Client) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (c *S3Client) Close() error {
	return nil
}
