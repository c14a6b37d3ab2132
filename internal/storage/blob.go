package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"

	"s3mirror/internal/models"
)

const defaultBlobPageSize = 1000

// BucketOpener opens the bucket with the given name.
type BucketOpener func(ctx context.Context, bucket string) (*blob.Bucket, error)

// URLOpener opens buckets through the gocloud URL mux, e.g. gs://bucket.
func URLOpener(scheme string) BucketOpener {
	return func(ctx context.Context, bucket string) (*blob.Bucket, error) {
		return blob.OpenBucket(ctx, scheme+"://"+bucket)
	}
}

// BlobClient serves any gocloud blob driver. Buckets are opened once and
// reused for the client's lifetime.
type BlobClient struct {
	open     BucketOpener
	pageSize int

	mu      sync.Mutex
	buckets map[string]*blob.Bucket
}

func NewBlobClient(open BucketOpener) *BlobClient {
	return &BlobClient{
		open:     open,
		pageSize: defaultBlobPageSize,
		buckets:  make(map[string]*blob.Bucket),
	}
}

// NewBucketClient wraps an already opened bucket under the given name.
func NewBucketClient(name string, bkt *blob.Bucket) *BlobClient {
	c := NewBlobClient(func(context.Context, string) (*blob.Bucket, error) {
		return nil, fmt.Errorf("bucket %q is not available", name)
	})
	c.buckets[name] = bkt
	return c
}

func (c *BlobClient) SetPageSize(n int) {
	if n <= 0 {
		n = defaultBlobPageSize
	}
	c.pageSize = n
}

func (c *BlobClient) bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bkt, ok := c.buckets[name]; ok {
		return bkt, nil
	}
	bkt, err := c.open(ctx, name)
	if err != nil {
		return nil, err
	}
	c.buckets[name] = bkt
	return bkt, nil
}

func (c *BlobClient) ListObjects(ctx context.Context, bucket, prefix string) (*Page, error) {
	return c.listPage(ctx, bucket, prefix, blob.FirstPageToken)
}

func (c *BlobClient) ListNextPage(ctx context.Context, page *Page) (*Page, error) {
	if page == nil || !page.Truncated {
		return nil, nil
	}
	return c.listPage(ctx, page.Bucket, page.Prefix, []byte(page.NextToken))
}

func (c *BlobClient) listPage(ctx context.Context, bucket, prefix string, token []byte) (*Page, error) {
	bkt, err := c.bucket(ctx, bucket)
	if err != nil {
		return nil, err
	}

	objs, next, err := bkt.ListPage(ctx, token, c.pageSize, &blob.ListOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	page := &Page{
		Bucket:    bucket,
		Prefix:    prefix,
		Objects:   make([]models.ObjectSummary, 0, len(objs)),
		Truncated: len(next) > 0,
		NextToken: string(next),
	}
	for _, obj := range objs {
		if obj.IsDir {
			continue
		}
		page.Objects = append(page.Objects, models.ObjectSummary{
			Bucket: bucket,
			Key:    obj.Key,
			Size:   obj.Size,
		})
	}

	return page, nil
}

func (c *BlobClient) GetObject(ctx context.Context, bucket, key string) (*Object, error) {
	bkt, err := c.bucket(ctx, bucket)
	if err != nil {
		return nil, err
	}

	r, err := bkt.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	return &Object{Size: r.Size(), Body: r}, nil
}

func (c *BlobClient) GetObjectRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	bkt, err := c.bucket(ctx, bucket)
	if err != nil {
		return nil, err
	}

	r, err := bkt.NewRangeReader(ctx, key, start, end-start+1, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get range %d-%d of %s: %w", start, end, key, err)
	}
	return r, nil
}

func (c *BlobClient) DeleteObject(ctx context.Context, bucket, key string) error {
	bkt, err := c.bucket(ctx, bucket)
	if err != nil {
		return err
	}

	if err := bkt.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (c *BlobClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, bkt := range c.buckets {
		if err := bkt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bucket %s: %w", name, err))
		}
		delete(c.buckets, name)
	}
	return errors.Join(errs...)
}
