package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	appConfig "s3mirror/config"
	"s3mirror/internal/location"
	"s3mirror/internal/models"
)

// ErrRangeNotSupported is returned by GetObjectRange when the backend cannot
// serve partial content. Callers fall back to reading the whole object.
var ErrRangeNotSupported = errors.New("storage: range requests not supported")

// Page is one page of a listing. NextToken is opaque to callers.
type Page struct {
	Bucket    string
	Prefix    string
	Objects   []models.ObjectSummary
	Truncated bool
	NextToken string
}

// Object is a full-object read.
type Object struct {
	Size int64
	Body io.ReadCloser
}

type Lister interface {
	ListObjects(ctx context.Context, bucket, prefix string) (*Page, error)
	// ListNextPage returns nil when page is the last one.
	ListNextPage(ctx context.Context, page *Page) (*Page, error)
}

type Reader interface {
	GetObject(ctx context.Context, bucket, key string) (*Object, error)
	// GetObjectRange reads bytes [start, end] inclusive.
	GetObjectRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error)
}

type Deleter interface {
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Client is safe for concurrent use by multiple goroutines.
type Client interface {
	Lister
	Reader
	Deleter
	Close() error
}

// Open returns the client serving loc's scheme. s3 uses the native SDK
// client, every other scheme goes through gocloud blob URL openers.
func Open(ctx context.Context, loc location.RemoteLocation, cfg *appConfig.Config) (Client, error) {
	switch loc.Scheme {
	case "s3":
		return NewS3Client(ctx, cfg)
	default:
		client := NewBlobClient(URLOpener(loc.Scheme))
		if _, err := client.bucket(ctx, loc.Bucket); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to open %s: %w", loc, err)
		}
		return client, nil
	}
}

type noRangeClient struct {
	Client
}

// WithoutRanges wraps c so that every range request reports
// ErrRangeNotSupported.
func WithoutRanges(c Client) Client {
	return noRangeClient{Client: c}
}

func (noRangeClient) GetObjectRange(context.Context, string, string, int64, int64) (io.ReadCloser, error) {
	return nil, ErrRangeNotSupported
}
