package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"s3mirror/internal/models"
	"s3mirror/internal/storage"
)

var errRemote = errors.New("remote unavailable")

// fakeClient is an in-memory storage.Client with pre-built listing pages.
type fakeClient struct {
	bucket string
	prefix string
	pages  [][]models.ObjectSummary
	data   map[string][]byte

	// listErrAt makes ListNextPage fail when asked for that page index.
	listErrAt int
	failKeys  map[string]bool
	deleteErr error
	openDelay time.Duration

	mu        sync.Mutex
	listCalls int
	deleted   []string

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeClient(bucket, prefix string, pageSizes ...int) *fakeClient {
	c := &fakeClient{
		bucket:   bucket,
		prefix:   prefix,
		data:     map[string][]byte{},
		failKeys: map[string]bool{},
	}
	n := 0
	for _, size := range pageSizes {
		var page []models.ObjectSummary
		for i := 0; i < size; i++ {
			c.addObject(&page, fmt.Sprintf("%sdir%d/object-%04d.bin", prefix, n%5, n), n%17+1)
			n++
		}
		c.pages = append(c.pages, page)
	}
	return c
}

func (c *fakeClient) addObject(page *[]models.ObjectSummary, key string, size int) {
	body := bytes.Repeat([]byte{byte(size)}, size)
	c.data[key] = body
	*page = append(*page, models.ObjectSummary{Bucket: c.bucket, Key: key, Size: int64(size)})
}

func (c *fakeClient) page(i int) *storage.Page {
	return &storage.Page{
		Bucket:    c.bucket,
		Prefix:    c.prefix,
		Objects:   c.pages[i],
		Truncated: i < len(c.pages)-1,
		NextToken: strconv.Itoa(i + 1),
	}
}

func (c *fakeClient) ListObjects(_ context.Context, bucket, prefix string) (*storage.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listCalls++
	if bucket != c.bucket || prefix != c.prefix {
		return nil, fmt.Errorf("unexpected listing %s/%s", bucket, prefix)
	}
	if len(c.pages) == 0 {
		return &storage.Page{Bucket: bucket, Prefix: prefix}, nil
	}
	return c.page(0), nil
}

func (c *fakeClient) ListNextPage(_ context.Context, page *storage.Page) (*storage.Page, error) {
	if page == nil || !page.Truncated {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.listCalls++
	i, err := strconv.Atoi(page.NextToken)
	if err != nil {
		return nil, err
	}
	if c.listErrAt > 0 && i == c.listErrAt {
		return nil, errRemote
	}
	return c.page(i), nil
}

func (c *fakeClient) GetObject(_ context.Context, _, key string) (*storage.Object, error) {
	data, ok := c.data[key]
	if !ok || c.failKeys[key] {
		return nil, errRemote
	}
	return &storage.Object{Size: int64(len(data)), Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (c *fakeClient) GetObjectRange(_ context.Context, _, key string, start, end int64) (io.ReadCloser, error) {
	data, ok := c.data[key]
	if !ok || c.failKeys[key] {
		return nil, errRemote
	}

	n := c.active.Add(1)
	for {
		peak := c.maxActive.Load()
		if n <= peak || c.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	if c.openDelay > 0 {
		time.Sleep(c.openDelay)
	}

	return &trackedBody{Reader: bytes.NewReader(data[start : end+1]), active: &c.active}, nil
}

func (c *fakeClient) DeleteObject(_ context.Context, bucket, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, bucket+"/"+key)
	return nil
}

func (c *fakeClient) Close() error {
	return nil
}

func (c *fakeClient) deletedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

func (c *fakeClient) listCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

// trackedBody decrements the active transfer count when the download
// finishes with it.
type trackedBody struct {
	*bytes.Reader
	active *atomic.Int32
	once   sync.Once
}

func (b *trackedBody) Close() error {
	b.once.Do(func() { b.active.Add(-1) })
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
