package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"s3mirror/internal/location"
	"s3mirror/internal/models"
	"s3mirror/internal/storage"
	"s3mirror/internal/transfer"
	"s3mirror/pkg/utils"
)

type Options struct {
	Location    location.RemoteLocation
	Destination string

	// Threads is the number of downloads run in parallel.
	Threads int
	// RepeatInterval is the pause between passes. Zero or negative runs a
	// single pass.
	RepeatInterval time.Duration
	// DrainTimeout bounds the wait for one pass's downloads.
	DrainTimeout time.Duration
	Remove       bool
}

// Driver repeatedly lists the source location and downloads every object
// into the destination directory.
type Driver struct {
	client   storage.Client
	transfer *transfer.Transfer
	opts     Options
	logger   *slog.Logger

	// OnPass, when set, receives the summary of every finished pass.
	OnPass func(models.PassResult)

	sleep func(ctx context.Context, d time.Duration) error
	// draining, when set, is called with the number of submitted jobs just
	// before the pass starts waiting on them.
	draining func(submitted int)
}

func NewDriver(client storage.Client, opts Options, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Threads <= 0 {
		opts.Threads = DefaultThreads
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}

	return &Driver{
		client:   client,
		transfer: transfer.New(client, logger),
		opts:     opts,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Transfer exposes the per-object transfer settings for tuning.
func (d *Driver) Transfer() *transfer.Transfer {
	return d.transfer
}

// Run executes passes until a single pass is done or, in repeat mode, until
// ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	for {
		result, err := d.RunPass(ctx)
		if d.OnPass != nil {
			d.OnPass(result)
		}
		if d.opts.RepeatInterval <= 0 {
			return err
		}
		if err != nil {
			d.logger.Error("mirror pass failed, retrying after the repeat interval", "error", err)
		}

		d.logger.Info("waiting for next pass", "interval", d.opts.RepeatInterval)
		if err := d.sleep(ctx, d.opts.RepeatInterval); err != nil {
			d.logger.Warn("waiting for next execution was interrupted", "error", err)
			return nil
		}
	}
}

// RunPass lists the source once, downloads every listed object and waits for
// the downloads to finish. A listing error stops the listing but objects
// already submitted still run to completion.
func (d *Driver) RunPass(ctx context.Context) (models.PassResult, error) {
	result := models.PassResult{
		ID:        uuid.New(),
		Location:  d.opts.Location.String(),
		StartedAt: time.Now(),
	}
	logger := d.logger.With("pass", result.ID.String())
	logger.Info("starting mirror pass",
		"source", d.opts.Location.String(),
		"destination", d.opts.Destination,
		"threads", d.opts.Threads,
	)

	var stats passStats
	pool := NewPool(ctx, d.opts.Threads, logger)

	listErr := d.submitAll(ctx, pool, logger, &stats, &result)
	if d.draining != nil {
		d.draining(result.Objects)
	}

	if err := pool.Drain(d.opts.DrainTimeout); err != nil {
		logger.Warn("mirror pass did not finish cleanly", "error", err)
	}

	stats.fill(&result)
	result.Duration = time.Since(result.StartedAt)
	logger.Info("mirror pass finished",
		"objects", result.Objects,
		"completed", result.Completed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"written", utils.FormatBytes(result.BytesWritten),
		"duration", result.Duration.Round(time.Millisecond),
	)

	return result, listErr
}

func (d *Driver) submitAll(ctx context.Context, pool *Pool, logger *slog.Logger, stats *passStats, result *models.PassResult) error {
	loc := d.opts.Location

	page, err := d.client.ListObjects(ctx, loc.Bucket, loc.Prefix)
	for page != nil && err == nil {
		for _, obj := range page.Objects {
			job := &Job{
				Object:      obj,
				Location:    loc,
				Destination: d.opts.Destination,
				Remove:      d.opts.Remove,
				Transfer:    d.transfer,
				Deleter:     d.client,
				Logger:      logger,
			}
			if err := pool.Submit(func(ctx context.Context) {
				stats.record(job.Execute(ctx))
			}); err != nil {
				return fmt.Errorf("failed to submit %s: %w", obj.Key, err)
			}
			result.Objects++
		}
		page, err = d.client.ListNextPage(ctx, page)
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", loc, err)
	}

	logger.Info("listing finished", "objects", result.Objects)
	return nil
}

type passStats struct {
	mu        sync.Mutex
	completed int
	skipped   int
	failed    int
	written   int64
}

func (s *passStats) record(res transfer.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch res.Outcome {
	case transfer.Completed:
		s.completed++
	case transfer.Skipped:
		s.skipped++
	default:
		s.failed++
	}
	s.written += res.BytesWritten
}

func (s *passStats) fill(result *models.PassResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result.Completed = s.completed
	result.Skipped = s.skipped
	result.Failed = s.failed
	result.BytesWritten = s.written
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
