package transfer

import (
	"time"

	"s3mirror/internal/models"
)

// progressTracker emits a sample whenever interval has elapsed since the
// previous one. The first window starts when the tracker is created.
type progressTracker struct {
	interval time.Duration
	now      func() time.Time
	emit     func(models.ProgressSample)

	offset int64
	total  int64

	written int64
	skipped int64

	last        time.Time
	lastWritten int64
	lastSkipped int64
}

func newProgressTracker(interval time.Duration, now func() time.Time, offset, total int64, emit func(models.ProgressSample)) *progressTracker {
	return &progressTracker{
		interval: interval,
		now:      now,
		emit:     emit,
		offset:   offset,
		total:    total,
		last:     now(),
	}
}

func (p *progressTracker) addWritten(n int64) {
	p.written += n
	p.maybeEmit()
}

func (p *progressTracker) addSkipped(n int64) {
	p.skipped += n
	p.maybeEmit()
}

func (p *progressTracker) maybeEmit() {
	now := p.now()
	elapsed := now.Sub(p.last)
	if elapsed < p.interval {
		return
	}

	sample := models.ProgressSample{
		BytesTransferredSinceLast: p.written - p.lastWritten,
		BytesSkippedSinceLast:     p.skipped - p.lastSkipped,
		ElapsedSinceLast:          elapsed,
		FractionComplete:          p.fraction(),
	}
	p.last = now
	p.lastWritten = p.written
	p.lastSkipped = p.skipped

	p.emit(sample)
}

func (p *progressTracker) fraction() float64 {
	if p.total <= 0 {
		return 1
	}
	f := float64(p.offset+p.written) / float64(p.total)
	if f > 1 {
		return 1
	}
	return f
}
