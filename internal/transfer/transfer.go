package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"s3mirror/internal/models"
	"s3mirror/internal/storage"
	"s3mirror/pkg/utils"
)

const (
	DefaultBufferSize       = 1024 * 1024
	DefaultProgressInterval = 10 * time.Second
)

// ErrSizeMismatch means the remote stream ended early or ran past the size
// reported by the listing.
var ErrSizeMismatch = errors.New("transferred size does not match remote size")

type Outcome int

const (
	Completed Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Result struct {
	Outcome      Outcome
	Plan         models.TransferPlan
	BytesWritten int64
	Err          error
}

// Succeeded reports whether the local file now matches the remote object.
func (r Result) Succeeded() bool {
	return r.Outcome == Completed || r.Outcome == Skipped
}

type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Transfer brings one local file up to date with a remote object, resuming
// from whatever is already on disk.
type Transfer struct {
	reader storage.Reader
	logger *slog.Logger
	now    func() time.Time

	BufferSize       int
	ProgressInterval time.Duration
	// OnProgress, when set, receives every progress sample after it is logged.
	OnProgress func(models.TransferPlan, models.ProgressSample)
}

func New(reader storage.Reader, logger *slog.Logger) *Transfer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transfer{
		reader:           reader,
		logger:           logger,
		now:              time.Now,
		BufferSize:       DefaultBufferSize,
		ProgressInterval: DefaultProgressInterval,
	}
}

func (t *Transfer) Run(ctx context.Context, obj models.ObjectSummary, localPath string) Result {
	plan := models.TransferPlan{
		Object:    obj,
		LocalPath: localPath,
		TotalSize: obj.Size,
	}

	existing, exists, err := localSize(localPath)
	if err != nil {
		return failed(plan, 0, "stat", err)
	}

	if exists && existing == plan.TotalSize {
		plan.ResumeOffset = existing
		return Result{Outcome: Skipped, Plan: plan}
	}

	if existing > plan.TotalSize {
		t.logger.Warn("local file is larger than remote object, downloading again",
			"path", localPath,
			"local_size", existing,
			"remote_size", plan.TotalSize,
		)
		if err := os.Remove(localPath); err != nil {
			return failed(plan, 0, "remove", err)
		}
		existing = 0
	}
	plan.ResumeOffset = existing

	if err := ctx.Err(); err != nil {
		return failed(plan, 0, "start", err)
	}

	if plan.TotalSize == 0 {
		f, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			return failed(plan, 0, "create", err)
		}
		if err := f.Close(); err != nil {
			return failed(plan, 0, "close", err)
		}
		return Result{Outcome: Completed, Plan: plan}
	}

	if existing > 0 {
		t.logger.Info("resuming download",
			"path", localPath,
			"offset", existing,
			"remaining", utils.FormatBytes(plan.Remaining()),
		)
	}

	return t.download(ctx, plan)
}

func (t *Transfer) download(ctx context.Context, plan models.TransferPlan) Result {
	body, skip, err := t.open(ctx, plan)
	if err != nil {
		return failed(plan, 0, "open remote", err)
	}
	defer body.Close()

	f, err := os.OpenFile(plan.LocalPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return failed(plan, 0, "open local", err)
	}

	written, copyErr := t.copy(ctx, f, body, skip, plan)
	closeErr := f.Close()

	if copyErr != nil {
		return Result{Outcome: Failed, Plan: plan, BytesWritten: written, Err: copyErr}
	}
	if closeErr != nil {
		return failed(plan, written, "close", closeErr)
	}
	if plan.ResumeOffset+written != plan.TotalSize {
		return failed(plan, written, "verify", fmt.Errorf("%w: have %d bytes, want %d",
			ErrSizeMismatch, plan.ResumeOffset+written, plan.TotalSize))
	}

	return Result{Outcome: Completed, Plan: plan, BytesWritten: written}
}

// open requests the missing byte range. When the backend cannot serve ranges
// the whole object is opened and the returned skip count tells the caller how
// many leading bytes to discard.
func (t *Transfer) open(ctx context.Context, plan models.TransferPlan) (io.ReadCloser, int64, error) {
	obj := plan.Object
	body, err := t.reader.GetObjectRange(ctx, obj.Bucket, obj.Key, plan.ResumeOffset, plan.TotalSize-1)
	if err == nil {
		return body, 0, nil
	}
	if !errors.Is(err, storage.ErrRangeNotSupported) {
		return nil, 0, err
	}

	t.logger.Debug("range requests unavailable, reading full object",
		"key", obj.Key,
		"skip", plan.ResumeOffset,
	)
	full, err := t.reader.GetObject(ctx, obj.Bucket, obj.Key)
	if err != nil {
		return nil, 0, err
	}
	return full.Body, plan.ResumeOffset, nil
}

func (t *Transfer) copy(ctx context.Context, w io.Writer, r io.Reader, skip int64, plan models.TransferPlan) (int64, error) {
	size := t.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	buf := make([]byte, size)
	tracker := newProgressTracker(t.ProgressInterval, t.now, plan.ResumeOffset, plan.TotalSize, func(s models.ProgressSample) {
		t.reportProgress(plan, s)
	})

	for skip > 0 {
		if err := ctx.Err(); err != nil {
			return 0, &TransferError{Op: "skip", Path: plan.LocalPath, Err: err}
		}
		n := int64(len(buf))
		if skip < n {
			n = skip
		}
		m, err := io.ReadFull(r, buf[:n])
		skip -= int64(m)
		tracker.addSkipped(int64(m))
		if err != nil {
			return 0, &TransferError{Op: "skip", Path: plan.LocalPath, Err: unexpectedEOF(err)}
		}
	}

	remaining := plan.Remaining()
	var written int64
	for written < remaining {
		if err := ctx.Err(); err != nil {
			return written, &TransferError{Op: "read", Path: plan.LocalPath, Err: err}
		}
		n := int64(len(buf))
		if remaining-written < n {
			n = remaining - written
		}

		m, rerr := r.Read(buf[:n])
		if m > 0 {
			wn, werr := w.Write(buf[:m])
			written += int64(wn)
			if werr != nil {
				return written, &TransferError{Op: "write", Path: plan.LocalPath, Err: werr}
			}
			tracker.addWritten(int64(wn))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, &TransferError{Op: "read", Path: plan.LocalPath, Err: rerr}
		}
	}

	if written == remaining {
		var probe [1]byte
		if n, _ := io.ReadFull(r, probe[:]); n > 0 {
			return written, &TransferError{
				Op:   "verify",
				Path: plan.LocalPath,
				Err:  fmt.Errorf("%w: remote stream is longer than %d bytes", ErrSizeMismatch, plan.TotalSize),
			}
		}
	}

	return written, nil
}

func (t *Transfer) reportProgress(plan models.TransferPlan, s models.ProgressSample) {
	attrs := []any{
		"path", plan.LocalPath,
		"percent", fmt.Sprintf("%.0f%%", 100*s.FractionComplete),
		"rate", utils.FormatRate(s.Throughput()),
	}
	if s.BytesSkippedSinceLast > 0 {
		attrs = append(attrs, "skipped", utils.FormatBytes(s.BytesSkippedSinceLast))
	}
	t.logger.Info("download progress", attrs...)

	if t.OnProgress != nil {
		t.OnProgress(plan, s)
	}
}

func localSize(path string) (size int64, exists bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if info.IsDir() {
		return 0, true, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), true, nil
}

func failed(plan models.TransferPlan, written int64, op string, err error) Result {
	return Result{
		Outcome:      Failed,
		Plan:         plan,
		BytesWritten: written,
		Err:          &TransferError{Op: op, Path: plan.LocalPath, Err: err},
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
