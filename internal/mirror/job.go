package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"s3mirror/internal/location"
	"s3mirror/internal/models"
	"s3mirror/internal/storage"
	"s3mirror/internal/transfer"
	"s3mirror/pkg/utils"
)

// Job mirrors a single remote object.
type Job struct {
	Object      models.ObjectSummary
	Location    location.RemoteLocation
	Destination string
	Remove      bool

	Transfer *transfer.Transfer
	Deleter  storage.Deleter
	Logger   *slog.Logger
}

// Execute never panics and never returns an error; every failure ends up in
// the returned result.
func (j *Job) Execute(ctx context.Context) (res transfer.Result) {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", j.Location.ObjectURI(j.Object.Key))

	defer func() {
		if r := recover(); r != nil {
			res = transfer.Result{
				Outcome: transfer.Failed,
				Plan:    res.Plan,
				Err:     fmt.Errorf("panic during download: %v", r),
			}
			logger.Error("download failed", "error", res.Err)
		}
	}()

	localPath, err := transfer.MapPath(j.Location.Prefix, j.Object.Key, j.Destination)
	if err != nil {
		res = transfer.Result{
			Outcome: transfer.Failed,
			Plan:    models.TransferPlan{Object: j.Object, TotalSize: j.Object.Size},
			Err:     err,
		}
		logger.Error("download failed", "error", err)
		return res
	}

	logger.Info("starting download", "destination", localPath, "size", utils.FormatBytes(j.Object.Size))

	if strings.HasSuffix(j.Object.Key, "/") {
		res = j.createDirectory(localPath)
	} else {
		res = j.Transfer.Run(ctx, j.Object, localPath)
	}

	switch res.Outcome {
	case transfer.Completed:
		logger.Info("download completed", "destination", localPath, "bytes", res.BytesWritten)
	case transfer.Skipped:
		logger.Info("download skipped, destination already exists and has the correct size", "destination", localPath)
	default:
		logger.Error("download failed", "destination", localPath, "bytes", res.BytesWritten, "error", res.Err)
	}

	if j.Remove && res.Succeeded() {
		if err := j.Deleter.DeleteObject(ctx, j.Object.Bucket, j.Object.Key); err != nil {
			logger.Error("failed to delete remote object", "error", err)
		} else {
			logger.Info("deleted remote object after a complete download")
		}
	}

	return res
}

func (j *Job) createDirectory(localPath string) transfer.Result {
	plan := models.TransferPlan{Object: j.Object, LocalPath: localPath, TotalSize: j.Object.Size}
	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return transfer.Result{
			Outcome: transfer.Failed,
			Plan:    plan,
			Err:     &transfer.TransferError{Op: "mkdir", Path: localPath, Err: err},
		}
	}
	return transfer.Result{Outcome: transfer.Skipped, Plan: plan}
}
