package models

import "time"

// ObjectSummary is one entry of a remote listing.
type ObjectSummary struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

// TransferPlan is computed right before a transfer starts, since the local
// file may have changed between listing and execution.
type TransferPlan struct {
	Object       ObjectSummary `json:"object"`
	LocalPath    string        `json:"local_path"`
	ResumeOffset int64         `json:"resume_offset"`
	TotalSize    int64         `json:"total_size"`
}

// Remaining returns the number of bytes still to be fetched.
func (p TransferPlan) Remaining() int64 {
	return p.TotalSize - p.ResumeOffset
}

type ProgressSample struct {
	BytesTransferredSinceLast int64         `json:"bytes_transferred_since_last"`
	BytesSkippedSinceLast     int64         `json:"bytes_skipped_since_last"`
	ElapsedSinceLast          time.Duration `json:"elapsed_since_last"`
	FractionComplete          float64       `json:"fraction_complete"`
}

// Throughput returns transferred bytes per second for the sample window.
func (s ProgressSample) Throughput() float64 {
	secs := s.ElapsedSinceLast.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.BytesTransferredSinceLast) / secs
}
