package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/example/receipt-console/internal/backend"
	"github.com/example/receipt-console/internal/session"
)

// UploadBackend is the slice of the backend client the uploader needs
type UploadBackend interface {
	Upload(ctx context.Context, filename string, data io.Reader) (*backend.UploadResult, error)
}

// File is one document queued for upload
type File struct {
	Name string
	Size int64
	Data io.Reader
}

// FileReport records the outcome of one file in a batch
type FileReport struct {
	Name    string
	Size    int64
	ID      string
	Message string
	Err     error
}

// BatchReport is the outcome of a whole upload batch
type BatchReport struct {
	BatchID string
	Files   []FileReport
}

// Succeeded counts files the backend accepted
func (r BatchReport) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts files that did not make it
func (r BatchReport) Failed() int {
	return len(r.Files) - r.Succeeded()
}

// Uploader sends files to the backend one at a time. Sequential uploads
// keep the backend from being hit with an unbounded fan-out; the cost is
// total latency growing with the batch size.
type Uploader struct {
	api        UploadBackend
	onComplete func(BatchReport)
}

// NewUploader creates an Uploader. onComplete, when non-nil, runs exactly
// once per batch after the last file has been attempted.
func NewUploader(api UploadBackend, onComplete func(BatchReport)) *Uploader {
	return &Uploader{api: api, onComplete: onComplete}
}

// UploadAll uploads a batch sequentially. A failing file is recorded and
// does not stop the files after it, with one exception: a missing session
// token fails every remaining file too, since no upload can succeed
// without one.
func (u *Uploader) UploadAll(ctx context.Context, files []File) BatchReport {
	report := BatchReport{
		BatchID: uuid.NewString(),
		Files:   make([]FileReport, 0, len(files)),
	}

	aborted := false
	for _, file := range files {
		entry := FileReport{Name: file.Name, Size: file.Size}
		if aborted {
			entry.Err = session.ErrNoToken
			report.Files = append(report.Files, entry)
			continue
		}

		result, err := u.api.Upload(ctx, file.Name, file.Data)
		if err != nil {
			slog.Error("Upload failed", "batch", report.BatchID, "file", file.Name, "error", err)
			entry.Err = err
			if errors.Is(err, session.ErrNoToken) {
				aborted = true
			}
		} else {
			entry.ID = result.ID
			entry.Message = result.Message
			slog.Info("Uploaded receipt", "batch", report.BatchID, "file", file.Name, "id", result.ID)
		}
		report.Files = append(report.Files, entry)
	}

	if u.onComplete != nil {
		u.onComplete(report)
	}
	return report
}
