// Package feed owns the client-side fetch lifecycle for the receipt list:
// the current filter query, the loading/error state, and the per-record
// action dispatch that drives validate/process/delete.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/receipt-console/internal/backend"
	"github.com/example/receipt-console/internal/receipt"
)

// ErrActionPending rejects a second action on a record while one is still
// in flight. The guard is per record; actions on different records run
// concurrently.
var ErrActionPending = errors.New("an action is already pending for this receipt")

// Backend is the slice of the backend client the feed drives
type Backend interface {
	ListReceipts(ctx context.Context, query backend.ListQuery) (*backend.ListResult, error)
	Validate(ctx context.Context, id string) error
	Process(ctx context.Context, id string) (*backend.ProcessResult, error)
	Delete(ctx context.Context, id string) error
}

// Snapshot is a consistent view of the feed state at one point in time
type Snapshot struct {
	Receipts []*receipt.ReceiptFile
	Stats    receipt.ListStats
	Loading  bool
	Err      string
}

// Feed caches the most recent list fetch for one query. A new fetch
// supersedes the previous one: the old request's context is canceled and
// its result, should it still arrive, is discarded instead of overwriting
// newer state. A Feed is one shared cursor, not a per-viewer cache:
// concurrent callers that set different queries race and the newest
// query wins.
type Feed struct {
	api Backend

	mu         sync.Mutex
	query      backend.ListQuery
	receipts   []*receipt.ReceiptFile
	stats      receipt.ListStats
	loading    bool
	errMsg     string
	generation uint64
	cancel     context.CancelFunc
	inflight   map[string]bool
}

// New creates a Feed over the given backend
func New(api Backend) *Feed {
	return &Feed{
		api:      api,
		receipts: []*receipt.ReceiptFile{},
		inflight: make(map[string]bool),
	}
}

// SetQuery replaces the filter parameters. The caller refetches afterwards.
func (f *Feed) SetQuery(query backend.ListQuery) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = query
}

// Query returns the current filter parameters
func (f *Feed) Query() backend.ListQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

// Refetch issues a fetch for the current query. On success the list and
// stats are replaced atomically; on failure the previous list is kept and
// the error is stored as a display string. A fetch superseded by a newer
// one reports nothing.
func (f *Feed) Refetch(ctx context.Context) error {
	f.mu.Lock()
	f.generation++
	generation := f.generation
	if f.cancel != nil {
		f.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.loading = true
	query := f.query
	f.mu.Unlock()

	result, err := f.api.ListReceipts(fetchCtx, query)

	f.mu.Lock()
	defer f.mu.Unlock()
	if generation != f.generation {
		// A newer fetch owns the state now; this result is stale.
		return nil
	}
	f.loading = false
	if err != nil {
		f.errMsg = err.Error()
		slog.Error("Fetching receipts failed", "error", err)
		return fmt.Errorf("fetching receipts: %w", err)
	}
	f.receipts = result.Receipts
	f.stats = result.Stats
	f.errMsg = ""
	return nil
}

// Snapshot returns the current feed state. The receipt slice is copied so
// callers can iterate without holding the feed lock.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipts := make([]*receipt.ReceiptFile, len(f.receipts))
	copy(receipts, f.receipts)
	return Snapshot{
		Receipts: receipts,
		Stats:    f.stats,
		Loading:  f.loading,
		Err:      f.errMsg,
	}
}

// begin marks a record action in flight, rejecting duplicates
func (f *Feed) begin(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight[id] {
		return ErrActionPending
	}
	f.inflight[id] = true
	return nil
}

// end releases the in-flight mark for a record
func (f *Feed) end(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inflight, id)
}

// Validate runs backend validation for one record and refetches on success
func (f *Feed) Validate(ctx context.Context, id string) error {
	if err := f.begin(id); err != nil {
		return err
	}
	defer f.end(id)

	if err := f.api.Validate(ctx, id); err != nil {
		return err
	}
	return f.Refetch(ctx)
}

// Process runs extraction for one record. The returned result carries the
// backend's in-body outcome; the list is refetched whenever the request
// itself went through, successful extraction or not.
func (f *Feed) Process(ctx context.Context, id string) (*backend.ProcessResult, error) {
	if err := f.begin(id); err != nil {
		return nil, err
	}
	defer f.end(id)

	result, err := f.api.Process(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := f.Refetch(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// Delete removes one record and refetches on success
func (f *Feed) Delete(ctx context.Context, id string) error {
	if err := f.begin(id); err != nil {
		return err
	}
	defer f.end(id)

	if err := f.api.Delete(ctx, id); err != nil {
		return err
	}
	return f.Refetch(ctx)
}
