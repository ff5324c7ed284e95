package writer

import (
	"bytes"
	"context"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
	"github.com/dcstacview/tacview-ingest/pkg/log"
)

// DefaultBatchSize is the number of buffered event rows that triggers an
// automatic flush when the consumer does not force one first.
const DefaultBatchSize = 500_000

// EventStore is the repository-side half of the bulk writer: it owns the
// session's staging table and the promote/upsert transaction, and the
// impact insert statement. BulkWriter never issues SQL itself.
type EventStore interface {
	// PromoteBatch streams a complete binary COPY payload (header, rows,
	// trailer) into the session's staging table, then promotes the staged
	// rows into the event partition and upserts the object table.
	PromoteBatch(ctx context.Context, sessionID int32, payload *bytes.Buffer) error
	// InsertImpacts persists a batch of resolved impacts.
	InsertImpacts(ctx context.Context, impacts []acmi.Impact) error
}

// BulkWriter accumulates per-tick event snapshots into a binary COPY buffer
// and impacts into a slice. It never flushes on its own: FlushIfFull promotes
// the batch only once the buffered row count has reached batchSize (the
// consumer calls it at each time tick), and Flush promotes whatever is
// pending regardless of count (the consumer calls it at end of stream).
type BulkWriter struct {
	store     EventStore
	batchSize int

	sessionID int32
	buf       *bytes.Buffer
	rowCount  int
	impacts   []acmi.Impact
}

// NewBulkWriter returns a BulkWriter bound to sessionID. batchSize <= 0
// selects DefaultBatchSize.
func NewBulkWriter(store EventStore, sessionID int32, batchSize int) *BulkWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	w := &BulkWriter{store: store, sessionID: sessionID, batchSize: batchSize}
	w.resetBuffer()
	return w
}

func (w *BulkWriter) resetBuffer() {
	w.buf = bytes.NewBuffer(nil)
	w.buf.Write(CopyHeader())
	w.rowCount = 0
}

// AddEvent appends one event row to the pending COPY buffer.
func (w *BulkWriter) AddEvent(e acmi.Event) {
	w.buf.Write(EncodeEvent(e))
	w.rowCount++
}

// QueueImpact appends one impact for the next flush.
func (w *BulkWriter) QueueImpact(imp acmi.Impact) {
	w.impacts = append(w.impacts, imp)
}

// FlushIfFull promotes the pending batch once rowCount reaches batchSize.
// It is a no-op otherwise.
func (w *BulkWriter) FlushIfFull(ctx context.Context) error {
	if w.rowCount < w.batchSize {
		return nil
	}
	return w.flush(ctx)
}

// Flush forces a promote regardless of the pending row count, used at
// session end and before the caller advances to a new session.
func (w *BulkWriter) Flush(ctx context.Context) error {
	if w.rowCount == 0 && len(w.impacts) == 0 {
		return nil
	}
	return w.flush(ctx)
}

func (w *BulkWriter) flush(ctx context.Context) error {
	if w.rowCount > 0 {
		w.buf.Write(CopyTrailer())
		log.Debugf("flushing %d event rows for session %d", w.rowCount, w.sessionID)
		if err := w.store.PromoteBatch(ctx, w.sessionID, w.buf); err != nil {
			return err
		}
	}
	w.resetBuffer()

	if len(w.impacts) > 0 {
		if err := w.store.InsertImpacts(ctx, w.impacts); err != nil {
			return err
		}
		w.impacts = w.impacts[:0]
	}
	return nil
}
