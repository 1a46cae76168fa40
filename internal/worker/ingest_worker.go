// Package worker ingests transaction batches received over AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"txfilter/internal/amqp"
	"txfilter/internal/core"
	"txfilter/internal/dataset"
	applog "txfilter/internal/log"
)

// BatchWriter stores a batch at most once per id.
type BatchWriter interface {
	AppendBatch(ctx context.Context, batchID string, txs []core.Transaction) (int, error)
}

// IngestWorker validates batches and appends them to a writable dataset.
type IngestWorker struct {
	writer      dataset.Writer
	invalidator dataset.Invalidator
	logger      *applog.Logger
}

// NewIngestWorker creates a worker. invalidator and logger may be nil.
func NewIngestWorker(writer dataset.Writer, invalidator dataset.Invalidator, logger *applog.Logger) *IngestWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &IngestWorker{
		writer:      writer,
		invalidator: invalidator,
		logger:      logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleBatch is an amqp.Handler. Invalid batches are rejected as a whole
// and never requeued; storage failures are returned for a retry.
func (w *IngestWorker) HandleBatch(ctx context.Context, msg *amqp.TransactionBatchMessage) error {
	start := time.Now()
	w.logger.InfoContext(ctx, "Processing transaction batch",
		applog.FieldBatchID, msg.ID,
		applog.FieldCount, len(msg.Transactions),
		"source", msg.Source)

	if len(msg.Transactions) == 0 {
		return nil
	}
	if err := validateBatch(msg.Transactions); err != nil {
		return fmt.Errorf("batch %s: %w: %w", msg.ID, amqp.ErrRejected, err)
	}

	var (
		n   int
		err error
	)
	if bw, ok := w.writer.(BatchWriter); ok {
		n, err = bw.AppendBatch(ctx, msg.ID, msg.Transactions)
	} else {
		n, err = w.writer.AppendTransactions(ctx, msg.Transactions)
	}
	if errors.Is(err, dataset.ErrNotWritable) {
		return fmt.Errorf("batch %s: %w: %w", msg.ID, amqp.ErrRejected, err)
	}
	if err != nil {
		return fmt.Errorf("store batch %s: %w", msg.ID, err)
	}

	if n > 0 && w.invalidator != nil {
		w.invalidator.Invalidate()
	}
	w.logger.InfoContext(ctx, "Transaction batch ingested",
		applog.FieldOperation, applog.OpIngest,
		applog.FieldBatchID, msg.ID,
		applog.FieldCount, n,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func validateBatch(txs []core.Transaction) error {
	var errs []error
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("transaction %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
