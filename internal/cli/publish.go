package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"txfilter/internal/amqp"
	"txfilter/internal/core"
	"txfilter/internal/dataset"
	applog "txfilter/internal/log"
)

type publishOptions struct {
	file      string
	source    string
	batchSize int
}

// batchPublisher is the part of amqp.Client used by publish.
type batchPublisher interface {
	PublishTransactions(ctx context.Context, source string, txs []core.Transaction) (string, error)
}

func publishCmd(a *app) *cobra.Command {
	var opts publishOptions

	c := &cobra.Command{
		Use:   "publish",
		Short: "Publish transactions from a JSON file to the ingest queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.AMQPURL == "" {
				return errors.New("publish requires AMQP_URL")
			}
			client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue, a.logger)
			if err != nil {
				return err
			}
			defer client.Close()
			return runPublish(cmd.Context(), client, opts, cmd.OutOrStdout(), a.logger)
		},
	}
	c.Flags().StringVarP(&opts.file, "file", "f", "", `JSON file of the form {"transactions": [...]}, "-" for stdin`)
	c.Flags().StringVar(&opts.source, "source", "cli", "source label stored with each batch")
	c.Flags().IntVar(&opts.batchSize, "batch-size", 500, "transactions per message")
	_ = c.MarkFlagRequired("file")
	return c
}

func runPublish(ctx context.Context, pub batchPublisher, opts publishOptions, out io.Writer, logger *applog.Logger) error {
	if opts.batchSize < 1 {
		return fmt.Errorf("invalid batch size %d", opts.batchSize)
	}
	if logger == nil {
		logger = applog.Discard()
	}

	var r io.Reader = os.Stdin
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	txs, err := dataset.Decode(r)
	if err != nil {
		return err
	}

	// Reject the whole file up front rather than leave half of it queued.
	var errs []error
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("transaction %d: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for start := 0; start < len(txs); start += opts.batchSize {
		end := min(start+opts.batchSize, len(txs))
		id, err := pub.PublishTransactions(ctx, opts.source, txs[start:end])
		if err != nil {
			return fmt.Errorf("publish batch starting at %d: %w", start, err)
		}
		logger.Debug("Batch published", applog.FieldBatchID, id, applog.FieldCount, end-start)
		fmt.Fprintf(out, "%s\t%d\n", id, end-start)
	}
	return nil
}
