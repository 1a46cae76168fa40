package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"txfilter/internal/amqp"
	"txfilter/internal/cache"
	applog "txfilter/internal/log"
	"txfilter/internal/worker"
)

func workerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume transaction batches from AMQP into the dataset backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), a)
		},
	}
}

func runWorker(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger
	if cfg.AMQPURL == "" {
		return errors.New("worker requires AMQP_URL")
	}

	manager := cache.NewManager(logger)
	res, err := OpenBackend(ctx, cfg, logger, manager)
	if err != nil {
		return err
	}
	defer res.Close()
	if res.Writer == nil {
		return fmt.Errorf("backend %s is read-only, cannot ingest", res.Type)
	}
	manager.StartCleanup(ctx, cleanupInterval)
	defer manager.Stop()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewIngestWorker(res.Writer, res.Invalidator, logger)
	logger.Info("Starting ingest worker",
		applog.FieldOperation, applog.OpStartup,
		applog.FieldBackend, string(res.Type),
		"queue", cfg.AMQPQueue)

	err = client.ConsumeTransactions(ctx, w.HandleBatch)
	if errors.Is(err, context.Canceled) {
		logger.Info("Ingest worker stopped", applog.FieldOperation, applog.OpShutdown)
		return nil
	}
	return err
}
