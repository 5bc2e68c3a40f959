package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/JanhviHarwani/access-ed-backend/internal/app"
	"github.com/JanhviHarwani/access-ed-backend/internal/model"
)

// IngestWorker consumes queued ingestion jobs and runs them through the
// ingestion pipeline. A failed job is not requeued: the ledger already holds
// the failure and the operator re-triggers ingestion explicitly.
type IngestWorker struct {
	conn      *amqp.Connection
	ingest    *app.IngestService
	queueName string
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, ingest *app.IngestService, queueName string, log *zap.Logger) *IngestWorker {
	return &IngestWorker{
		conn:      conn,
		ingest:    ingest,
		queueName: queueName,
		log:       log,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var doc model.SourceDocument
				if err := json.Unmarshal(d.Body, &doc); err != nil {
					w.log.Error("decode ingest job failed", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				if _, err := w.ingest.IngestDocument(workerCtx, doc); err != nil {
					w.log.Error("ingest job failed",
						zap.String("document_id", doc.ID),
						zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
