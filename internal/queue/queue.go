package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/stakevault-io/staking-vault/internal/config"
	"github.com/stakevault-io/staking-vault/internal/observability/metrics"
	"github.com/stakevault-io/staking-vault/internal/types"
)

// QueueManager publishes staking events to a durable rabbitmq queue for
// external monitoring and indexing.
type QueueManager struct {
	cfg       *config.QueueConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

func NewQueueManager(cfg *config.QueueConfig) (*QueueManager, error) {
	amqpURI := fmt.Sprintf("amqp://%s:%s@%s", cfg.QueueUser, cfg.QueuePassword, cfg.Url)

	conn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	return &QueueManager{
		cfg:       cfg,
		conn:      conn,
		channel:   channel,
		queueName: cfg.QueueName,
	}, nil
}

// Start declares the event queue. Safe to call on restarts: declaring an
// existing durable queue is a no-op.
func (qm *QueueManager) Start(ctx context.Context) error {
	_, err := qm.channel.QueueDeclare(
		qm.queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", qm.queueName, err)
	}

	log.Ctx(ctx).Info().Str("queue", qm.queueName).Msg("Event queue declared")
	return nil
}

// PushStakingEvent publishes a staking event as a persistent JSON message.
// Publishes are retried; a final failure only increments the error counter
// since events must never fail an already-committed ledger operation.
func (qm *QueueManager) PushStakingEvent(ctx context.Context, ev *types.StakingEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		metrics.RecordQueueSendError()
		return fmt.Errorf("failed to marshal staking event: %w", err)
	}

	publish := func() error {
		pubCtx, cancel := context.WithTimeout(ctx, qm.cfg.PublishTimeout)
		defer cancel()

		return qm.channel.PublishWithContext(
			pubCtx,
			"",           // default exchange
			qm.queueName, // routing key
			false,        // mandatory
			false,        // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    ev.EventID,
				Body:         body,
			},
		)
	}

	err = retry.Do(
		publish,
		retry.Attempts(qm.cfg.MaxRetryTimes),
		retry.Delay(qm.cfg.RetryInterval),
		retry.Context(ctx),
	)
	if err != nil {
		metrics.RecordQueueSendError()
		return fmt.Errorf("failed to publish staking event %s: %w", ev.EventID, err)
	}

	return nil
}

// Stop gracefully stops the interaction with the queue, ensuring all resources are properly released.
func (qm *QueueManager) Stop() error {
	log.Info().Msg("Shutting down queue manager")

	if err := qm.channel.Close(); err != nil {
		return err
	}
	return qm.conn.Close()
}
