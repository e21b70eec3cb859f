package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobInfrastructureRefresh = "infrastructure_refresh"
	JobHealthCheck           = "health_check"
)

var errUnknownJob = errors.New("unknown job type")

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// JobMessage is the payload of a worker message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A refresh fans out to the geodata service; process one at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		refreshJob:       cfg.RefreshJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	if ack := dispatch(ctx, h.refreshJob, msg.Data, logger); ack {
		msg.Ack()
		return
	}
	msg.Nack()
}

// dispatch runs the job a message asks for and reports whether the message
// should be acknowledged. Malformed and unknown messages are acknowledged so
// they are not redelivered; failed and skipped runs are retried.
func dispatch(ctx context.Context, job *RefreshJob, data []byte, logger zerolog.Logger) bool {
	start := time.Now()

	var m JobMessage
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return true
	}

	var err error
	switch m.JobType {
	case JobInfrastructureRefresh:
		_, err = job.Run(ctx)
	case JobHealthCheck:
		err = job.HealthCheck(ctx)
	default:
		err = errUnknownJob
	}

	switch {
	case errors.Is(err, errUnknownJob):
		logger.Warn().Str("job_type", m.JobType).Msg("unknown job type")
		return true
	case err != nil:
		logger.Error().Err(err).Str("job_type", m.JobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", m.JobType).
		Dur("duration", time.Since(start)).
		Msg("job completed successfully")
	return true
}
