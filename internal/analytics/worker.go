package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
)

const analyticsConsumerName = "analytics"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type salesSink interface {
	Write(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

// Worker consumes the orders change feed and ships rows to BigQuery while
// honoring Redis idempotency. Bad messages are acked and logged; transient
// failures nack so Pub/Sub redelivers.
type Worker struct {
	subscription *gcppubsub.Subscriber
	sink         salesSink
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewWorker creates a sales analytics worker.
func NewWorker(subscription *gcppubsub.Subscriber, sink salesSink, manager idempotencyChecker, logg *logger.Logger) (*Worker, error) {
	if subscription == nil {
		return nil, errors.New("orders subscription is required")
	}
	if sink == nil {
		return nil, errors.New("sales sink is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Worker{
		subscription: subscription,
		sink:         sink,
		manager:      manager,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes messages until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return w.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if w.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (w *Worker) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	logCtx := w.logg.WithField(ctx, "message_id", msg.ID)

	eventType, envelope, err := decodeMessage(msg)
	if err != nil {
		// Malformed messages never become valid; ack them away.
		w.logg.Warn(w.logg.WithField(logCtx, "error", err.Error()), "invalid sales event message")
		return processResult{}
	}
	logCtx = w.logg.WithFields(logCtx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": string(eventType),
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		w.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}

	already, err := w.manager.CheckAndMarkProcessed(logCtx, analyticsConsumerName, eventID)
	if err != nil {
		w.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		w.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	if err := w.sink.Write(logCtx, eventType, envelope); err != nil {
		w.logg.Error(logCtx, "sales event write failed", err)
		_ = w.manager.Delete(logCtx, analyticsConsumerName, eventID)
		return processResult{nack: true}
	}

	w.logg.Info(logCtx, "sales event ingested")
	return processResult{}
}

func decodeMessage(msg *gcppubsub.Message) (enums.OutboxEventType, outbox.PayloadEnvelope, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return "", envelope, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		return "", envelope, fmt.Errorf("event_type: %w", err)
	}

	if strings.TrimSpace(envelope.EventID) == "" {
		envelope.EventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if envelope.EventID == "" {
		return "", envelope, errors.New("event_id missing")
	}
	return eventType, envelope, nil
}
