package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
)

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// SalesWriter flattens order change-feed events into the sales_events
// BigQuery table.
type SalesWriter struct {
	client tableInserter
	table  string
	logg   *logger.Logger
}

// NewSalesWriter builds a writer for the configured sales table.
func NewSalesWriter(client tableInserter, table string, logg *logger.Logger) (*SalesWriter, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("bigquery table name required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &SalesWriter{
		client: client,
		table:  strings.TrimSpace(table),
		logg:   logg,
	}, nil
}

// Handles reports whether the writer ingests the event type.
func (w *SalesWriter) Handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderRecorded, enums.EventOrderVoided:
		return true
	default:
		return false
	}
}

// Write inserts one sales event row. Unsupported event types are ignored.
func (w *SalesWriter) Write(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	if !w.Handles(eventType) {
		w.logg.Info(
			w.logg.WithField(ctx, "event_type", string(eventType)),
			"event not handled by sales writer",
		)
		return nil
	}
	row, err := buildSalesRow(eventType, envelope)
	if err != nil {
		return err
	}
	if err := w.client.InsertRows(ctx, w.table, []any{row}); err != nil {
		return fmt.Errorf("insert sales row: %w", err)
	}
	return nil
}

type salesEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	OrderID       string             `bigquery:"order_id"`
	OwnerUserID   string             `bigquery:"owner_user_id"`
	MarketEventID *string            `bigquery:"market_event_id"`
	PaymentMethod *string            `bigquery:"payment_method"`
	TotalCents    *int               `bigquery:"total_cents"`
	LineCount     *int               `bigquery:"line_count"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

func buildSalesRow(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*salesEventRow, error) {
	if envelope.EventID == "" {
		return nil, fmt.Errorf("event id missing")
	}

	row := &salesEventRow{
		EventID:    envelope.EventID,
		EventType:  string(eventType),
		OccurredAt: envelope.OccurredAt,
	}
	if len(envelope.Data) > 0 {
		row.Payload = cbigquery.NullJSON{Valid: true, JSONVal: string(envelope.Data)}
	}

	switch eventType {
	case enums.EventOrderRecorded:
		var recorded payloads.OrderRecordedEvent
		if err := json.Unmarshal(envelope.Data, &recorded); err != nil {
			return nil, fmt.Errorf("decode order recorded payload: %w", err)
		}
		row.OrderID = recorded.OrderID.String()
		row.OwnerUserID = recorded.OwnerUserID.String()
		if recorded.EventID != nil {
			id := recorded.EventID.String()
			row.MarketEventID = &id
		}
		method := recorded.PaymentMethod
		row.PaymentMethod = &method
		total := recorded.TotalCents
		row.TotalCents = &total
		lines := len(recorded.Lines)
		row.LineCount = &lines
	case enums.EventOrderVoided:
		var voided payloads.OrderVoidedEvent
		if err := json.Unmarshal(envelope.Data, &voided); err != nil {
			return nil, fmt.Errorf("decode order voided payload: %w", err)
		}
		row.OrderID = voided.OrderID.String()
		row.OwnerUserID = voided.OwnerUserID.String()
	default:
		return nil, fmt.Errorf("unsupported event type %s", eventType)
	}
	return row, nil
}
