package analytics

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
)

type stubInserter struct {
	table string
	rows  []any
	err   error
}

func (s *stubInserter) InsertRows(ctx context.Context, table string, rows []any) error {
	s.table = table
	s.rows = append(s.rows, rows...)
	return s.err
}

func analyticsTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func recordedEnvelope(t *testing.T, payload payloads.OrderRecordedEvent) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
		Data:       data,
	}
}

func TestWriteOrderRecordedRow(t *testing.T) {
	inserter := &stubInserter{}
	writer, err := NewSalesWriter(inserter, "sales_events", analyticsTestLogger())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	orderID := uuid.New()
	ownerID := uuid.New()
	marketEventID := uuid.New()
	envelope := recordedEnvelope(t, payloads.OrderRecordedEvent{
		OrderID:       orderID,
		OwnerUserID:   ownerID,
		EventID:       &marketEventID,
		PaymentMethod: "cash",
		TotalCents:    1500,
		Lines: []payloads.OrderLineData{
			{Name: "Mug", Quantity: 2, SubtotalCents: 1500},
		},
	})

	if err := writer.Write(context.Background(), enums.EventOrderRecorded, envelope); err != nil {
		t.Fatalf("write: %v", err)
	}
	if inserter.table != "sales_events" || len(inserter.rows) != 1 {
		t.Fatalf("expected one row in sales_events, got %d in %q", len(inserter.rows), inserter.table)
	}
	row := inserter.rows[0].(*salesEventRow)
	if row.OrderID != orderID.String() || row.OwnerUserID != ownerID.String() {
		t.Fatalf("unexpected ids %s/%s", row.OrderID, row.OwnerUserID)
	}
	if row.TotalCents == nil || *row.TotalCents != 1500 {
		t.Fatalf("unexpected total %v", row.TotalCents)
	}
	if row.LineCount == nil || *row.LineCount != 1 {
		t.Fatalf("unexpected line count %v", row.LineCount)
	}
	if row.MarketEventID == nil || *row.MarketEventID != marketEventID.String() {
		t.Fatalf("unexpected market event %v", row.MarketEventID)
	}
	if !row.Payload.Valid {
		t.Fatal("expected payload json attached")
	}
}

func TestWriteOrderVoidedRow(t *testing.T) {
	inserter := &stubInserter{}
	writer, err := NewSalesWriter(inserter, "sales_events", analyticsTestLogger())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	payload := payloads.OrderVoidedEvent{OrderID: uuid.New(), OwnerUserID: uuid.New()}
	data, _ := json.Marshal(payload)
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}

	if err := writer.Write(context.Background(), enums.EventOrderVoided, envelope); err != nil {
		t.Fatalf("write: %v", err)
	}
	row := inserter.rows[0].(*salesEventRow)
	if row.EventType != string(enums.EventOrderVoided) {
		t.Fatalf("unexpected event type %s", row.EventType)
	}
	if row.TotalCents != nil {
		t.Fatal("voided rows carry no total")
	}
}

func TestWriteIgnoresUnrelatedEvents(t *testing.T) {
	inserter := &stubInserter{}
	writer, err := NewSalesWriter(inserter, "sales_events", analyticsTestLogger())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	envelope := outbox.PayloadEnvelope{EventID: uuid.NewString()}
	if err := writer.Write(context.Background(), enums.EventItemInserted, envelope); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(inserter.rows) != 0 {
		t.Fatal("non-order events must not produce rows")
	}
}

func TestWriteRejectsMissingEventID(t *testing.T) {
	inserter := &stubInserter{}
	writer, err := NewSalesWriter(inserter, "sales_events", analyticsTestLogger())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	if err := writer.Write(context.Background(), enums.EventOrderRecorded, outbox.PayloadEnvelope{}); err == nil {
		t.Fatal("expected error for missing event id")
	}
}
