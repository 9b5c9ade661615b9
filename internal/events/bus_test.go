package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/billing-xendit/internal/events"
)

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type captureWriter struct {
	msgs     []kafka.Message
	deadline time.Time
	block    bool
}

func (c *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	c.deadline, _ = ctx.Deadline()
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestPublishFansOutEvent(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first := &captureNotifier{}
	second := &captureNotifier{}
	bus := events.Bus{
		Notifiers: []events.Notifier{first, nil, second},
		Now:       func() time.Time { return fixed },
	}

	event, err := bus.Publish(context.Background(), events.TopicInvoicePaid, "42", map[string]any{"invoiceId": "42"})
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)
	require.Equal(t, fixed, event.OccurredAt)
	require.JSONEq(t, `{"invoiceId":"42"}`, string(event.Payload))
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.Equal(t, event.ID, second.events[0].ID)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	failing := &captureNotifier{err: errors.New("boom")}
	after := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{failing, after}}

	err := bus.Emit(context.Background(), events.TopicPaymentFailed, "7", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
	require.Len(t, after.events, 1)
	require.JSONEq(t, `{}`, string(after.events[0].Payload))
}

func TestEmitRejectsInvalidInput(t *testing.T) {
	bus := events.Bus{}
	require.Error(t, bus.Emit(context.Background(), " ", "1", nil))
	require.Error(t, bus.Emit(context.Background(), events.TopicInvoicePaid, "", nil))
	require.Error(t, bus.Emit(context.Background(), events.TopicInvoicePaid, "1", "not json"))
}

func TestTopicForStatus(t *testing.T) {
	require.Equal(t, events.TopicInvoicePaid, events.TopicForStatus("complete"))
	require.Equal(t, events.TopicPaymentPending, events.TopicForStatus("pending"))
	require.Equal(t, events.TopicPaymentExpired, events.TopicForStatus("expired"))
	require.Equal(t, events.TopicPaymentFailed, events.TopicForStatus("failed"))
	require.Equal(t, events.TopicPaymentUnknown, events.TopicForStatus("whatever"))
}

func TestKafkaNotifierKeysByInvoice(t *testing.T) {
	writer := &captureWriter{}
	bus := events.Bus{Notifiers: []events.Notifier{events.KafkaNotifier{Writer: writer}}}

	event, err := bus.Publish(context.Background(), events.TopicInvoicePaid, "99", map[string]any{"amount": "150.00"})
	require.NoError(t, err)
	require.Len(t, writer.msgs, 1)
	msg := writer.msgs[0]
	require.Equal(t, "99", string(msg.Key))
	require.Equal(t, events.TopicInvoicePaid, string(msg.Headers[0].Value))

	var decoded events.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, event.ID, decoded.ID)
	require.JSONEq(t, `{"amount":"150.00"}`, string(decoded.Payload))
}

func TestKafkaNotifierBoundsPublish(t *testing.T) {
	writer := &captureWriter{block: true}
	notifier := events.KafkaNotifier{Writer: writer, Timeout: 20 * time.Millisecond}

	start := time.Now()
	err := notifier.Notify(context.Background(), events.Event{ID: "e1", Topic: events.TopicInvoicePaid, Key: "99", Payload: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
	require.False(t, writer.deadline.IsZero())
}

func TestKafkaWriterSettings(t *testing.T) {
	w := events.NewKafkaWriter([]string{"localhost:9092"}, "billing.payments")
	defer func() { _ = w.Close() }()
	require.Equal(t, "billing.payments", w.Topic)
	require.Equal(t, 10*time.Millisecond, w.BatchTimeout)
	require.Equal(t, 3, w.MaxAttempts)
}
