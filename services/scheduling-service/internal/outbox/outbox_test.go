package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/libs/kafkax"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func outboxColumns() []string {
	return []string{"id", "event_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}
}

func TestAppointmentEventPayload(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := model.Appointment{ID: "a-1", ClientID: "c-1", OperatorID: "op-1", StartTime: start, EndTime: start.Add(30 * time.Minute), Status: model.StatusCancelled, Version: 2}

	evt, err := AppointmentStatusChanged(a, model.StatusPending, model.RoleClient, start)
	require.NoError(t, err)
	assert.Equal(t, TypeAppointmentStatusChanged, evt.EventType)
	assert.Equal(t, "a-1", evt.AggregateID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(evt.Payload, &body))
	assert.Equal(t, "cancelled", body["status"])
	assert.Equal(t, "pending", body["previous_status"])
	assert.Equal(t, "client", body["changed_by"])
}

func TestPublishBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(outboxColumns()).
			AddRow(int64(7), "evt-7", AggregateAppointment, "a-1", TypeAppointmentCreated, []byte(`{"appointment_id":"a-1"}`), "", "", time.Now()))
	mock.ExpectExec("UPDATE outbox_events").
		WithArgs([]int64{7}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	var published int
	p := NewPublisher(mock, NewRepository(), slog.Default(), PublisherConfig{
		Brokers:   "kafka:9092",
		OnPublish: func(n int) { published += n },
	})
	w := &recordingWriter{}

	n, err := p.PublishBatch(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, published)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, TypeAppointmentCreated, w.msgs[0].Topic)
	assert.Equal(t, "a-1", string(w.msgs[0].Key))
	assert.Equal(t, "evt-7", kafkax.HeaderValue(w.msgs[0].Headers, kafkax.HeaderEventID))
	assert.Equal(t, "a-1", kafkax.HeaderValue(w.msgs[0].Headers, kafkax.HeaderAggregateID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishBatchKeepsRowsWhenKafkaFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(outboxColumns()).
			AddRow(int64(8), "evt-8", AggregateAppointment, "a-2", TypeAppointmentStatusChanged, []byte(`{}`), "", "", time.Now()))
	mock.ExpectRollback()

	p := NewPublisher(mock, NewRepository(), slog.Default(), PublisherConfig{Brokers: "kafka:9092"})
	_, err = p.PublishBatch(context.Background(), &recordingWriter{err: errors.New("broker down")})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishBatchEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").WithArgs(50).WillReturnRows(pgxmock.NewRows(outboxColumns()))
	mock.ExpectCommit()

	p := NewPublisher(mock, NewRepository(), slog.Default(), PublisherConfig{})
	n, err := p.PublishBatch(context.Background(), &recordingWriter{})
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
