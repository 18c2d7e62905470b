package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingAck captures what the consumer did with a delivery.
type recordingAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (r *recordingAck) Ack(tag uint64, multiple bool) error {
	r.acked = true
	return nil
}

func (r *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	r.nacked = true
	r.requeue = requeue
	return nil
}

func (r *recordingAck) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func delivery(body string) (amqp.Delivery, *recordingAck) {
	ack := &recordingAck{}
	return amqp.Delivery{Acknowledger: ack, Body: []byte(body)}, ack
}

func TestRefreshMessage_RoundTrip(t *testing.T) {
	job := &domain.RefreshJob{ID: "job-1", Year: 2024, RequestedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

	body, err := newRefreshMessage(job).ToJSON()
	require.NoError(t, err)

	msg, err := RefreshMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, job, msg.Job())
}

func TestRefreshMessageFromJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing job id", `{"year":2024}`},
		{"year out of range", `{"job_id":"x","year":12}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RefreshMessageFromJSON([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestProcessDelivery_AcksOnSuccess(t *testing.T) {
	d, ack := delivery(`{"job_id":"j","year":2024}`)
	var got *domain.RefreshJob

	processDelivery(context.Background(), d, func(_ context.Context, job *domain.RefreshJob) error {
		got = job
		return nil
	}, zap.NewNop())

	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year)
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestProcessDelivery_DropsMalformed(t *testing.T) {
	d, ack := delivery(`not json`)
	called := false

	processDelivery(context.Background(), d, func(context.Context, *domain.RefreshJob) error {
		called = true
		return nil
	}, zap.NewNop())

	assert.False(t, called)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestProcessDelivery_RequeuesOnHandlerError(t *testing.T) {
	d, ack := delivery(`{"job_id":"j","year":2024}`)

	processDelivery(context.Background(), d, func(context.Context, *domain.RefreshJob) error {
		return errors.New("db down")
	}, zap.NewNop())

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
	assert.False(t, ack.acked)
}
