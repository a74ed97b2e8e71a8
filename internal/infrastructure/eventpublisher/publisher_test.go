package eventpublisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gotransfer/internal/domain"
)

type stubConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (s *stubConn) Publish(subject string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.subjects = append(s.subjects, subject)
	s.payloads = append(s.payloads, data)
	return nil
}

func testEvent() *domain.Event {
	return &domain.Event{
		ID:         "evt-1",
		Type:       domain.EventTypeTransferCompleted,
		TransferID: "t1",
		Payload: domain.TransferCompletedEvent{
			TransferID:    "t1",
			FromAccountID: "A",
			ToAccountID:   "B",
			Amount:        200,
		}.ToPayload(),
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNATSPublisherPublish(t *testing.T) {
	conn := &stubConn{}
	p := newNATSPublisher(conn, "")

	require.NoError(t, p.Publish(context.Background(), testEvent()))

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "gotransfer.events.transfer.completed", conn.subjects[0])

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	assert.Equal(t, "evt-1", decoded.ID)
	assert.Equal(t, "t1", decoded.TransferID)
	assert.Equal(t, float64(200), decoded.Payload["amount"])
}

func TestNATSPublisherErrors(t *testing.T) {
	boom := errors.New("boom")
	p := newNATSPublisher(&stubConn{err: boom}, "custom.")

	assert.Equal(t, "custom.x", p.Subject("x"))
	assert.ErrorIs(t, p.Publish(context.Background(), testEvent()), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, testEvent()), context.Canceled)

	assert.NoError(t, p.Close())
	assert.NoError(t, p.Ping(context.Background()))
}

func TestNewNATSPublisherConnectFailure(t *testing.T) {
	_, err := NewNATSPublisher(NATSConfig{URL: "nats://127.0.0.1:1", Name: "test", Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))

	require.NoError(t, p.Publish(context.Background(), testEvent()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "transfer.completed", entry["event_type"])
	assert.Equal(t, "t1", entry["transfer_id"])
	assert.Equal(t, "event published", entry["message"])
	payload, ok := entry["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A", payload["from_account_id"])
}
