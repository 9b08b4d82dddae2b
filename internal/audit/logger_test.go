package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/powderplans/event-service/internal/audit"
	appCtx "github.com/powderplans/event-service/internal/pkg/context"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*audit.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return audit.New(zerolog.New(&buf)), &buf
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestOutboxMessageSent_RecordsDelivery(t *testing.T) {
	l, buf := captureLogger()

	l.OutboxMessageSent(context.Background(), "msg-42", "notify.rsvp_created")

	rec := decodeRecord(t, buf)
	assert.Equal(t, "outbox_sent", rec["action"])
	assert.Equal(t, "msg-42", rec["message_id"])
	assert.Equal(t, "notify.rsvp_created", rec["routing_key"])
	assert.Equal(t, true, rec["audit"])
}

func TestOutboxMessageDead_RecordsRetries(t *testing.T) {
	l, buf := captureLogger()

	l.OutboxMessageDead(context.Background(), "msg-42", "notify.event_cancelled", 12)

	rec := decodeRecord(t, buf)
	assert.Equal(t, "outbox_dead", rec["action"])
	assert.Equal(t, "notify.event_cancelled", rec["routing_key"])
	assert.Equal(t, float64(12), rec["retries"])
	assert.Equal(t, "error", rec["level"])
}

func TestRSVPSaved_CarriesTraceID(t *testing.T) {
	l, buf := captureLogger()
	ctx := appCtx.WithRequestID(context.Background(), "req-7")

	l.RSVPSaved(ctx, uuid.New(), uuid.New(), "waitlist", true)

	rec := decodeRecord(t, buf)
	assert.Equal(t, "rsvp_saved", rec["action"])
	assert.Equal(t, "req-7", rec["trace_id"])
	assert.Equal(t, true, rec["was_waitlisted"])
}
