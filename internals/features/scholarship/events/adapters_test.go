package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisNotifierPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "scholarship:events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	appID := uuid.New()
	evt := New(KindStatusChanged, uuid.New(), "submit", time.Now()).ForApplication(appID)
	evt.FromStatus, evt.ToStatus = "draft", "submitted"

	n := RedisNotifier{Client: client, Channel: "scholarship:events"}
	require.NoError(t, n.Notify(ctx, evt))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, appID, *got.ApplicationID)
	assert.Equal(t, "submitted", got.ToStatus)
}

func TestRedisNotifierWithoutClient(t *testing.T) {
	err := RedisNotifier{}.Notify(context.Background(), Event{})
	assert.Error(t, err)
}

func TestRecorderFailures(t *testing.T) {
	r := &Recorder{}
	evt := New(KindLedgerPosted, uuid.New(), "reservation", time.Now())

	require.NoError(t, r.Record(context.Background(), evt))
	r.FailNotify = errors.New("smtp down")
	assert.Error(t, r.Notify(context.Background(), evt))

	assert.Len(t, r.Audited(), 1)
	assert.Empty(t, r.Notified())
	assert.Len(t, r.AuditedKind(KindLedgerPosted), 1)
	assert.Empty(t, r.AuditedKind(KindStatusChanged))
}
