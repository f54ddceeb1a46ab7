package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

func TestNotificationServiceSanitizesAndStreamsLocally(t *testing.T) {
	f := newClassroomFixture(t)
	svc := NewNotificationService(f.notifyRepo, NotificationBusConfig{}, testLogger())

	stream, unsubscribe := svc.Subscribe(10, "sse")

	published, err := svc.PublishBatch(context.Background(), []models.Notification{
		{RecipientID: 10, RecipientRole: "student", Type: models.NotificationTaskAssigned, Title: "<i>New</i> task", Message: "Essay <script>x</script>due", RelatedID: 1},
		{RecipientID: 0, Type: models.NotificationTaskAssigned, Title: "nobody"},
	})
	require.NoError(t, err)
	require.Len(t, published, 1)
	require.Equal(t, "New task", published[0].Title)
	require.Equal(t, "Essay due", published[0].Message)

	select {
	case got := <-stream:
		require.Equal(t, published[0].ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected local delivery")
	}

	unsubscribe()
	unsubscribe()
	_, open := <-stream
	require.False(t, open)
}

func TestNotificationServiceRelaysAcrossNodesViaRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newClassroomFixture(t)
	bus := NotificationBusConfig{Redis: client, ChannelBase: "classroom"}
	publisher := NewNotificationService(f.notifyRepo, bus, testLogger())
	listener := NewNotificationService(f.notifyRepo, bus, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener.Start(ctx)

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("classroom:notifications")["classroom:notifications"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	stream, unsubscribe := listener.Subscribe(42, "websocket")
	defer unsubscribe()
	local, unsubscribeLocal := publisher.Subscribe(42, "websocket")
	defer unsubscribeLocal()

	_, err := publisher.PublishBatch(ctx, []models.Notification{
		{RecipientID: 42, RecipientRole: "teacher", Type: models.NotificationSubmissionReceived, Title: "New submission", Message: "A student submitted work", RelatedID: 7},
	})
	require.NoError(t, err)

	select {
	case got := <-stream:
		require.Equal(t, uint(42), got.RecipientID)
		require.Equal(t, string(models.NotificationSubmissionReceived), got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected relayed notification")
	}

	select {
	case <-local:
	case <-time.After(time.Second):
		t.Fatal("expected publisher-local delivery")
	}
	select {
	case extra := <-local:
		t.Fatalf("publisher delivered its own event twice: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}
