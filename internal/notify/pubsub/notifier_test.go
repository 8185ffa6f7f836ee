// Package pubsub_test contains unit tests for the Pub/Sub notifier.
package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jobradar/seek-crawler/internal/notify/pubsub"
	"github.com/jobradar/seek-crawler/internal/scraper"
)

func newTestTopic(t *testing.T, ctx context.Context) (*gpubsub.Client, *gpubsub.Topic) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := gpubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "scrape-events")
	require.NoError(t, err)
	return client, topic
}

func TestNotifierPublishesRunSummary(t *testing.T) {
	ctx := context.Background()
	client, topic := newTestTopic(t, ctx)

	sub, err := client.CreateSubscription(ctx, "sub-id", gpubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	notifier := pubsub.NewWithTopic(client, topic, zap.NewNop())

	summary := scraper.RunSummary{
		Event:       scraper.EventScrapeCompleted,
		JobID:       "job-42",
		Status:      scraper.JobStatusCompleted,
		JobsFound:   10,
		JobsNew:     4,
		CompletedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, notifier.Notify(ctx, summary))

	// Receive the message from the fake server.
	recvCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	c := make(chan *gpubsub.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *gpubsub.Message) {
			c <- msg
			msg.Ack()
			cancel()
		})
	}()

	select {
	case msg := <-c:
		var got scraper.RunSummary
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, summary.JobID, got.JobID)
		assert.Equal(t, summary.JobsNew, got.JobsNew)
		assert.Equal(t, scraper.EventScrapeCompleted, msg.Attributes["event"])
		assert.Equal(t, "job-42", msg.Attributes["job_id"])
	case <-recvCtx.Done():
		t.Fatal("message was not received")
	}
}

func TestNotifierSurfacesCanceledPublish(t *testing.T) {
	client, topic := newTestTopic(t, context.Background())
	notifier := pubsub.NewWithTopic(client, topic, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := notifier.Notify(ctx, scraper.RunSummary{
		Event: scraper.EventScrapeFailed,
		JobID: "job-43",
	})
	require.ErrorContains(t, err, "publish run summary")
}
