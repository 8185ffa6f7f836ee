// Package pubsub publishes run summaries to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

// Notifier implements scraper.Notifier on top of a Pub/Sub topic.
type Notifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// New creates a Pub/Sub client and verifies the topic exists. It
// authenticates using Application Default Credentials.
func New(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*Notifier, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &Notifier{client: client, topic: topic, logger: logger}, nil
}

// NewWithTopic wires an existing client and topic, mainly for tests.
func NewWithTopic(client *pubsub.Client, topic *pubsub.Topic, logger *zap.Logger) *Notifier {
	return &Notifier{client: client, topic: topic, logger: logger}
}

// Notify publishes the summary as a JSON message. It waits for the
// batcher to confirm the send; canceling ctx before that would drop
// the message silently.
func (n *Notifier) Notify(ctx context.Context, summary scraper.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event":  summary.Event,
			"job_id": summary.JobID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}

	return nil
}

// Close stops the topic's publish goroutines and closes the client.
func (n *Notifier) Close() error {
	n.topic.Stop()
	if err := n.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
