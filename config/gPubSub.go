package config

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func getPubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

// GetPubSubClient returns a shared Pub/Sub client.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func GetPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Uses Application Default Credentials (service account or GOOGLE_APPLICATION_CREDENTIALS).
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}
	pubsubClient = c
	return pubsubClient, nil
}

// DomainEventTopic returns the topic domain events are published to.
// Empty means Pub/Sub publishing is disabled (local/dev).
func DomainEventTopic() string {
	return os.Getenv("DOMAIN_EVENT_TOPIC")
}

// PublishDomainEvent publishes a single serialized domain event, waits for the
// server ack and returns the Pub/Sub message id.
func PublishDomainEvent(ctx context.Context, payload []byte, attrs map[string]string) (string, error) {
	topicName := DomainEventTopic()
	if topicName == "" {
		return "", errors.New("DOMAIN_EVENT_TOPIC not set")
	}
	client, err := GetPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	topic := client.Topic(topicName)
	defer topic.Stop()

	pubCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res := topic.Publish(pubCtx, &pubsub.Message{
		Data:       payload,
		Attributes: attrs,
	})
	return res.Get(pubCtx)
}
