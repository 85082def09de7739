// Package pubsub implements a Google Cloud Pub/Sub publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/hash/sha256"
	"github.com/JakeFAU/ntsb-publisher/internal/storage"
)

// DefaultDescriptionObject names the blob holding the feed description.
const DefaultDescriptionObject = "description.txt"

// Config controls Publisher behavior.
type Config struct {
	// DescriptionObject names the blob holding the feed description.
	DescriptionObject string
}

// Message is the JSON payload published for each document.
type Message struct {
	EventID    string  `json:"event_id"`
	NTSBNumber *string `json:"ntsb_no"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
}

// Publisher publishes documents to a Pub/Sub topic and keeps the feed
// description in a blob store.
type Publisher struct {
	topic        *pubsub.Topic
	descriptions storage.BlobStore
	cfg          Config
	digest       sha256.Digester
	client       *pubsub.Client
}

var _ feed.Publisher = (*Publisher)(nil)

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic, descriptions storage.BlobStore, cfg Config) (*Publisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	if descriptions == nil {
		return nil, fmt.Errorf("description store is required")
	}
	if strings.TrimSpace(cfg.DescriptionObject) == "" {
		cfg.DescriptionObject = DefaultDescriptionObject
	}
	return &Publisher{topic: topic, descriptions: descriptions, cfg: cfg, digest: sha256.New()}, nil
}

// Dial creates a client for projectID and binds the publisher to topicID,
// verifying the topic exists. The returned Publisher owns the client.
func Dial(
	ctx context.Context,
	projectID, topicID string,
	descriptions storage.BlobStore,
	cfg Config,
	opts ...option.ClientOption,
) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	ok, err := topic.Exists(ctx)
	if err == nil && !ok {
		err = fmt.Errorf("topic %q does not exist", topicID)
	}
	if err != nil {
		return nil, errors.Join(fmt.Errorf("check topic: %w", err), client.Close())
	}
	p, err := New(topic, descriptions, cfg)
	if err != nil {
		return nil, errors.Join(err, client.Close())
	}
	p.client = client
	return p, nil
}

// Close flushes pending publishes and releases the client when owned.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// Submit marshals doc to JSON, publishes it, and returns the server message ID.
func (p *Publisher) Submit(ctx context.Context, doc feed.Document) (string, error) {
	data, err := json.Marshal(Message{
		EventID:    doc.EventID,
		NTSBNumber: doc.NTSBNumber,
		Title:      doc.Title,
		Body:       doc.Body,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":    doc.EventID,
			"body_sha256": p.digest.Digest(doc.Body),
		},
	}
	if doc.NTSBNumber != nil {
		msg.Attributes["ntsb_no"] = *doc.NTSBNumber
	}

	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Description returns the current feed description, or "" when none is stored.
func (p *Publisher) Description(ctx context.Context) (string, error) {
	data, err := p.descriptions.Get(ctx, p.cfg.DescriptionObject)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read description: %w", err)
	}
	return string(data), nil
}

// SetDescription replaces the feed description.
func (p *Publisher) SetDescription(ctx context.Context, text string) error {
	if err := p.descriptions.Put(ctx, p.cfg.DescriptionObject, []byte(text)); err != nil {
		return fmt.Errorf("write description: %w", err)
	}
	return nil
}
