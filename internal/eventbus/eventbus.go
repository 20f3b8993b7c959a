// Package eventbus publishes match notifications to NATS JetStream,
// grounded on go-core/natsclient/{client,stream}.go's connect/provision
// pattern, adapted from a single DOMAIN_EVENTS stream to a per-source
// MATCH_EVENTS stream since infosweep has no outbox concept.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// StreamMatchEvents is the durable stream capturing every rule match
	// the matcher emits, fanned out by source under MATCH_EVENTS.<source>.
	StreamMatchEvents   = "MATCH_EVENTS"
	SubjectMatchEvents  = "MATCH_EVENTS.>"
	publishTimeout      = 5 * time.Second
)

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
	Log  *zap.Logger
}

// NewClient connects to NATS and initializes a JetStream context.
func NewClient(url string, logger *zap.Logger) (*Client, error) {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("eventbus: jetstream init: %w", err)
	}

	logger.Info("eventbus: NATS JetStream connected", zap.String("url", url))
	return &Client{Conn: nc, JS: js, Log: logger}, nil
}

// Close drains outstanding publishes/deliveries before closing the
// connection, preferring Drain over Close so an in-flight match
// notification is never silently dropped on shutdown.
func (c *Client) Close() {
	if c.Conn == nil {
		return
	}
	if err := c.Conn.Drain(); err != nil {
		c.Conn.Close()
	}
}

// ProvisionStreams idempotently ensures the MATCH_EVENTS stream exists.
func (c *Client) ProvisionStreams() error {
	_, err := c.JS.StreamInfo(StreamMatchEvents)
	if err == nil {
		c.Log.Info("eventbus: stream already exists", zap.String("stream", StreamMatchEvents))
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("eventbus: stream info: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamMatchEvents,
		Subjects:  []string{SubjectMatchEvents},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}
	if _, err := c.JS.AddStream(cfg); err != nil {
		return fmt.Errorf("eventbus: create stream: %w", err)
	}
	c.Log.Info("eventbus: stream provisioned", zap.String("stream", StreamMatchEvents))
	return nil
}

// matchNotification is the wire payload published for each rule match,
// one per source event per firing rule name set.
type matchNotification struct {
	Source  string   `json:"source"`
	EventID int64    `json:"event_id"`
	Rules   []string `json:"rules"`
}

// NotifyMatch publishes a match notification to MATCH_EVENTS.<source>,
// implementing sink.Notifier so the sink loader can fan matches out to
// downstream consumers without depending on eventbus directly.
func (c *Client) NotifyMatch(ctx context.Context, source string, eventID int64, rules []string) error {
	payload, err := json.Marshal(matchNotification{Source: source, EventID: eventID, Rules: rules})
	if err != nil {
		return fmt.Errorf("eventbus: marshal: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	subject := fmt.Sprintf("%s.%s", StreamMatchEvents, source)
	if _, err := c.JS.Publish(subject, payload, nats.Context(pctx)); err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", subject, err)
	}
	return nil
}
