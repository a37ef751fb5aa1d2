// Package notify delivers best-effort engine notifications. Publishing never
// affects the schedule: the engine logs a failed publish and moves on.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Kind names a notification.
type Kind string

const (
	CommandProcessed Kind = "command-processed"
	ChecksumComputed Kind = "checksum-computed"
)

// Notification is one message about a processed command.
type Notification struct {
	Kind        Kind   `json:"kind"`
	Scenario    string `json:"scenario"`
	Seq         uint64 `json:"seq"`
	Command     string `json:"command,omitempty"`
	Clock       int64  `json:"clock"`
	Checksum    int64  `json:"checksum,omitempty"`
	Unscheduled int    `json:"unscheduled,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Publisher delivers notifications.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Publish(context.Context, Notification) error { return nil }

// LogPublisher writes notifications to a logrus logger at info level.
type LogPublisher struct {
	Logger *logrus.Logger // nil uses the standard logger
}

func (p LogPublisher) Publish(_ context.Context, n Notification) error {
	logger := p.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"kind":     n.Kind,
		"scenario": n.Scenario,
		"seq":      n.Seq,
		"clock":    n.Clock,
		"checksum": n.Checksum,
	}).Info("notification")
	return nil
}

// redisClient is the part of *redis.Client the publisher needs.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON notifications on a Redis channel, one channel
// per scenario: "<Prefix>:<scenario>".
type RedisPublisher struct {
	client redisClient
	Prefix string
}

// NewRedisPublisher wraps a go-redis client.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "schedsim"
	}
	return &RedisPublisher{client: client, Prefix: prefix}
}

// Channel returns the channel notifications of scenario go to.
func (p *RedisPublisher) Channel(scenario string) string {
	return fmt.Sprintf("%s:%s", p.Prefix, scenario)
}

func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	if p.client == nil {
		return errors.New("notify: redis client not initialized")
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.Channel(n.Scenario), data).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", n.Kind, err)
	}
	return nil
}

// Fanout publishes to every publisher in order and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, n Notification) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
