// Package heartbeat publishes the mesh report to Redis so other tools can
// follow a node without polling its HTTP API.
//
//	dashsrv                                      Redis
//	┌─────────────┐  PUBLISH dashsrv:status:X    ┌─────────────┐
//	│   Redis     │ ───────────────────────────▶ │  Pub/Sub    │ → live viewers
//	│  Publisher  │                              └─────────────┘
//	│   (30s)     │  XADD dashsrv:status:stream  ┌─────────────┐
//	│             │ ───────────────────────────▶ │  Streams    │ → archivers
//	└─────────────┘                              └─────────────┘
package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/norelabs/dashsrv/internal/status"
)

const (
	// DefaultInterval is the time between publishes.
	DefaultInterval = 30 * time.Second
	// StreamName is the stream every node appends to.
	StreamName = "dashsrv:status:stream"
	// ChannelPrefix is followed by the node name to form the Pub/Sub channel.
	ChannelPrefix = "dashsrv:status:"

	streamMaxLen  = 10000
	messageFormat = "1.0"
)

// nodeNamePattern keeps node names safe to embed in Redis key names.
var nodeNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// ReportSource supplies the report to publish.
type ReportSource interface {
	GetAggregateReport() status.Cached[status.AggregateReport]
}

// StatusMessage is the payload published to Redis.
type StatusMessage struct {
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Node      string                 `json:"node"`
	Report    status.AggregateReport `json:"report"`
}

// RedisPublisher publishes the mesh report on an interval.
type RedisPublisher struct {
	client   *redis.Client
	redisURL string // for debug logging
	node     string
	interval time.Duration
	source   ReportSource

	pubSubChannel string
	streamName    string

	debugFunc func(format string, args ...any)
	warnFunc  func(format string, args ...any)
}

// RedisPublisherConfig holds configuration for the Redis publisher.
type RedisPublisherConfig struct {
	// RedisURL is the Redis connection URL
	RedisURL string

	// RedisPassword overrides the password in the URL (optional)
	RedisPassword string

	// NodeName names this instance in channel names and messages
	NodeName string

	// Interval is the time between publishes (default: 30s)
	Interval time.Duration

	// Channel overrides the Pub/Sub channel. If empty, uses
	// "dashsrv:status:{NodeName}"
	Channel string

	// DebugFunc is an optional callback for debug logging
	DebugFunc func(format string, args ...any)

	// WarnFunc receives publish failures (default: printed to stdout)
	WarnFunc func(format string, args ...any)
}

// NewRedisPublisher creates a new Redis publisher.
func NewRedisPublisher(cfg RedisPublisherConfig, source ReportSource) (*RedisPublisher, error) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if !nodeNamePattern.MatchString(cfg.NodeName) {
		return nil, fmt.Errorf("invalid node name %q: must be 1-64 alphanumeric characters, hyphens, underscores, or dots", cfg.NodeName)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}

	channel := cfg.Channel
	if channel == "" {
		channel = ChannelPrefix + cfg.NodeName
	}

	warn := cfg.WarnFunc
	if warn == nil {
		warn = func(format string, args ...any) {
			fmt.Printf("   - Warning: "+format+"\n", args...)
		}
	}

	return &RedisPublisher{
		client:        redis.NewClient(opts),
		redisURL:      cfg.RedisURL,
		node:          cfg.NodeName,
		interval:      cfg.Interval,
		source:        source,
		pubSubChannel: channel,
		streamName:    StreamName,
		debugFunc:     cfg.DebugFunc,
		warnFunc:      warn,
	}, nil
}

func (p *RedisPublisher) debug(format string, args ...any) {
	if p.debugFunc != nil {
		p.debugFunc(format, args...)
	}
}

// Start publishes immediately and then every interval until ctx is cancelled.
// Publish failures are reported and never stop the loop.
func (p *RedisPublisher) Start(ctx context.Context) error {
	p.debug("starting Redis publisher")
	p.debug("redis: %s", p.redisURL)
	p.debug("pub/sub channel: %s", p.pubSubChannel)
	p.debug("stream: %s", p.streamName)
	p.debug("interval: %s", p.interval)

	if err := p.client.Ping(ctx).Err(); err != nil {
		p.warnFunc("Redis ping failed, will keep retrying: %v", err)
	}

	if err := p.PublishOnce(ctx); err != nil {
		p.warnFunc("initial Redis status publish failed: %v", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.debug("context cancelled, stopping publisher")
			return nil
		case <-ticker.C:
			if err := p.PublishOnce(ctx); err != nil {
				p.warnFunc("Redis status publish failed: %v", err)
			}
		}
	}
}

// PublishOnce sends the current report to Pub/Sub and the stream.
func (p *RedisPublisher) PublishOnce(ctx context.Context) error {
	report := p.source.GetAggregateReport()

	msg := StatusMessage{
		Version:   messageFormat,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Node:      p.node,
		Report:    report.Value,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	p.debug("publishing %d bytes to %s (cached=%v)", len(data), p.pubSubChannel, report.Cached)

	if err := p.client.Publish(ctx, p.pubSubChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Pub/Sub: %w", err)
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamName,
		Values: map[string]any{
			"node":      p.node,
			"timestamp": msg.Timestamp,
			"payload":   string(data),
		},
		MaxLen: streamMaxLen,
		Approx: true,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// PubSubChannel returns the Pub/Sub channel name.
func (p *RedisPublisher) PubSubChannel() string {
	return p.pubSubChannel
}

// StreamName returns the stream name.
func (p *RedisPublisher) StreamName() string {
	return p.streamName
}

// Interval returns the publish interval.
func (p *RedisPublisher) Interval() time.Duration {
	return p.interval
}
