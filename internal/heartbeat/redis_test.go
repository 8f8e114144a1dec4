package heartbeat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/norelabs/dashsrv/internal/status"
)

type stubSource struct {
	mu    sync.Mutex
	calls int
}

func (s *stubSource) GetAggregateReport() status.Cached[status.AggregateReport] {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return status.Cached[status.AggregateReport]{
		Value: status.AggregateReport{Nodes: []status.NodeStatus{
			{Name: "nas", Online: true, Self: true, IPs: []string{"192.168.0.10"}, CPU: 4.5},
			{Name: "media", Online: false, IPs: []string{"192.168.1.47"}, Error: "peer unreachable"},
		}},
		FetchedAtMS: 1,
	}
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestNewRedisPublisher(t *testing.T) {
	tests := []struct {
		name        string
		config      RedisPublisherConfig
		wantErr     bool
		wantChannel string
	}{
		{
			name:        "valid config",
			config:      RedisPublisherConfig{RedisURL: "redis://localhost:6379", NodeName: "nas"},
			wantChannel: "dashsrv:status:nas",
		},
		{
			name:        "channel override",
			config:      RedisPublisherConfig{RedisURL: "redis://localhost:6379", NodeName: "nas", Channel: "debug"},
			wantChannel: "debug",
		},
		{
			name:    "invalid redis URL",
			config:  RedisPublisherConfig{RedisURL: "not-a-valid-url", NodeName: "nas"},
			wantErr: true,
		},
		{
			name:    "node name with spaces",
			config:  RedisPublisherConfig{RedisURL: "redis://localhost:6379", NodeName: "my nas"},
			wantErr: true,
		},
		{
			name:    "empty node name",
			config:  RedisPublisherConfig{RedisURL: "redis://localhost:6379"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := NewRedisPublisher(tt.config, &stubSource{})
			if tt.wantErr {
				if err == nil {
					t.Error("NewRedisPublisher() should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRedisPublisher() error = %v, want nil", err)
			}
			defer pub.Close()

			if pub.PubSubChannel() != tt.wantChannel {
				t.Errorf("PubSubChannel() = %v, want %v", pub.PubSubChannel(), tt.wantChannel)
			}
			if pub.StreamName() != StreamName {
				t.Errorf("StreamName() = %v, want %v", pub.StreamName(), StreamName)
			}
			if pub.Interval() != DefaultInterval {
				t.Errorf("Interval() = %v, want %v", pub.Interval(), DefaultInterval)
			}
		})
	}
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestPublishOnce(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	ctx := context.Background()

	pub, err := NewRedisPublisher(RedisPublisherConfig{
		RedisURL: "redis://" + mr.Addr(),
		NodeName: "nas",
	}, &stubSource{})
	if err != nil {
		t.Fatalf("NewRedisPublisher: %v", err)
	}
	defer pub.Close()

	sub := rdb.Subscribe(ctx, "dashsrv:status:nas")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := pub.PublishOnce(ctx); err != nil {
		t.Fatalf("PublishOnce: %v", err)
	}

	select {
	case m := <-sub.Channel():
		var msg StatusMessage
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			t.Fatalf("unmarshal published message: %v", err)
		}
		if msg.Node != "nas" || len(msg.Report.Nodes) != 2 {
			t.Errorf("published message = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message on the Pub/Sub channel")
	}

	entries, err := rdb.XRange(ctx, StreamName, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("stream length = %d, want 1", len(entries))
	}
	if entries[0].Values["node"] != "nas" {
		t.Errorf("stream node = %v, want nas", entries[0].Values["node"])
	}
	if _, ok := entries[0].Values["payload"]; !ok {
		t.Error("stream entry has no payload")
	}
}

func TestStartPublishesUntilCancelled(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	source := &stubSource{}

	pub, err := NewRedisPublisher(RedisPublisherConfig{
		RedisURL: "redis://" + mr.Addr(),
		NodeName: "nas",
		Interval: 20 * time.Millisecond,
	}, source)
	if err != nil {
		t.Fatalf("NewRedisPublisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := pub.Start(ctx); err != nil {
		t.Errorf("Start() error = %v, want nil", err)
	}
	if source.Calls() < 2 {
		t.Errorf("report fetched %d times, want at least 2", source.Calls())
	}

	n, err := rdb.XLen(context.Background(), StreamName).Result()
	if err != nil {
		t.Fatalf("XLen: %v", err)
	}
	if n < 2 {
		t.Errorf("stream length = %d, want at least 2", n)
	}
}

func TestStartSurvivesRedisOutage(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	var warnings int
	var mu sync.Mutex
	pub, err := NewRedisPublisher(RedisPublisherConfig{
		RedisURL: "redis://" + addr,
		NodeName: "nas",
		Interval: 20 * time.Millisecond,
		WarnFunc: func(string, ...any) {
			mu.Lock()
			warnings++
			mu.Unlock()
		},
	}, &stubSource{})
	if err != nil {
		t.Fatalf("NewRedisPublisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := pub.Start(ctx); err != nil {
		t.Errorf("Start() error = %v, want nil", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if warnings == 0 {
		t.Error("no warnings reported while Redis was down")
	}
}
