// Package tui implements "dashsrv watch", a live terminal view of a running
// dashsrv instance.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/norelabs/dashsrv/internal/minecraft"
	"github.com/norelabs/dashsrv/internal/peer"
	"github.com/norelabs/dashsrv/internal/status"
)

// GameServer is the /api/mc document.
type GameServer struct {
	Name    string            `json:"name"`
	Online  bool              `json:"online"`
	IP      string            `json:"ip"`
	Domain  string            `json:"domain"`
	Port    uint16            `json:"port"`
	Error   string            `json:"error"`
	MOTD    string            `json:"motd"`
	Ping    uint64            `json:"ping"`
	Players minecraft.Players `json:"players"`
	Version minecraft.Version `json:"version"`
}

// MediaServer is the /api/jellyfin document.
type MediaServer struct {
	Name       string `json:"name"`
	Online     bool   `json:"online"`
	ServerName string `json:"serverName"`
	Version    string `json:"version"`
	OS         string `json:"os"`
	Error      string `json:"error"`
}

// Snapshot is everything one refresh reads.
type Snapshot struct {
	Nodes []status.NodeStatus

	// Game and Media are nil when the instance has none configured or the
	// request failed.
	Game  *GameServer
	Media *MediaServer

	LastUpdate time.Time
}

// Fetcher reads a Snapshot from a dashsrv base URL.
type Fetcher struct {
	baseURL string
	client  *peer.Client
}

// NewFetcher creates a fetcher for baseURL ("host:port" or a full URL).
func NewFetcher(baseURL string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  peer.NewClient(peer.ClientConfig{Timeout: timeout}),
	}
}

// Fetch reads the aggregate report, which must succeed, then the default
// game and media server.
func (f *Fetcher) Fetch(ctx context.Context) (Snapshot, error) {
	var report struct {
		Data []status.NodeStatus `json:"data"`
	}
	if err := f.get(ctx, "/api/status", &report); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Nodes: report.Data, LastUpdate: time.Now()}

	var game GameServer
	if f.get(ctx, "/api/mc", &game) == nil {
		snap.Game = &game
	}
	var media MediaServer
	if f.get(ctx, "/api/jellyfin", &media) == nil {
		snap.Media = &media
	}
	return snap, nil
}

func (f *Fetcher) get(ctx context.Context, path string, v any) error {
	resp := f.client.Get(ctx, f.baseURL+path)
	if !resp.Success {
		return fmt.Errorf("GET %s: %s", path, resp.Reason)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}
