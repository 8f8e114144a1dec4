// Package status assembles everything the dashboard reports.
//
// A Service owns one cache cell per monitored resource:
//   - each configured game server, queried over the Server List Ping protocol
//   - each configured media server
//   - the local machine ("self"), read from the hardware collector
//   - the mesh report, which merges self with every configured peer
//
// Every accessor is cache-backed and safe to call on each inbound request.
// Failures never surface as errors; they become offline records.
package status

import (
	"github.com/norelabs/dashsrv/internal/jellyfin"
	"github.com/norelabs/dashsrv/internal/minecraft"
)

// GameServer is a configured game server.
type GameServer struct {
	Name     string
	Endpoint minecraft.Endpoint
	// Domain is the public name players connect with, shown alongside the IP.
	Domain string
}

// MediaServer is a configured Jellyfin server.
type MediaServer struct {
	Name    string
	Address string // host:port
}

// Peer is another dashsrv instance.
type Peer struct {
	Name string

	// Host is compared against the local addresses to skip polling ourselves.
	Host    string
	Address string // host[:port]
}

// Memory is a node's physical memory in megabytes.
type Memory struct {
	Available uint64  `json:"available"`
	Total     uint64  `json:"total"`
	Usage     float64 `json:"usage"`
}

// NodeStatus is one node of the mesh report.
type NodeStatus struct {
	Name     string   `json:"name,omitempty"`
	Online   bool     `json:"online"`
	Self     bool     `json:"self"`
	IPs      []string `json:"ips"`
	CPU      float64  `json:"cpu"`
	Ping     uint64   `json:"ping"`
	Memory   Memory   `json:"memory"`
	Hostname string   `json:"hostname,omitempty"`
	Version  string   `json:"version,omitempty"`
	Error    string   `json:"error,omitempty"`

	// Compatible is nil when the peer did not report a version.
	Compatible *bool `json:"compatible,omitempty"`
}

// AggregateReport is self followed by every polled peer, in configuration order.
type AggregateReport struct {
	Nodes []NodeStatus `json:"data"`
}

// Self returns the node marked as self.
func (r AggregateReport) Self() (NodeStatus, bool) {
	for _, n := range r.Nodes {
		if n.Self {
			return n, true
		}
	}
	return NodeStatus{}, false
}

// Cached wraps a value read through a cache cell. Cached is false when this
// call did the fetch.
type Cached[T any] struct {
	Value       T
	Cached      bool
	FetchedAtMS uint64
}

// GameStatus is a game server status together with its configuration.
type GameStatus struct {
	Server GameServer
	Status minecraft.ServerStatus
}

// MediaStatus is a media server status together with its configuration.
type MediaStatus struct {
	Server MediaServer
	Status jellyfin.Status
}
