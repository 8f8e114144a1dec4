package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// LocalStatusPath is where every instance serves its self-report.
const LocalStatusPath = "/api/local"

// Peer errors.
var (
	ErrPeerUnreachable       = errors.New("peer unreachable")
	ErrPeerMalformedResponse = errors.New("peer returned a malformed status")
)

// Report is a peer's self-report as served at LocalStatusPath.
type Report struct {
	CPU               float64
	IPs               []string
	MemoryAvailableMB uint64
	MemoryTotalMB     uint64
	// Version and Hostname are optional and empty when the peer omits them.
	Version  string
	Hostname string
	// Latency is the wall time of the GET.
	Latency time.Duration
}

type wireReport struct {
	CPU    *float64  `json:"cpu"`
	IPs    *[]string `json:"ips"`
	Memory *struct {
		Available *uint64 `json:"available"`
		Total     *uint64 `json:"total"`
	} `json:"memory"`
	Version  json.RawMessage `json:"version"`
	Hostname json.RawMessage `json:"hostname"`
}

// FetchStatus GETs LocalStatusPath from addr ("host[:port]") and validates it.
// Errors wrap ErrPeerUnreachable or ErrPeerMalformedResponse.
func (c *Client) FetchStatus(ctx context.Context, addr string) (Report, error) {
	start := time.Now()
	resp := c.Get(ctx, addr+LocalStatusPath)
	latency := time.Since(start)
	if !resp.Success {
		return Report{}, fmt.Errorf("%w: %s: %s", ErrPeerUnreachable, addr, resp.Reason)
	}

	report, err := DecodeReport(resp.Body)
	if err != nil {
		return Report{}, fmt.Errorf("%s: %w", addr, err)
	}
	report.Latency = latency
	return report, nil
}

// DecodeReport parses a self-report. cpu, ips, memory.available and
// memory.total are required.
func DecodeReport(body []byte) (Report, error) {
	var w wireReport
	if err := json.Unmarshal(body, &w); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrPeerMalformedResponse, err)
	}
	switch {
	case w.CPU == nil:
		return Report{}, fmt.Errorf("%w: missing cpu", ErrPeerMalformedResponse)
	case w.IPs == nil:
		return Report{}, fmt.Errorf("%w: missing ips", ErrPeerMalformedResponse)
	case w.Memory == nil || w.Memory.Available == nil || w.Memory.Total == nil:
		return Report{}, fmt.Errorf("%w: missing memory", ErrPeerMalformedResponse)
	}

	r := Report{
		CPU:               *w.CPU,
		IPs:               *w.IPs,
		MemoryAvailableMB: *w.Memory.Available,
		MemoryTotalMB:     *w.Memory.Total,
	}
	// Optional fields of the wrong type are ignored.
	_ = json.Unmarshal(w.Version, &r.Version)
	_ = json.Unmarshal(w.Hostname, &r.Hostname)
	return r, nil
}
