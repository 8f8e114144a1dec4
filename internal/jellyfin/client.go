// Package jellyfin reads the public health and system info of a Jellyfin
// media server.
package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/norelabs/dashsrv/internal/peer"
)

const (
	healthPath     = "/health"
	publicInfoPath = "/System/Info/Public"
)

// Status is what the dashboard shows for a media server.
type Status struct {
	Online                bool
	Health                string
	LocalAddress          string
	ServerName            string
	Version               string
	ProductName           string
	OperatingSystem       string
	ID                    string
	StartupWizardComplete bool
	Error                 string
}

type publicInfo struct {
	LocalAddress           *string `json:"LocalAddress"`
	ServerName             *string `json:"ServerName"`
	Version                *string `json:"Version"`
	ProductName            *string `json:"ProductName"`
	OperatingSystem        string  `json:"OperatingSystem"`
	ID                     *string `json:"Id"`
	StartupWizardCompleted *bool   `json:"StartupWizardCompleted"`
}

// Getter is the part of peer.Client used here.
type Getter interface {
	Get(ctx context.Context, target string) peer.Response
}

// Fetch checks /health and then reads /System/Info/Public from addr
// ("host:port"). Any failure yields an offline status with Error set.
func Fetch(ctx context.Context, client Getter, addr string) Status {
	health := client.Get(ctx, addr+healthPath)
	if !health.Success {
		return offline("health check failed: %s", health.Reason)
	}

	info := client.Get(ctx, addr+publicInfoPath)
	if !info.Success {
		return offline("system info request failed: %s", info.Reason)
	}

	var pi publicInfo
	if err := json.Unmarshal(info.Body, &pi); err != nil {
		return offline("system info is not valid JSON: %v", err)
	}
	if pi.LocalAddress == nil || pi.ServerName == nil || pi.Version == nil ||
		pi.ProductName == nil || pi.ID == nil || pi.StartupWizardCompleted == nil {
		return offline("system info is missing fields")
	}

	return Status{
		Online:                true,
		Health:                string(health.Body),
		LocalAddress:          *pi.LocalAddress,
		ServerName:            *pi.ServerName,
		Version:               *pi.Version,
		ProductName:           *pi.ProductName,
		OperatingSystem:       pi.OperatingSystem,
		ID:                    *pi.ID,
		StartupWizardComplete: *pi.StartupWizardCompleted,
	}
}

func offline(format string, args ...any) Status {
	return Status{Error: fmt.Sprintf(format, args...)}
}

// OSName returns the operating system or "Unknown" when the server did not
// report one.
func (s Status) OSName() string {
	if s.OperatingSystem == "" {
		return "Unknown"
	}
	return s.OperatingSystem
}
