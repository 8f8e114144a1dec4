// cmd/wiring.go
package cmd

import (
	"net"
	"os"
	"strings"

	"github.com/norelabs/dashsrv/internal/config"
	"github.com/norelabs/dashsrv/internal/minecraft"
	"github.com/norelabs/dashsrv/internal/peer"
	"github.com/norelabs/dashsrv/internal/status"
)

const maxNodeNameLen = 64

// loadConfig loads cfgFile, resolving .local names with the system resolver.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile, net.DefaultResolver)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		debugMode = true
	}
	Debug("loaded %s (%d servers, listen %s)", cfgFile, len(cfg.Servers), cfg.ListenAddr())
	return cfg, nil
}

// nodeName returns the configured node name, falling back to the hostname.
// Characters that are not safe in Redis key names become '-'.
func nodeName(cfg *config.Config) string {
	name := cfg.NodeName
	if name == "" {
		if h, err := os.Hostname(); err == nil {
			name = h
		}
	}

	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		}
		return '-'
	}, name)
	if len(name) > maxNodeNameLen {
		name = name[:maxNodeNameLen]
	}
	if name == "" {
		name = "dashsrv"
	}
	return name
}

// statusConfig maps the configuration file onto the status service.
// Dashboard entries are the peers of the mesh report.
func statusConfig(cfg *config.Config, node string) status.Config {
	sc := status.Config{
		NodeName: node,
		Version:  Version,
		TTL: status.TTLs{
			Minecraft: cfg.Cache.Minecraft(),
			Jellyfin:  cfg.Cache.Jellyfin(),
			Hardware:  cfg.Cache.Hardware(),
			Mesh:      cfg.Cache.Mesh(),
		},
		Debug: cfg.Debug || debugMode,
	}

	for _, s := range cfg.Servers {
		switch s.Type {
		case config.TypeMinecraft:
			sc.GameServers = append(sc.GameServers, status.GameServer{
				Name: s.Name,
				Endpoint: minecraft.Endpoint{
					Host:            s.IP,
					Port:            uint16(*s.Port),
					ProtocolVersion: *s.Version,
				},
				Domain: s.ExtraDomain,
			})
		case config.TypeJellyfin:
			sc.MediaServers = append(sc.MediaServers, status.MediaServer{
				Name:    s.Name,
				Address: s.Address(),
			})
		case config.TypeDashboard:
			sc.Peers = append(sc.Peers, status.Peer{
				Name:    s.Name,
				Host:    s.IP,
				Address: s.Address(),
			})
		}
	}
	return sc
}

// newStatusService builds the status service for cfg. rec may be nil.
func newStatusService(cfg *config.Config, node string, rec status.Recorder) *status.Service {
	deps := status.Deps{
		Querier: &minecraft.Client{
			Timeout: cfg.Query.Timeout(),
			Tick:    cfg.Query.Tick(),
		},
		Peers: peer.NewClient(peer.ClientConfig{
			Timeout:   cfg.PeerTimeout(),
			UserAgent: "dashsrv/" + Version,
		}),
		Recorder: rec,
	}
	return status.NewService(statusConfig(cfg, node), deps)
}
