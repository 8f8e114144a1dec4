package hardware

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// SystemSampler reads the running machine through gopsutil.
type SystemSampler struct {
	// CPUWindow is the measurement window for CPUPercent. Zero compares
	// against the previous call, like a ticking counter.
	CPUWindow time.Duration
}

// NewSystemSampler returns a sampler that measures CPU over 100ms.
func NewSystemSampler() *SystemSampler {
	return &SystemSampler{CPUWindow: 100 * time.Millisecond}
}

// LocalIPs returns every IPv4 address assigned to a local interface,
// loopback included.
func (s *SystemSampler) LocalIPs() ([]string, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	var ips []string
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			if ip, ok := ipv4(addr.Addr); ok {
				ips = append(ips, ip)
			}
		}
	}
	return ips, nil
}

// ipv4 extracts the address from "a.b.c.d/nn" or a bare address.
func ipv4(s string) (string, bool) {
	if p, err := netip.ParsePrefix(s); err == nil {
		if p.Addr().Is4() {
			return p.Addr().String(), true
		}
		return "", false
	}
	if a, err := netip.ParseAddr(s); err == nil && a.Is4() {
		return a.String(), true
	}
	return "", false
}

func (s *SystemSampler) Memory() (MemoryInfo, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("reading memory: %w", err)
	}
	return MemoryInfo{
		TotalMB:     v.Total / 1024 / 1024,
		AvailableMB: v.Available / 1024 / 1024,
	}, nil
}

func (s *SystemSampler) CPUPercent() (float64, error) {
	percentages, err := cpu.Percent(s.CPUWindow, false)
	if err != nil {
		return 0, fmt.Errorf("reading cpu: %w", err)
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("reading cpu: no samples")
	}
	return percentages[0], nil
}

func (s *SystemSampler) Hostname() (string, error) {
	info, err := host.Info()
	if err != nil || info.Hostname == "" {
		return os.Hostname()
	}
	return info.Hostname, nil
}

func (s *SystemSampler) UptimeSeconds() (uint64, error) {
	return host.Uptime()
}
