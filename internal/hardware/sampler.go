// Package hardware reports the local machine's addresses, memory and CPU load.
package hardware

import (
	"errors"
	"math"
	"sync"
)

// MemoryInfo is physical memory in megabytes.
type MemoryInfo struct {
	TotalMB     uint64
	AvailableMB uint64
}

// Usage returns the used fraction of memory in [0, 1], or 0 when the total is
// unknown.
func (m MemoryInfo) Usage() float64 {
	if m.TotalMB == 0 || m.AvailableMB > m.TotalMB {
		return 0
	}
	return float64(m.TotalMB-m.AvailableMB) / float64(m.TotalMB)
}

// Sampler reads raw machine vitals. Implementations are OS specific.
type Sampler interface {
	LocalIPs() ([]string, error)
	Memory() (MemoryInfo, error)
	CPUPercent() (float64, error)
}

// HostSampler is implemented by samplers that also know host identity.
type HostSampler interface {
	Hostname() (string, error)
	UptimeSeconds() (uint64, error)
}

// Sample is one reading of the local machine.
type Sample struct {
	IPs           []string
	Memory        MemoryInfo
	CPUPercent    float64
	Hostname      string
	UptimeSeconds uint64
}

// Collector turns sampler readings into Samples and guarantees a finite CPU
// value by substituting the last finite reading.
type Collector struct {
	sampler Sampler

	mu      sync.Mutex
	lastCPU float64
}

// NewCollector wraps s.
func NewCollector(s Sampler) *Collector {
	return &Collector{sampler: s}
}

// Collect reads every capability of the sampler. Partial readings are kept;
// the returned error joins whatever failed.
func (c *Collector) Collect() (Sample, error) {
	var sample Sample
	var errs []error

	ips, err := c.sampler.LocalIPs()
	if err != nil {
		errs = append(errs, err)
	}
	sample.IPs = ips

	mem, err := c.sampler.Memory()
	if err != nil {
		errs = append(errs, err)
	}
	sample.Memory = mem

	cpu, err := c.sampler.CPUPercent()
	if err != nil {
		errs = append(errs, err)
	}
	sample.CPUPercent = c.sanitizeCPU(cpu, err == nil)

	if hs, ok := c.sampler.(HostSampler); ok {
		if name, err := hs.Hostname(); err == nil {
			sample.Hostname = name
		}
		if up, err := hs.UptimeSeconds(); err == nil {
			sample.UptimeSeconds = up
		}
	}

	return sample, errors.Join(errs...)
}

func (c *Collector) sanitizeCPU(v float64, ok bool) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return c.lastCPU
	}
	c.lastCPU = v
	return v
}
