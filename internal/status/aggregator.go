package status

import (
	"context"
	"net"

	"github.com/hashicorp/go-version"
)

// GetAggregateReport returns self plus every configured peer. The report is
// cached as a whole: inside the mesh TTL no peer is polled.
func (s *Service) GetAggregateReport() Cached[AggregateReport] {
	s.meshMu.Lock()
	defer s.meshMu.Unlock()

	fresh := false
	if s.meshCell.NeedsFetch() {
		s.meshCell.Cache(s.buildReport())
		fresh = true
	}
	return Cached[AggregateReport]{
		Value:       s.meshCell.Get(),
		Cached:      !fresh,
		FetchedAtMS: s.meshCell.GetTiming(),
	}
}

// buildReport polls peers one after another. A failing peer becomes an
// offline record and polling moves on.
func (s *Service) buildReport() AggregateReport {
	s.selfMu.Lock()
	self := s.localStatusLocked().Value
	s.selfMu.Unlock()

	nodes := []NodeStatus{self}
	for _, p := range s.cfg.Peers {
		if isSelf(self.IPs, p.Host) {
			s.logger.Debugf("skipping peer %s: matches a local address", p.Address)
			continue
		}
		nodes = append(nodes, s.pollPeer(p))
	}
	return AggregateReport{Nodes: nodes}
}

func (s *Service) pollPeer(p Peer) NodeStatus {
	report, err := s.deps.Peers.FetchStatus(context.Background(), p.Address)
	if err != nil {
		s.logger.Debugf("peer %s: %v", p.Address, err)
		return NodeStatus{
			Name:   p.Name,
			Online: false,
			IPs:    []string{peerHost(p)},
			Error:  err.Error(),
		}
	}

	return NodeStatus{
		Name:       p.Name,
		Online:     true,
		IPs:        report.IPs,
		CPU:        report.CPU,
		Ping:       uint64(report.Latency.Milliseconds()),
		Hostname:   report.Hostname,
		Version:    report.Version,
		Compatible: compatible(s.cfg.Version, report.Version),
		Memory: Memory{
			Available: report.MemoryAvailableMB,
			Total:     report.MemoryTotalMB,
			Usage:     memoryUsage(report.MemoryAvailableMB, report.MemoryTotalMB),
		},
	}
}

// isSelf compares host against local addresses by exact string match.
func isSelf(localIPs []string, host string) bool {
	for _, ip := range localIPs {
		if ip == host {
			return true
		}
	}
	return false
}

func peerHost(p Peer) string {
	if p.Host != "" {
		return p.Host
	}
	if h, _, err := net.SplitHostPort(p.Address); err == nil {
		return h
	}
	return p.Address
}

func memoryUsage(available, total uint64) float64 {
	if total == 0 || available > total {
		return 0
	}
	return float64(total-available) / float64(total)
}

// compatible reports whether a peer shares our major version. It returns nil
// when either version is missing or unparseable.
func compatible(ours, theirs string) *bool {
	if ours == "" || theirs == "" {
		return nil
	}
	ov, err := version.NewVersion(ours)
	if err != nil {
		return nil
	}
	tv, err := version.NewVersion(theirs)
	if err != nil {
		return nil
	}
	same := ov.Segments()[0] == tv.Segments()[0]
	return &same
}
