package status

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/norelabs/dashsrv/internal/cache"
	"github.com/norelabs/dashsrv/internal/hardware"
	"github.com/norelabs/dashsrv/internal/jellyfin"
	"github.com/norelabs/dashsrv/internal/minecraft"
	"github.com/norelabs/dashsrv/internal/peer"
)

// Default cache lifetimes.
const (
	DefaultMinecraftTTL = 10 * time.Second
	DefaultJellyfinTTL  = 30 * time.Second
	DefaultHardwareTTL  = 5 * time.Second
	DefaultMeshTTL      = 5 * time.Second
)

// Cell names in the registry. Game and media cells are suffixed with the
// server name.
const (
	CellSelf     = "hardware"
	CellMesh     = "mesh"
	cellGamePfx  = "minecraft/"
	cellMediaPfx = "jellyfin/"
)

// ErrUnknownServer is returned when a named server is not configured.
var ErrUnknownServer = errors.New("server not configured")

// Logger is the interface for status service logging
type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
}

type defaultLogger struct {
	logger *log.Logger
	debug  bool
}

func newDefaultLogger(debug bool) *defaultLogger {
	return &defaultLogger{
		logger: log.New(os.Stderr, "[status] ", log.LstdFlags),
		debug:  debug,
	}
}

func (l *defaultLogger) Printf(format string, v ...interface{}) {
	l.logger.Printf(format, v...)
}

func (l *defaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

// Querier runs a game server status query.
type Querier interface {
	Query(ep minecraft.Endpoint) (minecraft.ServerStatus, error)
}

// PeerClient fetches media server pages and peer self-reports.
type PeerClient interface {
	jellyfin.Getter
	FetchStatus(ctx context.Context, addr string) (peer.Report, error)
}

// SelfCollector reads the local machine.
type SelfCollector interface {
	Collect() (hardware.Sample, error)
}

// Recorder stores fresh game server results. It is optional.
type Recorder interface {
	Record(ctx context.Context, server string, st minecraft.ServerStatus, at time.Time) error
}

// TTLs are the cache lifetimes per resource kind.
type TTLs struct {
	Minecraft time.Duration
	Jellyfin  time.Duration
	Hardware  time.Duration
	Mesh      time.Duration
}

// Config holds configuration for the status service.
type Config struct {
	// NodeName labels the self record
	NodeName string

	// Version is this build's version, reported on the self record and used
	// for peer compatibility
	Version string

	GameServers  []GameServer
	MediaServers []MediaServer
	Peers        []Peer

	TTL TTLs

	// Clock overrides the cache clock, mostly for tests
	Clock cache.Clock

	Debug bool
}

// Deps are the collaborators a Service drives.
type Deps struct {
	Querier  Querier
	Peers    PeerClient
	Self     SelfCollector
	Recorder Recorder
	Logger   Logger
}

type gameEntry struct {
	server GameServer
	mu     sync.Mutex
	cell   *cache.Cell[minecraft.ServerStatus]
}

type mediaEntry struct {
	server MediaServer
	mu     sync.Mutex
	cell   *cache.Cell[jellyfin.Status]
}

// Service is the cache-backed aggregation layer behind the front end.
type Service struct {
	cfg    Config
	deps   Deps
	logger Logger

	registry *cache.Registry
	// locks guards each registered cell; taken one at a time except mesh,
	// which may take self while held.
	locks map[string]*sync.Mutex

	games      []*gameEntry
	gameIndex  map[string]*gameEntry
	media      []*mediaEntry
	mediaIndex map[string]*mediaEntry

	selfMu   sync.Mutex
	selfCell *cache.Cell[NodeStatus]
	meshMu   sync.Mutex
	meshCell *cache.Cell[AggregateReport]
}

// NewService builds the registry with one cell per configured resource.
func NewService(cfg Config, deps Deps) *Service {
	if cfg.TTL.Minecraft == 0 {
		cfg.TTL.Minecraft = DefaultMinecraftTTL
	}
	if cfg.TTL.Jellyfin == 0 {
		cfg.TTL.Jellyfin = DefaultJellyfinTTL
	}
	if cfg.TTL.Hardware == 0 {
		cfg.TTL.Hardware = DefaultHardwareTTL
	}
	if cfg.TTL.Mesh == 0 {
		cfg.TTL.Mesh = DefaultMeshTTL
	}
	if deps.Querier == nil {
		deps.Querier = minecraft.DefaultClient
	}
	if deps.Peers == nil {
		deps.Peers = peer.NewClient(peer.ClientConfig{})
	}
	if deps.Self == nil {
		deps.Self = hardware.NewCollector(hardware.NewSystemSampler())
	}

	var logger Logger = newDefaultLogger(cfg.Debug)
	if deps.Logger != nil {
		logger = deps.Logger
	}

	s := &Service{
		cfg:        cfg,
		deps:       deps,
		logger:     logger,
		registry:   cache.NewRegistry(cfg.Clock),
		locks:      make(map[string]*sync.Mutex),
		gameIndex:  make(map[string]*gameEntry),
		mediaIndex: make(map[string]*mediaEntry),
	}

	for _, g := range cfg.GameServers {
		if _, dup := s.gameIndex[g.Name]; dup {
			continue
		}
		e := &gameEntry{server: g}
		name := cellGamePfx + g.Name
		e.cell = cache.Register[minecraft.ServerStatus](s.registry, name, cfg.TTL.Minecraft)
		s.locks[name] = &e.mu
		s.games = append(s.games, e)
		s.gameIndex[g.Name] = e
	}
	for _, m := range cfg.MediaServers {
		if _, dup := s.mediaIndex[m.Name]; dup {
			continue
		}
		e := &mediaEntry{server: m}
		name := cellMediaPfx + m.Name
		e.cell = cache.Register[jellyfin.Status](s.registry, name, cfg.TTL.Jellyfin)
		s.locks[name] = &e.mu
		s.media = append(s.media, e)
		s.mediaIndex[m.Name] = e
	}

	s.selfCell = cache.Register[NodeStatus](s.registry, CellSelf, cfg.TTL.Hardware)
	s.locks[CellSelf] = &s.selfMu
	s.meshCell = cache.Register[AggregateReport](s.registry, CellMesh, cfg.TTL.Mesh)
	s.locks[CellMesh] = &s.meshMu

	return s
}

// GameServers returns the configured game servers in order.
func (s *Service) GameServers() []GameServer {
	out := make([]GameServer, 0, len(s.games))
	for _, e := range s.games {
		out = append(out, e.server)
	}
	return out
}

// MediaServers returns the configured media servers in order.
func (s *Service) MediaServers() []MediaServer {
	out := make([]MediaServer, 0, len(s.media))
	for _, e := range s.media {
		out = append(out, e.server)
	}
	return out
}

// GameStatus returns the status of the named game server, or of the first one
// when name is empty.
func (s *Service) GameStatus(name string) (Cached[GameStatus], error) {
	e, err := s.game(name)
	if err != nil {
		return Cached[GameStatus]{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := false
	if e.cell.NeedsFetch() {
		st, qerr := s.deps.Querier.Query(e.server.Endpoint)
		if qerr != nil {
			s.logger.Debugf("query %s (%s): %v", e.server.Name, e.server.Endpoint.Address(), qerr)
		}
		e.cell.Cache(st)
		fresh = true
		s.record(e.server.Name, st)
	}
	return Cached[GameStatus]{
		Value:       GameStatus{Server: e.server, Status: e.cell.Get()},
		Cached:      !fresh,
		FetchedAtMS: e.cell.GetTiming(),
	}, nil
}

func (s *Service) game(name string) (*gameEntry, error) {
	if name == "" {
		if len(s.games) == 0 {
			return nil, ErrUnknownServer
		}
		return s.games[0], nil
	}
	e, ok := s.gameIndex[name]
	if !ok {
		return nil, ErrUnknownServer
	}
	return e, nil
}

func (s *Service) record(server string, st minecraft.ServerStatus) {
	if s.deps.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.deps.Recorder.Record(ctx, server, st, time.Now()); err != nil {
		s.logger.Printf("failed to record history for %s: %v", server, err)
	}
}

// MediaStatus returns the status of the named media server, or of the first
// one when name is empty.
func (s *Service) MediaStatus(name string) (Cached[MediaStatus], error) {
	var e *mediaEntry
	if name == "" {
		if len(s.media) == 0 {
			return Cached[MediaStatus]{}, ErrUnknownServer
		}
		e = s.media[0]
	} else {
		var ok bool
		if e, ok = s.mediaIndex[name]; !ok {
			return Cached[MediaStatus]{}, ErrUnknownServer
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := false
	if e.cell.NeedsFetch() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*s.peerTimeout())
		st := jellyfin.Fetch(ctx, s.deps.Peers, e.server.Address)
		cancel()
		if !st.Online {
			s.logger.Debugf("media server %s offline: %s", e.server.Name, st.Error)
		}
		e.cell.Cache(st)
		fresh = true
	}
	return Cached[MediaStatus]{
		Value:       MediaStatus{Server: e.server, Status: e.cell.Get()},
		Cached:      !fresh,
		FetchedAtMS: e.cell.GetTiming(),
	}, nil
}

func (s *Service) peerTimeout() time.Duration {
	if c, ok := s.deps.Peers.(interface{ Timeout() time.Duration }); ok {
		return c.Timeout()
	}
	return peer.DefaultTimeout
}

// LocalStatus returns this node's own record.
func (s *Service) LocalStatus() Cached[NodeStatus] {
	s.selfMu.Lock()
	defer s.selfMu.Unlock()
	return s.localStatusLocked()
}

func (s *Service) localStatusLocked() Cached[NodeStatus] {
	fresh := false
	if s.selfCell.NeedsFetch() {
		s.selfCell.Cache(s.collectSelf())
		fresh = true
	}
	return Cached[NodeStatus]{
		Value:       s.selfCell.Get(),
		Cached:      !fresh,
		FetchedAtMS: s.selfCell.GetTiming(),
	}
}

func (s *Service) collectSelf() NodeStatus {
	sample, err := s.deps.Self.Collect()
	if err != nil {
		s.logger.Debugf("partial hardware sample: %v", err)
	}
	return NodeStatus{
		Name:     s.cfg.NodeName,
		Online:   true,
		Self:     true,
		IPs:      sample.IPs,
		CPU:      sample.CPUPercent,
		Ping:     0,
		Hostname: sample.Hostname,
		Version:  s.cfg.Version,
		Memory: Memory{
			Available: sample.Memory.AvailableMB,
			Total:     sample.Memory.TotalMB,
			Usage:     sample.Memory.Usage(),
		},
	}
}

// CacheSnapshot describes every cache cell.
func (s *Service) CacheSnapshot() []cache.Info {
	names := s.registry.Names()
	infos := make([]cache.Info, 0, len(names))
	for _, name := range names {
		mu := s.locks[name]
		mu.Lock()
		info, ok := s.registry.Describe(name)
		mu.Unlock()
		if ok {
			infos = append(infos, info)
		}
	}
	return infos
}
