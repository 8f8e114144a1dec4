package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/norelabs/dashsrv/internal/cache"
	"github.com/norelabs/dashsrv/internal/history"
	"github.com/norelabs/dashsrv/internal/jellyfin"
	"github.com/norelabs/dashsrv/internal/minecraft"
	"github.com/norelabs/dashsrv/internal/peer"
	"github.com/norelabs/dashsrv/internal/status"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int

	games  []status.GameServer
	states map[string]minecraft.ServerStatus
	media  []status.MediaServer
	jelly  map[string]jellyfin.Status
	local  status.NodeStatus
	report status.AggregateReport
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls: make(map[string]int),
		games: []status.GameServer{
			{Name: "survival", Endpoint: minecraft.Endpoint{Host: "192.168.0.105", Port: 25565, ProtocolVersion: 774}, Domain: "play.example.net"},
			{Name: "creative", Endpoint: minecraft.Endpoint{Host: "192.168.0.106", Port: 25566, ProtocolVersion: 774}},
		},
		states: map[string]minecraft.ServerStatus{
			"survival": {
				Online:  true,
				Players: minecraft.Players{Online: 3, Max: 20},
				MOTD:    "§aHello",
				Version: minecraft.Version{Name: "1.21.10", Protocol: 773},
				Favicon: "data:image/png;base64,AAAA",
				PingMS:  12,
			},
			"creative": minecraft.Offline(minecraft.ErrTransportTimeout),
		},
		media: []status.MediaServer{{Name: "jellyfin", Address: "192.168.1.47:8096"}},
		jelly: map[string]jellyfin.Status{
			"jellyfin": {Online: true, Health: "Healthy", ServerName: "media", Version: "10.9.0", ID: "abc"},
		},
		local: status.NodeStatus{Name: "nas", Online: true, Self: true, CPU: 12.5, Memory: status.Memory{Available: 1024, Total: 4096, Usage: 0.75}},
		report: status.AggregateReport{Nodes: []status.NodeStatus{
			{Name: "nas", Online: true, Self: true, IPs: []string{"192.168.0.105"}},
			{Name: "media", Online: false, IPs: []string{"192.168.1.47"}, Error: "Connection refused"},
		}},
	}
}

func (f *fakeSource) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeSource) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) GameServers() []status.GameServer { return f.games }

func (f *fakeSource) GameStatus(name string) (status.Cached[status.GameStatus], error) {
	f.hit("game")
	for _, g := range f.games {
		if g.Name == name {
			return status.Cached[status.GameStatus]{
				Value:       status.GameStatus{Server: g, Status: f.states[name]},
				Cached:      true,
				FetchedAtMS: 1000,
			}, nil
		}
	}
	return status.Cached[status.GameStatus]{}, status.ErrUnknownServer
}

func (f *fakeSource) MediaServers() []status.MediaServer { return f.media }

func (f *fakeSource) MediaStatus(name string) (status.Cached[status.MediaStatus], error) {
	f.hit("media")
	for _, m := range f.media {
		if m.Name == name {
			return status.Cached[status.MediaStatus]{
				Value:       status.MediaStatus{Server: m, Status: f.jelly[name]},
				FetchedAtMS: 2000,
			}, nil
		}
	}
	return status.Cached[status.MediaStatus]{}, status.ErrUnknownServer
}

func (f *fakeSource) LocalStatus() status.Cached[status.NodeStatus] {
	f.hit("local")
	return status.Cached[status.NodeStatus]{Value: f.local, FetchedAtMS: 3000}
}

func (f *fakeSource) GetAggregateReport() status.Cached[status.AggregateReport] {
	f.hit("aggregate")
	return status.Cached[status.AggregateReport]{Value: f.report, Cached: true, FetchedAtMS: 4000}
}

func (f *fakeSource) CacheSnapshot() []cache.Info {
	return []cache.Info{
		{Name: "hardware", TTLMS: 5000, LastFetchedMS: 3000, AgeMS: 100},
		{Name: "mesh", TTLMS: 5000, Stale: true},
	}
}

type fakeHistory struct {
	samples []history.Sample
	err     error

	lastServer string
	lastLimit  int
}

func (h *fakeHistory) Recent(ctx context.Context, server string, limit int) ([]history.Sample, error) {
	h.lastServer, h.lastLimit = server, limit
	return h.samples, h.err
}

func testConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           0,
		Version:        "1.2.3",
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		PushInterval:   time.Hour,
	}
}

func newTestServer(t *testing.T, src StatusSource, hist HistorySource) *Server {
	t.Helper()
	s := NewServer(testConfig(), src, hist, nopLogger{})
	t.Cleanup(s.limiter.Stop)
	return s
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s: decode body %q: %v", target, rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestHandleGameDefault(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)

	rec, body := get(t, s.Handler(), "/api/mc")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	checks := map[string]any{
		"name":            "survival",
		"cached":          true,
		"cacheTiming":     float64(1000),
		"online":          true,
		"ip":              "192.168.0.105",
		"domain":          "play.example.net",
		"port":            float64(25565),
		"requestProtocol": float64(774),
		"error":           "",
		"motd":            "§aHello",
		"ping":            float64(12),
		"icon":            "data:image/png;base64,AAAA",
	}
	for k, want := range checks {
		if body[k] != want {
			t.Errorf("%s = %v, want %v", k, body[k], want)
		}
	}

	version, _ := body["version"].(map[string]any)
	if version["name"] != "1.21.10" || version["protocol"] != float64(773) {
		t.Errorf("version = %v", body["version"])
	}
	players, _ := body["players"].(map[string]any)
	if players["online"] != float64(3) || players["max"] != float64(20) {
		t.Errorf("players = %v", body["players"])
	}
}

func TestHandleGameOffline(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)

	rec, body := get(t, s.Handler(), "/api/mc/creative")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["online"] != false {
		t.Errorf("online = %v, want false", body["online"])
	}
	if body["error"] != minecraft.ErrTransportTimeout.Error() {
		t.Errorf("error = %v", body["error"])
	}
	for _, k := range []string{"version", "motd", "ping", "players", "icon"} {
		if _, ok := body[k]; ok {
			t.Errorf("offline response has %q", k)
		}
	}
}

func TestHandleGameNotFound(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)

	rec, body := get(t, s.Handler(), "/api/mc/lobby")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if body["error"] != status.ErrUnknownServer.Error() {
		t.Errorf("error = %v", body["error"])
	}

	empty := newFakeSource()
	empty.games = nil
	empty.media = nil
	s = newTestServer(t, empty, nil)
	for _, path := range []string{"/api/mc", "/api/jellyfin"} {
		rec, body := get(t, s.Handler(), path)
		if rec.Code != http.StatusNotFound || body["error"] != ErrNoServers.Error() {
			t.Errorf("GET %s = %d %v, want 404 %q", path, rec.Code, body, ErrNoServers)
		}
	}
}

func TestHandleMedia(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)

	rec, body := get(t, s.Handler(), "/api/jellyfin")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	checks := map[string]any{
		"cached":                false,
		"cacheTiming":           float64(2000),
		"online":                true,
		"healthString":          "Healthy",
		"serverName":            "media",
		"version":               "10.9.0",
		"os":                    "Unknown",
		"id":                    "abc",
		"startupWizardComplete": false,
	}
	for k, want := range checks {
		if body[k] != want {
			t.Errorf("%s = %v, want %v", k, body[k], want)
		}
	}

	rec, _ = get(t, s.Handler(), "/api/jellyfin/jellyfin")
	if rec.Code != http.StatusOK {
		t.Errorf("named media status = %d, want 200", rec.Code)
	}
}

func TestHandleLocal(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)

	rec, body := get(t, s.Handler(), "/api/local")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ips":[]`) {
		t.Errorf("body %s does not encode ips as an empty list", rec.Body.String())
	}
	if body["self"] != true || body["cpu"] != 12.5 || body["cacheTiming"] != float64(3000) {
		t.Errorf("body = %v", body)
	}

	// Another dashsrv polls this endpoint, so it must satisfy the peer decoder.
	report, err := peer.DecodeReport(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("peer.DecodeReport() error = %v", err)
	}
	if report.MemoryTotalMB != 4096 || report.MemoryAvailableMB != 1024 {
		t.Errorf("report memory = %d/%d, want 1024/4096", report.MemoryAvailableMB, report.MemoryTotalMB)
	}
}

func TestHandleAggregate(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)

	rec, body := get(t, s.Handler(), "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["cached"] != true || body["cacheTiming"] != float64(4000) {
		t.Errorf("cache fields = %v/%v", body["cached"], body["cacheTiming"])
	}
	data, _ := body["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("len(data) = %d, want 2", len(data))
	}
	second, _ := data[1].(map[string]any)
	if second["online"] != false || second["error"] != "Connection refused" {
		t.Errorf("data[1] = %v", second)
	}
}

func TestHandleCacheAndHealth(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)

	_, body := get(t, s.Handler(), "/api/cache")
	cells, _ := body["cells"].([]any)
	if len(cells) != 2 {
		t.Fatalf("len(cells) = %d, want 2", len(cells))
	}
	first, _ := cells[0].(map[string]any)
	if first["name"] != "hardware" || first["ttl"] != float64(5000) || first["lastFetch"] != float64(3000) {
		t.Errorf("cells[0] = %v", first)
	}

	rec, body := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK || body["status"] != "ok" || body["version"] != "1.2.3" {
		t.Errorf("health = %d %v", rec.Code, body)
	}
}

func TestHandleGameHistory(t *testing.T) {
	src := newFakeSource()

	s := newTestServer(t, src, nil)
	rec, body := get(t, s.Handler(), "/api/mc/history")
	if rec.Code != http.StatusNotFound || body["error"] != ErrHistoryDisabled.Error() {
		t.Errorf("disabled history = %d %v", rec.Code, body)
	}

	hist := &fakeHistory{samples: []history.Sample{
		{ID: 2, Server: "creative", Online: false, Error: "timeout", SampledAt: time.UnixMilli(2000)},
		{ID: 1, Server: "creative", Online: true, PlayersOnline: 1, SampledAt: time.UnixMilli(1000)},
	}}
	s = newTestServer(t, src, hist)

	rec, body = get(t, s.Handler(), "/api/mc/history?name=creative&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if hist.lastServer != "creative" || hist.lastLimit != 5 {
		t.Errorf("Recent(%q, %d), want (creative, 5)", hist.lastServer, hist.lastLimit)
	}
	samples, _ := body["samples"].([]any)
	if body["server"] != "creative" || len(samples) != 2 {
		t.Errorf("body = %v", body)
	}

	get(t, s.Handler(), "/api/mc/history")
	if hist.lastServer != "survival" || hist.lastLimit != history.DefaultLimit {
		t.Errorf("default Recent(%q, %d), want (survival, %d)", hist.lastServer, hist.lastLimit, history.DefaultLimit)
	}

	tests := []struct {
		target string
		code   int
	}{
		{"/api/mc/history?limit=zero", http.StatusBadRequest},
		{"/api/mc/history?limit=0", http.StatusBadRequest},
		{"/api/mc/history?name=lobby", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec, _ := get(t, s.Handler(), tt.target); rec.Code != tt.code {
			t.Errorf("GET %s = %d, want %d", tt.target, rec.Code, tt.code)
		}
	}

	hist.err = errors.New("disk I/O error")
	if rec, _ := get(t, s.Handler(), "/api/mc/history"); rec.Code != http.StatusInternalServerError {
		t.Errorf("failing store = %d, want 500", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)

	rec, _ := get(t, s.Handler(), "/health")
	if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("X-Request-ID = %q, want a UUID", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-1")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if id := rec.Header().Get("X-Request-ID"); id != "trace-1" {
		t.Errorf("X-Request-ID = %q, want trace-1", id)
	}
}

func TestStaticFiles(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)
	rec, body := get(t, s.Handler(), "/")
	if rec.Code != http.StatusNotFound || body["error"] != ErrNotFound.Error() {
		t.Errorf("no static dir = %d %v, want JSON 404", rec.Code, body)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>dashsrv</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.StaticDir = dir
	s = NewServer(cfg, newFakeSource(), nil, nopLogger{})
	defer s.limiter.Stop()

	rec, _ = get(t, s.Handler(), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dashsrv") {
		t.Errorf("index body = %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("static response has no Content-Security-Policy")
	}
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(testConfig(), newFakeSource(), nil, nopLogger{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.IsRunning() {
		t.Error("server should be running after Start()")
	}
	if err := s.Start(); err != ErrServerAlreadyRunning {
		t.Errorf("second Start() = %v, want ErrServerAlreadyRunning", err)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("server should not be running after Stop()")
	}
	if err := s.Stop(ctx); err != ErrServerNotRunning {
		t.Errorf("second Stop() = %v, want ErrServerNotRunning", err)
	}
}

func TestServerWriteTimeout(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"unset", 0, DefaultWriteTimeout},
		{"below floor", 5 * time.Second, DefaultWriteTimeout},
		{"many peers", 23 * time.Second, 23 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.WriteTimeout = tt.in
			s := NewServer(cfg, newFakeSource(), nil, nopLogger{})

			if err := s.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			defer s.Stop(ctx)

			if got := s.httpServer.WriteTimeout; got != tt.want {
				t.Errorf("WriteTimeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServerRun(t *testing.T) {
	s := NewServer(testConfig(), newFakeSource(), nil, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Addr() == nil {
		t.Fatal("server did not start listening")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
