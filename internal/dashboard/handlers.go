package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/norelabs/dashsrv/internal/cache"
	"github.com/norelabs/dashsrv/internal/history"
	"github.com/norelabs/dashsrv/internal/minecraft"
	"github.com/norelabs/dashsrv/internal/status"
)

type gameResponse struct {
	Cached          bool   `json:"cached"`
	CacheTiming     uint64 `json:"cacheTiming"`
	Name            string `json:"name"`
	Online          bool   `json:"online"`
	IP              string `json:"ip"`
	Domain          string `json:"domain"`
	Port            uint16 `json:"port"`
	RequestProtocol int32  `json:"requestProtocol"`
	Error           string `json:"error"`

	// Set only when online
	Version *minecraft.Version `json:"version,omitempty"`
	MOTD    string             `json:"motd,omitempty"`
	Ping    *uint64            `json:"ping,omitempty"`
	Players *minecraft.Players `json:"players,omitempty"`
	Icon    string             `json:"icon,omitempty"`
}

type mediaResponse struct {
	Cached                bool   `json:"cached"`
	CacheTiming           uint64 `json:"cacheTiming"`
	Name                  string `json:"name"`
	Online                bool   `json:"online"`
	HealthString          string `json:"healthString"`
	LocalAddress          string `json:"localAddress"`
	ServerName            string `json:"serverName"`
	Version               string `json:"version"`
	ProductName           string `json:"productName"`
	OS                    string `json:"os"`
	ID                    string `json:"id"`
	StartupWizardComplete bool   `json:"startupWizardComplete"`
	Error                 string `json:"error,omitempty"`
}

type nodeResponse struct {
	Cached      bool   `json:"cached"`
	CacheTiming uint64 `json:"cacheTiming"`
	status.NodeStatus
}

type aggregateResponse struct {
	Cached      bool                `json:"cached"`
	CacheTiming uint64              `json:"cacheTiming"`
	Data        []status.NodeStatus `json:"data"`
}

type historyResponse struct {
	Server  string           `json:"server"`
	Samples []history.Sample `json:"samples"`
}

type cacheResponse struct {
	Cells []cache.Info `json:"cells"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func renderGame(c status.Cached[status.GameStatus]) gameResponse {
	srv, st := c.Value.Server, c.Value.Status
	resp := gameResponse{
		Cached:          c.Cached,
		CacheTiming:     c.FetchedAtMS,
		Name:            srv.Name,
		Online:          st.Online,
		IP:              srv.Endpoint.Host,
		Domain:          srv.Domain,
		Port:            srv.Endpoint.Port,
		RequestProtocol: srv.Endpoint.ProtocolVersion,
		Error:           st.Error,
	}
	if st.Online {
		resp.Version = &st.Version
		resp.MOTD = st.MOTD
		resp.Ping = &st.PingMS
		resp.Players = &st.Players
		resp.Icon = st.Favicon
	}
	return resp
}

func renderMedia(c status.Cached[status.MediaStatus]) mediaResponse {
	st := c.Value.Status
	return mediaResponse{
		Cached:                c.Cached,
		CacheTiming:           c.FetchedAtMS,
		Name:                  c.Value.Server.Name,
		Online:                st.Online,
		HealthString:          st.Health,
		LocalAddress:          st.LocalAddress,
		ServerName:            st.ServerName,
		Version:               st.Version,
		ProductName:           st.ProductName,
		OS:                    st.OSName(),
		ID:                    st.ID,
		StartupWizardComplete: st.StartupWizardComplete,
		Error:                 st.Error,
	}
}

func renderNode(c status.Cached[status.NodeStatus]) nodeResponse {
	return nodeResponse{
		Cached:      c.Cached,
		CacheTiming: c.FetchedAtMS,
		NodeStatus:  withIPs(c.Value),
	}
}

func renderAggregate(c status.Cached[status.AggregateReport]) aggregateResponse {
	nodes := make([]status.NodeStatus, len(c.Value.Nodes))
	for i, n := range c.Value.Nodes {
		nodes[i] = withIPs(n)
	}
	return aggregateResponse{
		Cached:      c.Cached,
		CacheTiming: c.FetchedAtMS,
		Data:        nodes,
	}
}

// withIPs makes ips encode as [] rather than null, which peers reject.
func withIPs(n status.NodeStatus) status.NodeStatus {
	if n.IPs == nil {
		n.IPs = []string{}
	}
	return n
}

// gameStatuses renders every configured game server in configuration order.
func (s *Server) gameStatuses() []gameResponse {
	servers := s.source.GameServers()
	out := make([]gameResponse, 0, len(servers))
	for _, srv := range servers {
		c, err := s.source.GameStatus(srv.Name)
		if err != nil {
			continue
		}
		out = append(out, renderGame(c))
	}
	return out
}

func (s *Server) mediaStatuses() []mediaResponse {
	servers := s.source.MediaServers()
	out := make([]mediaResponse, 0, len(servers))
	for _, srv := range servers {
		c, err := s.source.MediaStatus(srv.Name)
		if err != nil {
			continue
		}
		out = append(out, renderMedia(c))
	}
	return out
}

// handleGame serves /api/mc (first configured server) and /api/mc/{name}.
func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		servers := s.source.GameServers()
		if len(servers) == 0 {
			writeJSONError(w, ErrNoServers.Error(), http.StatusNotFound)
			return
		}
		name = servers[0].Name
	}

	c, err := s.source.GameStatus(name)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderGame(c))
}

func (s *Server) handleGameHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, ErrHistoryDisabled.Error(), http.StatusNotFound)
		return
	}

	name := r.URL.Query().Get("name")
	servers := s.source.GameServers()
	if name == "" {
		if len(servers) == 0 {
			writeJSONError(w, ErrNoServers.Error(), http.StatusNotFound)
			return
		}
		name = servers[0].Name
	}
	known := false
	for _, srv := range servers {
		if srv.Name == name {
			known = true
			break
		}
	}
	if !known {
		writeJSONError(w, status.ErrUnknownServer.Error(), http.StatusNotFound)
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSONError(w, ErrInvalidLimit.Error(), http.StatusBadRequest)
			return
		}
		limit = n
	}

	samples, err := s.history.Recent(r.Context(), name, limit)
	if err != nil {
		s.logger.Printf("history lookup for %s failed: %v", name, err)
		writeJSONError(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Server: name, Samples: samples})
}

// handleMedia serves /api/jellyfin (first configured server) and
// /api/jellyfin/{name}.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		servers := s.source.MediaServers()
		if len(servers) == 0 {
			writeJSONError(w, ErrNoServers.Error(), http.StatusNotFound)
			return
		}
		name = servers[0].Name
	}

	c, err := s.source.MediaStatus(name)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderMedia(c))
}

func (s *Server) handleLocal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, renderNode(s.source.LocalStatus()))
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, renderAggregate(s.source.GetAggregateReport()))
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	cells := s.source.CacheSnapshot()
	if cells == nil {
		cells = []cache.Info{}
	}
	writeJSON(w, http.StatusOK, cacheResponse{Cells: cells})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: s.config.Version})
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, status.ErrUnknownServer) {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Printf("status lookup failed: %v", err)
	writeJSONError(w, "internal error", http.StatusInternalServerError)
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON-formatted error response
func writeJSONError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}{message, code})
}
