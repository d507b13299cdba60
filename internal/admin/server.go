package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// StatsSource is whatever can report the adapter's current diagnostics; in
// cmd/cellar-admin it is an adapter over the Connection, the EntityStore
// and the Queue. Declared
// here, not in cellarstore, to keep this package independent of the wire
// protocol stack it is reporting on.
type StatsSource interface {
	// CacheSize reports the number of interned IRI/id pairs.
	CacheSize() int
	// QueueDepth reports the number of items currently queued.
	QueueDepth() (int, error)
	// Alive reports whether the underlying connection is still usable.
	Alive() bool
}

// Server serves the adapter's read-only diagnostics endpoints: /healthz and
// /stats.
type Server struct {
	source StatsSource
	log    *slog.Logger
}

// NewServer returns a Server reporting on source.
func NewServer(source StatsSource) *Server {
	return &Server{source: source, log: slog.Default()}
}

// statsResponse is the JSON body /stats returns.
type statsResponse struct {
	Alive      bool `json:"alive"`
	CacheSize  int  `json:"cache_size"`
	QueueDepth int  `json:"queue_depth"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.source.Alive() {
		writeError(w, http.StatusServiceUnavailable, "connection is not alive")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	depth, err := s.source.QueueDepth()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := statsResponse{
		Alive:      s.source.Alive(),
		CacheSize:  s.source.CacheSize(),
		QueueDepth: depth,
	}

	if claims := ClaimsFromContext(r.Context()); claims != nil {
		s.log.Info("admin: stats snapshot served",
			"subject", claims.Subject, "operator", claims.Operator, "queue_depth", depth)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
