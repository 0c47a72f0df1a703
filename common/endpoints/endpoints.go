package endpoints

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/cosched/common/stats"
)

// AdminServer exposes liveness and the stats registry of a daemon over http.
type AdminServer struct {
	Addr  string
	Stats stats.StatsReceiver
	mux   *http.ServeMux
}

func NewAdminServer(addr string, stat stats.StatsReceiver) *AdminServer {
	s := &AdminServer{
		Addr:  addr,
		Stats: stat,
		mux:   http.NewServeMux(),
	}
	s.mux.HandleFunc("/", helpHandler)
	s.mux.HandleFunc("/health", healthHandler)
	s.mux.HandleFunc("/admin/metrics.json", s.statsHandler)
	return s
}

func (s *AdminServer) Handler() http.Handler {
	return s.mux
}

// Serve blocks serving on Addr until the listener fails.
func (s *AdminServer) Serve() error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.ServeListener(l)
}

func (s *AdminServer) ServeListener(l net.Listener) error {
	log.Infof("Serving http & stats on %s", l.Addr())
	return http.Serve(l, s.mux)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Error(w, "Common paths: '/health', '/admin/metrics.json'", http.StatusNotImplemented)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

func (s *AdminServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	const contentTypeHdr = "Content-Type"
	const contentTypeVal = "application/json; charset=utf-8"
	w.Header().Set(contentTypeHdr, contentTypeVal)

	pretty := r.URL.Query().Get("pretty") == "true"
	str := s.Stats.Render(pretty)
	if _, err := io.Copy(w, bytes.NewBuffer(str)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

type StatScope string

// MakeStatsReceiver returns a finagle style receiver scoped to the daemon name.
func MakeStatsReceiver(scope StatScope) stats.StatsReceiver {
	return stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry).Scope(string(scope))
}
