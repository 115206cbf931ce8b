// Package inspect serves a read-only debug view of a running session.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-chatsync/internal/session"
	"github.com/npezzotti/go-chatsync/internal/stats"
)

const snapshotTimeout = 2 * time.Second

type StateProvider interface {
	Snapshot(ctx context.Context) (session.State, error)
}

type HealthResponse struct {
	Status    string `json:"status"`
	SessionId string `json:"session_id"`
}

type Inspector struct {
	log       *log.Logger
	sessionId string
	state     StateProvider
	stats     stats.StatsProvider
	srv       *http.Server
}

// NewInspector registers its routes on mux next to whatever is already
// there, such as the stats handler, and registers stats.InspectorPanics.
func NewInspector(logger *log.Logger, mux *http.ServeMux, addr, sessionId string, state StateProvider, st stats.StatsProvider) *Inspector {
	i := &Inspector{
		log:       logger,
		sessionId: sessionId,
		state:     state,
		stats:     st,
	}
	st.RegisterMetric(stats.InspectorPanics)

	mux.HandleFunc("GET /healthz", i.health)
	mux.HandleFunc("GET /debug/state", i.debugState)

	var h http.Handler = handlers.CombinedLoggingHandler(logger.Writer(), mux)
	h = i.recoverPanics(h)

	i.srv = &http.Server{
		Addr:    addr,
		Handler: h,
	}

	return i
}

func (i *Inspector) Handler() http.Handler {
	return i.srv.Handler
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (i *Inspector) Start() error {
	ln, err := net.Listen("tcp", i.srv.Addr)
	if err != nil {
		return fmt.Errorf("inspector listen: %w", err)
	}

	return i.Serve(ln)
}

func (i *Inspector) Serve(ln net.Listener) error {
	i.log.Printf("starting inspector on %s\n", ln.Addr())
	if err := i.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (i *Inspector) Shutdown(ctx context.Context) error {
	i.log.Println("shutting down inspector...")
	if err := i.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("inspector shutdown: %w", err)
	}

	i.log.Println("inspector shutdown complete")
	return nil
}

func (i *Inspector) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		i.log.Printf("json encode: %v", err)
	}
}

func (i *Inspector) health(w http.ResponseWriter, r *http.Request) {
	i.writeJson(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		SessionId: i.sessionId,
	})
}

func (i *Inspector) debugState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	st, err := i.state.Snapshot(ctx)
	if err != nil {
		i.log.Printf("snapshot: %v", err)
		errResp := NewServiceUnavailableError(err)
		i.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	i.writeJson(w, http.StatusOK, st)
}
