package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hawkeye-monitor/hawkeye-deploy/internal/logger"
)

const (
	statusReadTimeout     = 5 * time.Second
	statusWriteTimeout    = 10 * time.Second
	statusShutdownTimeout = 3 * time.Second
)

// StatusServer exposes the supervisor over a small HTTP control surface.
type StatusServer struct {
	supervisor *Supervisor
	router     *mux.Router
}

// NewStatusServer wires the control routes for the given supervisor.
func NewStatusServer(s *Supervisor) *StatusServer {
	server := &StatusServer{
		supervisor: s,
		router:     mux.NewRouter(),
	}

	server.router.HandleFunc("/healthz", server.handleHealth).Methods(http.MethodGet)
	server.router.HandleFunc("/status", server.handleStatus).Methods(http.MethodGet)
	server.router.HandleFunc("/restart", server.handleRestart).Methods(http.MethodPost)

	return server
}

// ServeHTTP implements http.Handler.
func (s *StatusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on addr until the context is canceled. A closed listener on
// shutdown is not reported as an error.
func (s *StatusServer) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on status address: %w", err)
	}

	httpServer := &http.Server{
		Handler:      s,
		ReadTimeout:  statusReadTimeout,
		WriteTimeout: statusWriteTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
		defer cancel()

		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.InfoKV(ctx, "Status server listening", "address", listener.Addr().String())

	if err = httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve status requests: %w", err)
	}

	return nil
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Status())
}

func (s *StatusServer) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.supervisor.RequestRestart(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotRunning) {
			status = http.StatusConflict
		}

		writeJSON(w, status, map[string]string{"error": err.Error()})

		return
	}

	logger.InfoKV(r.Context(), "Restart requested over status API", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"result": "restarting"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}

// FetchStatus queries a running launcher's status endpoint.
func FetchStatus(ctx context.Context, addr string) (*Status, error) {
	url := fmt.Sprintf("http://%s/status", addr)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("query status endpoint: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", response.Status)
	}

	var status Status
	if err = json.NewDecoder(response.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status payload: %w", err)
	}

	return &status, nil
}
