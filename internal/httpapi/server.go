package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/hdcharts/internal/auth"
	"github.com/nhle/hdcharts/internal/checklist"
	"github.com/nhle/hdcharts/internal/document"
	"github.com/nhle/hdcharts/internal/events"
	"github.com/nhle/hdcharts/internal/labs"
	"github.com/nhle/hdcharts/internal/model"
)

// Deps are the collaborators a Server routes requests to. Events may be
// nil, which disables the change notification endpoint.
type Deps struct {
	Verifier   auth.Verifier
	Checklists *checklist.Service
	Documents  *document.Service
	Labs       *labs.Service
	Events     *events.Hub
	Logger     zerolog.Logger
}

// Server is the JSON HTTP API.
type Server struct {
	verifier   auth.Verifier
	checklists *checklist.Service
	documents  *document.Service
	labs       *labs.Service
	hub        *events.Hub
	logger     zerolog.Logger
}

// NewServer creates a Server from deps.
func NewServer(deps Deps) *Server {
	return &Server{
		verifier:   deps.Verifier,
		checklists: deps.Checklists,
		documents:  deps.Documents,
		labs:       deps.Labs,
		hub:        deps.Events,
		logger:     deps.Logger.With().Str("component", "http").Logger(),
	}
}

// Handler returns the routed handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/load-document", s.authenticated(s.handleLoadDocument))
	mux.Handle("POST /api/save-document", s.authenticated(s.handleSaveDocument))
	mux.Handle("GET /api/load-checklists", s.authenticated(s.handleLoadChecklists))
	mux.Handle("POST /api/save-checklists", s.authenticated(s.handleSaveChecklists))
	mux.Handle("GET /api/labs", s.authenticated(s.handleListLabs))
	mux.Handle("POST /api/labs", s.authenticated(s.handleReplaceLabs))
	mux.Handle("DELETE /api/labs", s.authenticated(s.handleDeleteLabs))
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.withRequestLog(withCORS(mux))
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg model.ServerConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr, err)
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg model.ServerConfig) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents opens the change notification socket. Browsers cannot set
// headers on a WebSocket handshake, so the token comes from the query.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, r, badRequest("change notifications are disabled"))
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		if token, err = auth.BearerToken(r); err != nil {
			writeError(w, r, err)
			return
		}
	}

	s.serveAs(w, r, token, func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		s.hub.Serve(w, r, id.UserID)
	})
}

// notify tells the user's other sessions that something changed.
func (s *Server) notify(userID, eventType, kind string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(userID, events.Event{Type: eventType, Kind: kind})
}
