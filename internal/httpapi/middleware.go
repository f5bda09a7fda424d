package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/hdcharts/internal/auth"
)

// withCORS allows any origin and answers preflight requests directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestLog attaches a request-scoped logger carrying a request id
// and logs one line per request.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		logger := s.logger.With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))

		logger.Info().
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// identityHandler is an API handler that runs for a verified caller.
type identityHandler func(w http.ResponseWriter, r *http.Request, id auth.Identity)

// authenticated verifies the bearer token before calling h. Nothing
// touches the store for an unauthenticated caller.
func (s *Server) authenticated(h identityHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.serveAs(w, r, token, h)
	})
}

// serveAs verifies token and calls h with the caller's identity.
func (s *Server) serveAs(w http.ResponseWriter, r *http.Request, token string, h identityHandler) {
	id, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger := zerolog.Ctx(r.Context()).With().Str("user", id.UserID).Logger()
	ctx := auth.WithIdentity(logger.WithContext(r.Context()), id)
	h(w, r.WithContext(ctx), id)
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	return rec.ResponseWriter.Write(b)
}

// Hijack lets the events endpoint take over the connection.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}
