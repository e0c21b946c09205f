package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"teller/internal/domain"
	"teller/internal/infra/config"
	"teller/internal/infra/tracer"
)

// callRequest is the tool invocation request body. Tenant and user come
// from the bearer token, never from the body.
type callRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	ThreadID  string          `json:"threadId,omitempty"`
}

// callResponse is the uniform tool invocation response.
type callResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server is the HTTP boundary exposing the tool catalog to network
// callers. It enforces the same schemas and permissions as the in-process
// path.
type Server struct {
	tools     domain.ToolExecutor
	auth      Authenticator
	limiter   *rate.Limiter
	logger    *slog.Logger
	addr      string
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates a gateway server over the full tool registry.
func NewServer(cfg config.GatewayConfig, tools domain.ToolExecutor, auth Authenticator, logger *slog.Logger) *Server {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Server{
		tools:   tools,
		auth:    auth,
		limiter: limiter,
		logger:  logger,
		addr:    cfg.Addr,
	}
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tools/call", s.handleCall)
	mux.HandleFunc("GET /v1/tools", s.handleListTools)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

// Start begins serving. Blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("gateway shutdown", "error", err)
		}
	}()

	if err := s.httpSrv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listen address, valid after Start.
func (s *Server) Addr() string { return s.boundAddr }

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.StartSpan(r.Context(), "gateway.call")
	defer span.End()

	id, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, callResponse{Success: false, Error: "rate limit exceeded"})
		return
	}

	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, callResponse{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}
	span.SetAttributes(tracer.StringAttr("tool.name", req.Tool))

	if !domain.KnownTool(req.Tool) {
		writeJSON(w, http.StatusNotFound, callResponse{Success: false, Error: fmt.Sprintf("unknown tool %q", req.Tool)})
		return
	}
	if !domain.CanCall(req.Tool, id.Roles) {
		err := domain.NewDomainError("gateway.call", domain.ErrPermissionDenied, req.Tool)
		s.logger.Warn("tool call denied", "tool", req.Tool, "tenant", id.TenantID, "user", id.UserID, "code", domain.ErrorCodeOf(err))
		writeJSON(w, http.StatusForbidden, callResponse{Success: false, Error: fmt.Sprintf("not permitted to call %q", req.Tool)})
		return
	}

	tool, err := s.tools.Get(req.Tool)
	if err != nil {
		writeJSON(w, http.StatusNotFound, callResponse{Success: false, Error: fmt.Sprintf("unknown tool %q", req.Tool)})
		return
	}

	id.ThreadID = req.ThreadID
	ctx = domain.ContextWithIdentity(ctx, *id)

	res, err := tool.Execute(ctx, req.Arguments)
	if err != nil {
		tracer.RecordError(span, err)
		s.logger.Error("tool call failed", "tool", req.Tool, "error", err)
		writeJSON(w, http.StatusInternalServerError, callResponse{Success: false, Error: "internal error"})
		return
	}
	if res.IsError {
		writeJSON(w, http.StatusOK, callResponse{Success: false, Error: res.Content})
		return
	}
	tracer.SetOK(span)
	writeJSON(w, http.StatusOK, callResponse{Success: true, Result: res.Content})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.tools.Schemas())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate resolves the bearer token. On failure it writes the error
// response and returns ok=false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*domain.Identity, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		writeJSON(w, http.StatusUnauthorized, callResponse{Success: false, Error: "missing bearer token"})
		return nil, false
	}
	id, err := s.auth.Authenticate(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, callResponse{Success: false, Error: "invalid token"})
		return nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
