// Package api provides HTTP handlers and the main API server for the
// Echoes engine.
//
// It exposes endpoints for scenario and journey selection, the turn
// pipeline, session and profile access, and credit operations. Caller
// identity is the X-User-ID header; authentication happens in front of
// this service.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/dialogue"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/genai"
	"github.com/Someone-anon-coder/echoes-ai-friend/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server bundles the orchestrator behind the HTTP surface.
type Server struct {
	orchestrator *dialogue.Orchestrator
	addr         string
}

// NewServer creates a server around an orchestrator.
func NewServer(orchestrator *dialogue.Orchestrator, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{orchestrator: orchestrator, addr: cfg.Addr}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/scenarios", s.scenariosHandler)
	mux.HandleFunc("/journeys", s.journeysHandler)
	mux.HandleFunc("/session", s.sessionHandler)
	mux.HandleFunc("/session/scenario", s.selectScenarioHandler)
	mux.HandleFunc("/session/journey", s.selectJourneyHandler)
	mux.HandleFunc("/session/message", s.messageHandler)
	mux.HandleFunc("/session/reset", s.resetHandler)
	mux.HandleFunc("/profile", s.profileHandler)
	mux.HandleFunc("/profile/premium", s.premiumHandler)
	mux.HandleFunc("/credits/purchase", s.purchaseHandler)
	mux.HandleFunc("/mood", s.moodHandler)
	return mux
}

// Run builds the full stack (store, generation client, orchestrator) and
// serves HTTP until the listener fails.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize generation client: %w", err)
	}

	orchestrator, err := dialogue.NewOrchestrator(
		dialogue.WithStore(st),
		dialogue.WithGenAI(client),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	srv := NewServer(orchestrator, apiOpts...)
	slog.Info("Server.Run: Echoes API listening", "addr", srv.addr)
	httpServer := &http.Server{
		Addr:    srv.addr,
		Handler: srv.Handler(),
	}
	return httpServer.ListenAndServe()
}
