package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fractalmind-ai/codeteam/internal/agent"
	"github.com/fractalmind-ai/codeteam/internal/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	readLimit  = 1 << 20
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// Info describes the running process for the status endpoint.
type Info struct {
	WorkspaceRoot string
	Session       string
	Logger        logrus.FieldLogger
}

// Server represents the gateway WebSocket server
type Server struct {
	config       *config.Config
	info         Info
	log          logrus.FieldLogger
	upgrader     websocket.Upgrader
	clients      map[string]*Client
	clientsMutex sync.RWMutex
	httpServer   *http.Server
	agentManager *agent.Manager
	startTime    time.Time
}

// NewServer creates a new gateway server
func NewServer(cfg *config.Config, manager *agent.Manager, info Info) (*Server, error) {
	if cfg == nil || cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway config is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("agent manager is required")
	}

	logger := info.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Server{
		config: cfg,
		info:   info,
		log:    logger.WithField("component", "gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     buildOriginChecker(cfg.Gateway.AllowedOrigins),
		},
		clients:      make(map[string]*Client),
		agentManager: manager,
	}, nil
}

// Start serves HTTP until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/status", s.handleStatus)

	if s.startTime.IsZero() {
		s.startTime = time.Now()
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Gateway.Bind, s.config.Gateway.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, client := range s.snapshotClients() {
		client.Close()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}
	return nil
}

func buildOriginChecker(allowed []string) func(*http.Request) bool {
	configured := len(allowed) > 0
	allowedSet := make(map[string]struct{})
	for _, origin := range allowed {
		if normalized, ok := normalizeOrigin(origin); ok {
			allowedSet[normalized] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		if !configured {
			return true
		}
		normalized, ok := normalizeOrigin(r.Header.Get("Origin"))
		if !ok {
			return false
		}
		_, ok = allowedSet[normalized]
		return ok
	}
}

func normalizeOrigin(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(parsed.Scheme), strings.ToLower(parsed.Host)), true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	clientID := r.URL.Query().Get("session")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := NewClient(clientID, conn, s)

	s.clientsMutex.Lock()
	if previous, ok := s.clients[clientID]; ok {
		defer previous.Close()
	}
	s.clients[clientID] = client
	s.clientsMutex.Unlock()

	s.log.WithField("client", clientID).Info("client connected")

	go client.keepAlive()
	go client.Handle()
}

// GetAgentManager returns the agent manager
func (s *Server) GetAgentManager() *agent.Manager {
	return s.agentManager
}

type statusResponse struct {
	Status        string   `json:"status"`
	ActiveClients int      `json:"active_clients"`
	Uptime        string   `json:"uptime"`
	WorkspaceRoot string   `json:"workspace_root"`
	Tools         []string `json:"tools"`
	Session       string   `json:"session,omitempty"`
	Task          string   `json:"task,omitempty"`
	MaxRounds     int      `json:"max_rounds,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Duration(0)
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second)
	}

	toolNames := []string{}
	for _, info := range s.agentManager.Tools() {
		toolNames = append(toolNames, info.Name)
	}

	resp := statusResponse{
		Status:        "ok",
		ActiveClients: s.activeClients(),
		Uptime:        uptime.String(),
		WorkspaceRoot: s.info.WorkspaceRoot,
		Tools:         toolNames,
		Session:       s.info.Session,
	}
	if ws := s.config.Workspace; ws != nil {
		resp.Task = ws.Task
		resp.MaxRounds = ws.MaxRounds
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) activeClients() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

func (s *Server) snapshotClients() []*Client {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	clients := make([]*Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	return clients
}

func (s *Server) removeClient(c *Client) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	if current, ok := s.clients[c.ID]; ok && current == c {
		delete(s.clients, c.ID)
	}
}
