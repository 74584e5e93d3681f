// Package api exposes the HTTP surface: SSE agent runs, the collaboration
// control plane, the WebSocket upgrade and operational endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"collabboard/internal/agui"
	"collabboard/internal/config"
	"collabboard/internal/hub"
	"collabboard/internal/llm"
	"collabboard/internal/websocket"
	"collabboard/pkg/interfaces"
)

// Options collects the server's collaborators.
type Options struct {
	Config    config.ServerConfig
	WSHandler *websocket.Handler
	Hub       *hub.Hub
	Registry  *websocket.Registry
	Store     interfaces.InteractionStore
	Bridge    *agui.Bridge
	Prom      *prometheus.Registry
	Logger    zerolog.Logger
}

// Server is the HTTP front for both protocol subsystems.
type Server struct {
	opts       Options
	httpServer *http.Server
}

// NewServer builds the gin engine and route table.
func NewServer(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// Permissive CORS: the dashboard frontend runs on its own origin and
	// preflights both the SSE and control-plane endpoints.
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization", "Cache-Control"},
		MaxAge:          12 * time.Hour,
		// Preflights answer 200, matching what the dashboard frontend's
		// fetch layer expects.
		OptionsResponseStatusCode: http.StatusOK,
	}))

	s := &Server{
		opts: opts,
		httpServer: &http.Server{
			Addr:        fmt.Sprintf("%s:%d", opts.Config.Host, opts.Config.Port),
			Handler:     engine,
			ReadTimeout: opts.Config.ReadTimeout,
			// WriteTimeout stays at its configured value; zero keeps SSE
			// streams open indefinitely.
			WriteTimeout: opts.Config.WriteTimeout,
		},
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Prom, promhttp.HandlerOpts{})))
	engine.GET("/ws", gin.WrapF(opts.WSHandler.HandleWebSocket))
	engine.GET("/api/agent", s.handleAgent)
	engine.POST("/api/agent", s.handleAgent)
	engine.GET("/api/collaboration", s.handleCollaborationQuery)
	engine.POST("/api/collaboration", s.handleCollaborationAction)

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.opts.Logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the route table for in-process testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	storeStatus := "ok"
	if s.opts.Store != nil {
		if err := s.opts.Store.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			storeStatus = err.Error()
		}
	} else {
		storeStatus = "disabled"
	}

	c.JSON(status, gin.H{
		"status": http.StatusText(status),
		"components": gin.H{
			"store":         storeStatus,
			"collaboration": s.opts.Registry.Stats(),
		},
	})
}

type agentRequest struct {
	Messages []llm.ChatMessage `json:"messages"`
}

// handleAgent runs one completion against the SSE stream. GET accepts a
// single message via query parameter for simple clients; POST takes the
// full conversation.
func (s *Server) handleAgent(c *gin.Context) {
	var req agentRequest
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	} else if message := c.Query("message"); message != "" {
		req.Messages = []llm.ChatMessage{{Role: "user", Content: message}}
	}

	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages are required"})
		return
	}

	agui.PrepareSSE(c.Writer)
	c.Status(http.StatusOK)

	enc := agui.NewEncoder(c.Writer)
	if err := s.opts.Bridge.Run(c.Request.Context(), enc, req.Messages); err != nil {
		// The failure already went out as RUN_ERROR; nothing more to send.
		s.opts.Logger.Warn().Err(err).Msg("agent run failed")
	}
}

func (s *Server) handleCollaborationQuery(c *gin.Context) {
	switch c.Query("action") {
	case "status":
		response := gin.H{"stats": s.opts.Registry.Stats()}
		if s.opts.Store != nil {
			interactions, err := s.opts.Store.RecentInteractions(c.Request.Context(), 20)
			if err != nil {
				s.opts.Logger.Warn().Err(err).Msg("failed to load recent interactions")
			} else {
				response["recentInteractions"] = interactions
			}
		}
		c.JSON(http.StatusOK, response)

	case "init":
		response := gin.H{"users": s.opts.Registry.ListUsers()}
		if payload, hasState := s.opts.Registry.SnapshotPayload(); hasState {
			response["snapshot"] = payload
		}
		c.JSON(http.StatusOK, response)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

type collaborationAction struct {
	Action string                 `json:"action"`
	Data   map[string]interface{} `json:"data"`
}

func (s *Server) handleCollaborationAction(c *gin.Context) {
	var req collaborationAction
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch req.Action {
	case "broadcast_state":
		if len(req.Data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "state data is required"})
			return
		}
		if err := s.opts.Hub.BroadcastState(req.Data); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "broadcast"})

	case "force_sync":
		reload, _ := req.Data["reload"].(bool)
		if err := s.opts.Hub.ForceSync(reload); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "synced"})

	case "kick_user":
		sessionID, _ := req.Data["sessionId"].(string)
		userID, _ := req.Data["userId"].(string)
		reason, _ := req.Data["reason"].(string)
		if sessionID == "" && userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId or userId is required"})
			return
		}
		if err := s.opts.Hub.Kick(sessionID, userID, reason); err != nil {
			if errors.Is(err, hub.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "kicked"})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}
