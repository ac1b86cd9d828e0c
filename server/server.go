// Package server exposes the service over HTTP: document ingestion and
// search, chat conversations with SSE and WebSocket streaming, and
// health probes, all under /api/v1.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/agent"
	"github.com/ragent-io/ragent/chat"
	"github.com/ragent-io/ragent/document"
	"github.com/ragent-io/ragent/llm"
	"github.com/ragent-io/ragent/retrieval"
	"github.com/ragent-io/ragent/storage"
	"github.com/ragent-io/ragent/store"
)

const shutdownTimeout = 10 * time.Second

// Options configure the HTTP server
type Options struct {
	Host        string
	Port        int
	CORSOrigins []string
	AppName     string
	AppVersion  string
	Debug       bool
}

// Dependencies are the services the handlers dispatch to
type Dependencies struct {
	Documents *document.Service
	Retrieval *retrieval.Service
	Chats     *chat.Service
	Agent     *agent.Orchestrator
	DB        *storage.Storage
	KV        store.Store
	Models    *llm.Client
}

// Server is the HTTP front of the service
type Server struct {
	options   Options
	documents *document.Service
	retrieval *retrieval.Service
	chats     *chat.Service
	agent     *agent.Orchestrator
	db        *storage.Storage
	kv        store.Store
	models    *llm.Client
	engine    *gin.Engine
}

// New builds the server and its route table
func New(options Options, deps Dependencies) *Server {
	if !options.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		options:   options,
		documents: deps.Documents,
		retrieval: deps.Retrieval,
		chats:     deps.Chats,
		agent:     deps.Agent,
		db:        deps.DB,
		kv:        deps.KV,
		models:    deps.Models,
	}

	engine := gin.New()
	engine.Use(requestLogger(), recovery(), corsMiddleware(options.CORSOrigins))
	server.routes(engine)
	server.engine = engine
	return server
}

// Engine exposes the router, primarily to tests
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// routes mounts every endpoint under /api/v1
func (s *Server) routes(engine *gin.Engine) {
	engine.GET("/", s.root)

	v1 := engine.Group("/api/v1")

	v1.GET("/health", s.health)
	v1.GET("/health/detailed", s.healthDetailed)
	v1.GET("/health/ready", s.healthReady)

	documents := v1.Group("/documents")
	documents.POST("", s.uploadDocument)
	documents.GET("", s.listDocuments)
	documents.POST("/search", s.searchChunks)
	documents.POST("/search/documents", s.searchDocuments)
	documents.GET("/:id", s.getDocument)
	documents.DELETE("/:id", s.deleteDocument)
	documents.GET("/:id/status", s.documentStatus)

	chats := v1.Group("/chats")
	chats.POST("", s.createChat)
	chats.GET("", s.listChats)
	chats.GET("/:id", s.getChat)
	chats.DELETE("/:id", s.deleteChat)
	chats.POST("/:id/messages", s.sendMessage)
	chats.POST("/:id/messages/stream", s.streamMessage)
	chats.GET("/:id/ws", s.chatSocket)
	chats.POST("/:id/branches", s.createBranch)
	chats.POST("/:id/branches/switch", s.switchBranch)
	chats.GET("/:id/history", s.chatHistory)
}

// Run serves until the context is cancelled, then drains in-flight
// requests before returning
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.options.Host, s.options.Port)
	srv := &http.Server{Addr: addr, Handler: s.engine}

	failed := make(chan error, 1)
	go func() {
		log.Info("[Server] listening on %s", addr)
		failed <- srv.ListenAndServe()
	}()

	select {
	case err := <-failed:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Error("[Server] %s: %s", addr, err.Error())
		return err
	case <-ctx.Done():
		drain, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(drain); err != nil {
			log.Error("[Server] %s shutdown: %s", addr, err.Error())
			return err
		}
		log.Info("[Server] %s was closed", addr)
		return nil
	}
}

// root answers with service coordinates
func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    s.options.AppName,
		"version": s.options.AppVersion,
		"health":  "/api/v1/health",
	})
}
