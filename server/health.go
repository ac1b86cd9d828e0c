package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// kvProbe round-trips one short-lived key through the store.
func (s *Server) kvProbe() error {
	key := "health:probe:" + uuid.NewString()
	if err := s.kv.Set(key, "ok", time.Second); err != nil {
		return err
	}
	return s.kv.Del(key)
}

// healthDetailed reports each dependency separately. Any failing
// service degrades the overall status but still returns 200, so
// dashboards can render the partial picture.
func (s *Server) healthDetailed(c *gin.Context) {
	ctx := c.Request.Context()

	status := "healthy"
	services := gin.H{}

	if err := s.db.Ping(ctx); err != nil {
		services["postgres"] = gin.H{"status": "unhealthy", "error": err.Error()}
		status = "degraded"
	} else {
		services["postgres"] = gin.H{"status": "healthy"}
	}

	if err := s.kvProbe(); err != nil {
		services["cache"] = gin.H{"status": "unhealthy", "error": err.Error()}
		status = "degraded"
	} else {
		services["cache"] = gin.H{"status": "healthy"}
	}

	if err := s.models.Health(ctx); err != nil {
		services["ollama"] = gin.H{"status": "unhealthy", "error": err.Error()}
		status = "degraded"
	} else {
		models, err := s.models.ListModels(ctx)
		if err != nil {
			services["ollama"] = gin.H{"status": "unhealthy", "error": err.Error()}
			status = "degraded"
		} else {
			services["ollama"] = gin.H{
				"status":           "healthy",
				"url":              s.models.BaseURL(),
				"available_models": len(models),
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"version":  s.options.AppVersion,
		"services": services,
	})
}

// healthReady gates container traffic on the critical dependencies.
// The model server is not required: the API can serve documents and
// history without it.
func (s *Server) healthReady(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
		return
	}
	if err := s.kvProbe(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
