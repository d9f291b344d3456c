package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/glicbridge/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

type panelOpenRequest struct {
	DockedToWindowID *string `json:"docked_to_window_id"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.cfg.Name,
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		clients := s.Clients()
		initialized := 0
		for _, ci := range clients {
			if ci.Initialized {
				initialized++
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":       true,
			"uptime":      time.Since(s.started).String(),
			"service":     s.cfg.Name,
			"clients":     len(clients),
			"initialized": initialized,
			"version":     version,
		})
	})

	glicRoutes := s.router.Group("/glic")
	glicRoutes.GET("/ws", s.handleWebSocket)

	glicRoutes.GET("/clients", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"clients": s.Clients()})
	})

	glicRoutes.GET("/tabs", func(c *gin.Context) {
		tabs, err := s.backend.Tabs(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"window_id":  s.backend.WindowID(),
			"panel_open": s.backend.PanelOpen(),
			"tabs":       tabs,
		})
	})

	glicRoutes.POST("/panel/open", func(c *gin.Context) {
		var req panelOpenRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, s.NotifyPanelOpened(c.Request.Context(), req.DockedToWindowID))
	})

	glicRoutes.POST("/panel/close", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.NotifyPanelClosed(c.Request.Context()))
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	if err := auth.CheckRequest(s.validator, c.Request); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request)
	if err != nil {
		log.Warn().
			Str("origin", c.GetHeader("Origin")).
			Err(err).
			Msg("websocket upgrade failed")
		return
	}
	s.accept(conn)
}
