// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Thermoquad/crsfscope/internal/config"
	"github.com/Thermoquad/crsfscope/internal/monitor"
)

// Server is the status HTTP server
type Server struct {
	srv *http.Server
}

// New creates the gin router and HTTP server for a monitor.
// metricsHandler may be nil to disable the metrics route.
func New(cfg config.HTTPConfig, mon *monitor.Monitor, metricsPath string, metricsHandler http.Handler) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	api := r.Group("/api/v1")
	api.GET("/channels", func(c *gin.Context) {
		c.JSON(http.StatusOK, mon.Snapshot().Channels)
	})
	api.GET("/telemetry", func(c *gin.Context) {
		c.JSON(http.StatusOK, mon.Snapshot().Telemetry)
	})
	api.GET("/telemetry/:type", func(c *gin.Context) {
		entry, ok := mon.Snapshot().Telemetry[c.Param("type")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no telemetry of type " + c.Param("type")})
			return
		}
		c.JSON(http.StatusOK, entry)
	})
	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, mon.Stats())
	})
	api.POST("/stats/reset", func(c *gin.Context) {
		mon.ResetStats()
		c.Status(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv}
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
