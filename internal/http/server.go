// Package http exposes the store-local API: event capture for POS terminals
// plus read-only health, stats and retry-ledger views.
package http

import (
	"context"

	"github.com/jfarhadi/pos-sync/internal/repository"
	"github.com/jfarhadi/pos-sync/internal/stats"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

func NewServer(storeID string, records repository.RecordsRepository, reporter *stats.Reporter, retries repository.RetryLogRepository) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", healthHandler(reporter))

	v1 := e.Group("/v1")
	v1.POST("/events", createEventHandler(storeID, records))
	v1.GET("/stats", statsHandler(reporter))
	v1.GET("/retries", listRetriesHandler(retries))

	return &Server{e: e}
}

func (s *Server) Start(addr string, log *zap.Logger) error {
	log.Info("http listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
