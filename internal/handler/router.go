package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/dushixiang/sentinel/internal/exporter"
	"github.com/dushixiang/sentinel/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server HTTP 接口，只是引擎 API 的一层薄封装
type Server struct {
	logger *zap.Logger
	echo   *echo.Echo
}

// NewServer archive、state、metrics 都可以为 nil
func NewServer(logger *zap.Logger, monitor *service.MonitorService, archive *service.ArchiveService, state StatePersister, metrics *exporter.Exporter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("请求",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Error(v.Error))
			return nil
		},
	}))

	monitorHandler := NewMonitorHandler(logger, monitor, state)
	alertHandler := NewAlertHandler(logger, monitor, archive)
	eventHandler := NewEventHandler(logger, monitor)

	api := e.Group("/api")
	api.GET("/status", monitorHandler.Status)
	api.POST("/monitor", monitorHandler.Monitor)
	api.GET("/metrics", monitorHandler.GetMetrics)
	api.POST("/metrics", monitorHandler.RecordMetric)

	api.GET("/thresholds", monitorHandler.ListThresholds)
	api.POST("/thresholds", monitorHandler.CreateThreshold)
	api.PUT("/thresholds/:id/enabled", monitorHandler.SetThresholdEnabled)

	api.GET("/targets", monitorHandler.ListTargets)
	api.POST("/targets", monitorHandler.CreateTarget)
	api.DELETE("/targets/:id", monitorHandler.DeleteTarget)
	api.POST("/targets/:id/check", monitorHandler.CheckTarget)
	api.GET("/health-checks", monitorHandler.GetHealthChecks)
	api.GET("/tasks", monitorHandler.GetTasks)

	api.GET("/alerts", alertHandler.ListActive)
	api.GET("/alerts/history", alertHandler.History)
	api.POST("/alerts/:id/ack", alertHandler.Acknowledge)
	api.POST("/alerts/:id/suppress", alertHandler.Suppress)
	api.GET("/archive/alerts", alertHandler.ListArchived)
	api.GET("/archive/alerts/:id", alertHandler.GetArchived)

	api.GET("/events", eventHandler.Stream)

	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	return &Server{logger: logger, echo: e}
}

// Handler 用于测试
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start 阻塞直到服务关闭
func (s *Server) Start(addr string) error {
	s.logger.Info("HTTP 服务启动", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
