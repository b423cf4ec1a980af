package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dushixiang/sentinel/internal/metric"
	"github.com/dushixiang/sentinel/internal/models"
	"github.com/dushixiang/sentinel/internal/service"
	goerrors "github.com/go-errors/errors"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StatePersister 保存通过接口添加的阈值与目标
type StatePersister interface {
	SaveThreshold(t models.Threshold) error
	SaveTarget(t models.MonitoringTarget) error
	DeleteTarget(id string) error
}

// MonitorHandler 指标、阈值、目标相关接口
type MonitorHandler struct {
	logger  *zap.Logger
	service *service.MonitorService
	state   StatePersister
}

func NewMonitorHandler(logger *zap.Logger, service *service.MonitorService, state StatePersister) *MonitorHandler {
	return &MonitorHandler{
		logger:  logger,
		service: service,
		state:   state,
	}
}

// Status 当前聚合状态
// GET /api/status
func (h *MonitorHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    h.service.Status(),
		"alerts":    len(h.service.GetActiveAlerts()),
		"targets":   len(h.service.GetTargets()),
		"timestamp": time.Now().UnixMilli(),
	})
}

// Monitor 提交一次监控数据
// POST /api/monitor
func (h *MonitorHandler) Monitor(c echo.Context) error {
	var data interface{}
	if err := c.Bind(&data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}

	result, err := h.service.Monitor(c.Request().Context(), data)
	if err != nil {
		if goerrors.Is(err, metric.ErrMalformedPayload) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		h.logger.Error("处理监控数据失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "处理失败",
		})
	}
	return c.JSON(http.StatusOK, result)
}

// RecordMetric 写入单个指标
// POST /api/metrics
func (h *MonitorHandler) RecordMetric(c echo.Context) error {
	var req struct {
		Name      string   `json:"name"`
		Value     *float64 `json:"value"`
		Timestamp int64    `json:"timestamp"` // 毫秒，为空使用当前时间
		Unit      string   `json:"unit"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" || req.Value == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}

	ts := time.Now()
	if req.Timestamp > 0 {
		ts = time.UnixMilli(req.Timestamp)
	}
	unit := req.Unit
	if unit == "" {
		unit = metric.InferUnit(req.Name)
	}
	return c.JSON(http.StatusOK, h.service.RecordMetric(req.Name, *req.Value, ts, unit))
}

// GetMetrics 查询指标，start/end 为毫秒时间戳
// GET /api/metrics
func (h *MonitorHandler) GetMetrics(c echo.Context) error {
	name := c.QueryParam("name")
	start, _ := strconv.ParseInt(c.QueryParam("start"), 10, 64)
	end, _ := strconv.ParseInt(c.QueryParam("end"), 10, 64)

	var timeRange *models.TimeRange
	if start > 0 || end > 0 {
		timeRange = &models.TimeRange{}
		if start > 0 {
			timeRange.Start = time.UnixMilli(start)
		}
		if end > 0 {
			timeRange.End = time.UnixMilli(end)
		}
	}

	if name != "" {
		return c.JSON(http.StatusOK, h.service.GetMetricSeries(name, timeRange))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"names":   h.service.GetMetricNames(),
		"metrics": h.service.GetMetrics("", timeRange),
	})
}

// ListThresholds 所有阈值
// GET /api/thresholds
func (h *MonitorHandler) ListThresholds(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.ListThresholds())
}

// CreateThreshold 添加阈值
// POST /api/thresholds
func (h *MonitorHandler) CreateThreshold(c echo.Context) error {
	var spec models.ThresholdSpec
	if err := c.Bind(&spec); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}

	t, err := h.service.SetThreshold(spec)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	h.persistThreshold(t)
	return c.JSON(http.StatusCreated, t)
}

// SetThresholdEnabled 启用或禁用阈值
// PUT /api/thresholds/:id/enabled
func (h *MonitorHandler) SetThresholdEnabled(c echo.Context) error {
	id := c.Param("id")
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}

	if !h.service.SetThresholdEnabled(id, req.Enabled) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "阈值不存在",
		})
	}
	if t, ok := h.service.GetThreshold(id); ok {
		h.persistThreshold(t)
		return c.JSON(http.StatusOK, t)
	}
	return c.NoContent(http.StatusOK)
}

// ListTargets 所有监控目标
// GET /api/targets
func (h *MonitorHandler) ListTargets(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.GetTargets())
}

// CreateTarget 添加或替换监控目标
// POST /api/targets
func (h *MonitorHandler) CreateTarget(c echo.Context) error {
	var target models.MonitoringTarget
	if err := c.Bind(&target); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}

	if err := h.service.AddTarget(target); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	if h.state != nil {
		if err := h.state.SaveTarget(target); err != nil {
			h.logger.Error("保存监控目标失败", zap.String("targetID", target.ID), zap.Error(err))
		}
	}
	return c.JSON(http.StatusCreated, target)
}

// DeleteTarget 删除监控目标
// DELETE /api/targets/:id
func (h *MonitorHandler) DeleteTarget(c echo.Context) error {
	id := c.Param("id")
	if !h.service.RemoveTarget(id) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "监控目标不存在",
		})
	}
	if h.state != nil {
		if err := h.state.DeleteTarget(id); err != nil {
			h.logger.Error("删除已保存的监控目标失败", zap.String("targetID", id), zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "删除成功",
	})
}

// CheckTarget 立即检查一次
// POST /api/targets/:id/check
func (h *MonitorHandler) CheckTarget(c echo.Context) error {
	check, ok := h.service.CheckTarget(c.Request().Context(), c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "监控目标不存在",
		})
	}
	return c.JSON(http.StatusOK, check)
}

// GetHealthChecks 每个目标最近一次检查结果
// GET /api/health-checks
func (h *MonitorHandler) GetHealthChecks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.GetHealthChecks())
}

// GetTasks 调度任务状态
// GET /api/tasks
func (h *MonitorHandler) GetTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.GetTaskStatus())
}

func (h *MonitorHandler) persistThreshold(t models.Threshold) {
	if h.state == nil {
		return
	}
	if err := h.state.SaveThreshold(t); err != nil {
		h.logger.Error("保存阈值失败", zap.String("thresholdId", t.ID), zap.Error(err))
	}
}
