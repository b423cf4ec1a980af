package handler

import (
	"net/http"
	"strconv"

	"github.com/dushixiang/sentinel/internal/repo"
	"github.com/dushixiang/sentinel/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AlertHandler 告警接口，archive 为 nil 时不提供归档查询
type AlertHandler struct {
	logger  *zap.Logger
	service *service.MonitorService
	archive *service.ArchiveService
}

func NewAlertHandler(logger *zap.Logger, service *service.MonitorService, archive *service.ArchiveService) *AlertHandler {
	return &AlertHandler{
		logger:  logger,
		service: service,
		archive: archive,
	}
}

// ListActive 活跃告警
// GET /api/alerts
func (h *AlertHandler) ListActive(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.GetActiveAlerts())
}

// History 告警历史，最新的在前
// GET /api/alerts/history
func (h *AlertHandler) History(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return c.JSON(http.StatusOK, h.service.GetAlertHistory(limit))
}

// Acknowledge 确认告警
// POST /api/alerts/:id/ack
func (h *AlertHandler) Acknowledge(c echo.Context) error {
	var req struct {
		By string `json:"by"`
	}
	_ = c.Bind(&req)
	if req.By == "" {
		req.By = "api"
	}

	if !h.service.AcknowledgeAlert(c.Param("id"), req.By) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "告警不存在",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "已确认",
	})
}

// Suppress 抑制告警
// POST /api/alerts/:id/suppress
func (h *AlertHandler) Suppress(c echo.Context) error {
	if !h.service.SuppressAlert(c.Param("id")) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "告警不存在或已关闭",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "已抑制",
	})
}

// ListArchived 分页查询告警归档
// GET /api/archive/alerts
func (h *AlertHandler) ListArchived(c echo.Context) error {
	if h.archive == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "未启用告警归档",
		})
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	start, _ := strconv.ParseInt(c.QueryParam("start"), 10, 64)
	end, _ := strconv.ParseInt(c.QueryParam("end"), 10, 64)

	result, err := h.archive.List(c.Request().Context(), repo.AlertRecordFilter{
		ThresholdID: c.QueryParam("thresholdId"),
		Status:      c.QueryParam("status"),
		Level:       c.QueryParam("level"),
		Start:       start,
		End:         end,
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		h.logger.Error("查询告警归档失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "查询失败",
		})
	}
	return c.JSON(http.StatusOK, result)
}

// GetArchived 单条归档
// GET /api/archive/alerts/:id
func (h *AlertHandler) GetArchived(c echo.Context) error {
	if h.archive == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "未启用告警归档",
		})
	}

	record, err := h.archive.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("获取告警归档失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "获取失败",
		})
	}
	if record == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "记录不存在",
		})
	}
	return c.JSON(http.StatusOK, record)
}
