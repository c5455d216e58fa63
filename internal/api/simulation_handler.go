package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/rtp-engine/internal/errors"
	"github.com/wfunc/rtp-engine/internal/repository"
	"github.com/wfunc/rtp-engine/internal/service"
	"go.uber.org/zap"
)

// SimulationHandler 模拟运行处理器
type SimulationHandler struct {
	simulator *service.Simulator
	logger    *zap.Logger
}

// NewSimulationHandler 创建模拟运行处理器
func NewSimulationHandler(simulator *service.Simulator, logger *zap.Logger) *SimulationHandler {
	return &SimulationHandler{
		simulator: simulator,
		logger:    logger,
	}
}

// StartSimulation 启动一次模拟运行
func (h *SimulationHandler) StartSimulation(c *gin.Context) {
	var req service.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
			Details: err.Error(),
		})
		return
	}

	run, err := h.simulator.StartRun(c.Request.Context(), &req)
	if err != nil {
		c.JSON(statusForError(err), ErrorResponse{
			Code:    "START_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, run)
}

// GetSimulation 查询单次运行
func (h *SimulationHandler) GetSimulation(c *gin.Context) {
	runID := c.Param("run_id")

	run, err := h.simulator.GetRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(statusForError(err), ErrorResponse{
			Code:    "RUN_NOT_FOUND",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

// ListSimulations 分页列出运行记录
func (h *SimulationHandler) ListSimulations(c *gin.Context) {
	p := paginationFromQuery(c)

	runs, err := h.simulator.ListRuns(c.Request.Context(), p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "LIST_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Items:    runs,
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
	})
}

// GetSnapshots 分页查询运行快照
func (h *SimulationHandler) GetSnapshots(c *gin.Context) {
	runID := c.Param("run_id")
	p := paginationFromQuery(c)

	snapshots, err := h.simulator.GetSnapshots(c.Request.Context(), runID, p)
	if err != nil {
		c.JSON(statusForError(err), ErrorResponse{
			Code:    "SNAPSHOTS_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Items:    snapshots,
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
	})
}

// GetStatistics 查询运行统计
func (h *SimulationHandler) GetStatistics(c *gin.Context) {
	since := time.Time{}
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    "INVALID_REQUEST",
				Message: "since参数格式错误，需要RFC3339时间",
			})
			return
		}
		since = parsed
	}

	stats, err := h.simulator.GetStatistics(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "STATISTICS_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// paginationFromQuery 从查询参数提取分页信息
func paginationFromQuery(c *gin.Context) *repository.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return repository.NewPagination(page, pageSize)
}

// statusForError 错误码到HTTP状态码的映射
func statusForError(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrRunNotFound, apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrInvalidRunMode, apperrors.ErrInvalidRTP,
		apperrors.ErrInvalidBet, apperrors.ErrInvalidGains,
		apperrors.ErrInvalidParam:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
