package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/escalation"
	"github.com/taoyao-code/worker-safety/internal/gateway"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxIngestBody    = 64 << 10
)

// AlertService 告警生命周期操作（*alerts.Service 实现）
type AlertService interface {
	Get(ctx context.Context, id int64) (*coremodel.Alert, error)
	List(ctx context.Context, f coremodel.AlertFilter) ([]coremodel.Alert, error)
	Acknowledge(ctx context.Context, id int64, by string, notes *string) (*coremodel.Alert, error)
	BatchAcknowledge(ctx context.Context, ids []int64, by string, notes *string) ([]coremodel.Alert, error)
	Assign(ctx context.Context, id int64, assignee string) (*coremodel.Alert, error)
	UpdateNotes(ctx context.Context, id int64, notes string) (*coremodel.Alert, error)
	Resolve(ctx context.Context, id int64, notes *string) (*coremodel.Alert, error)
	Archive(ctx context.Context, id int64) (*coremodel.Alert, error)
}

// Sweeper 手动触发升级巡检（*escalation.Monitor 实现）
type Sweeper interface {
	RunOnce(ctx context.Context) (escalation.Result, error)
}

// Handler 遥测接入与告警处置 API
type Handler struct {
	ingester gateway.Ingester
	alerts   AlertService
	sweeper  Sweeper
	logger   *zap.Logger
}

// NewHandler 创建处理器；sweeper 为 nil 时巡检接口返回 503
func NewHandler(ing gateway.Ingester, svc AlertService, sweeper Sweeper, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ingester: ing, alerts: svc, sweeper: sweeper, logger: logger}
}

// IngestSensorData 接收一条遥测样本
// @Summary 上报遥测样本
// @Description 归一化并持久化样本，评估规则并为每条命中规则建单
// @Tags 遥测
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param payload body map[string]interface{} true "样本（device_id 必填）"
// @Success 201 {object} gateway.IngestResult
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/sensor-data [post]
func (h *Handler) IngestSensorData(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "payload_too_large",
				Message: "body exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes",
			})
			return
		}
		badRequest(c, "read body: "+err.Error())
		return
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		badRequest(c, "body must be a JSON object")
		return
	}

	res, err := h.ingester.Ingest(c.Request.Context(), raw, gateway.TransportHTTP)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListAlerts 告警列表
// @Summary 告警列表
// @Description 按状态/级别/设备过滤，按创建时间倒序分页；默认不含已归档
// @Tags 告警
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Pending|Acknowledged|Responding|Resolved"
// @Param severity query string false "Low|Medium|High|Critical"
// @Param device_id query string false "设备ID"
// @Param include_archived query bool false "包含已归档"
// @Param limit query int false "每页数量(默认50，最大500)"
// @Param offset query int false "偏移量(默认0)"
// @Success 200 {object} AlertListResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/alerts [get]
func (h *Handler) ListAlerts(c *gin.Context) {
	f := coremodel.AlertFilter{Limit: defaultListLimit}

	if v := c.Query("status"); v != "" {
		f.Status = coremodel.AlertStatus(v)
		if !f.Status.Valid() {
			badRequest(c, "unknown status "+strconv.Quote(v))
			return
		}
	}
	if v := c.Query("severity"); v != "" {
		f.Severity = coremodel.Severity(v)
		if !f.Severity.Valid() {
			badRequest(c, "unknown severity "+strconv.Quote(v))
			return
		}
	}
	f.DeviceID = coremodel.DeviceID(c.Query("device_id"))
	if v := c.Query("include_archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "include_archived must be a boolean")
			return
		}
		f.IncludeArchived = b
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		f.Limit = min(n, maxListLimit)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "offset must be a non-negative integer")
			return
		}
		f.Offset = n
	}

	list, err := h.alerts.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []coremodel.Alert{}
	}
	c.JSON(http.StatusOK, AlertListResponse{Alerts: list, Limit: f.Limit, Offset: f.Offset})
}

// AlertListResponse 列表响应
type AlertListResponse struct {
	Alerts []coremodel.Alert `json:"alerts"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// GetAlert 告警详情
// @Summary 告警详情
// @Tags 告警
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "告警ID"
// @Success 200 {object} coremodel.Alert
// @Failure 404 {object} ErrorResponse
// @Router /api/alerts/{id} [get]
func (h *Handler) GetAlert(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	a, err := h.alerts.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// AcknowledgeRequest 确认请求
type AcknowledgeRequest struct {
	AcknowledgedBy string  `json:"acknowledged_by" binding:"required"`
	Notes          *string `json:"notes"`
}

// AcknowledgeAlert 确认告警
// @Summary 确认告警
// @Description 仅 Pending（或保留的 Responding）可确认；响应时长只计算一次
// @Tags 告警
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "告警ID"
// @Param request body AcknowledgeRequest true "确认人与备注"
// @Success 200 {object} coremodel.Alert
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/alerts/{id}/acknowledge [post]
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.alerts.Acknowledge(c.Request.Context(), id, req.AcknowledgedBy, req.Notes)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// BatchAcknowledgeRequest 批量确认请求
type BatchAcknowledgeRequest struct {
	AlertIDs       []int64 `json:"alert_ids" binding:"required,min=1"`
	AcknowledgedBy string  `json:"acknowledged_by" binding:"required"`
	Notes          *string `json:"notes"`
}

// BatchAcknowledgeResponse 批量确认响应
type BatchAcknowledgeResponse struct {
	Acknowledged []coremodel.Alert `json:"acknowledged"`
	Requested    int               `json:"requested"`
}

// BatchAcknowledge 批量确认
// @Summary 批量确认告警
// @Description 共用同一确认时间；不存在或不可确认的告警被跳过
// @Tags 告警
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body BatchAcknowledgeRequest true "告警ID列表"
// @Success 200 {object} BatchAcknowledgeResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/alerts/acknowledge [post]
func (h *Handler) BatchAcknowledge(c *gin.Context) {
	var req BatchAcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	acked, err := h.alerts.BatchAcknowledge(c.Request.Context(), req.AlertIDs, req.AcknowledgedBy, req.Notes)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if acked == nil {
		acked = []coremodel.Alert{}
	}
	c.JSON(http.StatusOK, BatchAcknowledgeResponse{Acknowledged: acked, Requested: len(req.AlertIDs)})
}

// AssignRequest 指派请求
type AssignRequest struct {
	AssignedTo string `json:"assigned_to" binding:"required"`
}

// AssignAlert 指派处理人
// @Summary 指派告警
// @Tags 告警
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "告警ID"
// @Param request body AssignRequest true "处理人"
// @Success 200 {object} coremodel.Alert
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/alerts/{id}/assign [post]
func (h *Handler) AssignAlert(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.alerts.Assign(c.Request.Context(), id, req.AssignedTo)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// NotesRequest 备注请求
type NotesRequest struct {
	Notes *string `json:"notes" binding:"required"`
}

// UpdateNotes 覆盖备注
// @Summary 更新告警备注
// @Tags 告警
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "告警ID"
// @Param request body NotesRequest true "备注"
// @Success 200 {object} coremodel.Alert
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/alerts/{id}/notes [put]
func (h *Handler) UpdateNotes(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.alerts.UpdateNotes(c.Request.Context(), id, *req.Notes)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ResolveRequest 解决请求（可选）
type ResolveRequest struct {
	Notes *string `json:"notes"`
}

// ResolveAlert 解决告警
// @Summary 解决告警
// @Description 任意未解决状态均可解决（不要求先确认）
// @Tags 告警
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "告警ID"
// @Param request body ResolveRequest false "备注"
// @Success 200 {object} coremodel.Alert
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/alerts/{id}/resolve [post]
func (h *Handler) ResolveAlert(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	var req ResolveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			badRequest(c, err.Error())
			return
		}
	}
	a, err := h.alerts.Resolve(c.Request.Context(), id, req.Notes)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ArchiveAlert 归档
// @Summary 归档告警
// @Description 归档与状态无关，归档后默认列表不再返回
// @Tags 告警
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "告警ID"
// @Success 200 {object} coremodel.Alert
// @Failure 404 {object} ErrorResponse
// @Router /api/alerts/{id}/archive [post]
func (h *Handler) ArchiveAlert(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	a, err := h.alerts.Archive(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// TriggerSweep 手动执行一次升级巡检
// @Summary 触发升级巡检
// @Description 已有巡检在执行时返回 skipped=true
// @Tags 运维
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} escalation.Result
// @Failure 503 {object} ErrorResponse
// @Router /api/escalation/sweep [post]
func (h *Handler) TriggerSweep(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "unavailable", Message: "escalation disabled"})
		return
	}
	res, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func alertID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid alert id")
		return 0, false
	}
	return id, true
}
