package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"supportdesk/backend/internal/service"
	"supportdesk/backend/internal/storage"
)

// EmailHandler 处理面板侧的邮件查询与状态流转请求
type EmailHandler struct {
	emails *service.EmailService
	log    *zap.Logger
}

// NewEmailHandler 创建邮件处理器实例
func NewEmailHandler(emails *service.EmailService, log *zap.Logger) *EmailHandler {
	return &EmailHandler{
		emails: emails,
		log:    log,
	}
}

// List 列出当前用户的邮件
// @Summary 邮件列表
// @Description 按优先级降序、接收时间降序返回当前用户的邮件，默认只含已处理的
// @Tags 邮件
// @Produce json
// @Security BearerAuth
// @Param status query string false "状态过滤：PENDING、PROCESSED、RESOLVED 或 all"
// @Success 200 {array} domain.Email "邮件列表"
// @Failure 400 {object} Response "状态过滤值无效"
// @Failure 401 {object} Response "未认证"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/emails [get]
func (h *EmailHandler) List(c *gin.Context) {
	userID := c.GetString("userID")
	status := c.Query("status")

	emails, err := h.emails.List(userID, status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			BadRequest(c, "状态过滤值无效")
			return
		}
		h.log.Error("failed to list emails", zap.Error(err))
		InternalError(c, MsgEmailListFailed)
		return
	}

	Success(c, emails)
}

// Get 获取单封邮件详情
// @Summary 邮件详情
// @Description 返回单封邮件的完整内容与分类结果
// @Tags 邮件
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件 ID"
// @Success 200 {object} domain.Email "邮件详情"
// @Failure 401 {object} Response "未认证"
// @Failure 404 {object} Response "邮件不存在"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/emails/{id} [get]
func (h *EmailHandler) Get(c *gin.Context) {
	userID := c.GetString("userID")
	id := c.Param("id")

	email, err := h.emails.Get(userID, id)
	if err != nil {
		if errors.Is(err, storage.ErrEmailNotFound) {
			NotFound(c, MsgEmailNotFound)
			return
		}
		h.log.Error("failed to get email", zap.String("email_id", id), zap.Error(err))
		InternalError(c, MsgEmailGetFailed)
		return
	}

	Success(c, email)
}

// Resolve 把邮件标记为已解决
// @Summary 标记已解决
// @Description 把一封已处理的邮件标记为已解决
// @Tags 邮件
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件 ID"
// @Success 200 {object} domain.Email "更新后的邮件"
// @Failure 400 {object} Response "邮件尚未处理完成"
// @Failure 401 {object} Response "未认证"
// @Failure 404 {object} Response "邮件不存在"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/emails/{id}/resolve [post]
func (h *EmailHandler) Resolve(c *gin.Context) {
	userID := c.GetString("userID")
	id := c.Param("id")

	email, err := h.emails.Resolve(c.Request.Context(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmailNotFound):
			NotFound(c, MsgEmailNotFound)
		case errors.Is(err, service.ErrInvalidStatus):
			BadRequest(c, "邮件尚未处理完成")
		default:
			h.log.Error("failed to resolve email", zap.String("email_id", id), zap.Error(err))
			InternalError(c, MsgResolveFailed)
		}
		return
	}

	Success(c, email)
}

// Stats 返回当前用户的面板统计
// @Summary 面板统计
// @Description 返回邮件总量、待处理、已解决、24 小时内及情感/优先级分布
// @Tags 邮件
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.EmailStatistics "统计数据"
// @Failure 401 {object} Response "未认证"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/stats [get]
func (h *EmailHandler) Stats(c *gin.Context) {
	userID := c.GetString("userID")

	stats, err := h.emails.Stats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("failed to get statistics", zap.Error(err))
		InternalError(c, MsgStatsGetFailed)
		return
	}

	Success(c, stats)
}
