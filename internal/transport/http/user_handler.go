package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/service"
)

// UserHandler 处理用户邮箱接入配置相关请求
type UserHandler struct {
	users *service.UserService
	log   *zap.Logger
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(users *service.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		users: users,
		log:   log,
	}
}

type credentialRequest struct {
	IMAPHost     string `json:"imapHost" binding:"required"`
	IMAPPort     int    `json:"imapPort" binding:"required"`
	IMAPUser     string `json:"imapUser" binding:"required"`
	IMAPPassword string `json:"imapPassword" binding:"required"`
}

type profileResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	IMAPHost string `json:"imapHost,omitempty"`
	IMAPPort int    `json:"imapPort,omitempty"`
	IMAPUser string `json:"imapUser,omitempty"`
	// 接入密码永不返回，只给出是否已配置
	HasCredentials bool `json:"hasCredentials"`
}

// SaveCredentials 保存 IMAP 接入配置
// @Summary 保存邮箱配置
// @Description 保存当前用户的 IMAP 接入配置，密码加密存储
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body credentialRequest true "IMAP 接入配置"
// @Success 200 {object} Response "保存成功"
// @Failure 400 {object} Response "配置不完整或非法"
// @Failure 401 {object} Response "未认证"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/credentials [post]
func (h *UserHandler) SaveCredentials(c *gin.Context) {
	userID := c.GetString("userID")

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	err := h.users.SaveMailboxCredentials(userID, domain.MailboxCredential{
		Host:     req.IMAPHost,
		Port:     req.IMAPPort,
		Username: req.IMAPUser,
		Password: req.IMAPPassword,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredential) {
			BadRequest(c, err.Error())
			return
		}
		h.log.Error("failed to save mailbox credentials",
			zap.String("user_id", userID),
			zap.Error(err))
		InternalError(c, MsgCredentialSaveFailed)
		return
	}

	h.log.Info("mailbox credentials saved", zap.String("user_id", userID))

	SuccessWithMsg(c, "邮箱配置已保存", nil)
}

// Profile 返回当前用户资料
// @Summary 用户资料
// @Description 返回当前用户的资料与邮箱配置状态，不含密码
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} profileResponse "用户资料"
// @Failure 401 {object} Response "未认证"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/profile [get]
func (h *UserHandler) Profile(c *gin.Context) {
	userID := c.GetString("userID")

	user, err := h.users.Profile(userID)
	if err != nil {
		h.log.Error("failed to get profile", zap.String("user_id", userID), zap.Error(err))
		InternalError(c, MsgProfileGetFailed)
		return
	}

	Success(c, profileResponse{
		ID:             user.ID,
		Email:          user.Email,
		IMAPHost:       user.IMAPHost,
		IMAPPort:       user.IMAPPort,
		IMAPUser:       user.IMAPUser,
		HasCredentials: user.HasMailboxCredentials(),
	})
}
