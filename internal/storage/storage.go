package storage

import (
	"errors"

	"supportdesk/backend/internal/domain"
)

var (
	// ErrEmailNotFound 邮件不存在
	ErrEmailNotFound = errors.New("email not found")
	// ErrDuplicateMessage 同一 Message-ID 的邮件已存在
	ErrDuplicateMessage = errors.New("message already exists")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists 注册邮箱已被占用
	ErrEmailExists = errors.New("email already exists")
	// ErrNotPending 邮件不处于 PENDING 状态，分类结果写入被拒绝
	ErrNotPending = errors.New("email is not pending")
)

// EmailRepository 定义支持邮件数据存取操作。
type EmailRepository interface {
	// CreateEmail 插入新邮件；Message-ID 冲突返回 ErrDuplicateMessage。
	CreateEmail(email *domain.Email) error
	GetEmail(id string) (*domain.Email, error)
	// ExistsByMessageID 判断该 Message-ID 是否已入库（去重检查）。
	ExistsByMessageID(messageID string) (bool, error)
	// ListEmails 按 priority 降序、receivedAt 降序返回邮件。
	ListEmails(filter domain.EmailFilter) ([]domain.Email, error)
	// ListPendingByUserID 返回用户名下待分类的邮件。
	ListPendingByUserID(userID string) ([]domain.Email, error)
	// UpdateClassification 原子写入分类结果并置为 PROCESSED。
	// 仅当记录当前为 PENDING 时生效，否则返回 ErrNotPending；
	// 这是 PENDING → PROCESSED 的唯一入口。
	UpdateClassification(id string, result *domain.Classification) error
	UpdateEmailStatus(id string, status domain.Status) error
	IncrementClassifyAttempts(id string) error
	// GetEmailStatistics 聚合用户名下的面板统计。
	GetEmailStatistics(userID string) (*domain.EmailStatistics, error)
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
	// UpdateMailboxCredentials 写入 IMAP 接入配置，密码必须已加密。
	UpdateMailboxCredentials(userID string, host string, port int, username, encryptedPassword string) error
	// ListUsersWithCredentials 返回配置了完整邮箱凭证的用户。
	ListUsersWithCredentials() ([]domain.User, error)
}

// Store 聚合全部存储能力。
type Store interface {
	EmailRepository
	UserRepository

	Health() error
	Close() error
}
