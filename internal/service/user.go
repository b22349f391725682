package service

import (
	"errors"
	"fmt"
	"strings"

	"supportdesk/backend/internal/crypto"
	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/storage"
)

// ErrInvalidCredential 邮箱接入配置不完整或非法
var ErrInvalidCredential = errors.New("invalid mailbox credential")

// UserService 封装用户及其邮箱接入配置的业务逻辑。
type UserService struct {
	repo   storage.UserRepository
	cipher *crypto.Cipher
}

// NewUserService 创建用户业务服务。
func NewUserService(repo storage.UserRepository, cipher *crypto.Cipher) *UserService {
	return &UserService{repo: repo, cipher: cipher}
}

// SaveMailboxCredentials 校验并保存用户的 IMAP 接入配置。
//
// 密码加密后落库，明文只在本次调用的内存里存在。
func (s *UserService) SaveMailboxCredentials(userID string, cred domain.MailboxCredential) error {
	cred.Host = strings.TrimSpace(cred.Host)
	cred.Username = strings.TrimSpace(cred.Username)

	if cred.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidCredential)
	}
	if cred.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidCredential)
	}
	if cred.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidCredential)
	}
	if cred.Port <= 0 || cred.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535", ErrInvalidCredential)
	}

	encrypted, err := s.cipher.Encrypt(cred.Password)
	if err != nil {
		return fmt.Errorf("encrypt mailbox password: %w", err)
	}

	return s.repo.UpdateMailboxCredentials(userID, cred.Host, cred.Port, cred.Username, encrypted)
}

// Profile 返回用户资料，密码等敏感字段由序列化层剔除。
func (s *UserService) Profile(userID string) (*domain.User, error) {
	return s.repo.GetUserByID(userID)
}
