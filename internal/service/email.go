package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/storage"
	"supportdesk/backend/internal/storage/redis"
)

// ErrInvalidStatus 请求了未知的状态过滤值
var ErrInvalidStatus = errors.New("invalid status filter")

// EmailService 封装面板侧的邮件读取与状态流转逻辑。
type EmailService struct {
	repo       storage.EmailRepository
	statsCache *redis.StatsCache // 可选，nil 时直接查库
	log        *zap.Logger
}

// NewEmailService 创建邮件业务服务。
func NewEmailService(repo storage.EmailRepository, log *zap.Logger) *EmailService {
	return &EmailService{repo: repo, log: log}
}

// SetStatsCache 设置统计结果缓存
func (s *EmailService) SetStatsCache(cache *redis.StatsCache) {
	s.statsCache = cache
}

// List 列出用户的邮件，按 priority 降序、receivedAt 降序。
//
// status 为空时默认只返回 PROCESSED（面板主视图）；
// "all" 返回全部状态；其他值必须是合法状态。
func (s *EmailService) List(userID, status string) ([]domain.Email, error) {
	filter := domain.EmailFilter{UserID: userID}

	switch status {
	case "":
		filter.Status = domain.StatusProcessed
	case "all":
		// 不过滤状态
	default:
		parsed := domain.Status(status)
		switch parsed {
		case domain.StatusPending, domain.StatusProcessed, domain.StatusResolved:
			filter.Status = parsed
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
		}
	}

	return s.repo.ListEmails(filter)
}

// Get 获取单封邮件详情，越权访问按不存在处理。
func (s *EmailService) Get(userID, id string) (*domain.Email, error) {
	email, err := s.repo.GetEmail(id)
	if err != nil {
		return nil, err
	}
	if email.UserID != userID {
		return nil, storage.ErrEmailNotFound
	}
	return email, nil
}

// Resolve 把已处理的邮件标记为已解决。
func (s *EmailService) Resolve(ctx context.Context, userID, id string) (*domain.Email, error) {
	email, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	if email.Status == domain.StatusPending {
		return nil, fmt.Errorf("%w: email is still pending", ErrInvalidStatus)
	}

	if err := s.repo.UpdateEmailStatus(id, domain.StatusResolved); err != nil {
		return nil, err
	}
	email.Status = domain.StatusResolved

	s.invalidateStats(ctx, userID)
	return email, nil
}

// Stats 返回用户的面板统计，命中缓存时不查库。
func (s *EmailService) Stats(ctx context.Context, userID string) (*domain.EmailStatistics, error) {
	if s.statsCache != nil {
		if stats, err := s.statsCache.Get(ctx, userID); err == nil {
			return stats, nil
		} else if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.Warn("stats cache read failed", zap.Error(err))
		}
	}

	stats, err := s.repo.GetEmailStatistics(userID)
	if err != nil {
		return nil, err
	}

	if s.statsCache != nil {
		if err := s.statsCache.Set(ctx, userID, stats); err != nil {
			s.log.Warn("stats cache write failed", zap.Error(err))
		}
	}

	return stats, nil
}

func (s *EmailService) invalidateStats(ctx context.Context, userID string) {
	if s.statsCache == nil {
		return
	}
	if err := s.statsCache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("stats cache invalidation failed", zap.Error(err))
	}
}
