package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/storage"
)

// Store 使用内存保存邮件与用户数据，主要用于开发验证和测试。
//
// 所有写入都在锁内整体替换记录，外部读取不会看到半写状态。
type Store struct {
	mu          sync.RWMutex
	emails      map[string]*domain.Email // emailID -> email
	byMessageID map[string]string        // messageID -> emailID
	users       map[string]*domain.User  // userID -> user
	byEmail     map[string]string        // account email -> userID
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		emails:      make(map[string]*domain.Email),
		byMessageID: make(map[string]string),
		users:       make(map[string]*domain.User),
		byEmail:     make(map[string]string),
	}
}

// CreateEmail 插入新邮件，Message-ID 冲突返回 ErrDuplicateMessage。
func (s *Store) CreateEmail(email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byMessageID[email.MessageID]; ok {
		return storage.ErrDuplicateMessage
	}

	clone := *email
	s.emails[email.ID] = &clone
	s.byMessageID[email.MessageID] = email.ID
	return nil
}

// GetEmail 根据 ID 获取邮件。
func (s *Store) GetEmail(id string) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[id]
	if !ok {
		return nil, storage.ErrEmailNotFound
	}
	clone := *email
	return &clone, nil
}

// ExistsByMessageID 判断 Message-ID 是否已入库。
func (s *Store) ExistsByMessageID(messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byMessageID[messageID]
	return ok, nil
}

// ListEmails 按 priority 降序、receivedAt 降序返回邮件快照。
func (s *Store) ListEmails(filter domain.EmailFilter) ([]domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Email, 0, len(s.emails))
	for _, e := range s.emails {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		result = append(result, *e)
	}

	// URGENT 在 NOT_URGENT 之前，未分类（空优先级）排在最后
	sort.SliceStable(result, func(i, j int) bool {
		pi, pj := result[i].Priority, result[j].Priority
		if pi != pj {
			return strings.Compare(string(pi), string(pj)) > 0
		}
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})

	return result, nil
}

// ListPendingByUserID 返回用户名下待分类的邮件。
func (s *Store) ListPendingByUserID(userID string) ([]domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Email, 0)
	for _, e := range s.emails {
		if e.UserID == userID && e.Status == domain.StatusPending {
			result = append(result, *e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.Before(result[j].ReceivedAt)
	})

	return result, nil
}

// UpdateClassification 原子写入分类结果并置为 PROCESSED。
func (s *Store) UpdateClassification(id string, result *domain.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[id]
	if !ok {
		return storage.ErrEmailNotFound
	}
	if email.Status != domain.StatusPending {
		return storage.ErrNotPending
	}

	clone := *email
	clone.Sentiment = result.Sentiment
	clone.Priority = result.Priority
	clone.ExtractedInfo = result.ExtractedInfo
	clone.DraftResponse = result.DraftResponse
	clone.Status = domain.StatusProcessed
	clone.UpdatedAt = time.Now().UTC()
	s.emails[id] = &clone
	return nil
}

// UpdateEmailStatus 更新邮件状态（用于用户侧的 RESOLVED 操作）。
func (s *Store) UpdateEmailStatus(id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[id]
	if !ok {
		return storage.ErrEmailNotFound
	}

	clone := *email
	clone.Status = status
	clone.UpdatedAt = time.Now().UTC()
	s.emails[id] = &clone
	return nil
}

// IncrementClassifyAttempts 自增分类尝试计数。
func (s *Store) IncrementClassifyAttempts(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[id]
	if !ok {
		return storage.ErrEmailNotFound
	}

	clone := *email
	clone.ClassifyAttempts++
	s.emails[id] = &clone
	return nil
}

// GetEmailStatistics 聚合用户名下的面板统计。
func (s *Store) GetEmailStatistics(userID string) (*domain.EmailStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.NewEmailStatistics()
	cutoff := time.Now().Add(-24 * time.Hour)

	for _, e := range s.emails {
		if userID != "" && e.UserID != userID {
			continue
		}
		stats.Total++
		switch e.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusResolved:
			stats.Resolved++
		}
		if e.ReceivedAt.After(cutoff) {
			stats.Last24Hours++
		}
		if e.Sentiment != "" {
			stats.SentimentCounts[e.Sentiment]++
		}
		if e.Priority != "" {
			stats.PriorityCounts[e.Priority]++
		}
	}

	return stats, nil
}

// CreateUser 创建用户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, ok := s.byEmail[key]; ok {
		return storage.ErrEmailExists
	}

	clone := *user
	s.users[user.ID] = &clone
	s.byEmail[key] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

// GetUserByEmail 根据注册邮箱获取用户。
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *s.users[id]
	return &clone, nil
}

// UpdateUser 整体更新用户。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrUserNotFound
	}

	clone := *user
	clone.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = &clone
	return nil
}

// UpdateLastLogin 更新最后登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	now := time.Now().UTC()
	clone := *user
	clone.LastLoginAt = &now
	s.users[userID] = &clone
	return nil
}

// UpdateMailboxCredentials 写入 IMAP 接入配置。
func (s *Store) UpdateMailboxCredentials(userID string, host string, port int, username, encryptedPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	clone := *user
	clone.IMAPHost = host
	clone.IMAPPort = port
	clone.IMAPUser = username
	clone.IMAPPassword = encryptedPassword
	clone.UpdatedAt = time.Now().UTC()
	s.users[userID] = &clone
	return nil
}

// ListUsersWithCredentials 返回配置了完整邮箱凭证的用户。
func (s *Store) ListUsersWithCredentials() ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0)
	for _, u := range s.users {
		if u.HasMailboxCredentials() {
			result = append(result, *u)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// Health 健康检查，内存存储恒为健康。
func (s *Store) Health() error { return nil }

// Close 关闭存储。
func (s *Store) Close() error { return nil }
