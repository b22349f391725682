package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/storage"
)

func newEmail(userID string, receivedAt time.Time) *domain.Email {
	id := uuid.New().String()
	return &domain.Email{
		ID:         id,
		MessageID:  fmt.Sprintf("<%s@mail.example.com>", id),
		UserID:     userID,
		Sender:     "Customer <customer@example.com>",
		Subject:    "Support request: cannot log in",
		Body:       "I cannot log into my account.",
		ReceivedAt: receivedAt,
		Status:     domain.StatusPending,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func newUser(email string) *domain.User {
	return &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestCreateEmail(t *testing.T) {
	store := NewStore()
	email := newEmail("user-1", time.Now().UTC())

	require.NoError(t, store.CreateEmail(email))

	t.Run("根据ID读取成功", func(t *testing.T) {
		got, err := store.GetEmail(email.ID)
		require.NoError(t, err)
		assert.Equal(t, email.MessageID, got.MessageID)
		assert.Equal(t, domain.StatusPending, got.Status)
	})

	t.Run("MessageID重复返回冲突", func(t *testing.T) {
		dup := newEmail("user-2", time.Now().UTC())
		dup.MessageID = email.MessageID

		err := store.CreateEmail(dup)
		assert.ErrorIs(t, err, storage.ErrDuplicateMessage)
	})

	t.Run("ExistsByMessageID判定正确", func(t *testing.T) {
		exists, err := store.ExistsByMessageID(email.MessageID)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.ExistsByMessageID("<unknown@mail.example.com>")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("不存在的邮件返回未找到", func(t *testing.T) {
		_, err := store.GetEmail("missing-id")
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)
	})
}

func TestListEmails(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	urgent := newEmail("user-1", now.Add(-2*time.Hour))
	urgent.Priority = domain.PriorityUrgent
	urgent.Status = domain.StatusProcessed

	older := newEmail("user-1", now.Add(-3*time.Hour))
	older.Priority = domain.PriorityNotUrgent
	older.Status = domain.StatusProcessed

	newer := newEmail("user-1", now.Add(-1*time.Hour))
	newer.Priority = domain.PriorityNotUrgent
	newer.Status = domain.StatusProcessed

	foreign := newEmail("user-2", now)
	foreign.Status = domain.StatusProcessed

	pending := newEmail("user-1", now)

	for _, e := range []*domain.Email{urgent, older, newer, foreign, pending} {
		require.NoError(t, store.CreateEmail(e))
	}

	t.Run("按优先级和时间排序", func(t *testing.T) {
		result, err := store.ListEmails(domain.EmailFilter{UserID: "user-1", Status: domain.StatusProcessed})
		require.NoError(t, err)
		require.Len(t, result, 3)

		// URGENT 在前，其余按接收时间倒序
		assert.Equal(t, urgent.ID, result[0].ID)
		assert.Equal(t, newer.ID, result[1].ID)
		assert.Equal(t, older.ID, result[2].ID)
	})

	t.Run("状态过滤生效", func(t *testing.T) {
		result, err := store.ListEmails(domain.EmailFilter{UserID: "user-1", Status: domain.StatusPending})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, pending.ID, result[0].ID)
	})

	t.Run("用户隔离生效", func(t *testing.T) {
		result, err := store.ListEmails(domain.EmailFilter{UserID: "user-2"})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, foreign.ID, result[0].ID)
	})

	t.Run("空过滤返回全部", func(t *testing.T) {
		result, err := store.ListEmails(domain.EmailFilter{})
		require.NoError(t, err)
		assert.Len(t, result, 5)
	})
}

func TestListPendingByUserID(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	second := newEmail("user-1", now)
	first := newEmail("user-1", now.Add(-time.Hour))
	processed := newEmail("user-1", now)
	processed.Status = domain.StatusProcessed
	foreign := newEmail("user-2", now)

	for _, e := range []*domain.Email{second, first, processed, foreign} {
		require.NoError(t, store.CreateEmail(e))
	}

	result, err := store.ListPendingByUserID("user-1")
	require.NoError(t, err)
	require.Len(t, result, 2)

	// 按接收时间升序，先到先分类
	assert.Equal(t, first.ID, result[0].ID)
	assert.Equal(t, second.ID, result[1].ID)
}

func TestUpdateClassification(t *testing.T) {
	store := NewStore()
	email := newEmail("user-1", time.Now().UTC())
	require.NoError(t, store.CreateEmail(email))

	result := &domain.Classification{
		Sentiment:     domain.SentimentNegative,
		Priority:      domain.PriorityUrgent,
		ExtractedInfo: domain.ExtractedInfo{"orderId": "ORD-7"},
		DraftResponse: "We are on it.",
	}

	t.Run("写入分类结果并置为已处理", func(t *testing.T) {
		require.NoError(t, store.UpdateClassification(email.ID, result))

		got, err := store.GetEmail(email.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessed, got.Status)
		assert.Equal(t, domain.SentimentNegative, got.Sentiment)
		assert.Equal(t, domain.PriorityUrgent, got.Priority)
		assert.Equal(t, "ORD-7", got.ExtractedInfo["orderId"])
		assert.Equal(t, "We are on it.", got.DraftResponse)
	})

	t.Run("非待处理状态拒绝写入", func(t *testing.T) {
		err := store.UpdateClassification(email.ID, result)
		assert.ErrorIs(t, err, storage.ErrNotPending)
	})

	t.Run("不存在的邮件返回未找到", func(t *testing.T) {
		err := store.UpdateClassification("missing-id", result)
		assert.ErrorIs(t, err, storage.ErrEmailNotFound)
	})
}

func TestUpdateEmailStatus(t *testing.T) {
	store := NewStore()
	email := newEmail("user-1", time.Now().UTC())
	email.Status = domain.StatusProcessed
	require.NoError(t, store.CreateEmail(email))

	require.NoError(t, store.UpdateEmailStatus(email.ID, domain.StatusResolved))

	got, err := store.GetEmail(email.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, got.Status)

	err = store.UpdateEmailStatus("missing-id", domain.StatusResolved)
	assert.ErrorIs(t, err, storage.ErrEmailNotFound)
}

func TestIncrementClassifyAttempts(t *testing.T) {
	store := NewStore()
	email := newEmail("user-1", time.Now().UTC())
	require.NoError(t, store.CreateEmail(email))

	require.NoError(t, store.IncrementClassifyAttempts(email.ID))
	require.NoError(t, store.IncrementClassifyAttempts(email.ID))

	got, err := store.GetEmail(email.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ClassifyAttempts)
}

func TestGetEmailStatistics(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	pending := newEmail("user-1", now)

	processed := newEmail("user-1", now.Add(-time.Hour))
	processed.Status = domain.StatusProcessed
	processed.Sentiment = domain.SentimentNegative
	processed.Priority = domain.PriorityUrgent

	resolved := newEmail("user-1", now.Add(-48*time.Hour))
	resolved.Status = domain.StatusResolved
	resolved.Sentiment = domain.SentimentPositive
	resolved.Priority = domain.PriorityNotUrgent

	foreign := newEmail("user-2", now)

	for _, e := range []*domain.Email{pending, processed, resolved, foreign} {
		require.NoError(t, store.CreateEmail(e))
	}

	stats, err := store.GetEmailStatistics("user-1")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 2, stats.Last24Hours)
	assert.Equal(t, 1, stats.SentimentCounts[domain.SentimentNegative])
	assert.Equal(t, 1, stats.SentimentCounts[domain.SentimentPositive])
	assert.Equal(t, 1, stats.PriorityCounts[domain.PriorityUrgent])
	assert.Equal(t, 1, stats.PriorityCounts[domain.PriorityNotUrgent])
}

func TestUserOperations(t *testing.T) {
	store := NewStore()
	user := newUser("owner@example.com")

	require.NoError(t, store.CreateUser(user))

	t.Run("注册邮箱大小写不敏感去重", func(t *testing.T) {
		dup := newUser("OWNER@example.com")
		err := store.CreateUser(dup)
		assert.ErrorIs(t, err, storage.ErrEmailExists)
	})

	t.Run("按ID和邮箱读取", func(t *testing.T) {
		byID, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, byID.Email)

		byEmail, err := store.GetUserByEmail("Owner@Example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)

		_, err = store.GetUserByID("missing-id")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("更新最后登录时间", func(t *testing.T) {
		require.NoError(t, store.UpdateLastLogin(user.ID))

		got, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
	})

	t.Run("整体更新用户", func(t *testing.T) {
		updated := *user
		updated.PasswordHash = "$2a$10$anotherhashanotherhash"
		require.NoError(t, store.UpdateUser(&updated))

		got, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.PasswordHash, got.PasswordHash)

		missing := newUser("ghost@example.com")
		assert.ErrorIs(t, store.UpdateUser(missing), storage.ErrUserNotFound)
	})
}

func TestMailboxCredentials(t *testing.T) {
	store := NewStore()

	first := newUser("first@example.com")
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	second := newUser("second@example.com")
	third := newUser("nocreds@example.com")

	for _, u := range []*domain.User{first, second, third} {
		require.NoError(t, store.CreateUser(u))
	}

	require.NoError(t, store.UpdateMailboxCredentials(first.ID, "imap.example.com", 993, "first@example.com", "encrypted-1"))
	require.NoError(t, store.UpdateMailboxCredentials(second.ID, "imap.example.com", 993, "second@example.com", "encrypted-2"))

	t.Run("只返回配置了凭证的用户", func(t *testing.T) {
		users, err := store.ListUsersWithCredentials()
		require.NoError(t, err)
		require.Len(t, users, 2)

		// 按创建时间升序
		assert.Equal(t, first.ID, users[0].ID)
		assert.Equal(t, second.ID, users[1].ID)
	})

	t.Run("凭证字段写入成功", func(t *testing.T) {
		got, err := store.GetUserByID(first.ID)
		require.NoError(t, err)
		assert.Equal(t, "imap.example.com", got.IMAPHost)
		assert.Equal(t, 993, got.IMAPPort)
		assert.Equal(t, "encrypted-1", got.IMAPPassword)
		assert.True(t, got.HasMailboxCredentials())
	})

	t.Run("不存在的用户返回未找到", func(t *testing.T) {
		err := store.UpdateMailboxCredentials("missing-id", "h", 993, "u", "p")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}
