package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"supportdesk/backend/internal/crypto"
	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/storage"
	"supportdesk/backend/internal/storage/memory"
)

func seedEmail(t *testing.T, store *memory.Store, id, userID string, status domain.Status, priority domain.Priority, receivedAt time.Time) {
	t.Helper()
	require.NoError(t, store.CreateEmail(&domain.Email{
		ID:         id,
		MessageID:  id + "@example.com",
		UserID:     userID,
		Sender:     "customer@example.com",
		Subject:    "subject " + id,
		ReceivedAt: receivedAt,
		Priority:   priority,
		Status:     status,
	}))
}

func TestListDefaultsToProcessed(t *testing.T) {
	store := memory.NewStore()
	svc := NewEmailService(store, zap.NewNop())
	now := time.Now().UTC()

	seedEmail(t, store, "e1", "u1", domain.StatusProcessed, domain.PriorityNotUrgent, now)
	seedEmail(t, store, "e2", "u1", domain.StatusPending, "", now)
	seedEmail(t, store, "e3", "u1", domain.StatusProcessed, domain.PriorityUrgent, now.Add(-time.Hour))

	emails, err := svc.List("u1", "")
	require.NoError(t, err)
	require.Len(t, emails, 2)

	// URGENT 在前，同优先级按接收时间倒序
	assert.Equal(t, "e3", emails[0].ID)
	assert.Equal(t, "e1", emails[1].ID)
}

func TestListAllStatuses(t *testing.T) {
	store := memory.NewStore()
	svc := NewEmailService(store, zap.NewNop())
	now := time.Now().UTC()

	seedEmail(t, store, "e1", "u1", domain.StatusProcessed, domain.PriorityNotUrgent, now)
	seedEmail(t, store, "e2", "u1", domain.StatusPending, "", now)

	emails, err := svc.List("u1", "all")
	require.NoError(t, err)
	assert.Len(t, emails, 2)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	store := memory.NewStore()
	svc := NewEmailService(store, zap.NewNop())

	_, err := svc.List("u1", "ARCHIVED")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestListIsScopedToUser(t *testing.T) {
	store := memory.NewStore()
	svc := NewEmailService(store, zap.NewNop())
	now := time.Now().UTC()

	seedEmail(t, store, "mine", "u1", domain.StatusProcessed, domain.PriorityNotUrgent, now)
	seedEmail(t, store, "theirs", "u2", domain.StatusProcessed, domain.PriorityNotUrgent, now)

	emails, err := svc.List("u1", "")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "mine", emails[0].ID)
}

func TestGetRejectsForeignEmail(t *testing.T) {
	store := memory.NewStore()
	svc := NewEmailService(store, zap.NewNop())

	seedEmail(t, store, "e1", "u2", domain.StatusProcessed, domain.PriorityNotUrgent, time.Now().UTC())

	_, err := svc.Get("u1", "e1")
	assert.ErrorIs(t, err, storage.ErrEmailNotFound)
}

func TestResolveProcessedEmail(t *testing.T) {
	store := memory.NewStore()
	svc := NewEmailService(store, zap.NewNop())

	seedEmail(t, store, "e1", "u1", domain.StatusProcessed, domain.PriorityUrgent, time.Now().UTC())

	email, err := svc.Resolve(context.Background(), "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, email.Status)

	stored, err := store.GetEmail("e1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, stored.Status)
}

func TestResolveRejectsPendingEmail(t *testing.T) {
	store := memory.NewStore()
	svc := NewEmailService(store, zap.NewNop())

	seedEmail(t, store, "e1", "u1", domain.StatusPending, "", time.Now().UTC())

	_, err := svc.Resolve(context.Background(), "u1", "e1")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatsAggregation(t *testing.T) {
	store := memory.NewStore()
	svc := NewEmailService(store, zap.NewNop())
	now := time.Now().UTC()

	seedEmail(t, store, "e1", "u1", domain.StatusProcessed, domain.PriorityUrgent, now)
	seedEmail(t, store, "e2", "u1", domain.StatusPending, "", now)
	seedEmail(t, store, "e3", "u1", domain.StatusResolved, domain.PriorityNotUrgent, now.Add(-48*time.Hour))

	stats, err := svc.Stats(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 2, stats.Last24Hours)
	assert.Equal(t, 1, stats.PriorityCounts[domain.PriorityUrgent])
}

func TestSaveMailboxCredentialsEncryptsPassword(t *testing.T) {
	store := memory.NewStore()
	cipher, err := crypto.New("0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	svc := NewUserService(store, cipher)

	require.NoError(t, store.CreateUser(&domain.User{
		ID:    "u1",
		Email: "owner@supportdesk.test",
	}))

	err = svc.SaveMailboxCredentials("u1", domain.MailboxCredential{
		Host:     "imap.example.com",
		Port:     993,
		Username: "owner@example.com",
		Password: "plaintext-secret",
	})
	require.NoError(t, err)

	user, err := store.GetUserByID("u1")
	require.NoError(t, err)

	assert.Equal(t, "imap.example.com", user.IMAPHost)
	assert.NotEqual(t, "plaintext-secret", user.IMAPPassword)
	assert.NotContains(t, user.IMAPPassword, "plaintext-secret")

	decrypted, err := cipher.Decrypt(user.IMAPPassword)
	require.NoError(t, err)
	assert.Equal(t, "plaintext-secret", decrypted)
}

func TestSaveMailboxCredentialsValidation(t *testing.T) {
	store := memory.NewStore()
	cipher, err := crypto.New("0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	svc := NewUserService(store, cipher)

	cases := []struct {
		name string
		cred domain.MailboxCredential
	}{
		{"missing host", domain.MailboxCredential{Port: 993, Username: "a", Password: "b"}},
		{"missing username", domain.MailboxCredential{Host: "h", Port: 993, Password: "b"}},
		{"missing password", domain.MailboxCredential{Host: "h", Port: 993, Username: "a"}},
		{"bad port", domain.MailboxCredential{Host: "h", Port: 70000, Username: "a", Password: "b"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SaveMailboxCredentials("u1", tc.cred)
			assert.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}
