package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"supportdesk/backend/internal/classifier"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/crypto"
	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/mailbox"
	"supportdesk/backend/internal/monitoring"
	"supportdesk/backend/internal/storage/memory"
)

// promauto 注册到全局 registry，测试内只创建一次
var testMetrics = monitoring.NewMetrics()

const testCryptoKey = "0000000000000000000000000000000000000000000000000000000000000000"

type fakeFetcher struct {
	messages map[string][][]byte // username -> raw messages
	errs     map[string]error
	calls    int
}

func (f *fakeFetcher) FetchUnseen(_ context.Context, profile mailbox.Profile) ([][]byte, error) {
	f.calls++
	if err := f.errs[profile.Username]; err != nil {
		return nil, err
	}
	return f.messages[profile.Username], nil
}

type fakeClassifier struct {
	result *domain.Classification
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(_ context.Context, _ classifier.Input) (*domain.Classification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeClassifier) Name() string { return "fake" }

func rawMessage(messageID, subject, body string) []byte {
	lines := []string{
		"From: Customer <customer@example.com>",
		"Subject: " + subject,
		"Date: Mon, 10 Mar 2025 08:30:00 +0000",
		"Content-Type: text/plain; charset=utf-8",
	}
	if messageID != "" {
		lines = append([]string{"Message-ID: <" + messageID + ">"}, lines...)
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n\r\n" + body + "\r\n")
}

func newTestUser(t *testing.T, store *memory.Store, cipher *crypto.Cipher, id, username string) *domain.User {
	t.Helper()

	encrypted, err := cipher.Encrypt("imap-secret")
	require.NoError(t, err)

	user := &domain.User{
		ID:           id,
		Email:        id + "@supportdesk.test",
		PasswordHash: "x",
		IsActive:     true,
		IMAPHost:     "imap.example.com",
		IMAPPort:     993,
		IMAPUser:     username,
		IMAPPassword: encrypted,
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

// mustCipher 测试内共享同一把密钥
func mustCipher(t *testing.T) *crypto.Cipher {
	t.Helper()
	cipher, err := crypto.New(testCryptoKey)
	require.NoError(t, err)
	return cipher
}

func newOrchestrator(t *testing.T, store *memory.Store, fetcher Fetcher, cls classifier.Classifier) *Orchestrator {
	t.Helper()

	cfg := &config.IngestConfig{MaxAttempts: 3}
	return NewOrchestrator(store, fetcher, cls, mustCipher(t), cfg, 100, testMetrics, zap.NewNop())
}

func TestRunIngestsAndClassifies(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{messages: map[string][][]byte{}}
	cls := &fakeClassifier{result: &domain.Classification{
		Sentiment:     domain.SentimentNegative,
		Priority:      domain.PriorityUrgent,
		ExtractedInfo: domain.ExtractedInfo{"orderId": "4512"},
		DraftResponse: "We are on it.",
	}}

	orchestrator := newOrchestrator(t, store, fetcher, cls)
	newTestUser(t, store, mustCipher(t), "u1", "alice")
	fetcher.messages["alice"] = [][]byte{
		rawMessage("m1@example.com", "help with order", "my order is broken"),
	}

	require.NoError(t, orchestrator.Run(context.Background()))

	emails, err := store.ListEmails(domain.EmailFilter{UserID: "u1", Status: domain.StatusProcessed})
	require.NoError(t, err)
	require.Len(t, emails, 1)

	email := emails[0]
	assert.Equal(t, "m1@example.com", email.MessageID)
	assert.Equal(t, domain.StatusProcessed, email.Status)
	assert.Equal(t, domain.SentimentNegative, email.Sentiment)
	assert.Equal(t, domain.PriorityUrgent, email.Priority)
	assert.Equal(t, "4512", email.ExtractedInfo["orderId"])
	assert.Equal(t, "We are on it.", email.DraftResponse)
	assert.Equal(t, 1, cls.calls)
}

func TestRunIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{messages: map[string][][]byte{
		"alice": {rawMessage("dup@example.com", "support needed", "please help")},
	}}
	cls := &fakeClassifier{result: &domain.Classification{
		Sentiment:     domain.SentimentNeutral,
		Priority:      domain.PriorityNotUrgent,
		ExtractedInfo: domain.ExtractedInfo{},
		DraftResponse: "Hello",
	}}

	orchestrator := newOrchestrator(t, store, fetcher, cls)
	newTestUser(t, store, mustCipher(t), "u1", "alice")

	require.NoError(t, orchestrator.Run(context.Background()))
	require.NoError(t, orchestrator.Run(context.Background()))

	emails, err := store.ListEmails(domain.EmailFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, emails, 1)
	assert.Equal(t, 1, cls.calls)
}

func TestRunSkipsMessagesWithoutMessageID(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{messages: map[string][][]byte{
		"alice": {
			rawMessage("", "no id here", "body"),
			rawMessage("ok@example.com", "valid", "body"),
		},
	}}
	cls := &fakeClassifier{result: &domain.Classification{
		Sentiment:     domain.SentimentNeutral,
		Priority:      domain.PriorityNotUrgent,
		ExtractedInfo: domain.ExtractedInfo{},
		DraftResponse: "ok",
	}}

	orchestrator := newOrchestrator(t, store, fetcher, cls)
	newTestUser(t, store, mustCipher(t), "u1", "alice")

	require.NoError(t, orchestrator.Run(context.Background()))

	emails, err := store.ListEmails(domain.EmailFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "ok@example.com", emails[0].MessageID)
}

func TestClassificationFailureKeepsPending(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{messages: map[string][][]byte{
		"alice": {rawMessage("fail@example.com", "help", "body")},
	}}
	cls := &fakeClassifier{err: domain.ErrBadSchema}

	orchestrator := newOrchestrator(t, store, fetcher, cls)
	newTestUser(t, store, mustCipher(t), "u1", "alice")

	require.NoError(t, orchestrator.Run(context.Background()))

	pending, err := store.ListPendingByUserID("u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.StatusPending, pending[0].Status)
	assert.Equal(t, 1, pending[0].ClassifyAttempts)
}

func TestClassificationRetriesAreCapped(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{messages: map[string][][]byte{
		"alice": {rawMessage("cap@example.com", "help", "body")},
	}}
	cls := &fakeClassifier{err: errors.New("model unavailable")}

	orchestrator := newOrchestrator(t, store, fetcher, cls)
	newTestUser(t, store, mustCipher(t), "u1", "alice")

	for i := 0; i < 5; i++ {
		require.NoError(t, orchestrator.Run(context.Background()))
	}

	// MaxAttempts = 3，之后不再重试
	assert.Equal(t, 3, cls.calls)

	pending, err := store.ListPendingByUserID("u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].ClassifyAttempts)
}

func TestUserFailureDoesNotAffectOthers(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{
		messages: map[string][][]byte{
			"bob": {rawMessage("bob1@example.com", "request", "body")},
		},
		errs: map[string]error{"alice": errors.New("connection refused")},
	}
	cls := &fakeClassifier{result: &domain.Classification{
		Sentiment:     domain.SentimentPositive,
		Priority:      domain.PriorityNotUrgent,
		ExtractedInfo: domain.ExtractedInfo{},
		DraftResponse: "Thanks",
	}}

	orchestrator := newOrchestrator(t, store, fetcher, cls)
	newTestUser(t, store, mustCipher(t), "u1", "alice")
	newTestUser(t, store, mustCipher(t), "u2", "bob")

	require.NoError(t, orchestrator.Run(context.Background()))

	bobEmails, err := store.ListEmails(domain.EmailFilter{UserID: "u2"})
	require.NoError(t, err)
	assert.Len(t, bobEmails, 1)
	assert.Equal(t, domain.StatusProcessed, bobEmails[0].Status)
}

func TestRunSkipsWhenAlreadyRunning(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{}
	cls := &fakeClassifier{}

	orchestrator := newOrchestrator(t, store, fetcher, cls)
	newTestUser(t, store, mustCipher(t), "u1", "alice")

	orchestrator.running.Store(true)
	require.NoError(t, orchestrator.Run(context.Background()))
	assert.Equal(t, 0, fetcher.calls)

	orchestrator.running.Store(false)
	require.NoError(t, orchestrator.Run(context.Background()))
	assert.Equal(t, 1, fetcher.calls)
}

type signalFetcher struct {
	once  sync.Once
	fired chan struct{}
}

func (s *signalFetcher) FetchUnseen(_ context.Context, _ mailbox.Profile) ([][]byte, error) {
	s.once.Do(func() { close(s.fired) })
	return nil, nil
}

func TestSchedulerRunsImmediatelyAndStops(t *testing.T) {
	store := memory.NewStore()
	fetcher := &signalFetcher{fired: make(chan struct{})}
	cls := &fakeClassifier{}

	orchestrator := newOrchestrator(t, store, fetcher, cls)
	newTestUser(t, store, mustCipher(t), "u1", "alice")
	scheduler := NewScheduler(orchestrator, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Start(ctx) }()

	// 启动时立即执行一轮，不等第一个 tick
	select {
	case <-fetcher.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not run at startup")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
