package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"supportdesk/backend/internal/classifier"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/crypto"
	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/mailbox"
	"supportdesk/backend/internal/monitoring"
	"supportdesk/backend/internal/storage"
)

// Fetcher 抓取某个邮箱账号下的未读原始邮件。
type Fetcher interface {
	FetchUnseen(ctx context.Context, profile mailbox.Profile) ([][]byte, error)
}

// Orchestrator 采集流水线编排器。
//
// 一次 Run 按用户顺序执行：解密凭证、抓取未读邮件、解析去重入库，
// 然后对该用户名下所有 PENDING 邮件调用分类器。任何单封邮件或单个
// 用户的失败都只影响自己，不会中断整轮运行。
type Orchestrator struct {
	store      storage.Store
	fetcher    Fetcher
	classifier classifier.Classifier
	cipher     *crypto.Cipher
	limiter    *rate.Limiter
	metrics    *monitoring.Metrics
	log        *zap.Logger

	maxAttempts int
	running     atomic.Bool
}

// NewOrchestrator 创建采集编排器。
func NewOrchestrator(
	store storage.Store,
	fetcher Fetcher,
	cls classifier.Classifier,
	cipher *crypto.Cipher,
	cfg *config.IngestConfig,
	rps float64,
	metrics *monitoring.Metrics,
	log *zap.Logger,
) *Orchestrator {
	if rps <= 0 {
		rps = 1
	}
	return &Orchestrator{
		store:       store,
		fetcher:     fetcher,
		classifier:  cls,
		cipher:      cipher,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		metrics:     metrics,
		log:         log,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Run 执行一轮完整的采集。
//
// 上一轮还没结束时直接跳过本轮，避免对同一邮箱的并发抓取。
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		o.log.Warn("previous ingestion run still in progress, skipping this round")
		o.metrics.RecordIngestRun("skipped", 0)
		return nil
	}
	defer o.running.Store(false)

	start := time.Now()

	users, err := o.store.ListUsersWithCredentials()
	if err != nil {
		o.metrics.RecordIngestRun("error", time.Since(start))
		return fmt.Errorf("list users with credentials: %w", err)
	}

	o.log.Info("ingestion run started", zap.Int("users", len(users)))

	for i := range users {
		user := &users[i]
		if ctx.Err() != nil {
			o.metrics.RecordIngestRun("canceled", time.Since(start))
			return ctx.Err()
		}

		if err := o.processUser(ctx, user); err != nil {
			o.log.Error("failed to process user mailbox",
				zap.String("user_id", user.ID),
				zap.Error(err))
			o.metrics.RecordError("process_user", "ingest")
		}

		o.classifyPending(ctx, user.ID)
	}

	o.metrics.RecordIngestRun("ok", time.Since(start))
	o.log.Info("ingestion run finished", zap.Duration("duration", time.Since(start)))
	return nil
}

// processUser 抓取并入库单个用户的未读邮件。
func (o *Orchestrator) processUser(ctx context.Context, user *domain.User) error {
	password, err := o.cipher.Decrypt(user.IMAPPassword)
	if err != nil {
		return fmt.Errorf("decrypt mailbox password: %w", err)
	}

	profile := mailbox.Profile{
		Host:     user.IMAPHost,
		Port:     user.IMAPPort,
		Username: user.IMAPUser,
		Password: password,
	}

	raws, err := o.fetcher.FetchUnseen(ctx, profile)
	if err != nil {
		return fmt.Errorf("fetch unseen messages: %w", err)
	}

	o.metrics.RecordEmailsFetched(len(raws))

	for _, raw := range raws {
		parsed, err := mailbox.Parse(raw)
		if err != nil {
			if errors.Is(err, mailbox.ErrNoMessageID) {
				o.log.Warn("skipping message without Message-ID",
					zap.String("user_id", user.ID))
				o.metrics.RecordEmailSkipped("no_message_id")
			} else {
				o.log.Warn("skipping unparsable message",
					zap.String("user_id", user.ID),
					zap.Error(err))
				o.metrics.RecordEmailSkipped("parse_error")
			}
			continue
		}

		exists, err := o.store.ExistsByMessageID(parsed.MessageID)
		if err != nil {
			// 存储不可用时中止该用户本轮剩余邮件
			return fmt.Errorf("dedup check: %w", err)
		}
		if exists {
			o.metrics.RecordEmailSkipped("duplicate")
			continue
		}

		email := &domain.Email{
			ID:         uuid.New().String(),
			MessageID:  parsed.MessageID,
			UserID:     user.ID,
			Sender:     parsed.Sender,
			Subject:    parsed.Subject,
			Body:       parsed.Body,
			ReceivedAt: parsed.ReceivedAt,
			Status:     domain.StatusPending,
		}

		if err := o.store.CreateEmail(email); err != nil {
			if errors.Is(err, storage.ErrDuplicateMessage) {
				o.metrics.RecordEmailSkipped("duplicate")
				continue
			}
			return fmt.Errorf("store email %s: %w", parsed.MessageID, err)
		}

		o.metrics.RecordEmailIngested()
		o.log.Info("email ingested",
			zap.String("user_id", user.ID),
			zap.String("email_id", email.ID),
			zap.String("subject", email.Subject))
	}

	return nil
}

// classifyPending 对用户名下的 PENDING 邮件逐封调用分类器。
//
// 既覆盖本轮新入库的邮件，也覆盖之前分类失败遗留的邮件；
// 重试次数达到上限的邮件不再尝试。
func (o *Orchestrator) classifyPending(ctx context.Context, userID string) {
	emails, err := o.store.ListPendingByUserID(userID)
	if err != nil {
		o.log.Error("failed to list pending emails",
			zap.String("user_id", userID),
			zap.Error(err))
		o.metrics.RecordError("list_pending", "ingest")
		return
	}

	for i := range emails {
		email := &emails[i]
		if email.ClassifyAttempts >= o.maxAttempts {
			continue
		}
		if err := o.classifyOne(ctx, email); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
		}
	}
}

func (o *Orchestrator) classifyOne(ctx context.Context, email *domain.Email) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	result, err := o.classifier.Classify(ctx, classifier.Input{
		Sender:  email.Sender,
		Subject: email.Subject,
		Body:    email.Body,
	})
	if err != nil {
		o.metrics.RecordClassification(o.classifier.Name(), "error", time.Since(start))
		o.log.Warn("classification failed, email stays pending",
			zap.String("email_id", email.ID),
			zap.Int("attempts", email.ClassifyAttempts+1),
			zap.Error(err))
		if incErr := o.store.IncrementClassifyAttempts(email.ID); incErr != nil {
			o.log.Error("failed to record classification attempt",
				zap.String("email_id", email.ID),
				zap.Error(incErr))
		}
		return err
	}

	o.metrics.RecordClassification(o.classifier.Name(), "ok", time.Since(start))

	if err := o.store.UpdateClassification(email.ID, result); err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			// 已被其他写入方推进过状态，丢弃本次结果
			o.log.Debug("email no longer pending, classification discarded",
				zap.String("email_id", email.ID))
			return nil
		}
		o.log.Error("failed to persist classification",
			zap.String("email_id", email.ID),
			zap.Error(err))
		o.metrics.RecordError("update_classification", "ingest")
		return err
	}

	o.log.Info("email classified",
		zap.String("email_id", email.ID),
		zap.String("sentiment", string(result.Sentiment)),
		zap.String("priority", string(result.Priority)))
	return nil
}
