package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler 周期性触发采集运行。
type Scheduler struct {
	orchestrator *Orchestrator
	interval     time.Duration
	log          *zap.Logger
}

// NewScheduler 创建调度器。
func NewScheduler(orchestrator *Orchestrator, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		interval:     interval,
		log:          log,
	}
}

// Start 启动调度循环，阻塞到 ctx 取消为止。
//
// 启动时立即执行一轮，之后按固定间隔触发。单轮失败只记日志，
// 循环本身不会退出。
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info("ingestion scheduler started", zap.Duration("interval", s.interval))

	if err := s.orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("ingestion run failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("ingestion scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("ingestion run failed", zap.Error(err))
			}
		}
	}
}
