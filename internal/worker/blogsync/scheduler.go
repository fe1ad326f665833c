package blogsync

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FeedSyncer はフィード同期の実行インターフェース。
type FeedSyncer interface {
	Sync(ctx context.Context) (Result, error)
}

// Scheduler は一定間隔でブログフィードを同期する。
// 連続して失敗した場合は指数バックオフで次回の試行を遅らせる。
type Scheduler struct {
	syncer FeedSyncer
	logger *slog.Logger
	now    func() time.Time

	mu                  sync.Mutex
	consecutiveFailures int
	nextAttempt         time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(syncer FeedSyncer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer: syncer,
		logger: logger,
		now:    time.Now,
	}
}

// Start はintervalごとのティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ブログ同期スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ブログ同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は同期を1回実行する。バックオフ中の場合は何もせずfalseを返す。
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	s.mu.Lock()
	next := s.nextAttempt
	s.mu.Unlock()
	if s.now().Before(next) {
		s.logger.Info("バックオフ中のためブログ同期をスキップします",
			slog.Time("next_attempt", next),
		)
		return false
	}

	_, err := s.syncer.Sync(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.consecutiveFailures++
		delay := CalculateBackoff(s.consecutiveFailures)
		s.nextAttempt = s.now().Add(delay)
		s.logger.Warn("ブログ同期にバックオフを適用します",
			slog.Int("consecutive_failures", s.consecutiveFailures),
			slog.Duration("delay", delay),
		)
		return true
	}
	s.consecutiveFailures = 0
	s.nextAttempt = time.Time{}
	return true
}
