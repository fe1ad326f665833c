// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// 有効期限から猶予日数を過ぎたセッションをworkerプロセスで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/EtimGeorge/NexusAcademy-project/internal/metrics"
)

// DefaultGraceDays は有効期限切れから削除までの既定の猶予日数。
const DefaultGraceDays = 7

// SessionPurger は期限切れセッションを削除するインターフェース。
// repository.PostgresSessionRepoが実装する。
type SessionPurger interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は期限切れセッションの削除ジョブ。
type CleanupJob struct {
	sessions SessionPurger
	recorder metrics.CleanupRecorder
	logger   *slog.Logger
	now      func() time.Time

	// GraceDays は有効期限切れから削除までの猶予日数。
	GraceDays int
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sessions SessionPurger, recorder metrics.CleanupRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:  sessions,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
		GraceDays: DefaultGraceDays,
	}
}

// cutoff は削除対象とする有効期限の上限を返す。
func (j *CleanupJob) cutoff() time.Time {
	return j.now().AddDate(0, 0, -j.GraceDays)
}

// Run は有効期限がGraceDays日より前のセッションを削除し、削除件数を返す。
// 削除対象がない場合もエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := j.cutoff()

	deleted, err := j.sessions.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("grace_days", j.GraceDays),
		)
		return 0, fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsPurged(deleted)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("grace_days", j.GraceDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deleted, nil
}

// Start は起動直後に1回実行し、その後intervalごとにRunを実行する。
// コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	// エラーはRun内でログ出力済み
	_, _ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}
