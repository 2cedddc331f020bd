// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredSessionDeleter は期限切れセッションを削除するインターフェース。
// repository.SessionRepositoryの部分集合。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionCleanupJob は期限切れセッションを削除するジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type SessionCleanupJob struct {
	sessions ExpiredSessionDeleter
	logger   *slog.Logger
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(sessions ExpiredSessionDeleter, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		sessions: sessions,
		logger:   logger,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、その後interval毎にRunを実行する。
// ctxがキャンセルされるまでブロックする。個々の失敗はログに記録して継続する。
func (j *SessionCleanupJob) Start(ctx context.Context, interval time.Duration) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
