// Package refresh はダッシュボードの定期再取得を提供する。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// RefreshFunc は1回分の再取得処理。
type RefreshFunc func(ctx context.Context) error

// Poller は一定間隔でRefreshFuncを実行する。
// 前回のサイクルが終わっていない間に来たティックはキューに積まずスキップする。
type Poller struct {
	refresh  RefreshFunc
	interval time.Duration
	logger   *slog.Logger

	inFlight atomic.Bool
	skipped  atomic.Int64
	wg       sync.WaitGroup
}

// NewPoller はPollerの新しいインスタンスを生成する。
func NewPoller(refresh RefreshFunc, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		refresh:  refresh,
		interval: interval,
		logger:   logger,
	}
}

// Start は起動直後に1回、その後interval毎にサイクルを開始する。
// ctxがキャンセルされると、実行中のサイクルの終了を待って戻る。
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("refresh poller started", slog.Duration("interval", p.interval))

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.logger.Info("refresh poller stopped", slog.Int64("skipped_cycles", p.Skipped()))
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick はサイクルを非同期に開始する。前回のサイクルが実行中の場合は開始せずfalseを返す。
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.logger.Warn("refresh skipped: previous cycle still in flight")
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)

		start := time.Now()
		if err := p.refresh(ctx); err != nil {
			p.logger.Error("refresh cycle failed",
				slog.String("error", err.Error()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return
		}
		p.logger.Debug("refresh cycle completed",
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}()
	return true
}

// Wait は実行中のサイクルの終了を待つ。
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Skipped はスキップしたティックの数を返す。
func (p *Poller) Skipped() int64 {
	return p.skipped.Load()
}
