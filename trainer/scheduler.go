package trainer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DataSyncer 是数据同步作业的接口（由 ingest.Syncer 实现）。
type DataSyncer interface {
	Sync(ctx context.Context) error
}

// Scheduler 驱动两个独立的周期作业：数据同步、再训练触发检查。
// 两个作业并发运行且互不阻塞；每轮作业失败只记日志，
// 错误被隔离在单轮内，不会停掉后续轮次。
//
// 每个作业启动时立即执行一次，再进入固定周期。
type Scheduler struct {
	Trainer *Trainer
	Syncer  DataSyncer // 可选，未设置时不运行同步作业

	SyncInterval  time.Duration // 默认 2 分钟
	CheckInterval time.Duration // 默认 2 分钟
	CycleTimeout  time.Duration // 单轮作业的超时上限，0 表示不限

	Log zerolog.Logger
}

// Run 阻塞运行调度器直到 ctx 取消。
func (s *Scheduler) Run(ctx context.Context) error {
	syncInterval := s.SyncInterval
	if syncInterval <= 0 {
		syncInterval = 2 * time.Minute
	}
	checkInterval := s.CheckInterval
	if checkInterval <= 0 {
		checkInterval = 2 * time.Minute
	}

	eg, ctx := errgroup.WithContext(ctx)
	if s.Syncer != nil {
		eg.Go(func() error {
			s.runLoop(ctx, "sync", syncInterval, s.Syncer.Sync)
			return nil
		})
	}
	eg.Go(func() error {
		s.runLoop(ctx, "retrain-check", checkInterval, s.Trainer.MaybeRetrain)
		return nil
	})

	s.Log.Info().Msg("scheduler started")
	return eg.Wait()
}

// runLoop 立即执行一次 job，之后按 interval 周期执行。
// 超时算失败（记日志后继续下一轮），不会无限阻塞后续周期。
func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx, name, job)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, name string, job func(context.Context) error) {
	jobCtx := ctx
	if s.CycleTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.CycleTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := job(jobCtx); err != nil {
		s.Log.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("job failed")
		return
	}
	s.Log.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("job done")
}
