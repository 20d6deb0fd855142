package scheduler

import (
	"context"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/pkg/loopjob"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/dispatcher"
	"github.com/gotomicro/ego/core/elog"
	"github.com/meoying/dlock-go"
)

const (
	retryLockKey   = "notification_retry_scheduler"
	dueLockKey     = "notification_due_sweeper"
	expiryLockKey  = "notification_expiry_sweeper"
	timeoutLockKey = "notification_sending_timeout_sweeper"

	defaultRetryInterval = 10 * time.Second
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 500
)

// RetryScheduler 失败重试调度器。靠查询谓词加CAS挑选记录，
// 不维护内存队列，和在线发送流量并发跑是安全的。
type RetryScheduler struct {
	svc      dispatcher.Dispatcher
	interval time.Duration
	dclient  dlock.Client
	logger   *elog.Component
}

// NewRetryScheduler 创建失败重试调度器
func NewRetryScheduler(svc dispatcher.Dispatcher, dclient dlock.Client, interval time.Duration) *RetryScheduler {
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	return &RetryScheduler{
		svc:      svc,
		interval: interval,
		dclient:  dclient,
		logger:   elog.DefaultLogger,
	}
}

func (s *RetryScheduler) Start(ctx context.Context) {
	lj := loopjob.NewInfiniteLoop(s.dclient, s.retryOnce, retryLockKey, s.interval)
	lj.Run(ctx)
}

func (s *RetryScheduler) retryOnce(ctx context.Context) error {
	count, err := s.svc.RetryFailed(ctx)
	if err != nil {
		// 部分失败不中断循环，下一轮还会扫到
		s.logger.Warn("重试批次部分失败", elog.Int("count", count), elog.FieldErr(err))
		return nil
	}
	if count > 0 {
		s.logger.Info("重试批次完成", elog.Int("count", count))
	}
	return nil
}

// DueSweeper 到期投递，捞起定时发送和被免打扰/配额顺延的PENDING记录重新投递
type DueSweeper struct {
	svc      dispatcher.Dispatcher
	interval time.Duration
	dclient  dlock.Client
	logger   *elog.Component
}

// NewDueSweeper 创建到期投递任务
func NewDueSweeper(svc dispatcher.Dispatcher, dclient dlock.Client, interval time.Duration) *DueSweeper {
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	return &DueSweeper{
		svc:      svc,
		interval: interval,
		dclient:  dclient,
		logger:   elog.DefaultLogger,
	}
}

func (s *DueSweeper) Start(ctx context.Context) {
	lj := loopjob.NewInfiniteLoop(s.dclient, s.sweepOnce, dueLockKey, s.interval)
	lj.Run(ctx)
}

func (s *DueSweeper) sweepOnce(ctx context.Context) error {
	count, err := s.svc.DispatchDue(ctx)
	if err != nil {
		s.logger.Warn("到期投递批次部分失败", elog.Int("count", count), elog.FieldErr(err))
		return nil
	}
	if count > 0 {
		s.logger.Info("到期投递批次完成", elog.Int("count", count))
	}
	return nil
}

// ExpirySweeper 过期清理，把逾期未送达的通知翻成EXPIRED
type ExpirySweeper struct {
	repo      repository.NotificationRepository
	interval  time.Duration
	batchSize int
	dclient   dlock.Client
	logger    *elog.Component
}

// NewExpirySweeper 创建过期清理任务
func NewExpirySweeper(repo repository.NotificationRepository, dclient dlock.Client, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &ExpirySweeper{
		repo:      repo,
		interval:  interval,
		batchSize: defaultSweepBatch,
		dclient:   dclient,
		logger:    elog.DefaultLogger,
	}
}

func (s *ExpirySweeper) Start(ctx context.Context) {
	lj := loopjob.NewInfiniteLoop(s.dclient, s.sweepOnce, expiryLockKey, s.interval)
	lj.Run(ctx)
}

func (s *ExpirySweeper) sweepOnce(ctx context.Context) error {
	affected, err := s.repo.MarkExpiredBefore(ctx, time.Now(), s.batchSize)
	if err != nil {
		s.logger.Warn("过期清理失败", elog.FieldErr(err))
		return nil
	}
	if affected > 0 {
		s.logger.Info("过期清理完成", elog.Int64("affected", affected))
	}
	return nil
}

// SendingTimeoutSweeper 发送超时恢复，把卡在SENDING的记录翻回FAILED，
// 进程崩溃之后这些记录才有机会被重试调度器捞起来。
type SendingTimeoutSweeper struct {
	repo      repository.NotificationRepository
	interval  time.Duration
	batchSize int
	dclient   dlock.Client
	logger    *elog.Component
}

// NewSendingTimeoutSweeper 创建发送超时恢复任务
func NewSendingTimeoutSweeper(repo repository.NotificationRepository, dclient dlock.Client, interval time.Duration) *SendingTimeoutSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SendingTimeoutSweeper{
		repo:      repo,
		interval:  interval,
		batchSize: defaultSweepBatch,
		dclient:   dclient,
		logger:    elog.DefaultLogger,
	}
}

func (s *SendingTimeoutSweeper) Start(ctx context.Context) {
	lj := loopjob.NewInfiniteLoop(s.dclient, s.sweepOnce, timeoutLockKey, s.interval)
	lj.Run(ctx)
}

func (s *SendingTimeoutSweeper) sweepOnce(ctx context.Context) error {
	affected, err := s.repo.MarkTimeoutSendingAsFailed(ctx, s.batchSize)
	if err != nil {
		s.logger.Warn("发送超时恢复失败", elog.FieldErr(err))
		return nil
	}
	if affected > 0 {
		s.logger.Info("发送超时恢复完成", elog.Int64("affected", affected))
	}
	return nil
}
