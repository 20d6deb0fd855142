package ioc

import (
	"context"

	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/dispatcher"
	"gitee.com/flycash/notification-dispatch/internal/service/scheduler"
	"github.com/gotomicro/ego/core/econf"
	"github.com/meoying/dlock-go"
)

// Task 后台任务，ctx 取消时退出
type Task interface {
	Start(ctx context.Context)
}

func InitTasks(
	svc dispatcher.Dispatcher,
	repo repository.NotificationRepository,
	dclient dlock.Client,
) []Task {
	retryInterval := econf.GetDuration("scheduler.retryInterval")
	dueInterval := econf.GetDuration("scheduler.dueInterval")
	sweepInterval := econf.GetDuration("scheduler.sweepInterval")
	return []Task{
		scheduler.NewRetryScheduler(svc, dclient, retryInterval),
		scheduler.NewDueSweeper(svc, dclient, dueInterval),
		scheduler.NewExpirySweeper(repo, dclient, sweepInterval),
		scheduler.NewSendingTimeoutSweeper(repo, dclient, sweepInterval),
	}
}
