package ioc

import (
	"context"

	prodioc "gitee.com/flycash/notification-dispatch/internal/ioc"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/dispatcher"
	"gitee.com/flycash/notification-dispatch/internal/service/preference"
	"gitee.com/flycash/notification-dispatch/internal/service/template"
	"github.com/gotomicro/ego/server/egin"
)

type App struct {
	HTTPServer *egin.Component
	Tasks      []prodioc.Task

	DispatcherSvc dispatcher.Dispatcher
	TemplateSvc   template.ChannelTemplateService
	PreferenceSvc preference.UserPreferenceService

	NotificationRepo repository.NotificationRepository
	TemplateRepo     repository.ChannelTemplateRepository
	PreferenceRepo   repository.UserPreferenceRepository
}

func (a *App) StartTasks(ctx context.Context) {
	for _, t := range a.Tasks {
		go func(t prodioc.Task) {
			t.Start(ctx)
		}(t)
	}
}
