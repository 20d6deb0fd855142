//go:build wireinject

package ioc

import (
	httpapi "gitee.com/flycash/notification-dispatch/internal/api/http"
	"gitee.com/flycash/notification-dispatch/internal/ioc"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/repository/dao"
	"gitee.com/flycash/notification-dispatch/internal/service/preference"
	"gitee.com/flycash/notification-dispatch/internal/service/template"
	"github.com/google/wire"
)

var (
	BaseSet = wire.NewSet(
		ioc.InitDB,
		ioc.InitRedisClient,
		ioc.InitDistributedLock,
		ioc.InitGoCache,
		ioc.InitIDGenerator,
		ioc.InitDailyQuotaLimiter,
	)
	templateSvcSet = wire.NewSet(
		template.NewChannelTemplateService,
		repository.NewChannelTemplateRepository,
		dao.NewChannelTemplateDAO,
	)
	preferenceSvcSet = wire.NewSet(
		preference.NewUserPreferenceService,
		preference.NewResolver,
		repository.NewUserPreferenceRepository,
		dao.NewUserPreferenceDAO,
	)
	notificationSet = wire.NewSet(
		repository.NewNotificationRepository,
		dao.NewNotificationDAO,
	)
	channelSet = wire.NewSet(
		ioc.InitSmsClients,
		ioc.InitChannels,
	)
	dispatcherSet = wire.NewSet(
		ioc.InitDispatcher,
	)
	handlerSet = wire.NewSet(
		httpapi.NewNotificationHandler,
		httpapi.NewTemplateHandler,
		httpapi.NewPreferenceHandler,
	)
)

func InitApp() *App {
	wire.Build(
		BaseSet,
		templateSvcSet,
		preferenceSvcSet,
		notificationSet,
		channelSet,
		dispatcherSet,
		handlerSet,
		ioc.InitTasks,
		ioc.InitHTTPServer,
		wire.Struct(new(App), "*"),
	)
	return new(App)
}
