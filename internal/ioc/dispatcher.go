package ioc

import (
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/pkg/idgen"
	"gitee.com/flycash/notification-dispatch/internal/pkg/ratelimit"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/channel"
	"gitee.com/flycash/notification-dispatch/internal/service/dispatcher"
	"gitee.com/flycash/notification-dispatch/internal/service/preference"
	"gitee.com/flycash/notification-dispatch/internal/service/template"
	"github.com/gotomicro/ego/core/econf"
)

func InitDispatcher(
	repo repository.NotificationRepository,
	templateSvc template.ChannelTemplateService,
	resolver preference.Resolver,
	channels channel.Channel,
	quota ratelimit.DailyQuotaLimiter,
	idGen *idgen.Generator,
) dispatcher.Dispatcher {
	type Config struct {
		MaxConcurrency int                 `yaml:"maxConcurrency"`
		RetryBatchSize int                 `yaml:"retryBatchSize"`
		BackoffInitial time.Duration       `yaml:"backoffInitial"`
		BackoffMax     time.Duration       `yaml:"backoffMax"`
		FallbackChains map[string][]string `yaml:"fallbackChains"`
	}
	var cfg Config
	if err := econf.UnmarshalKey("dispatcher", &cfg); err != nil {
		panic(err)
	}

	chains := make(map[domain.Channel][]domain.Channel, len(cfg.FallbackChains))
	for from, tos := range cfg.FallbackChains {
		chain := make([]domain.Channel, 0, len(tos))
		for _, to := range tos {
			chain = append(chain, domain.Channel(to))
		}
		chains[domain.Channel(from)] = chain
	}

	svc := dispatcher.NewDispatcher(dispatcher.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		RetryBatchSize: cfg.RetryBatchSize,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
		FallbackChains: chains,
	}, repo, templateSvc, resolver, channels, quota, idGen)
	return dispatcher.NewObservabilityDispatcher(svc)
}
