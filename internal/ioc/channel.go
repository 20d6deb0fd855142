package ioc

import (
	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/service/channel"
	channelmetrics "gitee.com/flycash/notification-dispatch/internal/service/channel/metrics"
	channeltracing "gitee.com/flycash/notification-dispatch/internal/service/channel/tracing"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
)

// InitChannels 组装全部渠道适配器。缺少外部配置的渠道退化成控制台实现，
// 最外层套上指标和链路追踪装饰器。
func InitChannels(smsClients []channel.NamedClient) channel.Channel {
	channels := map[domain.Channel]channel.Channel{
		domain.ChannelEmail:    initEmailChannel(),
		domain.ChannelSMS:      initSMSChannel(smsClients),
		domain.ChannelPush:     initPushChannel(),
		domain.ChannelWhatsApp: initWhatsAppChannel(),
		domain.ChannelWebhook:  channel.NewWebhookChannel(nil),
	}
	return channeltracing.NewChannel(channelmetrics.NewChannel(channel.NewDispatcher(channels)))
}

func initEmailChannel() channel.Channel {
	var cfg channel.EmailConfig
	if err := econf.UnmarshalKey("email", &cfg); err != nil {
		panic(err)
	}
	if cfg.Host == "" {
		elog.DefaultLogger.Info("邮件未配置SMTP，使用控制台实现")
		return channel.NewConsoleChannel(domain.ChannelEmail)
	}
	return channel.NewEmailChannel(cfg)
}

func initSMSChannel(clients []channel.NamedClient) channel.Channel {
	signName := econf.GetString("sms.signName")
	return channel.NewSMSChannel(signName, clients...)
}

func initPushChannel() channel.Channel {
	var cfg channel.PushConfig
	if err := econf.UnmarshalKey("push", &cfg); err != nil {
		panic(err)
	}
	if cfg.GatewayURL == "" {
		elog.DefaultLogger.Info("推送未配置网关，使用控制台实现")
		return channel.NewConsoleChannel(domain.ChannelPush)
	}
	return channel.NewPushChannel(cfg, nil)
}

func initWhatsAppChannel() channel.Channel {
	var cfg channel.WhatsAppConfig
	if err := econf.UnmarshalKey("whatsapp", &cfg); err != nil {
		panic(err)
	}
	if cfg.APIURL == "" {
		elog.DefaultLogger.Info("WhatsApp 未配置接口，使用控制台实现")
		return channel.NewConsoleChannel(domain.ChannelWhatsApp)
	}
	return channel.NewWhatsAppChannel(cfg, nil)
}
