package channel

import (
	"context"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
)

// consoleChannel 控制台渠道，只打日志就算发送成功。
// 任意渠道缺少外部配置时都可以退化成它，保证本地环境全链路可跑。
type consoleChannel struct {
	name   domain.Channel
	logger *elog.Component
}

// NewConsoleChannel 创建指定渠道的控制台实现
func NewConsoleChannel(name domain.Channel) Channel {
	return &consoleChannel{
		name:   name,
		logger: elog.DefaultLogger,
	}
}

func (c *consoleChannel) Send(_ context.Context, notification domain.Notification) (domain.SendResponse, error) {
	externalID := uuid.Must(uuid.NewV4()).String()
	c.logger.Info("控制台渠道发送",
		elog.String("channel", string(c.name)),
		elog.Any("notificationID", notification.ID),
		elog.String("recipient", notification.Recipient.ContactFor(c.name)),
		elog.String("subject", notification.Subject))
	return domain.SendResponse{
		NotificationID: notification.ID,
		Status:         domain.SendStatusSucceeded,
		ExternalID:     externalID,
	}, nil
}
