package channel

import (
	"context"
	"fmt"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"gitee.com/flycash/notification-dispatch/internal/service/channel/sms/client"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hashicorp/go-multierror"
)

// NamedClient 带名字的短信供应商客户端，名字用于日志和供应商回执
type NamedClient struct {
	Name   string
	Client client.Client
}

type smsChannel struct {
	// clients 按顺序尝试，前面的失败就切换到下一个
	clients  []NamedClient
	signName string
	logger   *elog.Component
}

// NewSMSChannel 创建短信渠道，clients 的顺序就是供应商的故障切换顺序
func NewSMSChannel(signName string, clients ...NamedClient) Channel {
	return &smsChannel{
		clients:  clients,
		signName: signName,
		logger:   elog.DefaultLogger,
	}
}

func (c *smsChannel) Send(ctx context.Context, notification domain.Notification) (domain.SendResponse, error) {
	phone := notification.Recipient.Phone
	if phone == "" {
		return domain.SendResponse{}, fmt.Errorf("%w: 手机号为空", errs.ErrInvalidParameter)
	}
	if len(c.clients) == 0 {
		return domain.SendResponse{}, fmt.Errorf("%w: 未配置短信供应商", errs.ErrNoAvailableChannel)
	}

	req := client.SendReq{
		PhoneNumbers:  []string{phone},
		SignName:      c.signName,
		Content:       notification.Body,
		TemplateID:    notification.Payload["providerTemplateId"],
		TemplateParam: notification.TemplateParams,
	}

	var errList error
	for _, cli := range c.clients {
		if ctx.Err() != nil {
			return domain.SendResponse{}, ctx.Err()
		}
		resp, err := cli.Client.Send(req)
		if err != nil {
			c.logger.Warn("短信供应商发送失败，尝试下一个",
				elog.String("provider", cli.Name),
				elog.Any("notificationID", notification.ID),
				elog.FieldErr(err))
			errList = multierror.Append(errList, fmt.Errorf("%s: %w", cli.Name, err))
			continue
		}
		status := resp.PhoneNumbers[phone]
		if status.Code != client.OK {
			errList = multierror.Append(errList,
				fmt.Errorf("%s: Code = %s, Message = %s", cli.Name, status.Code, status.Message))
			continue
		}
		return domain.SendResponse{
			NotificationID:   notification.ID,
			Status:           domain.SendStatusSucceeded,
			ExternalID:       resp.RequestID,
			ProviderResponse: fmt.Sprintf("provider=%s requestId=%s", cli.Name, resp.RequestID),
		}, nil
	}

	return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, errList)
}
