package channel

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
)

// 单渠道适配器的默认发送超时，超时即视为本次发送失败
const defaultSendTimeout = 10 * time.Second

// Channel 渠道适配器接口，所有具体渠道实现统一入口
//
//go:generate mockgen -source=./channel.go -destination=./mocks/channel.mock.go -package=channelmocks -typed Channel
type Channel interface {
	// Send 发送通知
	Send(ctx context.Context, notification domain.Notification) (domain.SendResponse, error)
}

// Dispatcher 渠道分发器，对外伪装成Channel，作为统一入口
type Dispatcher struct {
	channels map[domain.Channel]Channel
}

// NewDispatcher 创建渠道分发器
func NewDispatcher(channels map[domain.Channel]Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

func (d *Dispatcher) Send(ctx context.Context, notification domain.Notification) (domain.SendResponse, error) {
	channel, ok := d.channels[notification.Channel]
	if !ok {
		return domain.SendResponse{}, fmt.Errorf("%w: %s", errs.ErrNoAvailableChannel, notification.Channel)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
	defer cancel()

	resp, err := channel.Send(ctx, notification)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return domain.SendResponse{}, fmt.Errorf("%w: %s", errs.ErrChannelSendTimeout, notification.Channel)
	}
	return resp, err
}
