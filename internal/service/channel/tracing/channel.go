package tracing

import (
	"context"
	"strconv"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/service/channel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Channel 为渠道实现添加链路追踪的装饰器
type Channel struct {
	channel channel.Channel
	tracer  trace.Tracer
}

// NewChannel 创建一个新的带有链路追踪的渠道
func NewChannel(c channel.Channel) *Channel {
	return &Channel{
		channel: c,
		tracer:  otel.Tracer("notification-dispatch/channel"),
	}
}

func (c *Channel) Send(ctx context.Context, notification domain.Notification) (domain.SendResponse, error) {
	ctx, span := c.tracer.Start(ctx, "Channel.Send",
		trace.WithAttributes(
			attribute.String("notification.id", strconv.FormatUint(notification.ID, 10)),
			attribute.String("notification.bizType", notification.BizType),
			attribute.String("notification.channel", string(notification.Channel)),
		))
	defer span.End()

	response, err := c.channel.Send(ctx, notification)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("notification.status", string(response.Status)),
		)
	}

	return response, err
}
