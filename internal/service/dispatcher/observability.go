package dispatcher

import (
	"context"
	"strconv"
	"strings"

	"github.com/ecodeclub/ekit/slice"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityDispatcher 为分发服务添加链路追踪的装饰器
type ObservabilityDispatcher struct {
	svc    Dispatcher
	tracer trace.Tracer
}

// NewObservabilityDispatcher 创建一个新的带有链路追踪的分发服务
func NewObservabilityDispatcher(svc Dispatcher) *ObservabilityDispatcher {
	return &ObservabilityDispatcher{
		svc:    svc,
		tracer: otel.Tracer("notification-dispatch/dispatcher"),
	}
}

func (o *ObservabilityDispatcher) Send(ctx context.Context, req domain.SendRequest) ([]domain.Notification, error) {
	ctx, span := o.tracer.Start(ctx, "Dispatcher.Send",
		trace.WithAttributes(
			attribute.String("notification.bizType", req.BizType),
			attribute.Int("notification.recipients", len(req.Recipients)),
		))
	defer span.End()

	created, err := o.svc.Send(ctx, req)
	o.record(span, created, err)
	return created, err
}

func (o *ObservabilityDispatcher) SendSync(ctx context.Context, req domain.SendRequest) ([]domain.Notification, error) {
	ctx, span := o.tracer.Start(ctx, "Dispatcher.SendSync",
		trace.WithAttributes(
			attribute.String("notification.bizType", req.BizType),
			attribute.Int("notification.recipients", len(req.Recipients)),
		))
	defer span.End()

	created, err := o.svc.SendSync(ctx, req)
	o.record(span, created, err)
	return created, err
}

func (o *ObservabilityDispatcher) BulkSend(ctx context.Context, req domain.SendRequest) (domain.BulkSendResponse, error) {
	ctx, span := o.tracer.Start(ctx, "Dispatcher.BulkSend",
		trace.WithAttributes(
			attribute.String("notification.bizType", req.BizType),
			attribute.Int("notification.recipients", len(req.Recipients)),
		))
	defer span.End()

	resp, err := o.svc.BulkSend(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("notification.groupId", resp.GroupID),
			attribute.Int("notification.succeeded", resp.Successful),
			attribute.Int("notification.failed", resp.Failed),
			attribute.Int("notification.deferred", resp.Deferred),
		)
	}
	return resp, err
}

func (o *ObservabilityDispatcher) DispatchAsync(ctx context.Context, notifications []domain.Notification) error {
	ctx, span := o.tracer.Start(ctx, "Dispatcher.DispatchAsync",
		trace.WithAttributes(
			attribute.Int("notification.count", len(notifications)),
		))
	defer span.End()

	if len(notifications) > 0 {
		span.SetAttributes(
			attribute.String("notification.ids", strings.Join(slice.Map(notifications, func(_ int, src domain.Notification) string {
				return strconv.FormatUint(src.ID, 10)
			}), ",")),
		)
	}

	err := o.svc.DispatchAsync(ctx, notifications)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *ObservabilityDispatcher) RetryFailed(ctx context.Context) (int, error) {
	ctx, span := o.tracer.Start(ctx, "Dispatcher.RetryFailed")
	defer span.End()

	count, err := o.svc.RetryFailed(ctx)
	span.SetAttributes(attribute.Int("notification.retried", count))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return count, err
}

func (o *ObservabilityDispatcher) DispatchDue(ctx context.Context) (int, error) {
	ctx, span := o.tracer.Start(ctx, "Dispatcher.DispatchDue")
	defer span.End()

	count, err := o.svc.DispatchDue(ctx)
	span.SetAttributes(attribute.Int("notification.dispatched", count))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return count, err
}

func (o *ObservabilityDispatcher) MarkDelivered(ctx context.Context, id uint64, externalID string) error {
	ctx, span := o.tracer.Start(ctx, "Dispatcher.MarkDelivered",
		trace.WithAttributes(
			attribute.String("notification.id", strconv.FormatUint(id, 10)),
			attribute.String("notification.externalId", externalID),
		))
	defer span.End()

	err := o.svc.MarkDelivered(ctx, id, externalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *ObservabilityDispatcher) record(span trace.Span, created []domain.Notification, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.Int("notification.created", len(created)))
}
