package repository

import (
	"context"
	"encoding/json"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
)

// NotificationFilter 通知查询条件
type NotificationFilter struct {
	BizType     string
	Channel     domain.Channel
	Status      domain.SendStatus
	RecipientID string
	StartTime   time.Time
	EndTime     time.Time
}

// NotificationRepository 通知仓储接口
type NotificationRepository interface {
	// Create 创建一条通知
	Create(ctx context.Context, notification domain.Notification) (domain.Notification, error)

	// BatchCreate 批量创建通知
	BatchCreate(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error)

	// GetByID 根据ID获取通知
	GetByID(ctx context.Context, id uint64) (domain.Notification, error)

	// BatchGetByIDs 根据ID列表获取通知列表
	BatchGetByIDs(ctx context.Context, ids []uint64) (map[uint64]domain.Notification, error)

	// GetByGroupID 根据批次号获取通知列表
	GetByGroupID(ctx context.Context, groupID string) ([]domain.Notification, error)

	// Find 按条件分页查询，同时返回总数
	Find(ctx context.Context, filter NotificationFilter, offset, limit int) ([]domain.Notification, int64, error)

	// CASStatus 用版本号CAS更新状态
	CASStatus(ctx context.Context, notification domain.Notification, status domain.SendStatus) error

	// MarkSucceeded 标记发送成功
	MarkSucceeded(ctx context.Context, notification domain.Notification) error
	// MarkFailed 标记发送失败
	MarkFailed(ctx context.Context, notification domain.Notification) error
	// MarkDelivered 收到供应商送达回执
	MarkDelivered(ctx context.Context, id uint64, deliveredAt time.Time) error
	// Reschedule 推迟计划发送时间
	Reschedule(ctx context.Context, id uint64, scheduledAt time.Time) error

	// FindDue 查询到期待投递的 PENDING 记录
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	// FindRetryable 查询可重试的失败记录
	FindRetryable(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	// MarkExpiredBefore 批量过期截止时间已过的记录
	MarkExpiredBefore(ctx context.Context, now time.Time, batchSize int) (int64, error)
	// MarkTimeoutSendingAsFailed 恢复卡死在 SENDING 的记录
	MarkTimeoutSendingAsFailed(ctx context.Context, batchSize int) (int64, error)
}

// notificationRepository 通知仓储实现
type notificationRepository struct {
	dao dao.NotificationDAO
}

// NewNotificationRepository 创建通知仓储实例
func NewNotificationRepository(d dao.NotificationDAO) NotificationRepository {
	return &notificationRepository{
		dao: d,
	}
}

func (r *notificationRepository) Create(ctx context.Context, notification domain.Notification) (domain.Notification, error) {
	ds, err := r.dao.Create(ctx, r.toEntity(notification))
	if err != nil {
		return domain.Notification{}, err
	}
	return r.toDomain(ds), nil
}

func (r *notificationRepository) BatchCreate(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error) {
	entities := slice.Map(notifications, func(_ int, src domain.Notification) dao.Notification {
		return r.toEntity(src)
	})
	created, err := r.dao.BatchCreate(ctx, entities)
	if err != nil {
		return nil, err
	}
	return slice.Map(created, func(_ int, src dao.Notification) domain.Notification {
		return r.toDomain(src)
	}), nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uint64) (domain.Notification, error) {
	entity, err := r.dao.GetByID(ctx, id)
	if err != nil {
		return domain.Notification{}, err
	}
	return r.toDomain(entity), nil
}

func (r *notificationRepository) BatchGetByIDs(ctx context.Context, ids []uint64) (map[uint64]domain.Notification, error) {
	notificationMap, err := r.dao.BatchGetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	domainMap := make(map[uint64]domain.Notification, len(notificationMap))
	for id := range notificationMap {
		domainMap[id] = r.toDomain(notificationMap[id])
	}
	return domainMap, nil
}

func (r *notificationRepository) GetByGroupID(ctx context.Context, groupID string) ([]domain.Notification, error) {
	entities, err := r.dao.GetByGroupID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return slice.Map(entities, func(_ int, src dao.Notification) domain.Notification {
		return r.toDomain(src)
	}), nil
}

func (r *notificationRepository) Find(ctx context.Context, filter NotificationFilter, offset, limit int) ([]domain.Notification, int64, error) {
	daoFilter := dao.NotificationFilter{
		BizType:     filter.BizType,
		Channel:     filter.Channel.String(),
		Status:      filter.Status.String(),
		RecipientID: filter.RecipientID,
	}
	if filter.Channel == "" {
		daoFilter.Channel = ""
	}
	if filter.Status == "" {
		daoFilter.Status = ""
	}
	if !filter.StartTime.IsZero() {
		daoFilter.StartTime = filter.StartTime.UnixMilli()
	}
	if !filter.EndTime.IsZero() {
		daoFilter.EndTime = filter.EndTime.UnixMilli()
	}

	entities, total, err := r.dao.Find(ctx, daoFilter, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return slice.Map(entities, func(_ int, src dao.Notification) domain.Notification {
		return r.toDomain(src)
	}), total, nil
}

func (r *notificationRepository) CASStatus(ctx context.Context, notification domain.Notification, status domain.SendStatus) error {
	return r.dao.CASStatus(ctx, notification.ID, notification.Version, status.String())
}

func (r *notificationRepository) MarkSucceeded(ctx context.Context, notification domain.Notification) error {
	return r.dao.MarkSucceeded(ctx, r.toEntity(notification))
}

func (r *notificationRepository) MarkFailed(ctx context.Context, notification domain.Notification) error {
	return r.dao.MarkFailed(ctx, r.toEntity(notification))
}

func (r *notificationRepository) MarkDelivered(ctx context.Context, id uint64, deliveredAt time.Time) error {
	return r.dao.MarkDelivered(ctx, id, deliveredAt.UnixMilli())
}

func (r *notificationRepository) Reschedule(ctx context.Context, id uint64, scheduledAt time.Time) error {
	return r.dao.Reschedule(ctx, id, scheduledAt.UnixMilli())
}

func (r *notificationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	entities, err := r.dao.FindDue(ctx, now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	return slice.Map(entities, func(_ int, src dao.Notification) domain.Notification {
		return r.toDomain(src)
	}), nil
}

func (r *notificationRepository) FindRetryable(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	entities, err := r.dao.FindRetryable(ctx, now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	return slice.Map(entities, func(_ int, src dao.Notification) domain.Notification {
		return r.toDomain(src)
	}), nil
}

func (r *notificationRepository) MarkExpiredBefore(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	return r.dao.MarkExpiredBefore(ctx, now.UnixMilli(), batchSize)
}

func (r *notificationRepository) MarkTimeoutSendingAsFailed(ctx context.Context, batchSize int) (int64, error) {
	return r.dao.MarkTimeoutSendingAsFailed(ctx, batchSize)
}

func (r *notificationRepository) toEntity(n domain.Notification) dao.Notification {
	recipient, _ := n.MarshalRecipient()
	payload, _ := n.MarshalPayload()
	params, _ := n.MarshalTemplateParams()

	return dao.Notification{
		ID:               n.ID,
		BizType:          n.BizType,
		Channel:          n.Channel.String(),
		RecipientID:      n.Recipient.ID,
		Recipient:        recipient,
		Subject:          n.Subject,
		Body:             n.Body,
		Payload:          payload,
		TemplateID:       n.TemplateID,
		TemplateParams:   params,
		Status:           n.Status.String(),
		RetryCount:       n.RetryCount,
		MaxRetries:       n.MaxRetries,
		Priority:         n.Priority,
		ScheduledAt:      toMillis(n.ScheduledAt),
		ExpiresAt:        toMillis(n.ExpiresAt),
		NextRetryAt:      toMillis(n.NextRetryAt),
		SentAt:           toMillis(n.SentAt),
		DeliveredAt:      toMillis(n.DeliveredAt),
		FailedAt:         toMillis(n.FailedAt),
		ExternalID:       n.ExternalID,
		ProviderResponse: n.ProviderResponse,
		ErrorCode:        n.ErrorCode,
		ErrorMessage:     n.ErrorMessage,
		SourceService:    n.SourceService,
		SourceEvent:      n.SourceEvent,
		GroupID:          n.GroupID,
		Version:          n.Version,
	}
}

func (r *notificationRepository) toDomain(n dao.Notification) domain.Notification {
	var recipient domain.Recipient
	_ = json.Unmarshal([]byte(n.Recipient), &recipient)
	var payload map[string]string
	if n.Payload != "" {
		_ = json.Unmarshal([]byte(n.Payload), &payload)
	}
	var params map[string]string
	if n.TemplateParams != "" {
		_ = json.Unmarshal([]byte(n.TemplateParams), &params)
	}

	return domain.Notification{
		ID:               n.ID,
		BizType:          n.BizType,
		Channel:          domain.Channel(n.Channel),
		Recipient:        recipient,
		Subject:          n.Subject,
		Body:             n.Body,
		Payload:          payload,
		TemplateID:       n.TemplateID,
		TemplateParams:   params,
		Status:           domain.SendStatus(n.Status),
		RetryCount:       n.RetryCount,
		MaxRetries:       n.MaxRetries,
		Priority:         n.Priority,
		ScheduledAt:      fromMillis(n.ScheduledAt),
		ExpiresAt:        fromMillis(n.ExpiresAt),
		NextRetryAt:      fromMillis(n.NextRetryAt),
		SentAt:           fromMillis(n.SentAt),
		DeliveredAt:      fromMillis(n.DeliveredAt),
		FailedAt:         fromMillis(n.FailedAt),
		ExternalID:       n.ExternalID,
		ProviderResponse: n.ProviderResponse,
		ErrorCode:        n.ErrorCode,
		ErrorMessage:     n.ErrorMessage,
		SourceService:    n.SourceService,
		SourceEvent:      n.SourceEvent,
		GroupID:          n.GroupID,
		Version:          n.Version,
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
