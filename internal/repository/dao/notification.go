package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"

	"github.com/ego-component/egorm"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type NotificationDAO interface {
	// Create 创建单条通知记录
	Create(ctx context.Context, data Notification) (Notification, error)
	// BatchCreate 批量创建通知记录
	BatchCreate(ctx context.Context, dataList []Notification) ([]Notification, error)

	// GetByID 根据ID查询通知
	GetByID(ctx context.Context, id uint64) (Notification, error)
	BatchGetByIDs(ctx context.Context, ids []uint64) (map[uint64]Notification, error)
	// GetByGroupID 根据批次号获取通知列表
	GetByGroupID(ctx context.Context, groupID string) ([]Notification, error)

	// Find 按条件分页查询
	Find(ctx context.Context, filter NotificationFilter, offset, limit int) ([]Notification, int64, error)

	// CASStatus 状态CAS更新，版本不匹配返回 ErrNotificationVersionMismatch
	CASStatus(ctx context.Context, id uint64, version int, status string) error
	// MarkSucceeded 标记发送成功并写入供应商结果
	MarkSucceeded(ctx context.Context, entity Notification) error
	// MarkFailed 标记发送失败、累加重试次数并写入下一次重试时间
	MarkFailed(ctx context.Context, entity Notification) error
	// MarkDelivered 成功记录收到供应商送达回执
	MarkDelivered(ctx context.Context, id uint64, deliveredAt int64) error
	// Reschedule 通知保持 PENDING，只推迟计划发送时间（免打扰时段顺延）
	Reschedule(ctx context.Context, id uint64, scheduledAt int64) error

	// FindDue 查询到期待投递的 PENDING 记录：免打扰、配额顺延和
	// 定时发送的通知都靠这个谓词重新捞起来
	FindDue(ctx context.Context, now int64, limit int) ([]Notification, error)
	// FindRetryable 查询可重试的失败记录：retry_count < max_retries、
	// 未过期且 next_retry_at 已到
	FindRetryable(ctx context.Context, now int64, limit int) ([]Notification, error)
	// MarkExpiredBefore 把截止时间已过的非终态记录批量置为 EXPIRED
	MarkExpiredBefore(ctx context.Context, now int64, batchSize int) (int64, error)
	// MarkTimeoutSendingAsFailed 把卡在 SENDING 超过一分钟的记录打回 FAILED
	MarkTimeoutSendingAsFailed(ctx context.Context, batchSize int) (int64, error)
}

// NotificationFilter 通知查询条件
type NotificationFilter struct {
	BizType     string
	Channel     string
	Status      string
	RecipientID string
	StartTime   int64
	EndTime     int64
}

// Notification 通知记录表
type Notification struct {
	ID          uint64 `gorm:"primaryKey;comment:'雪花算法ID'"`
	BizType     string `gorm:"type:VARCHAR(128);NOT NULL;index:idx_biz_type_status,priority:1;comment:'业务事件类型'"`
	Channel     string `gorm:"type:ENUM('EMAIL','SMS','PUSH','WHATSAPP','WEBHOOK');NOT NULL;index:idx_channel;comment:'发送渠道'"`
	RecipientID string `gorm:"type:VARCHAR(128);NOT NULL;index:idx_recipient;comment:'接收者ID'"`
	Recipient   string `gorm:"type:TEXT;NOT NULL;comment:'接收者信息，JSON'"`

	Subject string `gorm:"type:VARCHAR(512);comment:'渲染后的标题快照'"`
	Body    string `gorm:"type:TEXT;NOT NULL;comment:'渲染后的正文快照'"`
	Payload string `gorm:"type:TEXT;comment:'附加负载，JSON'"`

	TemplateID     int64  `gorm:"type:BIGINT;comment:'模板ID，0表示未使用模板'"`
	TemplateParams string `gorm:"type:TEXT;comment:'渲染时使用的模板参数，JSON'"`

	Status     string `gorm:"type:ENUM('PENDING','SENDING','SUCCEEDED','DELIVERED','FAILED','EXPIRED');DEFAULT:'PENDING';NOT NULL;index:idx_biz_type_status,priority:2;index:idx_retry,priority:1;comment:'发送状态'"`
	RetryCount int8   `gorm:"type:TINYINT;NOT NULL;DEFAULT:0"`
	MaxRetries int8   `gorm:"type:TINYINT;NOT NULL;DEFAULT:3"`
	Priority   int8   `gorm:"type:TINYINT;NOT NULL;DEFAULT:0"`

	ScheduledAt int64 `gorm:"index:idx_scheduled;comment:'计划发送时间，毫秒'"`
	ExpiresAt   int64 `gorm:"comment:'过期时间，毫秒，0表示永不过期'"`
	NextRetryAt int64 `gorm:"index:idx_retry,priority:2;comment:'下一次重试时间，毫秒'"`

	SentAt      int64
	DeliveredAt int64
	FailedAt    int64

	ExternalID       string `gorm:"type:VARCHAR(256);comment:'供应商消息ID'"`
	ProviderResponse string `gorm:"type:TEXT"`
	ErrorCode        string `gorm:"type:VARCHAR(64)"`
	ErrorMessage     string `gorm:"type:TEXT"`

	SourceService string `gorm:"type:VARCHAR(128)"`
	SourceEvent   string `gorm:"type:VARCHAR(128)"`
	GroupID       string `gorm:"type:VARCHAR(64);index:idx_group;comment:'批量发送批次号'"`

	Version int `gorm:"type:INT;NOT NULL;DEFAULT:1;comment:'版本号，用于CAS操作'"`
	Ctime   int64
	Utime   int64
}

type notificationDAO struct {
	db *egorm.Component
}

// NewNotificationDAO 创建通知DAO实例
func NewNotificationDAO(db *egorm.Component) NotificationDAO {
	return &notificationDAO{
		db: db,
	}
}

func (d *notificationDAO) Create(ctx context.Context, data Notification) (Notification, error) {
	now := time.Now().UnixMilli()
	data.Ctime, data.Utime = now, now
	data.Version = 1

	if err := d.db.WithContext(ctx).Create(&data).Error; err != nil {
		if isUniqueConstraintError(err) {
			return Notification{}, fmt.Errorf("%w", errs.ErrNotificationDuplicate)
		}
		return Notification{}, err
	}
	return data, nil
}

func (d *notificationDAO) BatchCreate(ctx context.Context, dataList []Notification) ([]Notification, error) {
	if len(dataList) == 0 {
		return []Notification{}, nil
	}

	const batchSize = 100
	now := time.Now().UnixMilli()
	for i := range dataList {
		dataList[i].Ctime, dataList[i].Utime = now, now
		dataList[i].Version = 1
	}

	err := d.db.WithContext(ctx).CreateInBatches(dataList, batchSize).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w", errs.ErrNotificationDuplicate)
		}
		return nil, err
	}
	return dataList, nil
}

// isUniqueConstraintError 检查是否是唯一索引冲突错误
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	me := new(mysql.MySQLError)
	if ok := errors.As(err, &me); ok {
		const uniqueIndexErrNo uint16 = 1062
		return me.Number == uniqueIndexErrNo
	}
	return false
}

func (d *notificationDAO) GetByID(ctx context.Context, id uint64) (Notification, error) {
	var notification Notification
	err := d.db.WithContext(ctx).First(&notification, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Notification{}, fmt.Errorf("%w: id=%d", errs.ErrNotificationNotFound, id)
		}
		return Notification{}, err
	}
	return notification, nil
}

func (d *notificationDAO) BatchGetByIDs(ctx context.Context, ids []uint64) (map[uint64]Notification, error) {
	var notifications []Notification
	err := d.db.WithContext(ctx).
		Where("id in (?)", ids).
		Find(&notifications).Error
	notificationMap := make(map[uint64]Notification, len(ids))
	for idx := range notifications {
		notification := notifications[idx]
		notificationMap[notification.ID] = notification
	}
	return notificationMap, err
}

func (d *notificationDAO) GetByGroupID(ctx context.Context, groupID string) ([]Notification, error) {
	var notifications []Notification
	err := d.db.WithContext(ctx).Where("group_id = ?", groupID).Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("查询批次通知失败: groupID=%s %w", groupID, err)
	}
	return notifications, nil
}

func (d *notificationDAO) Find(ctx context.Context, filter NotificationFilter, offset, limit int) ([]Notification, int64, error) {
	query := d.db.WithContext(ctx).Model(&Notification{})
	if filter.BizType != "" {
		query = query.Where("biz_type = ?", filter.BizType)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RecipientID != "" {
		query = query.Where("recipient_id = ?", filter.RecipientID)
	}
	if filter.StartTime > 0 {
		query = query.Where("ctime >= ?", filter.StartTime)
	}
	if filter.EndTime > 0 {
		query = query.Where("ctime <= ?", filter.EndTime)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var res []Notification
	err := query.Order("ctime DESC").Limit(limit).Offset(offset).Find(&res).Error
	return res, total, err
}

func (d *notificationDAO) CASStatus(ctx context.Context, id uint64, version int, status string) error {
	result := d.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"status":  status,
			"version": gorm.Expr("version + 1"),
			"utime":   time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected < 1 {
		return fmt.Errorf("并发竞争失败 %w, id %d", errs.ErrNotificationVersionMismatch, id)
	}
	return nil
}

func (d *notificationDAO) MarkSucceeded(ctx context.Context, entity Notification) error {
	now := time.Now().UnixMilli()
	return d.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", entity.ID).
		Updates(map[string]any{
			"status":            entity.Status,
			"sent_at":           entity.SentAt,
			"external_id":       entity.ExternalID,
			"provider_response": entity.ProviderResponse,
			"error_code":        "",
			"error_message":     "",
			"version":           gorm.Expr("version + 1"),
			"utime":             now,
		}).Error
}

func (d *notificationDAO) MarkFailed(ctx context.Context, entity Notification) error {
	now := time.Now().UnixMilli()
	return d.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", entity.ID).
		Updates(map[string]any{
			"status":        entity.Status,
			"failed_at":     entity.FailedAt,
			"retry_count":   entity.RetryCount,
			"next_retry_at": entity.NextRetryAt,
			"error_code":    entity.ErrorCode,
			"error_message": entity.ErrorMessage,
			"version":       gorm.Expr("version + 1"),
			"utime":         now,
		}).Error
}

func (d *notificationDAO) MarkDelivered(ctx context.Context, id uint64, deliveredAt int64) error {
	// 只允许 SUCCEEDED -> DELIVERED，不允许状态回退
	result := d.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND status = ?", id, domain.SendStatusSucceeded.String()).
		Updates(map[string]any{
			"status":       domain.SendStatusDelivered.String(),
			"delivered_at": deliveredAt,
			"version":      gorm.Expr("version + 1"),
			"utime":        time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected < 1 {
		return fmt.Errorf("%w: id=%d 非 SUCCEEDED 状态", errs.ErrNotificationNotFound, id)
	}
	return nil
}

func (d *notificationDAO) Reschedule(ctx context.Context, id uint64, scheduledAt int64) error {
	return d.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND status = ?", id, domain.SendStatusPending.String()).
		Updates(map[string]any{
			"scheduled_at": scheduledAt,
			"utime":        time.Now().UnixMilli(),
		}).Error
}

func (d *notificationDAO) FindDue(ctx context.Context, now int64, limit int) ([]Notification, error) {
	var res []Notification
	err := d.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ? AND (expires_at = 0 OR expires_at > ?)",
			domain.SendStatusPending.String(), now, now).
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (d *notificationDAO) FindRetryable(ctx context.Context, now int64, limit int) ([]Notification, error) {
	var res []Notification
	err := d.db.WithContext(ctx).
		Where("status = ? AND retry_count < max_retries AND next_retry_at <= ? AND (expires_at = 0 OR expires_at > ?)",
			domain.SendStatusFailed.String(), now, now).
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (d *notificationDAO) MarkExpiredBefore(ctx context.Context, now int64, batchSize int) (int64, error) {
	sub := d.db.Model(&Notification{}).
		Select("id").
		Limit(batchSize).
		Where("expires_at > 0 AND expires_at < ? AND status IN ?", now,
			[]string{domain.SendStatusPending.String(), domain.SendStatusSending.String(), domain.SendStatusFailed.String()})
	res := d.db.WithContext(ctx).Model(&Notification{}).Where("id IN (?)", sub).Updates(map[string]any{
		"status":  domain.SendStatusExpired.String(),
		"version": gorm.Expr("version + 1"),
		"utime":   now,
	})
	return res.RowsAffected, res.Error
}

func (d *notificationDAO) MarkTimeoutSendingAsFailed(ctx context.Context, batchSize int) (int64, error) {
	now := time.Now()
	ddl := now.Add(-time.Minute).UnixMilli()
	sub := d.db.Model(&Notification{}).
		Select("id").
		Limit(batchSize).
		Where("status = ? AND utime <= ?", domain.SendStatusSending.String(), ddl)
	res := d.db.WithContext(ctx).Model(&Notification{}).Where("id IN (?)", sub).Updates(map[string]any{
		"status":        domain.SendStatusFailed.String(),
		"failed_at":     now.UnixMilli(),
		"error_code":    "SEND_TIMEOUT",
		"error_message": "发送中状态超时",
		"retry_count":   gorm.Expr("LEAST(retry_count + 1, max_retries)"),
		"version":       gorm.Expr("version + 1"),
		"utime":         now.UnixMilli(),
	})
	return res.RowsAffected, res.Error
}
