package preference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"github.com/gotomicro/ego/core/elog"
)

// allChannels 渠道偏好的遍历顺序，同时决定解析结果的渠道顺序
var allChannels = []domain.Channel{
	domain.ChannelEmail,
	domain.ChannelSMS,
	domain.ChannelPush,
	domain.ChannelWhatsApp,
	domain.ChannelWebhook,
}

// Resolver 渠道偏好解析器。无状态，发送链路按值调用。
//
//go:generate mockgen -source=./resolver.go -destination=./mocks/resolver.mock.go -package=preferencemocks -typed Resolver
type Resolver interface {
	// ResolveChannels 解析某个接收者在某业务事件类型下的投递渠道。
	// 调用方显式指定渠道时原样返回；没有偏好记录或解析结果为空时
	// 兜底返回 {EMAIL}，不允许一个通知类型悄悄落空。
	// 缺少联系方式的渠道会被过滤掉。
	ResolveChannels(ctx context.Context, recipient domain.Recipient, bizType string, explicit []domain.Channel) []domain.Channel

	// GetPreference 获取偏好，没有记录时返回安全默认值
	GetPreference(ctx context.Context, recipientID string) domain.UserPreference

	// InQuietHours 判断接收者此刻是否处于免打扰时段
	InQuietHours(pref domain.UserPreference, now time.Time) bool

	// QuietHoursEnd 免打扰时段的结束时刻（接收者时区），用于顺延发送
	QuietHoursEnd(pref domain.UserPreference, now time.Time) time.Time
}

type resolver struct {
	repo   repository.UserPreferenceRepository
	logger *elog.Component
}

// NewResolver 创建偏好解析器
func NewResolver(repo repository.UserPreferenceRepository) Resolver {
	return &resolver{
		repo:   repo,
		logger: elog.DefaultLogger,
	}
}

func (r *resolver) ResolveChannels(ctx context.Context, recipient domain.Recipient, bizType string, explicit []domain.Channel) []domain.Channel {
	// 显式指定永远优先
	if len(explicit) > 0 {
		return explicit
	}

	pref := r.GetPreference(ctx, recipient.ID)

	var channels []domain.Channel
	for _, channel := range allChannels {
		if !pref.EnabledFor(bizType, channel) {
			continue
		}
		if recipient.ContactFor(channel) == "" {
			continue
		}
		channels = append(channels, channel)
	}

	if len(channels) == 0 {
		// 全部关闭或缺联系方式也兜底到邮件，避免通知静默丢失
		return []domain.Channel{domain.ChannelEmail}
	}
	return channels
}

func (r *resolver) GetPreference(ctx context.Context, recipientID string) domain.UserPreference {
	pref, err := r.repo.GetByUserID(ctx, recipientID)
	if err != nil {
		if !errors.Is(err, errs.ErrPreferenceNotFound) {
			r.logger.Warn("查询偏好失败，使用默认偏好",
				elog.String("recipientID", recipientID),
				elog.FieldErr(err))
		}
		return domain.DefaultPreference(recipientID)
	}
	return pref
}

func (r *resolver) InQuietHours(pref domain.UserPreference, now time.Time) bool {
	qh := pref.QuietHours
	if !qh.Enabled {
		return false
	}

	local, err := r.localTime(qh, now)
	if err != nil {
		return false
	}

	start, err1 := time.Parse("15:04", qh.Start)
	end, err2 := time.Parse("15:04", qh.End)
	if err1 != nil || err2 != nil {
		return false
	}

	cur := local.Hour()*60 + local.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()

	if s <= e {
		return cur >= s && cur < e
	}
	// 跨午夜窗口，比如 22:00-06:00
	return cur >= s || cur < e
}

func (r *resolver) QuietHoursEnd(pref domain.UserPreference, now time.Time) time.Time {
	qh := pref.QuietHours
	local, err := r.localTime(qh, now)
	if err != nil {
		return now
	}
	end, err := time.Parse("15:04", qh.End)
	if err != nil {
		return now
	}

	candidate := time.Date(local.Year(), local.Month(), local.Day(),
		end.Hour(), end.Minute(), 0, 0, local.Location())
	if !candidate.After(local) {
		// 结束时刻已过，落到明天
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}

func (r *resolver) localTime(qh domain.QuietHours, now time.Time) (time.Time, error) {
	if qh.Timezone == "" {
		return now, nil
	}
	loc, err := time.LoadLocation(qh.Timezone)
	if err != nil {
		return now, fmt.Errorf("%w: 非法时区 %q", errs.ErrInvalidParameter, qh.Timezone)
	}
	return now.In(loc), nil
}
