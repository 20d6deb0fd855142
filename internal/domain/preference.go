package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/errs"
)

// QuietHours 免打扰时段，按接收者本地时区比较，支持跨午夜
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"` // HH:MM
	End      string `json:"end"`   // HH:MM
	Timezone string `json:"timezone"`
}

// UserPreference 接收者的投递策略
type UserPreference struct {
	UserID   string
	UserType RecipientType

	Email     string
	Phone     string
	PushToken string

	// ChannelEnabled 渠道总开关
	ChannelEnabled map[Channel]bool
	// TypeOverrides 业务事件类型 -> 渠道 -> 开关，优先于总开关
	TypeOverrides map[string]map[Channel]bool

	QuietHours QuietHours

	// 每日发送上限，0 表示不限制
	MaxEmailsPerDay int
	MaxSMSPerDay    int

	Ctime time.Time
	Utime time.Time
}

func (p *UserPreference) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: UserID 不能为空", errs.ErrInvalidParameter)
	}
	if p.QuietHours.Enabled {
		if _, err := time.Parse("15:04", p.QuietHours.Start); err != nil {
			return fmt.Errorf("%w: 免打扰开始时间 %q", errs.ErrInvalidParameter, p.QuietHours.Start)
		}
		if _, err := time.Parse("15:04", p.QuietHours.End); err != nil {
			return fmt.Errorf("%w: 免打扰结束时间 %q", errs.ErrInvalidParameter, p.QuietHours.End)
		}
	}
	return nil
}

// EnabledFor 计算某个业务事件类型在某渠道上是否启用。
// 类型级覆盖优先，没有覆盖时回落到渠道总开关。
func (p *UserPreference) EnabledFor(bizType string, channel Channel) bool {
	if overrides, ok := p.TypeOverrides[bizType]; ok {
		if enabled, ok2 := overrides[channel]; ok2 {
			return enabled
		}
	}
	return p.ChannelEnabled[channel]
}

// DailyLimit 渠道的每日上限，0 表示不限制
func (p *UserPreference) DailyLimit(channel Channel) int {
	switch channel {
	case ChannelEmail:
		return p.MaxEmailsPerDay
	case ChannelSMS:
		return p.MaxSMSPerDay
	default:
		return 0
	}
}

// DefaultPreference 没有偏好记录时的安全兜底：只开邮件
func DefaultPreference(userID string) UserPreference {
	return UserPreference{
		UserID:   userID,
		UserType: RecipientTypeUser,
		ChannelEnabled: map[Channel]bool{
			ChannelEmail: true,
		},
	}
}
