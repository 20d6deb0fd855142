package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/errs"
)

// ContentType 模板内容类型
type ContentType string

const (
	ContentTypePlain ContentType = "PLAIN"
	ContentTypeHTML  ContentType = "HTML"
)

func (c ContentType) IsValid() bool {
	return c == ContentTypePlain || c == ContentTypeHTML
}

// VariableSpec 模板变量的声明
type VariableSpec struct {
	Required bool   `json:"required"`
	Type     string `json:"type"` // 提示用途，比如 string/number/date
}

// ChannelTemplate 渠道模板，渲染通知内容的蓝本
type ChannelTemplate struct {
	ID      int64
	Name    string // 在启用模板中唯一
	Version int    // 单调递增，每次编辑+1

	BizType  string // 模板面向的业务事件类型
	Channel  Channel
	Language string

	SubjectPattern string
	BodyPattern    string
	ContentType    ContentType

	// VariablesSchema 变量名 -> 声明。允许滞后于正文，正文中未声明的
	// 变量只产生告警
	VariablesSchema map[string]VariableSpec
	Defaults        map[string]string

	IsValidated      bool
	ValidationErrors []string

	UsageCount int64
	LastUsedAt time.Time

	Ctime time.Time
	Utime time.Time
}

func (t *ChannelTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: 模板名称不能为空", errs.ErrInvalidParameter)
	}
	if t.BodyPattern == "" {
		return fmt.Errorf("%w: 模板正文不能为空", errs.ErrInvalidParameter)
	}
	if !t.Channel.IsValid() {
		return fmt.Errorf("%w: Channel = %q", errs.ErrInvalidParameter, t.Channel)
	}
	if t.ContentType != "" && !t.ContentType.IsValid() {
		return fmt.Errorf("%w: ContentType = %q", errs.ErrInvalidParameter, t.ContentType)
	}
	return nil
}
