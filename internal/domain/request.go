package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/errs"
)

// SendRequest 发送请求，业务方的入口参数。
// 内容二选一：指定 TemplateID 走模板渲染，或者直接给 Subject/Body。
type SendRequest struct {
	BizType    string
	Recipients []Recipient
	// Channels 显式指定渠道，为空时按接收者偏好解析
	Channels []Channel

	TemplateID     int64
	TemplateParams map[string]string

	Subject string
	Body    string
	Payload map[string]string

	Priority   int8
	MaxRetries int8

	ScheduledAt time.Time
	ExpiresAt   time.Time

	SourceService string
	SourceEvent   string
}

func (r *SendRequest) Validate() error {
	if r.BizType == "" {
		return fmt.Errorf("%w: BizType 不能为空", errs.ErrInvalidParameter)
	}
	if len(r.Recipients) == 0 {
		return fmt.Errorf("%w: Recipients 不能为空", errs.ErrInvalidParameter)
	}
	if r.TemplateID == 0 && r.Body == "" {
		return fmt.Errorf("%w: TemplateID 和 Body 必须提供一个", errs.ErrInvalidParameter)
	}
	for _, ch := range r.Channels {
		if !ch.IsValid() {
			return fmt.Errorf("%w: Channel = %q", errs.ErrInvalidParameter, ch)
		}
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("%w: MaxRetries = %d", errs.ErrInvalidParameter, r.MaxRetries)
	}
	if !r.ExpiresAt.IsZero() && !r.ScheduledAt.IsZero() && !r.ExpiresAt.After(r.ScheduledAt) {
		return fmt.Errorf("%w: 过期时间必须晚于计划发送时间", errs.ErrInvalidParameter)
	}
	return nil
}
