package errs

import (
	"errors"
)

// 定义统一的错误类型
var (
	ErrInvalidParameter             = errors.New("参数错误")
	ErrSendNotificationFailed       = errors.New("发送通知失败")
	ErrNotificationIDGenerateFailed = errors.New("通知ID生成失败")
	ErrNotificationNotFound         = errors.New("通知记录不存在")
	ErrCreateNotificationFailed     = errors.New("创建通知失败")
	ErrNotificationDuplicate        = errors.New("通知记录主键冲突")
	ErrNotificationVersionMismatch  = errors.New("通知记录版本不匹配")
	ErrNotificationExpired          = errors.New("通知已过期")

	ErrNoAvailableChannel = errors.New("无可用渠道")
	ErrChannelSendTimeout = errors.New("渠道发送超时")

	ErrTemplateNotFound      = errors.New("模板不存在")
	ErrTemplateDuplicateName = errors.New("模板名称已存在")
	ErrRenderTemplateFailed  = errors.New("模板渲染失败")
	ErrMissingRequiredParams = errors.New("缺少必填模板参数")

	ErrPreferenceNotFound   = errors.New("偏好记录不存在")
	ErrDailyQuotaExceeded   = errors.New("已超过当日发送上限")
	ErrRateLimitUnavailable = errors.New("限流计数器不可用")
)
