package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/errs"
)

// Channel 通知渠道
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelPush     Channel = "PUSH"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelWebhook  Channel = "WEBHOOK"
)

func (c Channel) String() string {
	return string(c)
}

// IsValid 是否是合法渠道
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWhatsApp, ChannelWebhook:
		return true
	default:
		return false
	}
}

// SendStatus 通知状态
type SendStatus string

const (
	SendStatusPending   SendStatus = "PENDING"   // 待发送
	SendStatusSending   SendStatus = "SENDING"   // 发送中
	SendStatusSucceeded SendStatus = "SUCCEEDED" // 发送成功
	SendStatusDelivered SendStatus = "DELIVERED" // 供应商确认送达
	SendStatusFailed    SendStatus = "FAILED"    // 发送失败
	SendStatusExpired   SendStatus = "EXPIRED"   // 已过期
)

func (s SendStatus) String() string {
	return string(s)
}

// IsTerminal 终态判定。FAILED 只有在重试次数耗尽时才算终态，
// 这里只看状态本身，重试额度由 Notification.CanRetry 判断。
func (s SendStatus) IsTerminal() bool {
	return s == SendStatusDelivered || s == SendStatusExpired
}

// RecipientType 接收者类型
type RecipientType string

const (
	RecipientTypeUser     RecipientType = "USER"
	RecipientTypeGroup    RecipientType = "GROUP"
	RecipientTypeExternal RecipientType = "EXTERNAL"
)

// Recipient 通知接收者
type Recipient struct {
	Type  RecipientType `json:"type"`
	ID    string        `json:"id"`
	Email string        `json:"email"`
	Phone string        `json:"phone"`
	Name  string        `json:"name"`
	// PushToken 设备推送令牌，PUSH 渠道使用
	PushToken string `json:"pushToken"`
	// WebhookURL WEBHOOK 渠道的回调地址
	WebhookURL string `json:"webhookUrl"`
}

// ContactFor 返回指定渠道需要的联系方式，为空表示缺失
func (r Recipient) ContactFor(channel Channel) string {
	switch channel {
	case ChannelEmail:
		return r.Email
	case ChannelSMS, ChannelWhatsApp:
		return r.Phone
	case ChannelPush:
		return r.PushToken
	case ChannelWebhook:
		return r.WebhookURL
	default:
		return ""
	}
}

const (
	// DefaultMaxRetries 默认最大重试次数
	DefaultMaxRetries = 3
	// PriorityUrgent 达到该优先级的通知不受免打扰时段限制
	PriorityUrgent = 8
)

// Notification 通知领域模型，一条记录对应一次 (接收者, 渠道) 投递
type Notification struct {
	ID      uint64 // 通知唯一标识
	BizType string // 业务事件类型，比如 vehicle_assigned
	Channel Channel

	Recipient Recipient

	// 渲染之后的内容快照，模板后续变更不影响已创建的通知
	Subject string
	Body    string
	Payload map[string]string

	// 模板引用，记录渲染时使用的模板与参数，便于追溯
	TemplateID     int64
	TemplateParams map[string]string

	Status     SendStatus
	RetryCount int8
	MaxRetries int8
	Priority   int8

	ScheduledAt time.Time // 计划发送时间，零值表示立即
	ExpiresAt   time.Time // 过期时间，零值表示永不过期
	NextRetryAt time.Time // 下一次重试时间，由退避策略计算

	SentAt      time.Time
	DeliveredAt time.Time
	FailedAt    time.Time

	ExternalID       string // 供应商消息ID
	ProviderResponse string
	ErrorCode        string
	ErrorMessage     string

	// 来源信息
	SourceService string
	SourceEvent   string
	GroupID       string // 批量发送批次号

	Version int // 版本号，用于CAS操作
}

func (n *Notification) Validate() error {
	if n.BizType == "" {
		return fmt.Errorf("%w: BizType 不能为空", errs.ErrInvalidParameter)
	}

	if !n.Channel.IsValid() {
		return fmt.Errorf("%w: Channel = %q", errs.ErrInvalidParameter, n.Channel)
	}

	if n.Recipient.ContactFor(n.Channel) == "" {
		return fmt.Errorf("%w: 接收者缺少 %s 渠道的联系方式", errs.ErrInvalidParameter, n.Channel)
	}

	if n.Body == "" {
		return fmt.Errorf("%w: Body 不能为空", errs.ErrInvalidParameter)
	}

	if n.MaxRetries < 0 {
		return fmt.Errorf("%w: MaxRetries = %d", errs.ErrInvalidParameter, n.MaxRetries)
	}

	return nil
}

// IsExpired 是否已过期
func (n *Notification) IsExpired(now time.Time) bool {
	return !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt)
}

// IsDue 计划发送时间是否已到
func (n *Notification) IsDue(now time.Time) bool {
	return n.ScheduledAt.IsZero() || !now.Before(n.ScheduledAt)
}

// CanRetry 还有没有重试额度
func (n *Notification) CanRetry() bool {
	return n.RetryCount < n.MaxRetries
}

// MarkSucceeded 标记发送成功
func (n *Notification) MarkSucceeded(now time.Time, externalID, providerResponse string) {
	n.Status = SendStatusSucceeded
	n.SentAt = now
	n.ExternalID = externalID
	n.ProviderResponse = providerResponse
	n.ErrorCode = ""
	n.ErrorMessage = ""
}

// MarkFailed 标记发送失败并累加重试次数
func (n *Notification) MarkFailed(now time.Time, errorCode, errorMessage string) {
	n.Status = SendStatusFailed
	n.FailedAt = now
	n.ErrorCode = errorCode
	n.ErrorMessage = errorMessage
	if n.RetryCount < n.MaxRetries {
		n.RetryCount++
	}
}

func (n *Notification) MarshalRecipient() (string, error) {
	return n.marshal(n.Recipient)
}

func (n *Notification) MarshalPayload() (string, error) {
	return n.marshal(n.Payload)
}

func (n *Notification) MarshalTemplateParams() (string, error) {
	return n.marshal(n.TemplateParams)
}

func (n *Notification) marshal(v any) (string, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

// SendResponse 渠道返回的发送结果
type SendResponse struct {
	NotificationID   uint64
	Status           SendStatus
	ExternalID       string
	ProviderResponse string
}

// BulkSendResponse 批量发送的聚合结果
type BulkSendResponse struct {
	Total      int
	Successful int
	Failed     int
	// Deferred 免打扰或配额顺延后仍是PENDING的条数，不算失败
	Deferred int
	GroupID  string
}
