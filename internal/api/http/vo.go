package http

import (
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
)

// RecipientVO 接收者
type RecipientVO struct {
	Type       string `json:"type"`
	ID         string `json:"id" binding:"required"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Name       string `json:"name"`
	PushToken  string `json:"pushToken"`
	WebhookURL string `json:"webhookUrl"`
}

func (r RecipientVO) toDomain() domain.Recipient {
	typ := domain.RecipientType(r.Type)
	if typ == "" {
		typ = domain.RecipientTypeUser
	}
	return domain.Recipient{
		Type:       typ,
		ID:         r.ID,
		Email:      r.Email,
		Phone:      r.Phone,
		Name:       r.Name,
		PushToken:  r.PushToken,
		WebhookURL: r.WebhookURL,
	}
}

// SendReq 发送请求
type SendReq struct {
	BizType    string        `json:"bizType" binding:"required"`
	Recipients []RecipientVO `json:"recipients" binding:"required"`
	Channels   []string      `json:"channels"`

	TemplateID     int64             `json:"templateId"`
	TemplateParams map[string]string `json:"templateParams"`

	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Payload map[string]string `json:"payload"`

	Priority   int8 `json:"priority"`
	MaxRetries int8 `json:"maxRetries"`

	// ScheduledAt/ExpiresAt RFC3339，为空表示立即/永不过期
	ScheduledAt string `json:"scheduledAt"`
	ExpiresAt   string `json:"expiresAt"`

	SourceService string `json:"sourceService"`
	SourceEvent   string `json:"sourceEvent"`
}

func (r SendReq) toDomain() (domain.SendRequest, error) {
	req := domain.SendRequest{
		BizType:        r.BizType,
		TemplateID:     r.TemplateID,
		TemplateParams: r.TemplateParams,
		Subject:        r.Subject,
		Body:           r.Body,
		Payload:        r.Payload,
		Priority:       r.Priority,
		MaxRetries:     r.MaxRetries,
		SourceService:  r.SourceService,
		SourceEvent:    r.SourceEvent,
	}
	for _, recipient := range r.Recipients {
		req.Recipients = append(req.Recipients, recipient.toDomain())
	}
	for _, ch := range r.Channels {
		req.Channels = append(req.Channels, domain.Channel(ch))
	}
	var err error
	if req.ScheduledAt, err = parseTime(r.ScheduledAt); err != nil {
		return domain.SendRequest{}, err
	}
	if req.ExpiresAt, err = parseTime(r.ExpiresAt); err != nil {
		return domain.SendRequest{}, err
	}
	return req, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// NotificationVO 通知记录
type NotificationVO struct {
	ID               uint64            `json:"id,string"`
	BizType          string            `json:"bizType"`
	Channel          string            `json:"channel"`
	RecipientID      string            `json:"recipientId"`
	Subject          string            `json:"subject"`
	Status           string            `json:"status"`
	RetryCount       int8              `json:"retryCount"`
	MaxRetries       int8              `json:"maxRetries"`
	Priority         int8              `json:"priority"`
	ScheduledAt      string            `json:"scheduledAt,omitempty"`
	ExpiresAt        string            `json:"expiresAt,omitempty"`
	NextRetryAt      string            `json:"nextRetryAt,omitempty"`
	SentAt           string            `json:"sentAt,omitempty"`
	DeliveredAt      string            `json:"deliveredAt,omitempty"`
	ExternalID       string            `json:"externalId,omitempty"`
	ErrorCode        string            `json:"errorCode,omitempty"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
	GroupID          string            `json:"groupId,omitempty"`
	TemplateID       int64             `json:"templateId,omitempty"`
	Payload          map[string]string `json:"payload,omitempty"`
}

func newNotificationVO(n domain.Notification) NotificationVO {
	return NotificationVO{
		ID:           n.ID,
		BizType:      n.BizType,
		Channel:      string(n.Channel),
		RecipientID:  n.Recipient.ID,
		Subject:      n.Subject,
		Status:       string(n.Status),
		RetryCount:   n.RetryCount,
		MaxRetries:   n.MaxRetries,
		Priority:     n.Priority,
		ScheduledAt:  formatTime(n.ScheduledAt),
		ExpiresAt:    formatTime(n.ExpiresAt),
		NextRetryAt:  formatTime(n.NextRetryAt),
		SentAt:       formatTime(n.SentAt),
		DeliveredAt:  formatTime(n.DeliveredAt),
		ExternalID:   n.ExternalID,
		ErrorCode:    n.ErrorCode,
		ErrorMessage: n.ErrorMessage,
		GroupID:      n.GroupID,
		TemplateID:   n.TemplateID,
		Payload:      n.Payload,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// TemplateVO 模板
type TemplateVO struct {
	ID               int64                          `json:"id"`
	Name             string                         `json:"name"`
	Version          int                            `json:"version"`
	BizType          string                         `json:"bizType"`
	Channel          string                         `json:"channel"`
	Language         string                         `json:"language"`
	SubjectPattern   string                         `json:"subjectPattern"`
	BodyPattern      string                         `json:"bodyPattern"`
	ContentType      string                         `json:"contentType"`
	VariablesSchema  map[string]domain.VariableSpec `json:"variablesSchema,omitempty"`
	Defaults         map[string]string              `json:"defaults,omitempty"`
	IsValidated      bool                           `json:"isValidated"`
	ValidationErrors []string                       `json:"validationErrors,omitempty"`
	UsageCount       int64                          `json:"usageCount"`
	LastUsedAt       string                         `json:"lastUsedAt,omitempty"`
}

func newTemplateVO(t domain.ChannelTemplate) TemplateVO {
	return TemplateVO{
		ID:               t.ID,
		Name:             t.Name,
		Version:          t.Version,
		BizType:          t.BizType,
		Channel:          string(t.Channel),
		Language:         t.Language,
		SubjectPattern:   t.SubjectPattern,
		BodyPattern:      t.BodyPattern,
		ContentType:      string(t.ContentType),
		VariablesSchema:  t.VariablesSchema,
		Defaults:         t.Defaults,
		IsValidated:      t.IsValidated,
		ValidationErrors: t.ValidationErrors,
		UsageCount:       t.UsageCount,
		LastUsedAt:       formatTime(t.LastUsedAt),
	}
}

func (t TemplateVO) toDomain() domain.ChannelTemplate {
	return domain.ChannelTemplate{
		ID:              t.ID,
		Name:            t.Name,
		BizType:         t.BizType,
		Channel:         domain.Channel(t.Channel),
		Language:        t.Language,
		SubjectPattern:  t.SubjectPattern,
		BodyPattern:     t.BodyPattern,
		ContentType:     domain.ContentType(t.ContentType),
		VariablesSchema: t.VariablesSchema,
		Defaults:        t.Defaults,
	}
}

// PreferenceVO 接收者偏好
type PreferenceVO struct {
	UserID          string                     `json:"userId" binding:"required"`
	UserType        string                     `json:"userType"`
	Email           string                     `json:"email"`
	Phone           string                     `json:"phone"`
	PushToken       string                     `json:"pushToken"`
	ChannelEnabled  map[string]bool            `json:"channelEnabled"`
	TypeOverrides   map[string]map[string]bool `json:"typeOverrides"`
	QuietHours      domain.QuietHours          `json:"quietHours"`
	MaxEmailsPerDay int                        `json:"maxEmailsPerDay"`
	MaxSMSPerDay    int                        `json:"maxSmsPerDay"`
}

func newPreferenceVO(p domain.UserPreference) PreferenceVO {
	vo := PreferenceVO{
		UserID:          p.UserID,
		UserType:        string(p.UserType),
		Email:           p.Email,
		Phone:           p.Phone,
		PushToken:       p.PushToken,
		QuietHours:      p.QuietHours,
		MaxEmailsPerDay: p.MaxEmailsPerDay,
		MaxSMSPerDay:    p.MaxSMSPerDay,
	}
	if len(p.ChannelEnabled) > 0 {
		vo.ChannelEnabled = make(map[string]bool, len(p.ChannelEnabled))
		for ch, enabled := range p.ChannelEnabled {
			vo.ChannelEnabled[string(ch)] = enabled
		}
	}
	if len(p.TypeOverrides) > 0 {
		vo.TypeOverrides = make(map[string]map[string]bool, len(p.TypeOverrides))
		for typ, overrides := range p.TypeOverrides {
			m := make(map[string]bool, len(overrides))
			for ch, enabled := range overrides {
				m[string(ch)] = enabled
			}
			vo.TypeOverrides[typ] = m
		}
	}
	return vo
}

func (p PreferenceVO) toDomain() domain.UserPreference {
	typ := domain.RecipientType(p.UserType)
	if typ == "" {
		typ = domain.RecipientTypeUser
	}
	pref := domain.UserPreference{
		UserID:          p.UserID,
		UserType:        typ,
		Email:           p.Email,
		Phone:           p.Phone,
		PushToken:       p.PushToken,
		QuietHours:      p.QuietHours,
		MaxEmailsPerDay: p.MaxEmailsPerDay,
		MaxSMSPerDay:    p.MaxSMSPerDay,
	}
	if len(p.ChannelEnabled) > 0 {
		pref.ChannelEnabled = make(map[domain.Channel]bool, len(p.ChannelEnabled))
		for ch, enabled := range p.ChannelEnabled {
			pref.ChannelEnabled[domain.Channel(ch)] = enabled
		}
	}
	if len(p.TypeOverrides) > 0 {
		pref.TypeOverrides = make(map[string]map[domain.Channel]bool, len(p.TypeOverrides))
		for typ, overrides := range p.TypeOverrides {
			m := make(map[domain.Channel]bool, len(overrides))
			for ch, enabled := range overrides {
				m[domain.Channel(ch)] = enabled
			}
			pref.TypeOverrides[typ] = m
		}
	}
	return pref
}
