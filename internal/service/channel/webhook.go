package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
)

// webhookChannel 把通知 POST 到接收者给的回调地址，2xx 视为成功
type webhookChannel struct {
	httpClient *http.Client
}

// NewWebhookChannel 创建 Webhook 渠道
func NewWebhookChannel(httpClient *http.Client) Channel {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSendTimeout}
	}
	return &webhookChannel{httpClient: httpClient}
}

// webhookPayload 回调请求体
type webhookPayload struct {
	NotificationID uint64            `json:"notificationId"`
	BizType        string            `json:"bizType"`
	Subject        string            `json:"subject"`
	Body           string            `json:"body"`
	Payload        map[string]string `json:"payload,omitempty"`
	SentAt         time.Time         `json:"sentAt"`
}

func (c *webhookChannel) Send(ctx context.Context, notification domain.Notification) (domain.SendResponse, error) {
	url := notification.Recipient.WebhookURL
	if url == "" {
		return domain.SendResponse{}, fmt.Errorf("%w: 回调地址为空", errs.ErrInvalidParameter)
	}

	body, err := json.Marshal(webhookPayload{
		NotificationID: notification.ID,
		BizType:        notification.BizType,
		Subject:        notification.Subject,
		Body:           notification.Body,
		Payload:        notification.Payload,
		SentAt:         time.Now(),
	})
	if err != nil {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}
	defer resp.Body.Close()
	// 只取前1KB留作回执，避免对端返回超大响应
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return domain.SendResponse{}, fmt.Errorf("%w: 回调返回 %d: %s",
			errs.ErrSendNotificationFailed, resp.StatusCode, string(respBody))
	}

	return domain.SendResponse{
		NotificationID:   notification.ID,
		Status:           domain.SendStatusSucceeded,
		ProviderResponse: string(respBody),
	}, nil
}
