package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
)

// PushConfig 推送网关配置
type PushConfig struct {
	// GatewayURL 推送网关地址，比如 FCM 的 HTTP v1 接口
	GatewayURL string `yaml:"gatewayUrl"`
	// APIKey 网关鉴权凭证
	APIKey string `yaml:"apiKey"`
}

// pushChannel 通过 HTTP 网关下发移动端推送
type pushChannel struct {
	cfg        PushConfig
	httpClient *http.Client
}

// NewPushChannel 创建推送渠道
func NewPushChannel(cfg PushConfig, httpClient *http.Client) Channel {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSendTimeout}
	}
	return &pushChannel{cfg: cfg, httpClient: httpClient}
}

type pushRequest struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type pushResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

func (c *pushChannel) Send(ctx context.Context, notification domain.Notification) (domain.SendResponse, error) {
	token := notification.Recipient.PushToken
	if token == "" {
		return domain.SendResponse{}, fmt.Errorf("%w: 推送令牌为空", errs.ErrInvalidParameter)
	}
	if c.cfg.GatewayURL == "" {
		return domain.SendResponse{}, fmt.Errorf("%w: 未配置推送网关", errs.ErrNoAvailableChannel)
	}

	body, err := json.Marshal(pushRequest{
		Token: token,
		Title: notification.Subject,
		Body:  notification.Body,
		Data:  notification.Payload,
	})
	if err != nil {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}
	defer resp.Body.Close()

	var pr pushResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&pr); err != nil && err != io.EOF {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}
	if resp.StatusCode != http.StatusOK || pr.Error != "" {
		return domain.SendResponse{}, fmt.Errorf("%w: 网关返回 %d: %s",
			errs.ErrSendNotificationFailed, resp.StatusCode, pr.Error)
	}

	return domain.SendResponse{
		NotificationID: notification.ID,
		Status:         domain.SendStatusSucceeded,
		ExternalID:     pr.MessageID,
	}, nil
}
