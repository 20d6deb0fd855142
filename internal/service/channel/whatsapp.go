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

// WhatsAppConfig WhatsApp Business API 配置
type WhatsAppConfig struct {
	// APIURL 比如 https://graph.facebook.com/v19.0/{phone-number-id}/messages
	APIURL      string `yaml:"apiUrl"`
	AccessToken string `yaml:"accessToken"`
}

type whatsappChannel struct {
	cfg        WhatsAppConfig
	httpClient *http.Client
}

// NewWhatsAppChannel 创建 WhatsApp 渠道
func NewWhatsAppChannel(cfg WhatsAppConfig, httpClient *http.Client) Channel {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSendTimeout}
	}
	return &whatsappChannel{cfg: cfg, httpClient: httpClient}
}

type whatsappMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsappText `json:"text"`
}

type whatsappText struct {
	Body string `json:"body"`
}

type whatsappResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *whatsappChannel) Send(ctx context.Context, notification domain.Notification) (domain.SendResponse, error) {
	phone := notification.Recipient.Phone
	if phone == "" {
		return domain.SendResponse{}, fmt.Errorf("%w: 手机号为空", errs.ErrInvalidParameter)
	}
	if c.cfg.APIURL == "" {
		return domain.SendResponse{}, fmt.Errorf("%w: 未配置 WhatsApp 接口", errs.ErrNoAvailableChannel)
	}

	body, err := json.Marshal(whatsappMessage{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             whatsappText{Body: notification.Body},
	})
	if err != nil {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}
	defer resp.Body.Close()

	var wr whatsappResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&wr); err != nil && err != io.EOF {
		return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}
	if resp.StatusCode != http.StatusOK || wr.Error != nil || len(wr.Messages) == 0 {
		msg := ""
		if wr.Error != nil {
			msg = wr.Error.Message
		}
		return domain.SendResponse{}, fmt.Errorf("%w: 接口返回 %d: %s",
			errs.ErrSendNotificationFailed, resp.StatusCode, msg)
	}

	return domain.SendResponse{
		NotificationID: notification.ID,
		Status:         domain.SendStatusSucceeded,
		ExternalID:     wr.Messages[0].ID,
	}, nil
}
