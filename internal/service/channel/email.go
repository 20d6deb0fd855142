package channel

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	pkgerrors "github.com/pkg/errors"
)

// EmailConfig SMTP 发送配置
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// From 发件人地址，比如 noreply@example.com
	From string `yaml:"from"`
}

// sendMailFunc 抽出来方便测试替换
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type emailChannel struct {
	cfg      EmailConfig
	sendMail sendMailFunc
}

// NewEmailChannel 创建 SMTP 邮件渠道
func NewEmailChannel(cfg EmailConfig) Channel {
	return &emailChannel{
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
}

func (c *emailChannel) Send(ctx context.Context, notification domain.Notification) (domain.SendResponse, error) {
	to := notification.Recipient.Email
	if to == "" {
		return domain.SendResponse{}, fmt.Errorf("%w: 收件人邮箱为空", errs.ErrInvalidParameter)
	}

	msg := c.buildMessage(to, notification)

	// net/smtp 不感知 context，靠外层 Dispatcher 的超时兜底
	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
		var auth smtp.Auth
		if c.cfg.Username != "" {
			auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
		}
		done <- result{err: c.sendMail(addr, auth, c.cfg.From, []string{to}, msg)}
	}()

	select {
	case <-ctx.Done():
		return domain.SendResponse{}, pkgerrors.Wrap(ctx.Err(), "发送邮件超时")
	case res := <-done:
		if res.err != nil {
			return domain.SendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, res.err)
		}
	}

	return domain.SendResponse{
		NotificationID: notification.ID,
		Status:         domain.SendStatusSucceeded,
	}, nil
}

func (c *emailChannel) buildMessage(to string, notification domain.Notification) []byte {
	// 渲染时把模板的内容类型写进 Payload，这里决定邮件的 MIME 类型
	contentType := "text/plain; charset=UTF-8"
	if notification.Payload["contentType"] == string(domain.ContentTypeHTML) {
		contentType = "text/html; charset=UTF-8"
	}
	var sb strings.Builder
	sb.WriteString("From: " + c.cfg.From + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + notification.Subject + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: " + contentType + "\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(notification.Body)
	return []byte(sb.String())
}
