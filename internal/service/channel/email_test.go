package channel

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailSend(t *testing.T) {
	t.Parallel()

	cfg := EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "noreply",
		Password: "secret",
		From:     "noreply@example.com",
	}

	t.Run("发送成功并带认证", func(t *testing.T) {
		t.Parallel()
		var gotAddr, gotFrom string
		var gotTo []string
		var gotMsg []byte
		var gotAuth smtp.Auth
		ch := &emailChannel{
			cfg: cfg,
			sendMail: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
				gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
				return nil
			},
		}

		resp, err := ch.Send(t.Context(), domain.Notification{
			ID:      1,
			Subject: "订单已发货",
			Body:    "你的订单已发货",
			Recipient: domain.Recipient{
				Email: "user@example.com",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.SendStatusSucceeded, resp.Status)
		assert.Equal(t, "smtp.example.com:587", gotAddr)
		assert.NotNil(t, gotAuth)
		assert.Equal(t, "noreply@example.com", gotFrom)
		assert.Equal(t, []string{"user@example.com"}, gotTo)
		assert.Contains(t, string(gotMsg), "Subject: 订单已发货")
		assert.Contains(t, string(gotMsg), "Content-Type: text/plain; charset=UTF-8")
	})

	t.Run("HTML 模板改写 MIME 类型", func(t *testing.T) {
		t.Parallel()
		var gotMsg []byte
		ch := &emailChannel{
			cfg: cfg,
			sendMail: func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
				gotMsg = msg
				return nil
			},
		}

		_, err := ch.Send(t.Context(), domain.Notification{
			ID:   2,
			Body: "<h1>你好</h1>",
			Payload: map[string]string{
				"contentType": string(domain.ContentTypeHTML),
			},
			Recipient: domain.Recipient{Email: "user@example.com"},
		})
		require.NoError(t, err)
		assert.Contains(t, string(gotMsg), "Content-Type: text/html; charset=UTF-8")
	})

	t.Run("SMTP 报错包装为发送失败", func(t *testing.T) {
		t.Parallel()
		ch := &emailChannel{
			cfg: cfg,
			sendMail: func(_ string, _ smtp.Auth, _ string, _ []string, _ []byte) error {
				return errors.New("550 mailbox unavailable")
			},
		}

		_, err := ch.Send(t.Context(), domain.Notification{
			ID:        3,
			Body:      "body",
			Recipient: domain.Recipient{Email: "user@example.com"},
		})
		assert.ErrorIs(t, err, errs.ErrSendNotificationFailed)
	})

	t.Run("收件人邮箱为空", func(t *testing.T) {
		t.Parallel()
		ch := NewEmailChannel(cfg)
		_, err := ch.Send(t.Context(), domain.Notification{ID: 4, Body: "body"})
		assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	})

	t.Run("上下文取消中断等待", func(t *testing.T) {
		t.Parallel()
		ch := &emailChannel{
			cfg: cfg,
			sendMail: func(_ string, _ smtp.Auth, _ string, _ []string, _ []byte) error {
				time.Sleep(time.Second)
				return nil
			},
		}

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()
		_, err := ch.Send(ctx, domain.Notification{
			ID:        5,
			Body:      "body",
			Recipient: domain.Recipient{Email: "user@example.com"},
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
