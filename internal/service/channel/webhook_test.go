package channel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSend(t *testing.T) {
	t.Parallel()

	t.Run("2xx 视为成功并保留响应体", func(t *testing.T) {
		t.Parallel()
		var received webhookPayload
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"received":true}`))
		}))
		defer srv.Close()

		ch := NewWebhookChannel(srv.Client())
		resp, err := ch.Send(t.Context(), domain.Notification{
			ID:      100,
			BizType: "order_shipped",
			Subject: "订单已发货",
			Body:    "你的订单已发货",
			Recipient: domain.Recipient{
				ID:         "user-1",
				WebhookURL: srv.URL,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.SendStatusSucceeded, resp.Status)
		assert.Equal(t, `{"received":true}`, resp.ProviderResponse)
		assert.Equal(t, uint64(100), received.NotificationID)
		assert.Equal(t, "order_shipped", received.BizType)
	})

	t.Run("非 2xx 视为失败", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}))
		defer srv.Close()

		ch := NewWebhookChannel(srv.Client())
		_, err := ch.Send(t.Context(), domain.Notification{
			ID:        101,
			Recipient: domain.Recipient{WebhookURL: srv.URL},
		})
		assert.ErrorIs(t, err, errs.ErrSendNotificationFailed)
	})

	t.Run("回调地址为空", func(t *testing.T) {
		t.Parallel()
		ch := NewWebhookChannel(nil)
		_, err := ch.Send(t.Context(), domain.Notification{ID: 102})
		assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	})

	t.Run("对端不可达", func(t *testing.T) {
		t.Parallel()
		ch := NewWebhookChannel(nil)
		_, err := ch.Send(t.Context(), domain.Notification{
			ID:        103,
			Recipient: domain.Recipient{WebhookURL: "http://127.0.0.1:1/hook"},
		})
		assert.ErrorIs(t, err, errs.ErrSendNotificationFailed)
	})
}
