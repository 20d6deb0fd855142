package channel

import (
	"errors"
	"testing"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"gitee.com/flycash/notification-dispatch/internal/service/channel/sms/client"
	clientmocks "gitee.com/flycash/notification-dispatch/internal/service/channel/sms/client/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// stubSMSClient 记录是否被调用，并返回预设结果
type stubSMSClient struct {
	called bool
	resp   client.SendResp
	err    error
}

func (s *stubSMSClient) Send(req client.SendReq) (client.SendResp, error) {
	s.called = true
	if s.err != nil {
		return client.SendResp{}, s.err
	}
	return s.resp, nil
}

func okResp(phone, requestID string) client.SendResp {
	return client.SendResp{
		RequestID: requestID,
		PhoneNumbers: map[string]client.SendRespStatus{
			phone: {Code: client.OK},
		},
	}
}

func TestSMSFailover(t *testing.T) {
	t.Parallel()

	const phone = "13800000000"
	notification := domain.Notification{
		ID:        1,
		Body:      "验证码 123456",
		Recipient: domain.Recipient{Phone: phone},
	}

	t.Run("首个供应商成功，不再尝试后续", func(t *testing.T) {
		t.Parallel()
		first := &stubSMSClient{resp: okResp(phone, "req-1")}
		second := &stubSMSClient{resp: okResp(phone, "req-2")}
		ch := NewSMSChannel("通知中心",
			NamedClient{Name: "aliyun", Client: first},
			NamedClient{Name: "tencentcloud", Client: second})

		resp, err := ch.Send(t.Context(), notification)
		require.NoError(t, err)
		assert.Equal(t, "req-1", resp.ExternalID)
		assert.True(t, first.called)
		assert.False(t, second.called)
	})

	t.Run("首个供应商报错，切换到下一个", func(t *testing.T) {
		t.Parallel()
		first := &stubSMSClient{err: errors.New("限流")}
		second := &stubSMSClient{resp: okResp(phone, "req-2")}
		ch := NewSMSChannel("通知中心",
			NamedClient{Name: "aliyun", Client: first},
			NamedClient{Name: "tencentcloud", Client: second})

		resp, err := ch.Send(t.Context(), notification)
		require.NoError(t, err)
		assert.Equal(t, domain.SendStatusSucceeded, resp.Status)
		assert.Equal(t, "req-2", resp.ExternalID)
		assert.Contains(t, resp.ProviderResponse, "tencentcloud")
	})

	t.Run("供应商返回业务错误码也触发切换", func(t *testing.T) {
		t.Parallel()
		first := &stubSMSClient{resp: client.SendResp{
			RequestID: "req-1",
			PhoneNumbers: map[string]client.SendRespStatus{
				phone: {Code: "isv.BUSINESS_LIMIT_CONTROL", Message: "触发流控"},
			},
		}}
		second := &stubSMSClient{resp: okResp(phone, "req-2")}
		ch := NewSMSChannel("通知中心",
			NamedClient{Name: "aliyun", Client: first},
			NamedClient{Name: "tencentcloud", Client: second})

		resp, err := ch.Send(t.Context(), notification)
		require.NoError(t, err)
		assert.Equal(t, "req-2", resp.ExternalID)
	})

	t.Run("全部失败聚合错误", func(t *testing.T) {
		t.Parallel()
		first := &stubSMSClient{err: errors.New("限流")}
		second := &stubSMSClient{err: errors.New("网络超时")}
		ch := NewSMSChannel("通知中心",
			NamedClient{Name: "aliyun", Client: first},
			NamedClient{Name: "tencentcloud", Client: second})

		_, err := ch.Send(t.Context(), notification)
		require.ErrorIs(t, err, errs.ErrSendNotificationFailed)
		assert.Contains(t, err.Error(), "aliyun")
		assert.Contains(t, err.Error(), "tencentcloud")
	})

	t.Run("手机号为空", func(t *testing.T) {
		t.Parallel()
		ch := NewSMSChannel("通知中心", NamedClient{Name: "aliyun", Client: &stubSMSClient{}})
		_, err := ch.Send(t.Context(), domain.Notification{ID: 2})
		assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	})

	t.Run("未配置供应商", func(t *testing.T) {
		t.Parallel()
		ch := NewSMSChannel("通知中心")
		_, err := ch.Send(t.Context(), notification)
		assert.ErrorIs(t, err, errs.ErrNoAvailableChannel)
	})
}

func TestSMSRequestAssembly(t *testing.T) {
	t.Parallel()

	const phone = "13800000000"
	ctrl := gomock.NewController(t)
	cli := clientmocks.NewMockClient(ctrl)
	cli.EXPECT().Send(gomock.Any()).
		DoAndReturn(func(req client.SendReq) (client.SendResp, error) {
			assert.Equal(t, []string{phone}, req.PhoneNumbers)
			assert.Equal(t, "通知中心", req.SignName)
			assert.Equal(t, "验证码 123456", req.Content)
			assert.Equal(t, "SMS_001", req.TemplateID)
			assert.Equal(t, map[string]string{"code": "123456"}, req.TemplateParam)
			return okResp(phone, "req-1"), nil
		})

	ch := NewSMSChannel("通知中心", NamedClient{Name: "aliyun", Client: cli})
	resp, err := ch.Send(t.Context(), domain.Notification{
		ID:             1,
		Body:           "验证码 123456",
		Payload:        map[string]string{"providerTemplateId": "SMS_001"},
		TemplateParams: map[string]string{"code": "123456"},
		Recipient:      domain.Recipient{Phone: phone},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.ExternalID)
}

func TestDispatcherRouting(t *testing.T) {
	t.Parallel()

	t.Run("未注册的渠道", func(t *testing.T) {
		t.Parallel()
		d := NewDispatcher(map[domain.Channel]Channel{})
		_, err := d.Send(t.Context(), domain.Notification{
			ID:      1,
			Channel: domain.ChannelEmail,
		})
		assert.ErrorIs(t, err, errs.ErrNoAvailableChannel)
	})

	t.Run("路由到对应渠道", func(t *testing.T) {
		t.Parallel()
		console := NewConsoleChannel(domain.ChannelEmail)
		d := NewDispatcher(map[domain.Channel]Channel{
			domain.ChannelEmail: console,
		})
		resp, err := d.Send(t.Context(), domain.Notification{
			ID:      2,
			Channel: domain.ChannelEmail,
			Recipient: domain.Recipient{
				Email: "user@example.com",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.SendStatusSucceeded, resp.Status)
		assert.NotEmpty(t, resp.ExternalID)
	})
}
