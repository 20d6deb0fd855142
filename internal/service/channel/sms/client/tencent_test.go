package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	sms "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/sms/v20210111"
)

func strPtr(s string) *string { return &s }

func TestToRespStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		status     *sms.SendStatus
		wantPhone  string
		wantStatus SendRespStatus
		wantOK     bool
	}{
		{
			name: "成功码归一成接口约定的OK",
			status: &sms.SendStatus{
				PhoneNumber: strPtr("13800000000"),
				Code:        strPtr("Ok"),
				Message:     strPtr("send success"),
			},
			wantPhone:  "13800000000",
			wantStatus: SendRespStatus{Code: OK, Message: "send success"},
			wantOK:     true,
		},
		{
			name: "业务错误码原样带回",
			status: &sms.SendStatus{
				PhoneNumber: strPtr("13800000001"),
				Code:        strPtr("LimitExceeded.PhoneNumberDailyLimit"),
				Message:     strPtr("触发日限频"),
			},
			wantPhone:  "13800000001",
			wantStatus: SendRespStatus{Code: "LimitExceeded.PhoneNumberDailyLimit", Message: "触发日限频"},
			wantOK:     true,
		},
		{
			name: "Code 和 Message 为空指针不崩",
			status: &sms.SendStatus{
				PhoneNumber: strPtr("13800000002"),
			},
			wantPhone:  "13800000002",
			wantStatus: SendRespStatus{},
			wantOK:     true,
		},
		{
			name:   "状态为空跳过",
			status: nil,
			wantOK: false,
		},
		{
			name:   "号码为空跳过",
			status: &sms.SendStatus{Code: strPtr("Ok")},
			wantOK: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			phone, status, ok := toRespStatus(tc.status)
			assert.Equal(t, tc.wantOK, ok)
			if !tc.wantOK {
				return
			}
			assert.Equal(t, tc.wantPhone, phone)
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func TestSortedValues(t *testing.T) {
	t.Parallel()

	// 腾讯云的模板参数按位置传递，必须按参数名排序保证顺序稳定
	got := sortedValues(map[string]string{
		"code":   "123456",
		"appKey": "demo",
		"ttl":    "5",
	})
	assert.Equal(t, []string{"demo", "123456", "5"}, got)
}
