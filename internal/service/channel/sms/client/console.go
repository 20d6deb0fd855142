package client

import (
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
)

var _ Client = (*ConsoleSMS)(nil)

// ConsoleSMS 控制台短信实现，只打日志不真正外发。
// 没有配置云厂商凭证时兜底使用，本地开发和测试环境也用它。
type ConsoleSMS struct {
	logger *elog.Component
}

// NewConsoleSMS 创建控制台短信实例
func NewConsoleSMS() *ConsoleSMS {
	return &ConsoleSMS{logger: elog.DefaultLogger}
}

func (c *ConsoleSMS) Send(req SendReq) (SendResp, error) {
	if len(req.PhoneNumbers) == 0 {
		return SendResp{}, fmt.Errorf("%w: %v", ErrInvalidParameter, "手机号码不能为空")
	}

	requestID := uuid.Must(uuid.NewV4()).String()
	result := SendResp{
		RequestID:    requestID,
		PhoneNumbers: make(map[string]SendRespStatus, len(req.PhoneNumbers)),
	}
	for _, phone := range req.PhoneNumbers {
		c.logger.Info("控制台短信",
			elog.String("requestID", requestID),
			elog.String("phone", phone),
			elog.String("signName", req.SignName),
			elog.String("content", req.Content))
		result.PhoneNumbers[phone] = SendRespStatus{Code: OK}
	}
	return result, nil
}
