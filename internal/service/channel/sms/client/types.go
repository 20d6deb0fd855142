package client

import "errors"

// OK 云厂商成功响应码
const OK = "OK"

var (
	ErrInvalidParameter = errors.New("非法参数")
	ErrSendFailed       = errors.New("发送短信失败")
)

// Client 短信供应商客户端接口
//
//go:generate mockgen -source=./types.go -destination=./mocks/client.mock.go -package=clientmocks -typed Client
type Client interface {
	// Send 发送短信
	Send(req SendReq) (SendResp, error)
}

// SendReq 发送请求
type SendReq struct {
	PhoneNumbers []string
	// SignName 短信签名
	SignName string
	// Content 渲染后的短信正文，无模板直发的供应商使用
	Content string
	// TemplateID 供应商侧模板ID，模板直发的供应商使用
	TemplateID    string
	TemplateParam map[string]string
}

// SendResp 发送响应
type SendResp struct {
	RequestID string
	// PhoneNumbers 每个手机号的发送状态
	PhoneNumbers map[string]SendRespStatus
}

// SendRespStatus 单个手机号的发送状态
type SendRespStatus struct {
	Code    string
	Message string
}
