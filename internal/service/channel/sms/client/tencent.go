package client

import (
	"fmt"
	"sort"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	sms "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/sms/v20210111"
)

// tencentOK 腾讯云逐号码状态里的成功码，注意和阿里云大小写不同
const tencentOK = "Ok"

var _ Client = (*TencentCloudSMS)(nil)

// TencentCloudSMS 腾讯云短信实现
type TencentCloudSMS struct {
	client *sms.Client
	appID  string
}

// NewTencentCloudSMS 创建腾讯云短信实例
func NewTencentCloudSMS(regionID, secretID, secretKey, appID string) (*TencentCloudSMS, error) {
	credential := common.NewCredential(secretID, secretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "sms.tencentcloudapi.com"
	client, err := sms.NewClient(credential, regionID, cpf)
	if err != nil {
		return nil, err
	}
	return &TencentCloudSMS{client: client, appID: appID}, nil
}

func (t *TencentCloudSMS) Send(req SendReq) (SendResp, error) {
	if len(req.PhoneNumbers) == 0 {
		return SendResp{}, fmt.Errorf("%w: %v", ErrInvalidParameter, "手机号码不能为空")
	}

	request := sms.NewSendSmsRequest()
	request.SmsSdkAppId = common.StringPtr(t.appID)
	request.SignName = common.StringPtr(req.SignName)
	request.TemplateId = common.StringPtr(req.TemplateID)
	request.PhoneNumberSet = common.StringPtrs(req.PhoneNumbers)
	// 腾讯云的模板参数是按位置的，按参数名排序保证顺序稳定
	request.TemplateParamSet = common.StringPtrs(sortedValues(req.TemplateParam))

	response, err := t.client.SendSms(request)
	if err != nil {
		return SendResp{}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if response.Response == nil {
		return SendResp{}, fmt.Errorf("%w: %v", ErrSendFailed, "响应异常")
	}

	result := SendResp{
		PhoneNumbers: make(map[string]SendRespStatus, len(req.PhoneNumbers)),
	}
	if response.Response.RequestId != nil {
		result.RequestID = *response.Response.RequestId
	}
	for _, status := range response.Response.SendStatusSet {
		phone, respStatus, ok := toRespStatus(status)
		if !ok {
			continue
		}
		result.PhoneNumbers[phone] = respStatus
	}
	return result, nil
}

// toRespStatus 把腾讯云的逐号码状态翻译成 Client 接口约定的格式，
// SDK 返回的字段都是指针，逐个判空
func toRespStatus(status *sms.SendStatus) (string, SendRespStatus, bool) {
	if status == nil || status.PhoneNumber == nil {
		return "", SendRespStatus{}, false
	}
	var code, message string
	if status.Code != nil {
		code = *status.Code
	}
	if status.Message != nil {
		message = *status.Message
	}
	if code == tencentOK {
		// 对齐 Client 接口约定的成功码
		code = OK
	}
	return *status.PhoneNumber, SendRespStatus{Code: code, Message: message}, true
}

func sortedValues(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, params[k])
	}
	return values
}
