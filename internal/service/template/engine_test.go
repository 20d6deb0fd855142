package template

import (
	"strings"
	"testing"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		tpl         domain.ChannelTemplate
		variables   map[string]string
		wantSubject string
		wantBody    string
		wantErr     error
	}{
		{
			name: "正常渲染",
			tpl: domain.ChannelTemplate{
				SubjectPattern: "欢迎 {name}",
				BodyPattern:    "你好 {name}，你的车辆 {vehicle} 已分配",
				VariablesSchema: map[string]domain.VariableSpec{
					"name":    {Required: true},
					"vehicle": {Required: true},
				},
			},
			variables:   map[string]string{"name": "张三", "vehicle": "京A12345"},
			wantSubject: "欢迎 张三",
			wantBody:    "你好 张三，你的车辆 京A12345 已分配",
		},
		{
			name: "必填变量缺失",
			tpl: domain.ChannelTemplate{
				BodyPattern: "你好 {name}",
				VariablesSchema: map[string]domain.VariableSpec{
					"name": {Required: true},
				},
			},
			variables: map[string]string{},
			wantErr:   errs.ErrMissingRequiredParams,
		},
		{
			name: "可选变量缺失渲染为空",
			tpl: domain.ChannelTemplate{
				BodyPattern: "你好 {name}{suffix}",
				VariablesSchema: map[string]domain.VariableSpec{
					"name":   {Required: true},
					"suffix": {Required: false},
				},
			},
			variables: map[string]string{"name": "李四"},
			wantBody:  "你好 李四",
		},
		{
			name: "默认值兜底必填变量",
			tpl: domain.ChannelTemplate{
				BodyPattern: "你好 {name}",
				VariablesSchema: map[string]domain.VariableSpec{
					"name": {Required: true},
				},
				Defaults: map[string]string{"name": "用户"},
			},
			variables: map[string]string{},
			wantBody:  "你好 用户",
		},
		{
			name: "参数覆盖默认值",
			tpl: domain.ChannelTemplate{
				BodyPattern: "你好 {name}",
				Defaults:    map[string]string{"name": "用户"},
			},
			variables: map[string]string{"name": "王五"},
			wantBody:  "你好 王五",
		},
		{
			name: "渲染后正文超限",
			tpl: domain.ChannelTemplate{
				BodyPattern: "{content}",
			},
			variables: map[string]string{"content": strings.Repeat("a", MaxBodyBytes+1)},
			wantErr:   errs.ErrRenderTemplateFailed,
		},
		{
			name: "未声明的变量按空值渲染",
			tpl: domain.ChannelTemplate{
				BodyPattern: "你好 {unknown}",
			},
			variables: map[string]string{},
			wantBody:  "你好 ",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			subject, body, err := Render(tc.tpl, tc.variables)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantSubject, subject)
			assert.Equal(t, tc.wantBody, body)
		})
	}
}

func TestRenderIsPure(t *testing.T) {
	t.Parallel()

	tpl := domain.ChannelTemplate{
		SubjectPattern: "订单 {orderId}",
		BodyPattern:    "订单 {orderId} 状态变更为 {status}",
	}
	variables := map[string]string{"orderId": "1001", "status": "已发货"}

	subject1, body1, err1 := Render(tpl, variables)
	require.NoError(t, err1)
	subject2, body2, err2 := Render(tpl, variables)
	require.NoError(t, err2)

	assert.Equal(t, subject1, subject2)
	assert.Equal(t, body1, body2)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name                string
		tpl                 domain.ChannelTemplate
		wantValid           bool
		wantErrors          int
		wantWarnings        int
		wantVariables       []string
		wantMissingRequired []string
	}{
		{
			name: "合法模板",
			tpl: domain.ChannelTemplate{
				SubjectPattern: "欢迎 {name}",
				BodyPattern:    "你好 {name}",
				VariablesSchema: map[string]domain.VariableSpec{
					"name": {Required: true},
				},
			},
			wantValid:     true,
			wantVariables: []string{"name"},
		},
		{
			name:       "正文为空",
			tpl:        domain.ChannelTemplate{},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name: "HTML 模板携带脚本",
			tpl: domain.ChannelTemplate{
				BodyPattern: "<p>hi</p><SCRIPT>alert(1)</SCRIPT>",
				ContentType: domain.ContentTypeHTML,
			},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name: "未声明的变量只产生告警",
			tpl: domain.ChannelTemplate{
				BodyPattern: "你好 {name}",
			},
			wantValid:     true,
			wantWarnings:  1,
			wantVariables: []string{"name"},
		},
		{
			name: "必填变量未出现在正文",
			tpl: domain.ChannelTemplate{
				BodyPattern: "你好",
				VariablesSchema: map[string]domain.VariableSpec{
					"name": {Required: true},
				},
			},
			wantValid:           true,
			wantWarnings:        1,
			wantMissingRequired: []string{"name"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := Validate(tc.tpl)
			assert.Equal(t, tc.wantValid, res.IsValid)
			assert.Len(t, res.Errors, tc.wantErrors)
			assert.Len(t, res.Warnings, tc.wantWarnings)
			if tc.wantVariables != nil {
				assert.Equal(t, tc.wantVariables, res.VariablesFound)
			}
			assert.Equal(t, tc.wantMissingRequired, res.MissingRequired)
		})
	}
}

func TestExtractVariablesDedup(t *testing.T) {
	t.Parallel()

	names := extractVariables("{a} {b}", "{b} {c} {a}")
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
