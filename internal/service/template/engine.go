package template

import (
	"fmt"
	"regexp"
	"strings"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
)

const (
	// MaxBodyBytes 渲染后正文上限，约束下游供应商的请求体大小
	MaxBodyBytes = 1 << 20 // 1 MiB
)

// variablePattern 模板变量格式：{name}
var variablePattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// scriptPattern HTML 模板不允许携带脚本
var scriptPattern = regexp.MustCompile(`(?is)<\s*script\b`)

// ValidationResult 模板校验结果
type ValidationResult struct {
	IsValid         bool
	Errors          []string
	Warnings        []string
	VariablesFound  []string
	MissingRequired []string
}

// Render 渲染模板。纯函数：同一个模板快照和同一组参数渲染结果恒定。
// 必填变量缺失返回错误；可选变量缺失渲染为空字符串；默认值先于参数生效。
func Render(tpl domain.ChannelTemplate, variables map[string]string) (subject, body string, err error) {
	merged := make(map[string]string, len(tpl.Defaults)+len(variables))
	for k, v := range tpl.Defaults {
		merged[k] = v
	}
	for k, v := range variables {
		merged[k] = v
	}

	var missing []string
	for name, spec := range tpl.VariablesSchema {
		if !spec.Required {
			continue
		}
		if _, ok := merged[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", "", fmt.Errorf("%w: %s", errs.ErrMissingRequiredParams, strings.Join(missing, ", "))
	}

	replace := func(pattern string) string {
		return variablePattern.ReplaceAllStringFunc(pattern, func(token string) string {
			name := token[1 : len(token)-1]
			return merged[name]
		})
	}

	body = replace(tpl.BodyPattern)
	if len(body) > MaxBodyBytes {
		return "", "", fmt.Errorf("%w: 渲染后正文超过 %d 字节", errs.ErrRenderTemplateFailed, MaxBodyBytes)
	}
	return replace(tpl.SubjectPattern), body, nil
}

// Validate 校验模板。正文中未声明的变量只产生告警：
// 变量声明允许滞后于正文内容。
func Validate(tpl domain.ChannelTemplate) ValidationResult {
	res := ValidationResult{IsValid: true}

	if tpl.BodyPattern == "" {
		res.Errors = append(res.Errors, "模板正文不能为空")
	}
	if len(tpl.BodyPattern) > MaxBodyBytes {
		res.Errors = append(res.Errors, fmt.Sprintf("模板正文超过 %d 字节上限", MaxBodyBytes))
	}
	if tpl.ContentType == domain.ContentTypeHTML && scriptPattern.MatchString(tpl.BodyPattern) {
		res.Errors = append(res.Errors, "HTML 模板不允许包含脚本")
	}

	res.VariablesFound = extractVariables(tpl.SubjectPattern, tpl.BodyPattern)

	for _, name := range res.VariablesFound {
		if _, ok := tpl.VariablesSchema[name]; !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("变量 %q 出现在模板中但没有声明", name))
		}
	}

	found := make(map[string]struct{}, len(res.VariablesFound))
	for _, name := range res.VariablesFound {
		found[name] = struct{}{}
	}
	for name, spec := range tpl.VariablesSchema {
		if !spec.Required {
			continue
		}
		if _, ok := found[name]; !ok {
			// 必填变量没出现在正文中，多半是模板写错了
			res.MissingRequired = append(res.MissingRequired, name)
			res.Warnings = append(res.Warnings, fmt.Sprintf("必填变量 %q 未出现在模板中", name))
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

// extractVariables 提取模板中出现的变量名，去重保序
func extractVariables(patterns ...string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		for _, match := range variablePattern.FindAllStringSubmatch(pattern, -1) {
			name := match[1]
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}
