package template

import (
	"context"
	"fmt"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"gitee.com/flycash/notification-dispatch/internal/repository"
)

// ChannelTemplateService 模板服务接口
//
//go:generate mockgen -source=./manage.go -destination=./mocks/manage.mock.go -package=templatemocks -typed ChannelTemplateService
type ChannelTemplateService interface {
	// CreateTemplate 创建模板，创建时执行一次校验并记录结果
	CreateTemplate(ctx context.Context, template domain.ChannelTemplate) (domain.ChannelTemplate, error)

	// UpdateTemplate 更新模板，版本号+1。已发送的通知保存的是渲染快照，
	// 不受模板更新影响
	UpdateTemplate(ctx context.Context, template domain.ChannelTemplate) error

	// GetTemplateByID 根据ID获取模板
	GetTemplateByID(ctx context.Context, templateID int64) (domain.ChannelTemplate, error)

	// ListTemplates 分页获取模板列表
	ListTemplates(ctx context.Context, offset, limit int) ([]domain.ChannelTemplate, error)

	// DeleteTemplate 删除模板
	DeleteTemplate(ctx context.Context, templateID int64) error

	// Preview 用给定参数渲染模板，不落库不计数
	Preview(ctx context.Context, templateID int64, variables map[string]string) (subject, body string, err error)

	// ValidateTemplate 校验模板并把结果写回模板记录
	ValidateTemplate(ctx context.Context, templateID int64) (ValidationResult, error)

	// RenderForSend 发送链路使用的渲染：渲染成功后累加使用计数
	RenderForSend(ctx context.Context, templateID int64, variables map[string]string) (subject, body string, err error)
}

// templateService 模板服务实现
type templateService struct {
	repo repository.ChannelTemplateRepository
}

// NewChannelTemplateService 创建模板服务实例
func NewChannelTemplateService(repo repository.ChannelTemplateRepository) ChannelTemplateService {
	return &templateService{
		repo: repo,
	}
}

func (t *templateService) CreateTemplate(ctx context.Context, template domain.ChannelTemplate) (domain.ChannelTemplate, error) {
	if err := template.Validate(); err != nil {
		return domain.ChannelTemplate{}, err
	}
	if template.ContentType == "" {
		template.ContentType = domain.ContentTypePlain
	}

	res := Validate(template)
	template.IsValidated = res.IsValid
	template.ValidationErrors = res.Errors

	created, err := t.repo.Create(ctx, template)
	if err != nil {
		return domain.ChannelTemplate{}, fmt.Errorf("创建模板失败: %w", err)
	}
	return created, nil
}

func (t *templateService) UpdateTemplate(ctx context.Context, template domain.ChannelTemplate) error {
	if template.ID <= 0 {
		return fmt.Errorf("%w: 模板ID必须大于0", errs.ErrInvalidParameter)
	}
	if err := template.Validate(); err != nil {
		return err
	}

	res := Validate(template)
	template.IsValidated = res.IsValid
	template.ValidationErrors = res.Errors

	return t.repo.Update(ctx, template)
}

func (t *templateService) GetTemplateByID(ctx context.Context, templateID int64) (domain.ChannelTemplate, error) {
	return t.repo.GetByID(ctx, templateID)
}

func (t *templateService) ListTemplates(ctx context.Context, offset, limit int) ([]domain.ChannelTemplate, error) {
	return t.repo.List(ctx, offset, limit)
}

func (t *templateService) DeleteTemplate(ctx context.Context, templateID int64) error {
	return t.repo.Delete(ctx, templateID)
}

func (t *templateService) Preview(ctx context.Context, templateID int64, variables map[string]string) (string, string, error) {
	tpl, err := t.repo.GetByID(ctx, templateID)
	if err != nil {
		return "", "", err
	}
	return Render(tpl, variables)
}

func (t *templateService) ValidateTemplate(ctx context.Context, templateID int64) (ValidationResult, error) {
	tpl, err := t.repo.GetByID(ctx, templateID)
	if err != nil {
		return ValidationResult{}, err
	}

	res := Validate(tpl)
	if err := t.repo.SetValidationResult(ctx, templateID, res.IsValid, res.Errors); err != nil {
		return ValidationResult{}, fmt.Errorf("保存校验结果失败: %w", err)
	}
	return res, nil
}

func (t *templateService) RenderForSend(ctx context.Context, templateID int64, variables map[string]string) (string, string, error) {
	tpl, err := t.repo.GetByID(ctx, templateID)
	if err != nil {
		return "", "", err
	}

	subject, body, err := Render(tpl, variables)
	if err != nil {
		return "", "", err
	}

	// 使用计数是旁路信息，失败不影响发送
	_ = t.repo.IncUsage(ctx, templateID)
	return subject, body, nil
}
