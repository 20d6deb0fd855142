package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/ego-component/egorm"
	"gorm.io/gorm"
)

// ChannelTemplate 渠道模板表
type ChannelTemplate struct {
	ID       int64  `gorm:"primaryKey;autoIncrement;comment:'渠道模版ID'"`
	Name     string `gorm:"type:VARCHAR(128);NOT NULL;uniqueIndex:idx_name;comment:'模板名称，启用模板中唯一'"`
	Version  int    `gorm:"type:INT;NOT NULL;DEFAULT:1;comment:'版本号，每次编辑+1'"`
	BizType  string `gorm:"type:VARCHAR(128);NOT NULL;index:idx_biz_type;comment:'业务事件类型'"`
	Channel  string `gorm:"type:ENUM('EMAIL','SMS','PUSH','WHATSAPP','WEBHOOK');NOT NULL;comment:'渠道类型'"`
	Language string `gorm:"type:VARCHAR(16);NOT NULL;DEFAULT:'zh-CN'"`

	SubjectPattern string `gorm:"type:VARCHAR(512);comment:'标题模板，可为空'"`
	BodyPattern    string `gorm:"type:TEXT;NOT NULL;comment:'正文模板，变量格式{name}'"`
	ContentType    string `gorm:"type:ENUM('PLAIN','HTML');NOT NULL;DEFAULT:'PLAIN'"`

	VariablesSchema  string `gorm:"type:TEXT;comment:'变量声明，JSON'"`
	Defaults         string `gorm:"type:TEXT;comment:'变量默认值，JSON'"`
	IsValidated      bool   `gorm:"NOT NULL;DEFAULT:false"`
	ValidationErrors string `gorm:"type:TEXT;comment:'最近一次校验错误，JSON数组'"`

	UsageCount int64 `gorm:"type:BIGINT;NOT NULL;DEFAULT:0"`
	LastUsedAt int64

	Ctime int64
	Utime int64
}

// TableName 重命名表
func (ChannelTemplate) TableName() string {
	return "channel_templates"
}

// ChannelTemplateDAO 提供模板数据访问对象接口
type ChannelTemplateDAO interface {
	// Create 创建模板
	Create(ctx context.Context, template ChannelTemplate) (ChannelTemplate, error)

	// Update 更新模板并把版本号+1
	Update(ctx context.Context, template ChannelTemplate) error

	// GetByID 根据ID获取模板
	GetByID(ctx context.Context, id int64) (ChannelTemplate, error)

	// GetByName 根据名称获取模板
	GetByName(ctx context.Context, name string) (ChannelTemplate, error)

	// List 分页查询模板列表
	List(ctx context.Context, offset, limit int) ([]ChannelTemplate, error)

	// Delete 删除模板
	Delete(ctx context.Context, id int64) error

	// IncUsage 使用计数+1并更新最近使用时间
	IncUsage(ctx context.Context, id int64) error

	// SetValidationResult 记录校验结果
	SetValidationResult(ctx context.Context, id int64, isValid bool, validationErrors string) error
}

type channelTemplateDAO struct {
	db *egorm.Component
}

// NewChannelTemplateDAO 创建模板DAO实例
func NewChannelTemplateDAO(db *egorm.Component) ChannelTemplateDAO {
	return &channelTemplateDAO{db: db}
}

func (d *channelTemplateDAO) Create(ctx context.Context, template ChannelTemplate) (ChannelTemplate, error) {
	now := time.Now().UnixMilli()
	template.Ctime, template.Utime = now, now
	template.Version = 1
	if err := d.db.WithContext(ctx).Create(&template).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ChannelTemplate{}, fmt.Errorf("%w: name=%s", errs.ErrTemplateDuplicateName, template.Name)
		}
		return ChannelTemplate{}, err
	}
	return template, nil
}

func (d *channelTemplateDAO) Update(ctx context.Context, template ChannelTemplate) error {
	result := d.db.WithContext(ctx).Model(&ChannelTemplate{}).
		Where("id = ?", template.ID).
		Updates(map[string]any{
			"biz_type":          template.BizType,
			"channel":           template.Channel,
			"language":          template.Language,
			"subject_pattern":   template.SubjectPattern,
			"body_pattern":      template.BodyPattern,
			"content_type":      template.ContentType,
			"variables_schema":  template.VariablesSchema,
			"defaults":          template.Defaults,
			"is_validated":      template.IsValidated,
			"validation_errors": template.ValidationErrors,
			"version":           gorm.Expr("version + 1"),
			"utime":             time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected < 1 {
		return fmt.Errorf("%w: id=%d", errs.ErrTemplateNotFound, template.ID)
	}
	return nil
}

func (d *channelTemplateDAO) GetByID(ctx context.Context, id int64) (ChannelTemplate, error) {
	var template ChannelTemplate
	err := d.db.WithContext(ctx).First(&template, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ChannelTemplate{}, fmt.Errorf("%w: id=%d", errs.ErrTemplateNotFound, id)
		}
		return ChannelTemplate{}, err
	}
	return template, nil
}

func (d *channelTemplateDAO) GetByName(ctx context.Context, name string) (ChannelTemplate, error) {
	var template ChannelTemplate
	err := d.db.WithContext(ctx).Where("name = ?", name).First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ChannelTemplate{}, fmt.Errorf("%w: name=%s", errs.ErrTemplateNotFound, name)
		}
		return ChannelTemplate{}, err
	}
	return template, nil
}

func (d *channelTemplateDAO) List(ctx context.Context, offset, limit int) ([]ChannelTemplate, error) {
	var templates []ChannelTemplate
	err := d.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset).Find(&templates).Error
	return templates, err
}

func (d *channelTemplateDAO) Delete(ctx context.Context, id int64) error {
	return d.db.WithContext(ctx).Delete(&ChannelTemplate{}, id).Error
}

func (d *channelTemplateDAO) IncUsage(ctx context.Context, id int64) error {
	now := time.Now().UnixMilli()
	return d.db.WithContext(ctx).Model(&ChannelTemplate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
			"utime":        now,
		}).Error
}

func (d *channelTemplateDAO) SetValidationResult(ctx context.Context, id int64, isValid bool, validationErrors string) error {
	return d.db.WithContext(ctx).Model(&ChannelTemplate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_validated":      isValid,
			"validation_errors": validationErrors,
			"utime":             time.Now().UnixMilli(),
		}).Error
}
