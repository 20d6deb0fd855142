package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
	gocache "github.com/patrickmn/go-cache"
)

// ChannelTemplateRepository 模板仓储接口
type ChannelTemplateRepository interface {
	Create(ctx context.Context, template domain.ChannelTemplate) (domain.ChannelTemplate, error)
	Update(ctx context.Context, template domain.ChannelTemplate) error
	GetByID(ctx context.Context, id int64) (domain.ChannelTemplate, error)
	GetByName(ctx context.Context, name string) (domain.ChannelTemplate, error)
	List(ctx context.Context, offset, limit int) ([]domain.ChannelTemplate, error)
	Delete(ctx context.Context, id int64) error
	IncUsage(ctx context.Context, id int64) error
	SetValidationResult(ctx context.Context, id int64, isValid bool, validationErrors []string) error
}

// channelTemplateRepository 模板仓储实现，带本地缓存。
// 模板读多写少，发送路径每次渲染都要读模板，走本地缓存避免打爆数据库。
type channelTemplateRepository struct {
	dao   dao.ChannelTemplateDAO
	cache *gocache.Cache
}

const templateCacheTTL = 5 * time.Minute

// NewChannelTemplateRepository 创建模板仓储实例
func NewChannelTemplateRepository(d dao.ChannelTemplateDAO, cache *gocache.Cache) ChannelTemplateRepository {
	return &channelTemplateRepository{
		dao:   d,
		cache: cache,
	}
}

func (r *channelTemplateRepository) Create(ctx context.Context, template domain.ChannelTemplate) (domain.ChannelTemplate, error) {
	entity, err := r.dao.Create(ctx, r.toEntity(template))
	if err != nil {
		return domain.ChannelTemplate{}, err
	}
	return r.toDomain(entity), nil
}

func (r *channelTemplateRepository) Update(ctx context.Context, template domain.ChannelTemplate) error {
	if err := r.dao.Update(ctx, r.toEntity(template)); err != nil {
		return err
	}
	r.cache.Delete(r.cacheKey(template.ID))
	return nil
}

func (r *channelTemplateRepository) GetByID(ctx context.Context, id int64) (domain.ChannelTemplate, error) {
	if cached, ok := r.cache.Get(r.cacheKey(id)); ok {
		return cached.(domain.ChannelTemplate), nil
	}
	entity, err := r.dao.GetByID(ctx, id)
	if err != nil {
		return domain.ChannelTemplate{}, err
	}
	template := r.toDomain(entity)
	r.cache.Set(r.cacheKey(id), template, templateCacheTTL)
	return template, nil
}

func (r *channelTemplateRepository) GetByName(ctx context.Context, name string) (domain.ChannelTemplate, error) {
	entity, err := r.dao.GetByName(ctx, name)
	if err != nil {
		return domain.ChannelTemplate{}, err
	}
	return r.toDomain(entity), nil
}

func (r *channelTemplateRepository) List(ctx context.Context, offset, limit int) ([]domain.ChannelTemplate, error) {
	entities, err := r.dao.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return slice.Map(entities, func(_ int, src dao.ChannelTemplate) domain.ChannelTemplate {
		return r.toDomain(src)
	}), nil
}

func (r *channelTemplateRepository) Delete(ctx context.Context, id int64) error {
	if err := r.dao.Delete(ctx, id); err != nil {
		return err
	}
	r.cache.Delete(r.cacheKey(id))
	return nil
}

func (r *channelTemplateRepository) IncUsage(ctx context.Context, id int64) error {
	// 使用计数不影响渲染结果，不失效缓存
	return r.dao.IncUsage(ctx, id)
}

func (r *channelTemplateRepository) SetValidationResult(ctx context.Context, id int64, isValid bool, validationErrors []string) error {
	errsJSON, err := json.Marshal(validationErrors)
	if err != nil {
		return err
	}
	if err := r.dao.SetValidationResult(ctx, id, isValid, string(errsJSON)); err != nil {
		return err
	}
	r.cache.Delete(r.cacheKey(id))
	return nil
}

func (r *channelTemplateRepository) cacheKey(id int64) string {
	return fmt.Sprintf("template:%d", id)
}

func (r *channelTemplateRepository) toEntity(t domain.ChannelTemplate) dao.ChannelTemplate {
	schema, _ := json.Marshal(t.VariablesSchema)
	defaults, _ := json.Marshal(t.Defaults)
	validationErrors, _ := json.Marshal(t.ValidationErrors)

	return dao.ChannelTemplate{
		ID:               t.ID,
		Name:             t.Name,
		Version:          t.Version,
		BizType:          t.BizType,
		Channel:          t.Channel.String(),
		Language:         t.Language,
		SubjectPattern:   t.SubjectPattern,
		BodyPattern:      t.BodyPattern,
		ContentType:      string(t.ContentType),
		VariablesSchema:  string(schema),
		Defaults:         string(defaults),
		IsValidated:      t.IsValidated,
		ValidationErrors: string(validationErrors),
		UsageCount:       t.UsageCount,
		LastUsedAt:       toMillis(t.LastUsedAt),
	}
}

func (r *channelTemplateRepository) toDomain(t dao.ChannelTemplate) domain.ChannelTemplate {
	var schema map[string]domain.VariableSpec
	if t.VariablesSchema != "" {
		_ = json.Unmarshal([]byte(t.VariablesSchema), &schema)
	}
	var defaults map[string]string
	if t.Defaults != "" {
		_ = json.Unmarshal([]byte(t.Defaults), &defaults)
	}
	var validationErrors []string
	if t.ValidationErrors != "" {
		_ = json.Unmarshal([]byte(t.ValidationErrors), &validationErrors)
	}

	return domain.ChannelTemplate{
		ID:               t.ID,
		Name:             t.Name,
		Version:          t.Version,
		BizType:          t.BizType,
		Channel:          domain.Channel(t.Channel),
		Language:         t.Language,
		SubjectPattern:   t.SubjectPattern,
		BodyPattern:      t.BodyPattern,
		ContentType:      domain.ContentType(t.ContentType),
		VariablesSchema:  schema,
		Defaults:         defaults,
		IsValidated:      t.IsValidated,
		ValidationErrors: validationErrors,
		UsageCount:       t.UsageCount,
		LastUsedAt:       fromMillis(t.LastUsedAt),
		Ctime:            fromMillis(t.Ctime),
		Utime:            fromMillis(t.Utime),
	}
}
