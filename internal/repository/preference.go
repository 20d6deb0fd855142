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

// UserPreferenceRepository 偏好仓储接口
type UserPreferenceRepository interface {
	// Upsert 创建或整体覆盖偏好
	Upsert(ctx context.Context, pref domain.UserPreference) (domain.UserPreference, error)
	// GetByUserID 获取偏好，不存在返回 ErrPreferenceNotFound
	GetByUserID(ctx context.Context, userID string) (domain.UserPreference, error)
	List(ctx context.Context, offset, limit int) ([]domain.UserPreference, error)
	Delete(ctx context.Context, userID string) error
}

const preferenceCacheTTL = time.Minute

// userPreferenceRepository 偏好仓储实现，带本地缓存
type userPreferenceRepository struct {
	dao   dao.UserPreferenceDAO
	cache *gocache.Cache
}

// NewUserPreferenceRepository 创建偏好仓储实例
func NewUserPreferenceRepository(d dao.UserPreferenceDAO, cache *gocache.Cache) UserPreferenceRepository {
	return &userPreferenceRepository{
		dao:   d,
		cache: cache,
	}
}

func (r *userPreferenceRepository) Upsert(ctx context.Context, pref domain.UserPreference) (domain.UserPreference, error) {
	entity, err := r.dao.Upsert(ctx, r.toEntity(pref))
	if err != nil {
		return domain.UserPreference{}, err
	}
	r.cache.Delete(r.cacheKey(pref.UserID))
	return r.toDomain(entity), nil
}

func (r *userPreferenceRepository) GetByUserID(ctx context.Context, userID string) (domain.UserPreference, error) {
	if cached, ok := r.cache.Get(r.cacheKey(userID)); ok {
		return cached.(domain.UserPreference), nil
	}
	entity, err := r.dao.GetByUserID(ctx, userID)
	if err != nil {
		return domain.UserPreference{}, err
	}
	pref := r.toDomain(entity)
	r.cache.Set(r.cacheKey(userID), pref, preferenceCacheTTL)
	return pref, nil
}

func (r *userPreferenceRepository) List(ctx context.Context, offset, limit int) ([]domain.UserPreference, error) {
	entities, err := r.dao.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return slice.Map(entities, func(_ int, src dao.UserPreference) domain.UserPreference {
		return r.toDomain(src)
	}), nil
}

func (r *userPreferenceRepository) Delete(ctx context.Context, userID string) error {
	if err := r.dao.Delete(ctx, userID); err != nil {
		return err
	}
	r.cache.Delete(r.cacheKey(userID))
	return nil
}

func (r *userPreferenceRepository) cacheKey(userID string) string {
	return fmt.Sprintf("preference:%s", userID)
}

func (r *userPreferenceRepository) toEntity(p domain.UserPreference) dao.UserPreference {
	channelEnabled, _ := json.Marshal(p.ChannelEnabled)
	typeOverrides, _ := json.Marshal(p.TypeOverrides)
	quietHours, _ := json.Marshal(p.QuietHours)

	return dao.UserPreference{
		UserID:          p.UserID,
		UserType:        string(p.UserType),
		Email:           p.Email,
		Phone:           p.Phone,
		PushToken:       p.PushToken,
		ChannelEnabled:  string(channelEnabled),
		TypeOverrides:   string(typeOverrides),
		QuietHours:      string(quietHours),
		MaxEmailsPerDay: p.MaxEmailsPerDay,
		MaxSMSPerDay:    p.MaxSMSPerDay,
	}
}

func (r *userPreferenceRepository) toDomain(p dao.UserPreference) domain.UserPreference {
	var channelEnabled map[domain.Channel]bool
	if p.ChannelEnabled != "" {
		_ = json.Unmarshal([]byte(p.ChannelEnabled), &channelEnabled)
	}
	var typeOverrides map[string]map[domain.Channel]bool
	if p.TypeOverrides != "" {
		_ = json.Unmarshal([]byte(p.TypeOverrides), &typeOverrides)
	}
	var quietHours domain.QuietHours
	if p.QuietHours != "" {
		_ = json.Unmarshal([]byte(p.QuietHours), &quietHours)
	}

	return domain.UserPreference{
		UserID:          p.UserID,
		UserType:        domain.RecipientType(p.UserType),
		Email:           p.Email,
		Phone:           p.Phone,
		PushToken:       p.PushToken,
		ChannelEnabled:  channelEnabled,
		TypeOverrides:   typeOverrides,
		QuietHours:      quietHours,
		MaxEmailsPerDay: p.MaxEmailsPerDay,
		MaxSMSPerDay:    p.MaxSMSPerDay,
		Ctime:           fromMillis(p.Ctime),
		Utime:           fromMillis(p.Utime),
	}
}
