package preference

import (
	"context"
	"fmt"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"gitee.com/flycash/notification-dispatch/internal/repository"
)

// UserPreferenceService 偏好管理
//
//go:generate mockgen -source=./manage.go -destination=./mocks/manage.mock.go -package=preferencemocks -typed UserPreferenceService
type UserPreferenceService interface {
	// SavePreference 创建或整体覆盖偏好
	SavePreference(ctx context.Context, pref domain.UserPreference) (domain.UserPreference, error)
	// GetPreference 查询偏好，没有记录返回 ErrPreferenceNotFound
	GetPreference(ctx context.Context, userID string) (domain.UserPreference, error)
	// ListPreferences 分页查询
	ListPreferences(ctx context.Context, offset, limit int) ([]domain.UserPreference, error)
	// DeletePreference 删除偏好，之后该接收者回到默认策略
	DeletePreference(ctx context.Context, userID string) error
}

type userPreferenceService struct {
	repo repository.UserPreferenceRepository
}

func NewUserPreferenceService(repo repository.UserPreferenceRepository) UserPreferenceService {
	return &userPreferenceService{repo: repo}
}

func (s *userPreferenceService) SavePreference(ctx context.Context, pref domain.UserPreference) (domain.UserPreference, error) {
	if err := pref.Validate(); err != nil {
		return domain.UserPreference{}, err
	}
	return s.repo.Upsert(ctx, pref)
}

func (s *userPreferenceService) GetPreference(ctx context.Context, userID string) (domain.UserPreference, error) {
	if userID == "" {
		return domain.UserPreference{}, fmt.Errorf("%w: userID 不能为空", errs.ErrInvalidParameter)
	}
	return s.repo.GetByUserID(ctx, userID)
}

func (s *userPreferenceService) ListPreferences(ctx context.Context, offset, limit int) ([]domain.UserPreference, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *userPreferenceService) DeletePreference(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: userID 不能为空", errs.ErrInvalidParameter)
	}
	return s.repo.Delete(ctx, userID)
}
