package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/ego-component/egorm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserPreference 用户通知偏好表
type UserPreference struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	UserID   string `gorm:"type:VARCHAR(128);NOT NULL;uniqueIndex:idx_user_id;comment:'用户ID'"`
	UserType string `gorm:"type:ENUM('USER','GROUP','EXTERNAL');NOT NULL;DEFAULT:'USER'"`

	Email     string `gorm:"type:VARCHAR(256)"`
	Phone     string `gorm:"type:VARCHAR(32)"`
	PushToken string `gorm:"type:VARCHAR(512)"`

	ChannelEnabled string `gorm:"type:TEXT;comment:'渠道总开关，JSON'"`
	TypeOverrides  string `gorm:"type:TEXT;comment:'事件类型级覆盖，JSON'"`
	QuietHours     string `gorm:"type:TEXT;comment:'免打扰时段配置，JSON'"`

	MaxEmailsPerDay int `gorm:"type:INT;NOT NULL;DEFAULT:0;comment:'0表示不限制'"`
	MaxSMSPerDay    int `gorm:"type:INT;NOT NULL;DEFAULT:0;comment:'0表示不限制'"`

	Ctime int64
	Utime int64
}

// TableName 重命名表
func (UserPreference) TableName() string {
	return "user_preferences"
}

// UserPreferenceDAO 偏好数据访问对象接口
type UserPreferenceDAO interface {
	// Upsert 按 user_id 创建或整体覆盖
	Upsert(ctx context.Context, pref UserPreference) (UserPreference, error)

	// GetByUserID 根据用户ID获取偏好，不存在返回 ErrPreferenceNotFound
	GetByUserID(ctx context.Context, userID string) (UserPreference, error)

	// List 分页查询
	List(ctx context.Context, offset, limit int) ([]UserPreference, error)

	// Delete 删除偏好记录
	Delete(ctx context.Context, userID string) error
}

type userPreferenceDAO struct {
	db *egorm.Component
}

// NewUserPreferenceDAO 创建偏好DAO实例
func NewUserPreferenceDAO(db *egorm.Component) UserPreferenceDAO {
	return &userPreferenceDAO{db: db}
}

func (d *userPreferenceDAO) Upsert(ctx context.Context, pref UserPreference) (UserPreference, error) {
	now := time.Now().UnixMilli()
	pref.Ctime, pref.Utime = now, now
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_type", "email", "phone", "push_token",
			"channel_enabled", "type_overrides", "quiet_hours",
			"max_emails_per_day", "max_sms_per_day", "utime",
		}),
	}).Create(&pref).Error
	if err != nil {
		return UserPreference{}, err
	}
	return pref, nil
}

func (d *userPreferenceDAO) GetByUserID(ctx context.Context, userID string) (UserPreference, error) {
	var pref UserPreference
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserPreference{}, fmt.Errorf("%w: userID=%s", errs.ErrPreferenceNotFound, userID)
		}
		return UserPreference{}, err
	}
	return pref, nil
}

func (d *userPreferenceDAO) List(ctx context.Context, offset, limit int) ([]UserPreference, error) {
	var prefs []UserPreference
	err := d.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset).Find(&prefs).Error
	return prefs, err
}

func (d *userPreferenceDAO) Delete(ctx context.Context, userID string) error {
	return d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserPreference{}).Error
}
