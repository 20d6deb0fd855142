package http

import (
	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/service/preference"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
)

// PreferenceHandler 偏好管理接口
type PreferenceHandler struct {
	svc preference.UserPreferenceService
}

// NewPreferenceHandler 创建偏好接口处理器
func NewPreferenceHandler(svc preference.UserPreferenceService) *PreferenceHandler {
	return &PreferenceHandler{svc: svc}
}

// PublicRoutes 注册路由
func (h *PreferenceHandler) PublicRoutes(engine *gin.Engine) {
	group := engine.Group("/preferences")
	group.PUT("", h.Save)
	group.GET("", h.List)
	group.GET("/:userId", h.GetByUserID)
	group.DELETE("/:userId", h.Delete)
}

// Save 创建或整体覆盖偏好
func (h *PreferenceHandler) Save(ctx *gin.Context) {
	var req PreferenceVO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	pref, err := h.svc.SavePreference(ctx.Request.Context(), req.toDomain())
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, newPreferenceVO(pref))
}

// ListPreferencesResp 偏好列表
type ListPreferencesResp struct {
	Preferences []PreferenceVO `json:"preferences"`
}

// List 分页查询偏好
func (h *PreferenceHandler) List(ctx *gin.Context) {
	offset, limit := pagination(ctx)
	prefs, err := h.svc.ListPreferences(ctx.Request.Context(), offset, limit)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, ListPreferencesResp{
		Preferences: slice.Map(prefs, func(_ int, src domain.UserPreference) PreferenceVO {
			return newPreferenceVO(src)
		}),
	})
}

// GetByUserID 查询单个接收者的偏好
func (h *PreferenceHandler) GetByUserID(ctx *gin.Context) {
	pref, err := h.svc.GetPreference(ctx.Request.Context(), ctx.Param("userId"))
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, newPreferenceVO(pref))
}

// Delete 删除偏好，之后该接收者回到默认策略
func (h *PreferenceHandler) Delete(ctx *gin.Context) {
	if err := h.svc.DeletePreference(ctx.Request.Context(), ctx.Param("userId")); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, struct{}{})
}
