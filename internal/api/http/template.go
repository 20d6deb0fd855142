package http

import (
	"strconv"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/service/template"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
)

// TemplateHandler 模板管理接口
type TemplateHandler struct {
	svc template.ChannelTemplateService
}

// NewTemplateHandler 创建模板接口处理器
func NewTemplateHandler(svc template.ChannelTemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// PublicRoutes 注册路由
func (h *TemplateHandler) PublicRoutes(engine *gin.Engine) {
	group := engine.Group("/templates")
	group.POST("", h.Create)
	group.PUT("/:id", h.Update)
	group.GET("", h.List)
	group.GET("/:id", h.GetByID)
	group.DELETE("/:id", h.Delete)
	group.POST("/:id/preview", h.Preview)
	group.POST("/:id/validate", h.Validate)
}

// Create 创建模板
func (h *TemplateHandler) Create(ctx *gin.Context) {
	var req TemplateVO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	tpl, err := h.svc.CreateTemplate(ctx.Request.Context(), req.toDomain())
	if err != nil {
		fail(ctx, err)
		return
	}
	created(ctx, newTemplateVO(tpl))
}

// Update 更新模板，版本号+1
func (h *TemplateHandler) Update(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	var req TemplateVO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	tpl := req.toDomain()
	tpl.ID = id
	if err := h.svc.UpdateTemplate(ctx.Request.Context(), tpl); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, struct{}{})
}

// ListTemplatesResp 模板列表
type ListTemplatesResp struct {
	Templates []TemplateVO `json:"templates"`
}

// List 分页查询模板
func (h *TemplateHandler) List(ctx *gin.Context) {
	offset, limit := pagination(ctx)
	templates, err := h.svc.ListTemplates(ctx.Request.Context(), offset, limit)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, ListTemplatesResp{
		Templates: slice.Map(templates, func(_ int, src domain.ChannelTemplate) TemplateVO {
			return newTemplateVO(src)
		}),
	})
}

// GetByID 查询单个模板
func (h *TemplateHandler) GetByID(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	tpl, err := h.svc.GetTemplateByID(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, newTemplateVO(tpl))
}

// Delete 删除模板
func (h *TemplateHandler) Delete(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	if err := h.svc.DeleteTemplate(ctx.Request.Context(), id); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, struct{}{})
}

// PreviewReq 预览请求
type PreviewReq struct {
	Variables map[string]string `json:"variables"`
}

// PreviewResp 预览结果
type PreviewResp struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Preview 用给定参数渲染模板，不计入使用次数
func (h *TemplateHandler) Preview(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	var req PreviewReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	subject, body, err := h.svc.Preview(ctx.Request.Context(), id, req.Variables)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, PreviewResp{Subject: subject, Body: body})
}

// ValidateResp 校验结果
type ValidateResp struct {
	IsValid         bool     `json:"isValid"`
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	VariablesFound  []string `json:"variablesFound,omitempty"`
	MissingRequired []string `json:"missingRequired,omitempty"`
}

// Validate 校验模板并把结果写回模板记录
func (h *TemplateHandler) Validate(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	result, err := h.svc.ValidateTemplate(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, ValidateResp{
		IsValid:         result.IsValid,
		Errors:          result.Errors,
		Warnings:        result.Warnings,
		VariablesFound:  result.VariablesFound,
		MissingRequired: result.MissingRequired,
	})
}
