package http

import (
	"strconv"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/dispatcher"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NotificationHandler 通知相关接口
type NotificationHandler struct {
	svc  dispatcher.Dispatcher
	repo repository.NotificationRepository
}

// NewNotificationHandler 创建通知接口处理器
func NewNotificationHandler(svc dispatcher.Dispatcher, repo repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{svc: svc, repo: repo}
}

// PublicRoutes 注册路由
func (h *NotificationHandler) PublicRoutes(engine *gin.Engine) {
	group := engine.Group("/notifications")
	group.POST("/send", h.Send)
	group.POST("/send-sync", h.SendSync)
	group.POST("/send-bulk", h.BulkSend)
	group.POST("/retry-failed", h.RetryFailed)
	group.POST("/:id/delivered", h.MarkDelivered)
	group.GET("", h.List)
	group.GET("/:id", h.GetByID)
}

// Send 异步发送，落库即返回PENDING记录
func (h *NotificationHandler) Send(ctx *gin.Context) {
	var req SendReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	sendReq, err := req.toDomain()
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	notifications, err := h.svc.Send(ctx.Request.Context(), sendReq)
	if err != nil {
		fail(ctx, err)
		return
	}
	created(ctx, h.toVOs(notifications))
}

// SendSync 同步发送，返回投递后的最终记录
func (h *NotificationHandler) SendSync(ctx *gin.Context) {
	var req SendReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	sendReq, err := req.toDomain()
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	notifications, err := h.svc.SendSync(ctx.Request.Context(), sendReq)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, h.toVOs(notifications))
}

// BulkSendResp 批量发送结果
type BulkSendResp struct {
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Deferred   int    `json:"deferred"`
	GroupID    string `json:"groupId"`
}

// BulkSend 批量发送，单渠道多接收者
func (h *NotificationHandler) BulkSend(ctx *gin.Context) {
	var req SendReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	sendReq, err := req.toDomain()
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	resp, err := h.svc.BulkSend(ctx.Request.Context(), sendReq)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, BulkSendResp{
		Total:      resp.Total,
		Successful: resp.Successful,
		Failed:     resp.Failed,
		Deferred:   resp.Deferred,
		GroupID:    resp.GroupID,
	})
}

// RetryFailedResp 手工触发重试的结果
type RetryFailedResp struct {
	Retried int `json:"retried"`
}

// RetryFailed 手工触发一轮失败重试，202表示已受理
func (h *NotificationHandler) RetryFailed(ctx *gin.Context) {
	// 部分失败也返回202，失败的记录等调度器下一轮
	count, _ := h.svc.RetryFailed(ctx.Request.Context())
	accepted(ctx, RetryFailedResp{Retried: count})
}

// MarkDeliveredReq 送达回执
type MarkDeliveredReq struct {
	ExternalID string `json:"externalId"`
}

// MarkDelivered 供应商送达回执
func (h *NotificationHandler) MarkDelivered(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	var req MarkDeliveredReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	if err := h.svc.MarkDelivered(ctx.Request.Context(), id, req.ExternalID); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, struct{}{})
}

// GetByID 查询单条通知
func (h *NotificationHandler) GetByID(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	notification, err := h.repo.GetByID(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, newNotificationVO(notification))
}

// ListNotificationsResp 通知列表
type ListNotificationsResp struct {
	Notifications []NotificationVO `json:"notifications"`
	Total         int64            `json:"total"`
}

// List 按条件分页查询通知
func (h *NotificationHandler) List(ctx *gin.Context) {
	filter := repository.NotificationFilter{
		BizType:     ctx.Query("bizType"),
		Channel:     domain.Channel(ctx.Query("channel")),
		Status:      domain.SendStatus(ctx.Query("status")),
		RecipientID: ctx.Query("recipientId"),
	}
	var err error
	if filter.StartTime, err = parseTime(ctx.Query("startTime")); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}
	if filter.EndTime, err = parseTime(ctx.Query("endTime")); err != nil {
		fail(ctx, invalidParameter(err))
		return
	}

	offset, limit := pagination(ctx)
	notifications, total, err := h.repo.Find(ctx.Request.Context(), filter, offset, limit)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, ListNotificationsResp{
		Notifications: h.toVOs(notifications),
		Total:         total,
	})
}

func (h *NotificationHandler) toVOs(notifications []domain.Notification) []NotificationVO {
	return slice.Map(notifications, func(_ int, src domain.Notification) NotificationVO {
		return newNotificationVO(src)
	})
}

func pagination(ctx *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return offset, limit
}
