package http

import (
	"errors"
	"fmt"
	"net/http"

	"gitee.com/flycash/notification-dispatch/internal/errs"
	"github.com/gin-gonic/gin"
)

// invalidParameter 把绑定、解析类错误归一成参数错误
func invalidParameter(err error) error {
	return fmt.Errorf("%w: %w", errs.ErrInvalidParameter, err)
}

// Result 统一响应结构
type Result[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

func ok[T any](ctx *gin.Context, data T) {
	ctx.JSON(http.StatusOK, Result[T]{Data: data})
}

func created[T any](ctx *gin.Context, data T) {
	ctx.JSON(http.StatusCreated, Result[T]{Data: data})
}

func accepted[T any](ctx *gin.Context, data T) {
	ctx.JSON(http.StatusAccepted, Result[T]{Data: data})
}

// fail 把业务错误映射成HTTP状态码。投递失败不会走到这里，
// 那是通知记录自己的状态，接口层只暴露参数和资源类的错误。
func fail(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidParameter),
		errors.Is(err, errs.ErrMissingRequiredParams),
		errors.Is(err, errs.ErrTemplateDuplicateName),
		errors.Is(err, errs.ErrNotificationDuplicate):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotificationNotFound),
		errors.Is(err, errs.ErrTemplateNotFound),
		errors.Is(err, errs.ErrPreferenceNotFound):
		status = http.StatusNotFound
	}
	ctx.JSON(status, Result[any]{Code: status, Msg: err.Error()})
}
