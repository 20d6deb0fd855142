package ioc

import (
	"gitee.com/flycash/notification-dispatch/internal/pkg/idgen"
)

func InitIDGenerator() *idgen.Generator {
	return idgen.NewGenerator()
}
