package ioc

import (
	httpapi "gitee.com/flycash/notification-dispatch/internal/api/http"
	"github.com/gotomicro/ego/server/egin"
)

func InitHTTPServer(
	notificationHdl *httpapi.NotificationHandler,
	templateHdl *httpapi.TemplateHandler,
	preferenceHdl *httpapi.PreferenceHandler,
) *egin.Component {
	server := egin.Load("server.http").Build()
	notificationHdl.PublicRoutes(server.Engine)
	templateHdl.PublicRoutes(server.Engine)
	preferenceHdl.PublicRoutes(server.Engine)
	return server
}
