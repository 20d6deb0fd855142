package main

import (
	"context"

	"gitee.com/flycash/notification-dispatch/cmd/platform/ioc"
	prodioc "gitee.com/flycash/notification-dispatch/internal/ioc"
	"github.com/gotomicro/ego"
	"github.com/gotomicro/ego/core/elog"
	"github.com/gotomicro/ego/server"
	"go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	egoApp := ego.New()

	app := ioc.InitApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.StartTasks(ctx)

	tp := prodioc.InitZipkinTracer()
	defer func(tp *trace.TracerProvider) {
		if err := tp.Shutdown(context.Background()); err != nil {
			elog.Error("Shutdown zipkinTracer", elog.FieldErr(err))
		}
	}(tp)

	if err := egoApp.Serve(func() server.Server {
		return app.HTTPServer
	}()).Run(); err != nil {
		elog.Panic("startup", elog.Any("err", err))
	}
}
