// Package metrics 为渠道实现添加指标收集的装饰器
package metrics

import (
	"context"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/service/channel"
	"github.com/prometheus/client_golang/prometheus"
)

// Channel 为渠道实现添加指标收集的装饰器
type Channel struct {
	channel             channel.Channel
	sendDurationSummary *prometheus.SummaryVec
	sendCounter         *prometheus.CounterVec
	sendStatusCounter   *prometheus.CounterVec
}

// NewChannel 创建一个新的带有指标收集的渠道
func NewChannel(c channel.Channel) *Channel {
	sendDurationSummary := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "channel_send_duration_seconds",
			Help:       "渠道发送通知耗时统计（秒）",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
			MaxAge:     time.Minute * 5,
		},
		[]string{"channel", "status"},
	)

	sendCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_send_total",
			Help: "渠道发送通知总数",
		},
		[]string{"channel"},
	)

	sendStatusCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_send_status_total",
			Help: "渠道发送通知状态统计",
		},
		[]string{"channel", "status"},
	)

	// 注册指标
	prometheus.MustRegister(sendDurationSummary, sendCounter, sendStatusCounter)

	return &Channel{
		channel:             c,
		sendDurationSummary: sendDurationSummary,
		sendCounter:         sendCounter,
		sendStatusCounter:   sendStatusCounter,
	}
}

// Send 发送通知并记录指标
func (c *Channel) Send(ctx context.Context, notification domain.Notification) (domain.SendResponse, error) {
	startTime := time.Now()

	c.sendCounter.WithLabelValues(
		string(notification.Channel),
	).Inc()

	response, err := c.channel.Send(ctx, notification)

	duration := time.Since(startTime).Seconds()

	// 出错时响应是零值，状态标签统一记成FAILED
	status := string(response.Status)
	if err != nil {
		status = domain.SendStatusFailed.String()
	}

	c.sendStatusCounter.WithLabelValues(
		string(notification.Channel),
		status,
	).Inc()

	c.sendDurationSummary.WithLabelValues(
		string(notification.Channel),
		status,
	).Observe(duration)

	return response, err
}
