package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"gitee.com/flycash/notification-dispatch/internal/pkg/idgen"
	"gitee.com/flycash/notification-dispatch/internal/pkg/ratelimit"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/channel"
	"gitee.com/flycash/notification-dispatch/internal/service/preference"
	"gitee.com/flycash/notification-dispatch/internal/service/template"
	"github.com/ecodeclub/ekit/retry"
	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxConcurrency = 16
	defaultRetryBatchSize = 100

	// fallbackSubjectPrefix 降级渠道合成通知的标题前缀
	fallbackSubjectPrefix = "[Fallback] "
)

// 错误码，写进通知记录的 ErrorCode 字段
const (
	errCodeSendFailed    = "SEND_FAILED"
	errCodeQuotaExceeded = "DAILY_QUOTA_EXCEEDED"
)

// Dispatcher 通知分发服务，发送链路的编排核心
//
//go:generate mockgen -source=./dispatcher.go -destination=./mocks/dispatcher.mock.go -package=dispatchermocks -typed Dispatcher
type Dispatcher interface {
	// Send 创建通知记录并异步投递，立即返回PENDING记录
	Send(ctx context.Context, req domain.SendRequest) ([]domain.Notification, error)

	// SendSync 创建通知记录并同步投递，返回投递后的记录
	SendSync(ctx context.Context, req domain.SendRequest) ([]domain.Notification, error)

	// BulkSend 批量发送，单渠道多接收者，同一批次共享 GroupID
	BulkSend(ctx context.Context, req domain.SendRequest) (domain.BulkSendResponse, error)

	// DispatchAsync 投递一批已落库的通知，内部有并发上限
	DispatchAsync(ctx context.Context, notifications []domain.Notification) error

	// RetryFailed 重新投递到期的失败通知，返回本轮重试条数
	RetryFailed(ctx context.Context) (int, error)

	// DispatchDue 投递到期的PENDING通知，定时发送和被顺延的记录靠它重新捞起，返回本轮条数
	DispatchDue(ctx context.Context) (int, error)

	// MarkDelivered 供应商回执，只允许 SUCCEEDED 到 DELIVERED
	MarkDelivered(ctx context.Context, id uint64, externalID string) error
}

// Config 分发器配置
type Config struct {
	// MaxConcurrency 投递工作池的并发上限
	MaxConcurrency int `yaml:"maxConcurrency"`
	// RetryBatchSize 每轮重试扫描的最大条数
	RetryBatchSize int `yaml:"retryBatchSize"`
	// FallbackChains 渠道降级链，比如 PUSH -> [SMS, EMAIL]
	FallbackChains map[domain.Channel][]domain.Channel `yaml:"fallbackChains"`
	// BackoffInitial 首次重试间隔
	BackoffInitial time.Duration `yaml:"backoffInitial"`
	// BackoffMax 重试间隔上限
	BackoffMax time.Duration `yaml:"backoffMax"`
}

type dispatcher struct {
	cfg Config

	repo        repository.NotificationRepository
	templateSvc template.ChannelTemplateService
	resolver    preference.Resolver
	channels    channel.Channel
	quota       ratelimit.DailyQuotaLimiter
	idGen       *idgen.Generator

	logger *elog.Component
}

// NewDispatcher 创建通知分发服务
func NewDispatcher(
	cfg Config,
	repo repository.NotificationRepository,
	templateSvc template.ChannelTemplateService,
	resolver preference.Resolver,
	channels channel.Channel,
	quota ratelimit.DailyQuotaLimiter,
	idGen *idgen.Generator,
) Dispatcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.RetryBatchSize <= 0 {
		cfg.RetryBatchSize = defaultRetryBatchSize
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = time.Minute
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Minute
	}
	return &dispatcher{
		cfg:         cfg,
		repo:        repo,
		templateSvc: templateSvc,
		resolver:    resolver,
		channels:    channels,
		quota:       quota,
		idGen:       idGen,
		logger:      elog.DefaultLogger,
	}
}

func (d *dispatcher) Send(ctx context.Context, req domain.SendRequest) ([]domain.Notification, error) {
	created, err := d.createNotifications(ctx, req, "")
	if err != nil {
		return nil, err
	}

	// 投递放到后台，调用方立即拿到PENDING记录
	go func() {
		dispatchCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := d.DispatchAsync(dispatchCtx, created); err != nil {
			d.logger.Error("后台投递失败", elog.FieldErr(err))
		}
	}()

	return created, nil
}

func (d *dispatcher) SendSync(ctx context.Context, req domain.SendRequest) ([]domain.Notification, error) {
	created, err := d.createNotifications(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if err := d.DispatchAsync(ctx, created); err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(created))
	for _, n := range created {
		ids = append(ids, n.ID)
	}
	latest, err := d.repo.BatchGetByIDs(ctx, ids)
	if err != nil {
		return created, nil
	}
	result := make([]domain.Notification, 0, len(created))
	for _, n := range created {
		if cur, ok := latest[n.ID]; ok {
			result = append(result, cur)
		} else {
			result = append(result, n)
		}
	}
	return result, nil
}

func (d *dispatcher) BulkSend(ctx context.Context, req domain.SendRequest) (domain.BulkSendResponse, error) {
	if len(req.Channels) != 1 {
		return domain.BulkSendResponse{}, fmt.Errorf("%w: 批量发送必须指定一个渠道", errs.ErrInvalidParameter)
	}

	groupID := uuid.Must(uuid.NewV4()).String()
	created, err := d.createNotifications(ctx, req, groupID)
	if err != nil {
		return domain.BulkSendResponse{}, err
	}

	// 同步投递整个批次
	if err := d.DispatchAsync(ctx, created); err != nil {
		d.logger.Warn("批量投递部分失败", elog.String("groupID", groupID), elog.FieldErr(err))
	}

	ids := make([]uint64, 0, len(created))
	for _, n := range created {
		ids = append(ids, n.ID)
	}
	latest, err := d.repo.BatchGetByIDs(ctx, ids)
	if err != nil {
		return domain.BulkSendResponse{}, fmt.Errorf("%w: %w", errs.ErrSendNotificationFailed, err)
	}

	resp := domain.BulkSendResponse{Total: len(created), GroupID: groupID}
	for _, n := range latest {
		switch n.Status {
		case domain.SendStatusSucceeded, domain.SendStatusDelivered:
			resp.Successful++
		case domain.SendStatusPending, domain.SendStatusSending:
			// 被免打扰或配额顺延的记录还会再投，不算失败
			resp.Deferred++
		default:
			resp.Failed++
		}
	}
	return resp, nil
}

// createNotifications 解析渠道、渲染内容并落库，每个 (接收者, 渠道) 一条PENDING记录
func (d *dispatcher) createNotifications(ctx context.Context, req domain.SendRequest, groupID string) ([]domain.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	subject, body := req.Subject, req.Body
	payload := req.Payload
	if req.TemplateID != 0 {
		var err error
		subject, body, err = d.templateSvc.RenderForSend(ctx, req.TemplateID, req.TemplateParams)
		if err != nil {
			return nil, err
		}
		tpl, err := d.templateSvc.GetTemplateByID(ctx, req.TemplateID)
		if err == nil && tpl.ContentType == domain.ContentTypeHTML {
			if payload == nil {
				payload = make(map[string]string, 1)
			}
			payload["contentType"] = string(domain.ContentTypeHTML)
		}
	}

	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = domain.DefaultMaxRetries
	}

	notifications := make([]domain.Notification, 0, len(req.Recipients))
	for _, recipient := range req.Recipients {
		channels := d.resolver.ResolveChannels(ctx, recipient, req.BizType, req.Channels)
		for _, ch := range channels {
			if recipient.ContactFor(ch) == "" {
				// 兜底渠道也可能缺联系方式，这种记录落库只会白白失败
				d.logger.Warn("接收者缺少联系方式，跳过",
					elog.String("recipientID", recipient.ID),
					elog.String("channel", string(ch)))
				continue
			}
			id, err := d.idGen.NextID()
			if err != nil {
				return nil, err
			}
			n := domain.Notification{
				ID:             id,
				BizType:        req.BizType,
				Channel:        ch,
				Recipient:      recipient,
				Subject:        subject,
				Body:           body,
				Payload:        payload,
				TemplateID:     req.TemplateID,
				TemplateParams: req.TemplateParams,
				Status:         domain.SendStatusPending,
				MaxRetries:     maxRetries,
				Priority:       req.Priority,
				ScheduledAt:    req.ScheduledAt,
				ExpiresAt:      req.ExpiresAt,
				SourceService:  req.SourceService,
				SourceEvent:    req.SourceEvent,
				GroupID:        groupID,
			}
			if err := n.Validate(); err != nil {
				return nil, err
			}
			notifications = append(notifications, n)
		}
	}

	if len(notifications) == 0 {
		return nil, fmt.Errorf("%w: 没有可投递的 (接收者, 渠道) 组合", errs.ErrInvalidParameter)
	}

	return d.repo.BatchCreate(ctx, notifications)
}

func (d *dispatcher) DispatchAsync(ctx context.Context, notifications []domain.Notification) error {
	var eg errgroup.Group
	eg.SetLimit(d.cfg.MaxConcurrency)
	for i := range notifications {
		n := notifications[i]
		eg.Go(func() error {
			return d.dispatchOne(ctx, n)
		})
	}
	return eg.Wait()
}

// dispatchOne 投递单条通知，驱动整个状态机
func (d *dispatcher) dispatchOne(ctx context.Context, n domain.Notification) error {
	now := time.Now()

	if n.Status != domain.SendStatusPending {
		return nil
	}

	// 过期的通知永远不进入SENDING
	if n.IsExpired(now) {
		if err := d.repo.CASStatus(ctx, n, domain.SendStatusExpired); err != nil {
			d.logger.Warn("标记过期失败", elog.Any("notificationID", n.ID), elog.FieldErr(err))
		}
		return nil
	}

	if !n.IsDue(now) {
		return nil
	}

	// 免打扰时段顺延，紧急优先级例外
	if n.Priority < domain.PriorityUrgent {
		pref := d.resolver.GetPreference(ctx, n.Recipient.ID)
		if d.resolver.InQuietHours(pref, now) {
			end := d.resolver.QuietHoursEnd(pref, now)
			if err := d.repo.Reschedule(ctx, n.ID, end); err != nil {
				d.logger.Warn("免打扰顺延失败", elog.Any("notificationID", n.ID), elog.FieldErr(err))
			}
			return nil
		}
		// 每日配额，尽力而为，限流器故障不阻塞发送
		if deferred := d.deferIfQuotaExceeded(ctx, n, pref, now); deferred {
			return nil
		}
	}

	// 抢占这条记录，并发的投递方只有一个能成功
	if err := d.repo.CASStatus(ctx, n, domain.SendStatusSending); err != nil {
		if errors.Is(err, errs.ErrNotificationVersionMismatch) {
			return nil
		}
		return err
	}
	n.Version++

	resp, err := d.channels.Send(ctx, n)
	if err != nil {
		return d.handleSendFailure(ctx, n, err)
	}

	n.MarkSucceeded(time.Now(), resp.ExternalID, resp.ProviderResponse)
	if err := d.repo.MarkSucceeded(ctx, n); err != nil {
		return fmt.Errorf("落库发送结果失败: %w", err)
	}
	return nil
}

// deferIfQuotaExceeded 超出每日上限时把通知顺延到第二天，返回是否顺延
func (d *dispatcher) deferIfQuotaExceeded(ctx context.Context, n domain.Notification, pref domain.UserPreference, now time.Time) bool {
	limit := pref.DailyLimit(n.Channel)
	if limit <= 0 {
		return false
	}
	count, err := d.quota.Incr(ctx, n.Recipient.ID, string(n.Channel))
	if err != nil {
		d.logger.Warn("配额计数失败，放行",
			elog.Any("notificationID", n.ID), elog.FieldErr(err))
		return false
	}
	if count <= int64(limit) {
		return false
	}

	nextDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	if err := d.repo.Reschedule(ctx, n.ID, nextDay); err != nil {
		d.logger.Warn("配额顺延失败", elog.Any("notificationID", n.ID), elog.FieldErr(err))
	}
	return true
}

// handleSendFailure 记录失败、计算下次重试时间，额度耗尽时触发渠道降级
func (d *dispatcher) handleSendFailure(ctx context.Context, n domain.Notification, sendErr error) error {
	now := time.Now()
	n.MarkFailed(now, errCodeSendFailed, sendErr.Error())
	if n.CanRetry() {
		n.NextRetryAt = now.Add(d.backoffInterval(n.RetryCount))
	}
	if err := d.repo.MarkFailed(ctx, n); err != nil {
		return fmt.Errorf("落库发送结果失败: %w", err)
	}

	if !n.CanRetry() {
		d.fallback(ctx, n)
	}
	return nil
}

// backoffInterval 第 retryCount 次重试的等待间隔，指数退避
func (d *dispatcher) backoffInterval(retryCount int8) time.Duration {
	if retryCount <= 0 {
		return d.cfg.BackoffInitial
	}
	strategy, err := retry.NewExponentialBackoffRetryStrategy(
		d.cfg.BackoffInitial, d.cfg.BackoffMax, int32(retryCount))
	if err != nil {
		return d.cfg.BackoffInitial
	}
	interval := d.cfg.BackoffInitial
	for {
		next, ok := strategy.Next()
		if !ok {
			return interval
		}
		interval = next
	}
}

// fallback 按降级链合成下一渠道的新通知并投递，链上有一个成功就停
func (d *dispatcher) fallback(ctx context.Context, failed domain.Notification) {
	chain := d.cfg.FallbackChains[failed.Channel]
	for _, next := range chain {
		if failed.Recipient.ContactFor(next) == "" {
			continue
		}
		id, err := d.idGen.NextID()
		if err != nil {
			d.logger.Error("降级通知ID生成失败", elog.FieldErr(err))
			return
		}
		fb := failed
		fb.ID = id
		fb.Channel = next
		fb.Subject = fallbackSubjectPrefix + failed.Subject
		fb.Status = domain.SendStatusPending
		fb.RetryCount = 0
		fb.Version = 0
		fb.NextRetryAt = time.Time{}
		fb.SentAt = time.Time{}
		fb.FailedAt = time.Time{}
		fb.ErrorCode = ""
		fb.ErrorMessage = ""

		created, err := d.repo.Create(ctx, fb)
		if err != nil {
			d.logger.Error("创建降级通知失败",
				elog.Any("sourceID", failed.ID),
				elog.String("channel", string(next)),
				elog.FieldErr(err))
			continue
		}
		if err := d.dispatchOne(ctx, created); err != nil {
			d.logger.Warn("降级通知投递失败",
				elog.Any("notificationID", created.ID), elog.FieldErr(err))
		}
		// 这一跳发出去了才算降级完成，否则继续沿链找下一个渠道
		latest, err := d.repo.GetByID(ctx, created.ID)
		if err != nil {
			return
		}
		if latest.Status == domain.SendStatusSucceeded || latest.Status == domain.SendStatusDelivered {
			return
		}
	}
}

func (d *dispatcher) RetryFailed(ctx context.Context) (int, error) {
	retryable, err := d.repo.FindRetryable(ctx, time.Now(), d.cfg.RetryBatchSize)
	if err != nil {
		return 0, err
	}
	if len(retryable) == 0 {
		return 0, nil
	}

	var errList error
	var eg errgroup.Group
	eg.SetLimit(d.cfg.MaxConcurrency)
	results := make([]error, len(retryable))
	for i := range retryable {
		i, n := i, retryable[i]
		eg.Go(func() error {
			results[i] = d.redispatch(ctx, n)
			return nil
		})
	}
	_ = eg.Wait()
	for _, err := range results {
		if err != nil {
			errList = multierror.Append(errList, err)
		}
	}
	return len(retryable), errList
}

func (d *dispatcher) DispatchDue(ctx context.Context) (int, error) {
	due, err := d.repo.FindDue(ctx, time.Now(), d.cfg.RetryBatchSize)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}
	// 记录本来就是PENDING，直接走投递，并发冲突由 dispatchOne 的CAS兜底
	var errList error
	var eg errgroup.Group
	eg.SetLimit(d.cfg.MaxConcurrency)
	results := make([]error, len(due))
	for i := range due {
		i, n := i, due[i]
		eg.Go(func() error {
			results[i] = d.dispatchOne(ctx, n)
			return nil
		})
	}
	_ = eg.Wait()
	for _, err := range results {
		if err != nil {
			errList = multierror.Append(errList, err)
		}
	}
	return len(due), errList
}

// redispatch 把FAILED记录拉回PENDING再走一遍投递
func (d *dispatcher) redispatch(ctx context.Context, n domain.Notification) error {
	if err := d.repo.CASStatus(ctx, n, domain.SendStatusPending); err != nil {
		if errors.Is(err, errs.ErrNotificationVersionMismatch) {
			return nil
		}
		return err
	}
	n.Status = domain.SendStatusPending
	n.Version++
	return d.dispatchOne(ctx, n)
}

func (d *dispatcher) MarkDelivered(ctx context.Context, id uint64, externalID string) error {
	n, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if externalID != "" && n.ExternalID != "" && n.ExternalID != externalID {
		return fmt.Errorf("%w: 回执 externalID 不匹配", errs.ErrInvalidParameter)
	}
	return d.repo.MarkDelivered(ctx, id, time.Now())
}
