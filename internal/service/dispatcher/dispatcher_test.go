package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gitee.com/flycash/notification-dispatch/internal/domain"
	"gitee.com/flycash/notification-dispatch/internal/errs"
	"gitee.com/flycash/notification-dispatch/internal/pkg/idgen"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/service/preference"
	"gitee.com/flycash/notification-dispatch/internal/service/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNotificationRepo 内存仓储，按真实DAO的CAS语义实现
type fakeNotificationRepo struct {
	mu      sync.Mutex
	records map[uint64]domain.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{records: make(map[uint64]domain.Notification)}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n domain.Notification) (domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[n.ID] = n
	return n, nil
}

func (f *fakeNotificationRepo) BatchCreate(_ context.Context, ns []domain.Notification) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range ns {
		f.records[n.ID] = n
	}
	return ns, nil
}

func (f *fakeNotificationRepo) GetByID(_ context.Context, id uint64) (domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		return domain.Notification{}, fmt.Errorf("%w: id=%d", errs.ErrNotificationNotFound, id)
	}
	return n, nil
}

func (f *fakeNotificationRepo) BatchGetByIDs(_ context.Context, ids []uint64) (map[uint64]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[uint64]domain.Notification, len(ids))
	for _, id := range ids {
		if n, ok := f.records[id]; ok {
			result[id] = n
		}
	}
	return result, nil
}

func (f *fakeNotificationRepo) GetByGroupID(_ context.Context, groupID string) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Notification
	for _, n := range f.records {
		if n.GroupID == groupID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (f *fakeNotificationRepo) Find(_ context.Context, _ repository.NotificationFilter, _, _ int) ([]domain.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeNotificationRepo) CASStatus(_ context.Context, n domain.Notification, status domain.SendStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.records[n.ID]
	if !ok {
		return fmt.Errorf("%w: id=%d", errs.ErrNotificationNotFound, n.ID)
	}
	if cur.Version != n.Version {
		return fmt.Errorf("%w: id=%d", errs.ErrNotificationVersionMismatch, n.ID)
	}
	cur.Status = status
	cur.Version++
	f.records[n.ID] = cur
	return nil
}

func (f *fakeNotificationRepo) MarkSucceeded(_ context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.records[n.ID]
	cur.Status = domain.SendStatusSucceeded
	cur.SentAt = n.SentAt
	cur.ExternalID = n.ExternalID
	cur.ProviderResponse = n.ProviderResponse
	cur.ErrorCode = ""
	cur.ErrorMessage = ""
	cur.Version++
	f.records[n.ID] = cur
	return nil
}

func (f *fakeNotificationRepo) MarkFailed(_ context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.records[n.ID]
	cur.Status = domain.SendStatusFailed
	cur.FailedAt = n.FailedAt
	cur.RetryCount = n.RetryCount
	cur.NextRetryAt = n.NextRetryAt
	cur.ErrorCode = n.ErrorCode
	cur.ErrorMessage = n.ErrorMessage
	cur.Version++
	f.records[n.ID] = cur
	return nil
}

func (f *fakeNotificationRepo) MarkDelivered(_ context.Context, id uint64, deliveredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.records[id]
	if !ok || cur.Status != domain.SendStatusSucceeded {
		return fmt.Errorf("%w: id=%d 非 SUCCEEDED 状态", errs.ErrNotificationNotFound, id)
	}
	cur.Status = domain.SendStatusDelivered
	cur.DeliveredAt = deliveredAt
	cur.Version++
	f.records[id] = cur
	return nil
}

func (f *fakeNotificationRepo) Reschedule(_ context.Context, id uint64, scheduledAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.records[id]
	if !ok || cur.Status != domain.SendStatusPending {
		return nil
	}
	cur.ScheduledAt = scheduledAt
	f.records[id] = cur
	return nil
}

func (f *fakeNotificationRepo) FindRetryable(_ context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Notification
	for _, n := range f.records {
		if len(result) >= limit {
			break
		}
		if n.Status != domain.SendStatusFailed || !n.CanRetry() {
			continue
		}
		if n.NextRetryAt.After(now) || n.IsExpired(now) {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (f *fakeNotificationRepo) FindDue(_ context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Notification
	for _, n := range f.records {
		if len(result) >= limit {
			break
		}
		if n.Status != domain.SendStatusPending {
			continue
		}
		if n.ScheduledAt.After(now) || n.IsExpired(now) {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (f *fakeNotificationRepo) MarkExpiredBefore(_ context.Context, _ time.Time, _ int) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) MarkTimeoutSendingAsFailed(_ context.Context, _ int) (int64, error) {
	return 0, nil
}

// setNextRetryAt 测试辅助，把记录的重试时间拨回过去
func (f *fakeNotificationRepo) setNextRetryAt(id uint64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.records[id]
	cur.NextRetryAt = at
	f.records[id] = cur
}

// setScheduledAt 测试辅助，调整记录的投递时间
func (f *fakeNotificationRepo) setScheduledAt(id uint64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.records[id]
	cur.ScheduledAt = at
	f.records[id] = cur
}

// fakeChannel 按通知渠道或接收者决定成败
type fakeChannel struct {
	mu        sync.Mutex
	sendFunc  func(n domain.Notification) (domain.SendResponse, error)
	sentCount int
}

func (f *fakeChannel) Send(_ context.Context, n domain.Notification) (domain.SendResponse, error) {
	f.mu.Lock()
	f.sentCount++
	f.mu.Unlock()
	return f.sendFunc(n)
}

func (f *fakeChannel) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentCount
}

func succeedAll(n domain.Notification) (domain.SendResponse, error) {
	return domain.SendResponse{
		NotificationID: n.ID,
		Status:         domain.SendStatusSucceeded,
		ExternalID:     fmt.Sprintf("ext-%d", n.ID),
	}, nil
}

func failAll(_ domain.Notification) (domain.SendResponse, error) {
	return domain.SendResponse{}, fmt.Errorf("%w: 模拟失败", errs.ErrSendNotificationFailed)
}

// fakeQuota 无限配额
type fakeQuota struct{}

func (fakeQuota) Incr(_ context.Context, _, _ string) (int64, error) { return 1, nil }
func (fakeQuota) Count(_ context.Context, _, _ string) (int64, error) {
	return 0, nil
}

// fakePrefRepo 偏好仓储，给解析器注入免打扰配置
type fakePrefRepo struct {
	prefs map[string]domain.UserPreference
}

func (f *fakePrefRepo) Upsert(_ context.Context, pref domain.UserPreference) (domain.UserPreference, error) {
	return pref, nil
}

func (f *fakePrefRepo) GetByUserID(_ context.Context, userID string) (domain.UserPreference, error) {
	pref, ok := f.prefs[userID]
	if !ok {
		return domain.UserPreference{}, errs.ErrPreferenceNotFound
	}
	return pref, nil
}

func (f *fakePrefRepo) List(_ context.Context, _, _ int) ([]domain.UserPreference, error) {
	return nil, nil
}
func (f *fakePrefRepo) Delete(_ context.Context, _ string) error { return nil }

type dispatcherTestEnv struct {
	repo     *fakeNotificationRepo
	channel  *fakeChannel
	prefRepo *fakePrefRepo
	svc      Dispatcher
}

func newTestEnv(t *testing.T, cfg Config, sendFunc func(n domain.Notification) (domain.SendResponse, error)) *dispatcherTestEnv {
	t.Helper()
	repo := newFakeNotificationRepo()
	ch := &fakeChannel{sendFunc: sendFunc}
	prefRepo := &fakePrefRepo{prefs: make(map[string]domain.UserPreference)}
	cfg.BackoffInitial = time.Minute
	cfg.BackoffMax = time.Hour
	svc := NewDispatcher(cfg, repo,
		template.NewChannelTemplateService(nil),
		preference.NewResolver(prefRepo),
		ch, fakeQuota{}, idgen.NewGeneratorWithMachineID(1))
	return &dispatcherTestEnv{repo: repo, channel: ch, prefRepo: prefRepo, svc: svc}
}

func emailRecipient(id string) domain.Recipient {
	return domain.Recipient{
		ID:    id,
		Email: id + "@example.com",
		Phone: "13800000000",
	}
}

func TestSendSyncSuccess(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, succeedAll)

	notifications, err := env.svc.SendSync(t.Context(), domain.SendRequest{
		BizType:    "order_shipped",
		Recipients: []domain.Recipient{emailRecipient("user-1")},
		Channels:   []domain.Channel{domain.ChannelEmail},
		Subject:    "订单已发货",
		Body:       "你的订单已发货",
	})
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	got := notifications[0]
	assert.Equal(t, domain.SendStatusSucceeded, got.Status)
	assert.NotEmpty(t, got.ExternalID)
	assert.False(t, got.SentAt.IsZero())
	assert.Equal(t, 1, env.channel.sends())
}

func TestSendSyncFailureSetsRetryState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, failAll)

	notifications, err := env.svc.SendSync(t.Context(), domain.SendRequest{
		BizType:    "order_shipped",
		Recipients: []domain.Recipient{emailRecipient("user-1")},
		Channels:   []domain.Channel{domain.ChannelEmail},
		Body:       "你的订单已发货",
	})
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	got := notifications[0]
	assert.Equal(t, domain.SendStatusFailed, got.Status)
	assert.Equal(t, int8(1), got.RetryCount)
	assert.False(t, got.NextRetryAt.IsZero())
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestRetryCountNeverExceedsMax(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, failAll)
	ctx := t.Context()

	notifications, err := env.svc.SendSync(ctx, domain.SendRequest{
		BizType:    "order_shipped",
		Recipients: []domain.Recipient{emailRecipient("user-1")},
		Channels:   []domain.Channel{domain.ChannelEmail},
		Body:       "body",
		MaxRetries: 3,
	})
	require.NoError(t, err)
	id := notifications[0].ID

	// 把重试时间拨回过去再触发，直到额度耗尽
	for i := 0; i < 5; i++ {
		env.repo.setNextRetryAt(id, time.Now().Add(-time.Second))
		_, _ = env.svc.RetryFailed(ctx)
	}

	got, err := env.repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SendStatusFailed, got.Status)
	assert.Equal(t, int8(3), got.RetryCount)

	// 额度耗尽后不再可重试
	retryable, err := env.repo.FindRetryable(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, retryable)
}

func TestExpiredNeverEntersSending(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, succeedAll)

	notifications, err := env.svc.SendSync(t.Context(), domain.SendRequest{
		BizType:     "order_shipped",
		Recipients:  []domain.Recipient{emailRecipient("user-1")},
		Channels:    []domain.Channel{domain.ChannelEmail},
		Body:        "body",
		ScheduledAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt:   time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	got, err := env.repo.GetByID(t.Context(), notifications[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SendStatusExpired, got.Status)
	// 渠道从未被调用
	assert.Equal(t, 0, env.channel.sends())
}

func TestScheduledNotificationDispatchedWhenDue(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, succeedAll)
	ctx := t.Context()

	// 定时一小时后发送，同步投递只落库不发出去
	notifications, err := env.svc.SendSync(ctx, domain.SendRequest{
		BizType:     "order_shipped",
		Recipients:  []domain.Recipient{emailRecipient("user-1")},
		Channels:    []domain.Channel{domain.ChannelEmail},
		Body:        "body",
		ScheduledAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	id := notifications[0].ID

	got, err := env.repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SendStatusPending, got.Status)
	assert.Equal(t, 0, env.channel.sends())

	// 时间未到，到期扫描不会捞起它
	count, err := env.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// 到点之后这条记录被捞起并发送成功
	env.repo.setScheduledAt(id, time.Now().Add(-time.Minute))
	count, err = env.svc.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err = env.repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SendStatusSucceeded, got.Status)
	assert.Equal(t, 1, env.channel.sends())
}

func TestQuietHoursDefer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, succeedAll)
	// 全天免打扰，低优先级必然被顺延
	env.prefRepo.prefs["user-1"] = domain.UserPreference{
		UserID:         "user-1",
		ChannelEnabled: map[domain.Channel]bool{domain.ChannelEmail: true},
		QuietHours: domain.QuietHours{
			Enabled: true,
			Start:   "00:00",
			End:     "23:59",
		},
	}

	notifications, err := env.svc.SendSync(t.Context(), domain.SendRequest{
		BizType:    "order_shipped",
		Recipients: []domain.Recipient{emailRecipient("user-1")},
		Channels:   []domain.Channel{domain.ChannelEmail},
		Body:       "body",
	})
	require.NoError(t, err)

	got, err := env.repo.GetByID(t.Context(), notifications[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SendStatusPending, got.Status)
	assert.False(t, got.ScheduledAt.IsZero())
	assert.Equal(t, 0, env.channel.sends())

	// 免打扰结束后，到期扫描把顺延的记录发出去
	delete(env.prefRepo.prefs, "user-1")
	env.repo.setScheduledAt(got.ID, time.Now().Add(-time.Minute))
	count, err := env.svc.DispatchDue(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err = env.repo.GetByID(t.Context(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SendStatusSucceeded, got.Status)
	assert.Equal(t, 1, env.channel.sends())
}

func TestUrgentBypassesQuietHours(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, succeedAll)
	env.prefRepo.prefs["user-1"] = domain.UserPreference{
		UserID:         "user-1",
		ChannelEnabled: map[domain.Channel]bool{domain.ChannelEmail: true},
		QuietHours: domain.QuietHours{
			Enabled: true,
			Start:   "00:00",
			End:     "23:59",
		},
	}

	notifications, err := env.svc.SendSync(t.Context(), domain.SendRequest{
		BizType:    "security_alert",
		Recipients: []domain.Recipient{emailRecipient("user-1")},
		Channels:   []domain.Channel{domain.ChannelEmail},
		Body:       "body",
		Priority:   domain.PriorityUrgent,
	})
	require.NoError(t, err)

	got, err := env.repo.GetByID(t.Context(), notifications[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SendStatusSucceeded, got.Status)
}

func TestFallbackChain(t *testing.T) {
	t.Parallel()

	// PUSH 失败降级到 SMS，SMS 成功后停止
	env := newTestEnv(t, Config{
		FallbackChains: map[domain.Channel][]domain.Channel{
			domain.ChannelPush: {domain.ChannelSMS, domain.ChannelEmail},
		},
	}, func(n domain.Notification) (domain.SendResponse, error) {
		if n.Channel == domain.ChannelPush {
			return domain.SendResponse{}, fmt.Errorf("%w: 推送网关不可用", errs.ErrSendNotificationFailed)
		}
		return succeedAll(n)
	})

	recipient := emailRecipient("user-1")
	recipient.PushToken = "token-1"

	notifications, err := env.svc.SendSync(t.Context(), domain.SendRequest{
		BizType:    "order_shipped",
		Recipients: []domain.Recipient{recipient},
		Channels:   []domain.Channel{domain.ChannelPush},
		Subject:    "订单已发货",
		Body:       "body",
		MaxRetries: 1,
	})
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	// 原始推送记录失败
	original, err := env.repo.GetByID(t.Context(), notifications[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SendStatusFailed, original.Status)

	// 合成了一条短信降级通知并发送成功，邮件渠道没有被触发
	all, err := env.repo.GetByGroupID(t.Context(), "")
	require.NoError(t, err)
	var fallbacks []domain.Notification
	for _, n := range all {
		if n.ID != original.ID {
			fallbacks = append(fallbacks, n)
		}
	}
	require.Len(t, fallbacks, 1)
	assert.Equal(t, domain.ChannelSMS, fallbacks[0].Channel)
	assert.Equal(t, domain.SendStatusSucceeded, fallbacks[0].Status)
	assert.Equal(t, "[Fallback] 订单已发货", fallbacks[0].Subject)
}

func TestFallbackChainContinuesPastFailedHop(t *testing.T) {
	t.Parallel()

	// PUSH 和 SMS 都不可用，降级链要一路走到 EMAIL
	env := newTestEnv(t, Config{
		FallbackChains: map[domain.Channel][]domain.Channel{
			domain.ChannelPush: {domain.ChannelSMS, domain.ChannelEmail},
		},
	}, func(n domain.Notification) (domain.SendResponse, error) {
		if n.Channel == domain.ChannelEmail {
			return succeedAll(n)
		}
		return domain.SendResponse{}, fmt.Errorf("%w: 网关不可用", errs.ErrSendNotificationFailed)
	})

	recipient := emailRecipient("user-1")
	recipient.PushToken = "token-1"

	notifications, err := env.svc.SendSync(t.Context(), domain.SendRequest{
		BizType:    "order_shipped",
		Recipients: []domain.Recipient{recipient},
		Channels:   []domain.Channel{domain.ChannelPush},
		Subject:    "订单已发货",
		Body:       "body",
		MaxRetries: 1,
	})
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	all, err := env.repo.GetByGroupID(t.Context(), "")
	require.NoError(t, err)
	byChannel := make(map[domain.Channel]domain.Notification, len(all))
	for _, n := range all {
		byChannel[n.Channel] = n
	}

	// 短信这一跳失败后链条继续推进，最终邮件送达
	require.Contains(t, byChannel, domain.ChannelSMS)
	assert.Equal(t, domain.SendStatusFailed, byChannel[domain.ChannelSMS].Status)
	require.Contains(t, byChannel, domain.ChannelEmail)
	assert.Equal(t, domain.SendStatusSucceeded, byChannel[domain.ChannelEmail].Status)
	assert.Equal(t, "[Fallback] 订单已发货", byChannel[domain.ChannelEmail].Subject)
}

func TestBulkSendAggregateCounts(t *testing.T) {
	t.Parallel()

	// user-3 固定失败，其余成功
	env := newTestEnv(t, Config{}, func(n domain.Notification) (domain.SendResponse, error) {
		if n.Recipient.ID == "user-3" {
			return domain.SendResponse{}, fmt.Errorf("%w: 模拟失败", errs.ErrSendNotificationFailed)
		}
		return succeedAll(n)
	})

	recipients := make([]domain.Recipient, 0, 10)
	for i := 1; i <= 10; i++ {
		recipients = append(recipients, emailRecipient(fmt.Sprintf("user-%d", i)))
	}

	resp, err := env.svc.BulkSend(t.Context(), domain.SendRequest{
		BizType:    "marketing",
		Recipients: recipients,
		Channels:   []domain.Channel{domain.ChannelEmail},
		Body:       "body",
	})
	require.NoError(t, err)

	assert.Equal(t, 10, resp.Total)
	assert.Equal(t, 9, resp.Successful)
	assert.Equal(t, 1, resp.Failed)
	assert.NotEmpty(t, resp.GroupID)

	// 批次内所有记录共享 GroupID，失败的那条已经进入重试轨道
	all, err := env.repo.GetByGroupID(t.Context(), resp.GroupID)
	require.NoError(t, err)
	assert.Len(t, all, 10)
	for _, n := range all {
		if n.Recipient.ID != "user-3" {
			continue
		}
		assert.Equal(t, domain.SendStatusFailed, n.Status)
		assert.Equal(t, int8(1), n.RetryCount)
		assert.False(t, n.NextRetryAt.IsZero())
	}
}

func TestBulkSendCountsDeferredSeparately(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, succeedAll)
	// user-2 全天免打扰，这条记录会被顺延而不是失败
	env.prefRepo.prefs["user-2"] = domain.UserPreference{
		UserID:         "user-2",
		ChannelEnabled: map[domain.Channel]bool{domain.ChannelEmail: true},
		QuietHours: domain.QuietHours{
			Enabled: true,
			Start:   "00:00",
			End:     "23:59",
		},
	}

	resp, err := env.svc.BulkSend(t.Context(), domain.SendRequest{
		BizType:    "marketing",
		Recipients: []domain.Recipient{emailRecipient("user-1"), emailRecipient("user-2"), emailRecipient("user-3")},
		Channels:   []domain.Channel{domain.ChannelEmail},
		Body:       "body",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Successful)
	assert.Equal(t, 1, resp.Deferred)
	assert.Equal(t, 0, resp.Failed)
}

func TestBulkSendRequiresSingleChannel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, succeedAll)
	_, err := env.svc.BulkSend(t.Context(), domain.SendRequest{
		BizType:    "marketing",
		Recipients: []domain.Recipient{emailRecipient("user-1")},
		Channels:   []domain.Channel{domain.ChannelEmail, domain.ChannelSMS},
		Body:       "body",
	})
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}

func TestMarkDelivered(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, succeedAll)
	ctx := t.Context()

	notifications, err := env.svc.SendSync(ctx, domain.SendRequest{
		BizType:    "order_shipped",
		Recipients: []domain.Recipient{emailRecipient("user-1")},
		Channels:   []domain.Channel{domain.ChannelEmail},
		Body:       "body",
	})
	require.NoError(t, err)
	id := notifications[0].ID

	require.NoError(t, env.svc.MarkDelivered(ctx, id, notifications[0].ExternalID))

	got, err := env.repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SendStatusDelivered, got.Status)
	assert.False(t, got.DeliveredAt.IsZero())

	// 终态不允许再次回执
	assert.Error(t, env.svc.MarkDelivered(ctx, id, ""))
}

func TestSendValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, succeedAll)

	testCases := []struct {
		name string
		req  domain.SendRequest
	}{
		{
			name: "缺少 BizType",
			req: domain.SendRequest{
				Recipients: []domain.Recipient{emailRecipient("user-1")},
				Body:       "body",
			},
		},
		{
			name: "没有接收者",
			req: domain.SendRequest{
				BizType: "order_shipped",
				Body:    "body",
			},
		},
		{
			name: "内容和模板都没有",
			req: domain.SendRequest{
				BizType:    "order_shipped",
				Recipients: []domain.Recipient{emailRecipient("user-1")},
			},
		},
		{
			name: "非法渠道",
			req: domain.SendRequest{
				BizType:    "order_shipped",
				Recipients: []domain.Recipient{emailRecipient("user-1")},
				Channels:   []domain.Channel{"CARRIER_PIGEON"},
				Body:       "body",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := env.svc.SendSync(t.Context(), tc.req)
			assert.ErrorIs(t, err, errs.ErrInvalidParameter)
		})
	}
}
