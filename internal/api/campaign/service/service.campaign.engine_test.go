package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	behaviormodels "invoice_recovery/internal/api/behavior/models"
	"invoice_recovery/internal/api/campaign/models"
	clientmodels "invoice_recovery/internal/api/client/models"
	invoicemodels "invoice_recovery/internal/api/invoice/models"

	"invoice_recovery/internal/common"
	"invoice_recovery/internal/dispatch"
	"invoice_recovery/internal/escalation"
	"invoice_recovery/internal/scheduling"
)

var engineNow = time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC)

// ---- fakes ----

type fakeCampaignStore struct {
	mu        sync.Mutex
	campaigns map[primitive.ObjectID]*models.ReminderCampaign
}

func newFakeCampaignStore(campaigns ...*models.ReminderCampaign) *fakeCampaignStore {
	s := &fakeCampaignStore{campaigns: map[primitive.ObjectID]*models.ReminderCampaign{}}
	for _, c := range campaigns {
		s.campaigns[c.ID] = c
	}
	return s
}

func (s *fakeCampaignStore) get(id primitive.ObjectID) models.ReminderCampaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.campaigns[id]
}

func (s *fakeCampaignStore) FindDue(_ context.Context, nowMillis int64, limit int64) ([]models.ReminderCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.ReminderCampaign
	for _, c := range s.campaigns {
		if c.Status == models.CampaignStatusActive && c.NextScheduledAt != nil && *c.NextScheduledAt <= nowMillis {
			due = append(due, *c)
		}
		if int64(len(due)) >= limit {
			break
		}
	}
	return due, nil
}

func (s *fakeCampaignStore) AcquireLease(_ context.Context, id primitive.ObjectID, token string, nowMillis int64) (models.ReminderCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusActive || c.ProcessingBy != "" {
		return models.ReminderCampaign{}, common.ErrNotFound
	}
	c.ProcessingBy = token
	at := nowMillis
	c.ProcessingAt = &at
	return *c, nil
}

func (s *fakeCampaignStore) ReleaseLease(_ context.Context, id primitive.ObjectID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[id]; ok && c.ProcessingBy == token {
		c.ProcessingBy = ""
		c.ProcessingAt = nil
	}
}

func (s *fakeCampaignStore) UpdateAfterSend(_ context.Context, id primitive.ObjectID, stage escalation.Stage, strategy scheduling.SendStrategy, nextAtMillis, sentAtMillis int64) (models.ReminderCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusActive {
		return models.ReminderCampaign{}, common.ErrNotFound
	}
	c.CurrentStage = string(stage)
	c.Channel = strategy.Channel
	c.ScheduledHour = strategy.SendHour
	c.ScheduledDay = strategy.SendDay
	c.NextScheduledAt = &nextAtMillis
	c.LastReminderSentAt = &sentAtMillis
	c.TotalRemindersSent++
	return *c, nil
}

func (s *fakeCampaignStore) Stop(_ context.Context, id primitive.ObjectID, status, stopReason string) (models.ReminderCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return models.ReminderCampaign{}, common.ErrNotFound
	}
	c.Status = status
	c.StopReason = &stopReason
	c.CurrentStage = string(escalation.StageStopped)
	c.NextScheduledAt = nil
	return *c, nil
}

func (s *fakeCampaignStore) MarkPaymentReceived(_ context.Context, id primitive.ObjectID, receivedAtMillis int64) (models.ReminderCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return models.ReminderCampaign{}, common.ErrNotFound
	}
	reason := models.StopReasonPaymentReceived
	c.Status = models.CampaignStatusCompleted
	c.StopReason = &reason
	c.CurrentStage = string(escalation.StageStopped)
	c.PaymentReceived = true
	c.PaymentReceivedAt = &receivedAtMillis
	c.NextScheduledAt = nil
	return *c, nil
}

type fakeInvoiceReader struct {
	mu       sync.Mutex
	invoices map[primitive.ObjectID]*invoicemodels.Invoice
}

func (r *fakeInvoiceReader) FindOneById(_ context.Context, id primitive.ObjectID) (invoicemodels.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		return *inv, nil
	}
	return invoicemodels.Invoice{}, common.ErrNotFound
}

func (r *fakeInvoiceReader) IncrementReminderCounters(_ context.Context, id primitive.ObjectID, escalationLevel int, sentAtMillis int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		inv.RemindersSent++
		inv.EscalationLevel = escalationLevel
		inv.LastReminderSentAt = &sentAtMillis
	}
	return nil
}

type fakeClientReader struct {
	clients map[primitive.ObjectID]clientmodels.Client
}

func (r *fakeClientReader) FindOneById(_ context.Context, id primitive.ObjectID) (clientmodels.Client, error) {
	if c, ok := r.clients[id]; ok {
		return c, nil
	}
	return clientmodels.Client{}, common.ErrNotFound
}

type fakeProfileProvider struct {
	profile behaviormodels.BehaviorProfile
}

func (p *fakeProfileProvider) EnsureProfile(_ context.Context, _ clientmodels.Client) (behaviormodels.BehaviorProfile, error) {
	return p.profile, nil
}

type fakeDispatcher struct {
	mu           sync.Mutex
	succeed      bool
	dispatches   []dispatch.Input
	receipts     int
	onDispatch   func() // hook chạy trong lúc dispatch (mô phỏng stop giữa chừng)
}

func (d *fakeDispatcher) Dispatch(_ context.Context, in dispatch.Input) (bool, error) {
	d.mu.Lock()
	d.dispatches = append(d.dispatches, in)
	hook := d.onDispatch
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return d.succeed, nil
}

func (d *fakeDispatcher) SendPaymentReceipt(_ context.Context, _ *invoicemodels.Invoice, _ *clientmodels.Client) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receipts++
	return nil
}

func (d *fakeDispatcher) dispatchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dispatches)
}

// ---- test fixture ----

type engineFixture struct {
	engine     *CampaignEngine
	store      *fakeCampaignStore
	invoices   *fakeInvoiceReader
	dispatcher *fakeDispatcher
	campaign   *models.ReminderCampaign
	invoice    *invoicemodels.Invoice
}

func newEngineFixture(t *testing.T, mutate func(c *models.ReminderCampaign, inv *invoicemodels.Invoice)) *engineFixture {
	t.Helper()

	clientID := primitive.NewObjectID()
	orgID := primitive.NewObjectID()
	invoiceID := primitive.NewObjectID()

	due := engineNow.AddDate(0, 0, -7).UnixMilli()
	invoice := &invoicemodels.Invoice{
		ID:                  invoiceID,
		ClientID:            clientID,
		OwnerOrganizationID: orgID,
		InvoiceNumber:       "INV-2024-0042",
		Amount:              1250,
		Currency:            "BRL",
		DueDate:             due,
		Status:              invoicemodels.InvoiceStatusPending,
	}

	scheduledAt := engineNow.Add(-time.Hour).UnixMilli()
	campaign := &models.ReminderCampaign{
		ID:                  primitive.NewObjectID(),
		InvoiceID:           invoiceID,
		ClientID:            clientID,
		OwnerOrganizationID: orgID,
		CurrentStage:        string(escalation.StageGentle),
		Channel:             behaviormodels.ChannelEmail,
		Status:              models.CampaignStatusActive,
		NextScheduledAt:     &scheduledAt,
		ScheduledHour:       10,
		ScheduledDay:        "Tuesday",
	}

	if mutate != nil {
		mutate(campaign, invoice)
	}

	store := newFakeCampaignStore(campaign)
	invoices := &fakeInvoiceReader{invoices: map[primitive.ObjectID]*invoicemodels.Invoice{invoiceID: invoice}}
	clients := &fakeClientReader{clients: map[primitive.ObjectID]clientmodels.Client{
		clientID: {ID: clientID, OwnerOrganizationID: orgID, Name: "Minh Anh", Email: "minhanh@example.com", IsActive: true},
	}}
	profiles := &fakeProfileProvider{profile: behaviormodels.BehaviorProfile{
		ClientID:            clientID,
		OwnerOrganizationID: orgID,
		OptimalSendHour:     10,
		OptimalSendDay:      "Tuesday",
		PreferredChannel:    behaviormodels.ChannelEmail,
		RiskCategory:        behaviormodels.RiskCategoryMedium,
	}}
	dispatcher := &fakeDispatcher{succeed: true}

	engine := NewCampaignEngine(store, invoices, clients, profiles, dispatcher,
		scheduling.FixedClock{T: engineNow}, EngineConfig{
			MaxReminders:           6,
			EscalationIntervalDays: 7,
			MinLeadHours:           4,
			BatchSize:              100,
			Workers:                2,
		})

	return &engineFixture{
		engine:     engine,
		store:      store,
		invoices:   invoices,
		dispatcher: dispatcher,
		campaign:   campaign,
		invoice:    invoice,
	}
}

// ---- tests ----

func TestEngine_PaymentShortCircuit(t *testing.T) {
	fx := newEngineFixture(t, func(_ *models.ReminderCampaign, inv *invoicemodels.Invoice) {
		paidAt := engineNow.AddDate(0, 0, -1).UnixMilli()
		inv.Status = invoicemodels.InvoiceStatusPaid
		inv.PaidAt = &paidAt
	})

	fx.engine.evaluateOne(context.Background(), *fx.campaign)

	got := fx.store.get(fx.campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	assert.True(t, got.PaymentReceived)
	require.NotNil(t, got.StopReason)
	assert.Equal(t, models.StopReasonPaymentReceived, *got.StopReason)
	assert.Nil(t, got.NextScheduledAt)

	// Không gửi reminder nào, chỉ gửi receipt
	assert.Equal(t, 0, fx.dispatcher.dispatchCount())
	assert.Equal(t, 1, fx.dispatcher.receipts)
}

func TestEngine_SuccessfulSendReschedules(t *testing.T) {
	fx := newEngineFixture(t, nil)

	fx.engine.evaluateOne(context.Background(), *fx.campaign)

	got := fx.store.get(fx.campaign.ID)
	assert.Equal(t, 1, got.TotalRemindersSent)
	require.NotNil(t, got.NextScheduledAt)
	assert.Greater(t, *got.NextScheduledAt, engineNow.UnixMilli())
	require.NotNil(t, got.LastReminderSentAt)
	assert.Equal(t, engineNow.UnixMilli(), *got.LastReminderSentAt)

	// Lần gửi đầu tiên (chưa có lastReminderSentAt trước đó): không leo thang
	assert.Equal(t, string(escalation.StageGentle), got.CurrentStage)

	// Counter của invoice tăng vì có channel thành công
	assert.Equal(t, 1, fx.invoices.invoices[fx.invoice.ID].RemindersSent)
}

func TestEngine_StageAdvancesAfterInterval(t *testing.T) {
	fx := newEngineFixture(t, func(c *models.ReminderCampaign, _ *invoicemodels.Invoice) {
		last := engineNow.AddDate(0, 0, -8).UnixMilli()
		c.LastReminderSentAt = &last
		c.TotalRemindersSent = 1
	})

	fx.engine.evaluateOne(context.Background(), *fx.campaign)

	got := fx.store.get(fx.campaign.ID)
	assert.Equal(t, string(escalation.StageStandard), got.CurrentStage)
	assert.Equal(t, 2, got.TotalRemindersSent)
}

func TestEngine_StageHoldsWithinInterval(t *testing.T) {
	fx := newEngineFixture(t, func(c *models.ReminderCampaign, _ *invoicemodels.Invoice) {
		last := engineNow.AddDate(0, 0, -3).UnixMilli()
		c.LastReminderSentAt = &last
		c.TotalRemindersSent = 1
	})

	fx.engine.evaluateOne(context.Background(), *fx.campaign)

	got := fx.store.get(fx.campaign.ID)
	assert.Equal(t, string(escalation.StageGentle), got.CurrentStage)
	// Lịch mới vẫn được tính dù stage không đổi
	require.NotNil(t, got.NextScheduledAt)
	assert.Greater(t, *got.NextScheduledAt, engineNow.UnixMilli())
}

func TestEngine_MonotonicStage(t *testing.T) {
	fx := newEngineFixture(t, nil)

	// Chạy nhiều vòng đánh giá, mỗi vòng đẩy lịch về quá khứ và giả lập đã đủ interval
	prevIdx := escalation.Index(escalation.Stage(fx.campaign.CurrentStage))
	for i := 0; i < 5; i++ {
		fx.store.mu.Lock()
		c := fx.store.campaigns[fx.campaign.ID]
		past := engineNow.Add(-time.Hour).UnixMilli()
		c.NextScheduledAt = &past
		if c.LastReminderSentAt != nil {
			old := *c.LastReminderSentAt - 8*int64(millisPerDay)
			c.LastReminderSentAt = &old
		}
		fx.store.mu.Unlock()

		fx.engine.evaluateOne(context.Background(), *fx.campaign)

		got := fx.store.get(fx.campaign.ID)
		idx := escalation.Index(escalation.Stage(got.CurrentStage))
		if got.CurrentStage != string(escalation.StageStopped) {
			assert.GreaterOrEqual(t, idx, prevIdx, "stage không được lùi")
			prevIdx = idx
		}
	}
}

func TestEngine_SendCapStopsCampaign(t *testing.T) {
	fx := newEngineFixture(t, func(c *models.ReminderCampaign, _ *invoicemodels.Invoice) {
		last := engineNow.AddDate(0, 0, -2).UnixMilli()
		c.LastReminderSentAt = &last
		c.TotalRemindersSent = 5
		c.CurrentStage = string(escalation.StageFinal)
	})

	fx.engine.evaluateOne(context.Background(), *fx.campaign)

	got := fx.store.get(fx.campaign.ID)
	assert.Equal(t, 6, got.TotalRemindersSent)
	assert.NotEqual(t, models.CampaignStatusActive, got.Status)
	assert.Equal(t, models.CampaignStatusFailed, got.Status)
	require.NotNil(t, got.StopReason)
	assert.Equal(t, models.StopReasonMaxAttempts, *got.StopReason)
	assert.Nil(t, got.NextScheduledAt)
}

func TestEngine_DispatchFailureLeavesScheduleUntouched(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.dispatcher.succeed = false

	before := fx.store.get(fx.campaign.ID)
	fx.engine.evaluateOne(context.Background(), *fx.campaign)
	after := fx.store.get(fx.campaign.ID)

	assert.Equal(t, before.TotalRemindersSent, after.TotalRemindersSent)
	assert.Equal(t, before.CurrentStage, after.CurrentStage)
	require.NotNil(t, after.NextScheduledAt)
	assert.Equal(t, *before.NextScheduledAt, *after.NextScheduledAt)
	assert.Equal(t, models.CampaignStatusActive, after.Status)
	assert.Equal(t, 0, fx.invoices.invoices[fx.invoice.ID].RemindersSent)
}

func TestEngine_SkipsWhenLeaseHeld(t *testing.T) {
	fx := newEngineFixture(t, func(c *models.ReminderCampaign, _ *invoicemodels.Invoice) {
		c.ProcessingBy = "worker-khac"
	})

	fx.engine.evaluateOne(context.Background(), *fx.campaign)

	assert.Equal(t, 0, fx.dispatcher.dispatchCount())
	got := fx.store.get(fx.campaign.ID)
	assert.Equal(t, 0, got.TotalRemindersSent)
}

func TestEngine_IdempotentUnderRepeatedTrigger(t *testing.T) {
	fx := newEngineFixture(t, nil)

	// Lần 1: gửi và đẩy lịch về tương lai
	fx.engine.evaluateOne(context.Background(), *fx.campaign)
	assert.Equal(t, 1, fx.dispatcher.dispatchCount())

	// Lần 2 với cùng trigger cũ: lịch đã ở tương lai → không gửi lại
	fx.engine.evaluateOne(context.Background(), *fx.campaign)
	assert.Equal(t, 1, fx.dispatcher.dispatchCount())

	got := fx.store.get(fx.campaign.ID)
	assert.Equal(t, 1, got.TotalRemindersSent)
}

func TestEngine_MidFlightStopSuppressesReschedule(t *testing.T) {
	fx := newEngineFixture(t, nil)

	// Trong lúc dispatch đang chạy, campaign bị dừng thủ công
	fx.dispatcher.onDispatch = func() {
		fx.store.mu.Lock()
		defer fx.store.mu.Unlock()
		c := fx.store.campaigns[fx.campaign.ID]
		reason := models.StopReasonManual
		c.Status = models.CampaignStatusPaused
		c.StopReason = &reason
		c.NextScheduledAt = nil
	}

	fx.engine.evaluateOne(context.Background(), *fx.campaign)

	got := fx.store.get(fx.campaign.ID)
	// Lần gửi đã hoàn tất nhưng không reschedule và không tăng counter
	assert.Equal(t, models.CampaignStatusPaused, got.Status)
	assert.Nil(t, got.NextScheduledAt)
	assert.Equal(t, 0, got.TotalRemindersSent)
}

func TestEngine_EvaluateDueBatch(t *testing.T) {
	fx := newEngineFixture(t, nil)

	processed, err := fx.engine.EvaluateDue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, fx.dispatcher.dispatchCount())
}

func TestEngine_MissingInvoiceSkipsCampaign(t *testing.T) {
	fx := newEngineFixture(t, nil)
	fx.invoices.mu.Lock()
	delete(fx.invoices.invoices, fx.invoice.ID)
	fx.invoices.mu.Unlock()

	fx.engine.evaluateOne(context.Background(), *fx.campaign)

	// Campaign giữ nguyên, không crash, không gửi
	assert.Equal(t, 0, fx.dispatcher.dispatchCount())
	got := fx.store.get(fx.campaign.ID)
	assert.Equal(t, models.CampaignStatusActive, got.Status)
}
