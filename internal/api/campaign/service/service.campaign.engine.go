package services

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	behaviormodels "invoice_recovery/internal/api/behavior/models"
	"invoice_recovery/internal/api/campaign/models"
	clientmodels "invoice_recovery/internal/api/client/models"
	invoicemodels "invoice_recovery/internal/api/invoice/models"

	"invoice_recovery/internal/common"
	"invoice_recovery/internal/dispatch"
	"invoice_recovery/internal/escalation"
	"invoice_recovery/internal/logger"
	"invoice_recovery/internal/scheduling"
)

// campaignStore là phần contract của CampaignService mà engine cần
type campaignStore interface {
	FindDue(ctx context.Context, nowMillis int64, limit int64) ([]models.ReminderCampaign, error)
	AcquireLease(ctx context.Context, campaignID primitive.ObjectID, token string, nowMillis int64) (models.ReminderCampaign, error)
	ReleaseLease(ctx context.Context, campaignID primitive.ObjectID, token string)
	UpdateAfterSend(ctx context.Context, campaignID primitive.ObjectID, stage escalation.Stage, strategy scheduling.SendStrategy, nextAtMillis, sentAtMillis int64) (models.ReminderCampaign, error)
	Stop(ctx context.Context, campaignID primitive.ObjectID, status, stopReason string) (models.ReminderCampaign, error)
	MarkPaymentReceived(ctx context.Context, campaignID primitive.ObjectID, receivedAtMillis int64) (models.ReminderCampaign, error)
}

// invoiceReader đọc invoice và yêu cầu tăng reminder counters
type invoiceReader interface {
	FindOneById(ctx context.Context, id primitive.ObjectID) (invoicemodels.Invoice, error)
	IncrementReminderCounters(ctx context.Context, invoiceID primitive.ObjectID, escalationLevel int, sentAtMillis int64) error
}

// clientReader đọc dữ liệu client
type clientReader interface {
	FindOneById(ctx context.Context, id primitive.ObjectID) (clientmodels.Client, error)
}

// profileProvider trả về behavior profile, tính mới nếu chưa có
type profileProvider interface {
	EnsureProfile(ctx context.Context, client clientmodels.Client) (behaviormodels.BehaviorProfile, error)
}

// reminderDispatcher là contract của Dispatcher mà engine cần
type reminderDispatcher interface {
	Dispatch(ctx context.Context, in dispatch.Input) (bool, error)
	SendPaymentReceipt(ctx context.Context, invoice *invoicemodels.Invoice, client *clientmodels.Client) error
}

// EngineConfig là tham số vận hành của engine
type EngineConfig struct {
	MaxReminders           int // số reminder tối đa trước khi dừng campaign
	EscalationIntervalDays int // số ngày tối thiểu giữa 2 lần leo thang stage
	MinLeadHours           int // buffer tối thiểu trước lần gửi kế tiếp
	BatchSize              int // số campaign tối đa mỗi lần quét
	Workers                int // số goroutine xử lý đồng thời
}

// CampaignEngine đánh giá các campaign đến hạn: kiểm tra thanh toán, dispatch reminder,
// leo thang stage và tính lịch gửi kế tiếp. Mỗi campaign là một đơn vị công việc độc lập;
// lỗi của một campaign không chặn các campaign khác trong cùng batch.
type CampaignEngine struct {
	campaigns  campaignStore
	invoices   invoiceReader
	clients    clientReader
	profiles   profileProvider
	dispatcher reminderDispatcher
	clock      scheduling.Clock
	cfg        EngineConfig
	log        *logrus.Logger
}

// NewCampaignEngine tạo mới CampaignEngine
func NewCampaignEngine(campaigns campaignStore, invoices invoiceReader, clients clientReader, profiles profileProvider, dispatcher reminderDispatcher, clock scheduling.Clock, cfg EngineConfig) *CampaignEngine {
	if clock == nil {
		clock = scheduling.NewRealClock()
	}
	if cfg.MaxReminders <= 0 {
		cfg.MaxReminders = 6
	}
	if cfg.EscalationIntervalDays <= 0 {
		cfg.EscalationIntervalDays = 7
	}
	if cfg.MinLeadHours <= 0 {
		cfg.MinLeadHours = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &CampaignEngine{
		campaigns:  campaigns,
		invoices:   invoices,
		clients:    clients,
		profiles:   profiles,
		dispatcher: dispatcher,
		clock:      clock,
		cfg:        cfg,
		log:        logger.GetAppLogger(),
	}
}

// EvaluateDue quét các campaign đến hạn và xử lý bằng worker pool giới hạn.
// Trả về số campaign đã được đánh giá trong batch này.
func (e *CampaignEngine) EvaluateDue(ctx context.Context) (int, error) {
	now := e.clock.Now()
	due, err := e.campaigns.FindDue(ctx, now.UnixMilli(), int64(e.cfg.BatchSize))
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	jobs := make(chan models.ReminderCampaign)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for campaign := range jobs {
				e.evaluateSafe(ctx, campaign)
			}
		}()
	}

	for _, campaign := range due {
		select {
		case jobs <- campaign:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return len(due), ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	e.log.WithField("count", len(due)).Info("🔁 [ENGINE] Đã đánh giá xong batch campaigns đến hạn")
	return len(due), nil
}

// evaluateSafe bọc evaluateOne với recover: panic của một campaign không kéo sập batch
func (e *CampaignEngine) evaluateSafe(ctx context.Context, campaign models.ReminderCampaign) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{
				"campaignId": campaign.ID.Hex(),
				"panic":      r,
				"stack":      string(debug.Stack()),
			}).Error("❌ [ENGINE] Panic khi đánh giá campaign")
		}
	}()
	e.evaluateOne(ctx, campaign)
}

// evaluateOne xử lý một campaign đến hạn:
//  1. Giành lease độc quyền (CAS); thua thì bỏ qua — worker khác đang xử lý
//  2. Invoice đã thanh toán → kết thúc campaign, gửi receipt, KHÔNG gửi reminder
//  3. Dispatch reminder theo stage hiện tại
//  4. Thành công → tăng counters, kiểm tra send cap, leo thang stage nếu đủ điều kiện,
//     luôn tính strategy mới + nextScheduledAt mới
//  5. Thất bại → giữ nguyên campaign, record failed đã nằm trong audit trail;
//     lần quét sau sẽ thử lại theo nextScheduledAt cũ
func (e *CampaignEngine) evaluateOne(ctx context.Context, campaign models.ReminderCampaign) {
	now := e.clock.Now()
	token := uuid.NewString()

	leased, err := e.campaigns.AcquireLease(ctx, campaign.ID, token, now.UnixMilli())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Worker khác đang giữ lease hoặc campaign đã rời trạng thái active
			return
		}
		e.log.WithError(err).WithField("campaignId", campaign.ID.Hex()).
			Error("❌ [ENGINE] Không giành được lease")
		return
	}
	defer e.campaigns.ReleaseLease(ctx, campaign.ID, token)

	// Idempotence với at-least-once trigger: evaluation trước đã đẩy lịch về tương lai
	// thì lần đánh giá lặp này không được gửi nữa
	if leased.Status != models.CampaignStatusActive || leased.NextScheduledAt == nil || *leased.NextScheduledAt > now.UnixMilli() {
		e.log.WithField("campaignId", campaign.ID.Hex()).
			Warn("⚠️ [ENGINE] Campaign được chọn nhưng không còn đến hạn, bỏ qua")
		return
	}

	stage := escalation.Stage(leased.CurrentStage)
	if !escalation.IsValid(stage) {
		e.log.WithFields(logrus.Fields{
			"campaignId": campaign.ID.Hex(),
			"stage":      leased.CurrentStage,
		}).Warn("⚠️ [ENGINE] Campaign ở stage không gửi được, bỏ qua")
		return
	}

	invoice, err := e.invoices.FindOneById(ctx, leased.InvoiceID)
	if err != nil {
		e.log.WithError(err).WithField("campaignId", campaign.ID.Hex()).
			Warn("⚠️ [ENGINE] Không tìm thấy invoice của campaign, bỏ qua")
		return
	}

	client, err := e.clients.FindOneById(ctx, leased.ClientID)
	if err != nil {
		e.log.WithError(err).WithField("campaignId", campaign.ID.Hex()).
			Warn("⚠️ [ENGINE] Không tìm thấy client của campaign, bỏ qua")
		return
	}

	// Payment short-circuit: invoice đã thanh toán trước khi lịch gửi đến hạn
	if invoice.IsPaid() {
		if _, err := e.campaigns.MarkPaymentReceived(ctx, campaign.ID, now.UnixMilli()); err != nil {
			e.log.WithError(err).WithField("campaignId", campaign.ID.Hex()).
				Error("❌ [ENGINE] Không kết thúc được campaign đã thanh toán")
			return
		}
		if err := e.dispatcher.SendPaymentReceipt(ctx, &invoice, &client); err != nil {
			e.log.WithError(err).WithField("invoiceId", invoice.ID.Hex()).
				Warn("⚠️ [ENGINE] Gửi payment receipt thất bại")
		}
		e.log.WithField("campaignId", campaign.ID.Hex()).
			Info("💰 [ENGINE] Invoice đã thanh toán, campaign hoàn thành")
		return
	}

	profile, err := e.profiles.EnsureProfile(ctx, client)
	if err != nil {
		e.log.WithError(err).WithField("campaignId", campaign.ID.Hex()).
			Warn("⚠️ [ENGINE] Không có behavior profile, bỏ qua campaign")
		return
	}

	strategy := scheduling.Build(&profile, stage)
	success, err := e.dispatcher.Dispatch(ctx, dispatch.Input{
		Campaign: &leased,
		Invoice:  &invoice,
		Client:   &client,
		Strategy: strategy,
		Stage:    stage,
	})
	if err != nil {
		e.log.WithError(err).WithField("campaignId", campaign.ID.Hex()).
			Error("❌ [ENGINE] Dispatch lỗi, campaign giữ nguyên lịch cũ")
		return
	}
	if !success {
		// Mọi channel đều fail: record failed đã nằm trong audit trail,
		// campaign giữ nguyên để lần quét sau thử lại
		e.log.WithField("campaignId", campaign.ID.Hex()).
			Warn("⚠️ [ENGINE] Không channel nào gửi thành công, sẽ retry ở lần quét sau")
		return
	}

	e.afterSuccessfulSend(ctx, leased, invoice, profile, stage, now.UnixMilli())
}

// afterSuccessfulSend cập nhật bookkeeping sau khi ít nhất một channel gửi thành công
func (e *CampaignEngine) afterSuccessfulSend(ctx context.Context, campaign models.ReminderCampaign, invoice invoicemodels.Invoice, profile behaviormodels.BehaviorProfile, stage escalation.Stage, sentAtMillis int64) {
	// Leo thang stage: chỉ khi còn stage sau và đã đủ EscalationIntervalDays
	// kể từ lần gửi trước đó (tính trên lastReminderSentAt TRƯỚC lần gửi này)
	nextStage := stage
	if campaign.LastReminderSentAt != nil {
		intervalMillis := int64(e.cfg.EscalationIntervalDays) * millisPerDay
		if sentAtMillis-*campaign.LastReminderSentAt >= intervalMillis {
			if advanced, ok := escalation.Next(stage); ok {
				nextStage = advanced
			}
		}
	}

	// Counter của invoice chỉ tăng khi có ít nhất một channel thành công
	if err := e.invoices.IncrementReminderCounters(ctx, invoice.ID, escalation.Index(nextStage), sentAtMillis); err != nil {
		e.log.WithError(err).WithField("invoiceId", invoice.ID.Hex()).
			Error("❌ [ENGINE] Không tăng được reminder counter của invoice")
	}

	newTotal := campaign.TotalRemindersSent + 1

	// Send cap: đủ số reminder tối đa thì dừng hẳn, bất kể đang ở stage nào
	if newTotal >= e.cfg.MaxReminders {
		// Ghi nhận lần gửi cuối trước khi dừng để counter khớp audit trail
		if _, err := e.campaigns.UpdateAfterSend(ctx, campaign.ID, nextStage, scheduling.Build(&profile, nextStage), sentAtMillis, sentAtMillis); err != nil && !errors.Is(err, common.ErrNotFound) {
			e.log.WithError(err).WithField("campaignId", campaign.ID.Hex()).
				Error("❌ [ENGINE] Không cập nhật được campaign trước khi dừng")
		}
		if _, err := e.campaigns.Stop(ctx, campaign.ID, models.CampaignStatusFailed, models.StopReasonMaxAttempts); err != nil && !errors.Is(err, common.ErrNotFound) {
			e.log.WithError(err).WithField("campaignId", campaign.ID.Hex()).
				Error("❌ [ENGINE] Không dừng được campaign đạt send cap")
			return
		}
		e.log.WithFields(logrus.Fields{
			"campaignId": campaign.ID.Hex(),
			"total":      newTotal,
		}).Info("🛑 [ENGINE] Campaign đạt số reminder tối đa, dừng")
		return
	}

	// Mỗi lần gửi thành công luôn tính strategy mới và lịch mới,
	// bất kể stage có leo thang hay không
	nextStrategy := scheduling.Build(&profile, nextStage)
	minLead := time.Duration(e.cfg.MinLeadHours) * time.Hour
	nextAt := scheduling.NextSendTime(e.clock.Now(), nextStrategy.SendDay, nextStrategy.SendHour, minLead)

	if _, err := e.campaigns.UpdateAfterSend(ctx, campaign.ID, nextStage, nextStrategy, nextAt.UnixMilli(), sentAtMillis); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Campaign bị dừng trong lúc đang gửi: lần gửi đã hoàn tất nhưng không reschedule
			e.log.WithField("campaignId", campaign.ID.Hex()).
				Info("🛑 [ENGINE] Campaign đã bị dừng giữa chừng, không reschedule")
			return
		}
		e.log.WithError(err).WithField("campaignId", campaign.ID.Hex()).
			Error("❌ [ENGINE] Không cập nhật được campaign sau khi gửi")
		return
	}

	e.log.WithFields(logrus.Fields{
		"campaignId":      campaign.ID.Hex(),
		"stage":           nextStage,
		"nextScheduledAt": nextAt.Format(time.RFC3339),
		"total":           newTotal,
	}).Info("✅ [ENGINE] Đã gửi reminder và lên lịch lần kế tiếp")
}

const millisPerDay = 24 * 60 * 60 * 1000
