package services

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	behaviormodels "invoice_recovery/internal/api/behavior/models"
	clientmodels "invoice_recovery/internal/api/client/models"
	invoicemodels "invoice_recovery/internal/api/invoice/models"

	clientsvc "invoice_recovery/internal/api/client/service"
	invoicesvc "invoice_recovery/internal/api/invoice/service"
	"invoice_recovery/internal/logger"
	"invoice_recovery/internal/scheduling"
)

const (
	defaultSendHour = 10
	defaultSendDay  = "Tuesday"

	minSendHour = 9
	maxSendHour = 17

	// Ngưỡng số message WhatsApp incoming để coi client là quen dùng WhatsApp
	whatsAppPreferenceThreshold = 5

	// Nhóm có discount phải thanh toán nhanh hơn, turnaround <= 70% nhóm không discount
	discountTurnaroundRatio = 0.70

	millisPerDay = 24 * 60 * 60 * 1000
)

// BehaviorAnalyzer tính lại BehaviorProfile từ snapshot invoice history.
// Mỗi lần phân tích recompute toàn bộ profile; idempotent với input không đổi.
type BehaviorAnalyzer struct {
	clients  *clientsvc.ClientService
	invoices *invoicesvc.InvoiceService
	profiles *BehaviorProfileService
	clock    scheduling.Clock
	log      *logrus.Logger
}

// NewBehaviorAnalyzer tạo mới BehaviorAnalyzer
func NewBehaviorAnalyzer(clients *clientsvc.ClientService, invoices *invoicesvc.InvoiceService, profiles *BehaviorProfileService, clock scheduling.Clock) *BehaviorAnalyzer {
	if clock == nil {
		clock = scheduling.NewRealClock()
	}
	return &BehaviorAnalyzer{
		clients:  clients,
		invoices: invoices,
		profiles: profiles,
		clock:    clock,
		log:      logger.GetAppLogger(),
	}
}

// AnalyzeClient load invoice history của client, tính lại profile và ghi đè bản cũ.
func (a *BehaviorAnalyzer) AnalyzeClient(ctx context.Context, client clientmodels.Client) (behaviormodels.BehaviorProfile, error) {
	invoices, err := a.invoices.FindByClient(ctx, client.ID, client.OwnerOrganizationID)
	if err != nil {
		return behaviormodels.BehaviorProfile{}, err
	}

	now := a.clock.Now()
	profile := ComputeProfile(client, invoices, now)

	saved, err := a.profiles.ReplaceForClient(ctx, profile)
	if err != nil {
		return behaviormodels.BehaviorProfile{}, err
	}

	a.log.WithFields(logrus.Fields{
		"clientId":     client.ID.Hex(),
		"riskCategory": saved.RiskCategory,
		"riskScore":    saved.ChurnRiskScore,
		"channel":      saved.PreferredChannel,
	}).Info("🧠 [BEHAVIOR] Đã phân tích lại profile hành vi của client")

	return saved, nil
}

// EnsureProfile trả về profile hiện có, hoặc phân tích lần đầu nếu chưa có.
// Đây là fallback "compute if absent" tường minh cho Scheduling Strategy.
func (a *BehaviorAnalyzer) EnsureProfile(ctx context.Context, client clientmodels.Client) (behaviormodels.BehaviorProfile, error) {
	profile, err := a.profiles.FindByClient(ctx, client.ID, client.OwnerOrganizationID)
	if err == nil {
		return profile, nil
	}
	return a.AnalyzeClient(ctx, client)
}

// ComputeProfile là hàm thuần tính BehaviorProfile từ client và invoice history.
// Không side effect; cùng input luôn cho cùng output (idempotent).
func ComputeProfile(client clientmodels.Client, invoices []invoicemodels.Invoice, now time.Time) behaviormodels.BehaviorProfile {
	profile := behaviormodels.BehaviorProfile{
		ClientID:            client.ID,
		OwnerOrganizationID: client.OwnerOrganizationID,
		TotalInvoices:       len(invoices),
		OptimalSendHour:     defaultSendHour,
		OptimalSendDay:      defaultSendDay,
		PreferredChannel:    behaviormodels.ChannelEmail,
		LastAnalyzedAt:      now.UnixMilli(),
	}

	// Chỉ các invoice đã thanh toán có đủ dueDate và paidAt mới dùng được cho thống kê tốc độ
	var paid []invoicemodels.Invoice
	for _, inv := range invoices {
		if inv.IsPaid() && inv.DueDate > 0 && inv.PaidAt != nil {
			paid = append(paid, inv)
		}
	}

	// Thống kê tốc độ thanh toán: bỏ qua khi không có sample, không bịa số liệu từ 0 mẫu
	if len(paid) > 0 {
		var sumDays float64
		onTime := 0
		for _, inv := range paid {
			sumDays += float64(*inv.PaidAt-inv.DueDate) / millisPerDay
			if *inv.PaidAt <= inv.DueDate {
				onTime++
			}
		}
		meanDays := sumDays / float64(len(paid))
		if meanDays < 0 {
			meanDays = 0
		}
		profile.AvgPaymentDays = int(math.Round(meanDays))
		profile.PaidOnTimeCount = onTime
		profile.OnTimePaymentRate = round2(100 * float64(onTime) / float64(len(paid)))
	}
	for _, inv := range invoices {
		if inv.IsPaid() && inv.PaidAt != nil && inv.DueDate > 0 && *inv.PaidAt > inv.DueDate {
			profile.LatePaymentCount++
		}
	}

	// Cửa sổ liên lạc tối ưu: liên hệ ~3 giờ trước giờ khách thường thanh toán,
	// giới hạn trong khung giờ làm việc [9, 17]
	if len(paid) > 0 {
		modeHour := modePaymentHour(paid)
		profile.OptimalSendHour = clampInt(modeHour-3, minSendHour, maxSendHour)
		profile.OptimalSendDay = modePaymentDay(paid)
	}

	// Preferred channel: khách quen dùng WhatsApp khi đã enable và chủ động nhắn > 5 lần
	if client.WhatsAppEnabled && client.IncomingWhatsAppCount > whatsAppPreferenceThreshold {
		profile.PreferredChannel = behaviormodels.ChannelWhatsApp
	}

	profile.ChurnRiskScore = computeRiskScore(profile, invoices, paid, now)
	profile.RiskCategory = behaviormodels.RiskCategoryFromScore(profile.ChurnRiskScore)

	responds, rate := computeDiscountResponsiveness(invoices)
	profile.RespondsToDiscounts = responds
	if responds {
		profile.EffectiveDiscountRate = &rate
	}

	return profile
}

// computeRiskScore tính churn risk là trung bình không trọng số của các factor [0,1]
// tính được. Số factor có thể là 1-4 tùy preconditions; mẫu số thay đổi theo là
// hành vi được giữ nguyên có chủ đích.
func computeRiskScore(profile behaviormodels.BehaviorProfile, invoices, paid []invoicemodels.Invoice, now time.Time) float64 {
	var factors []float64

	// Factor 1: tỷ lệ thanh toán trễ (chỉ khi có invoice đã thanh toán)
	if len(paid) > 0 {
		factors = append(factors, (100-profile.OnTimePaymentRate)/100)
	}

	// Factor 2 + 3 cần có ít nhất một invoice
	if len(invoices) > 0 {
		factors = append(factors, math.Min(float64(profile.LatePaymentCount)/float64(len(invoices)), 1))

		overdue := 0
		nowMillis := now.UnixMilli()
		for _, inv := range invoices {
			if inv.IsOverdue(nowMillis) {
				overdue++
			}
		}
		factors = append(factors, math.Min(float64(overdue)/3, 1))
	}

	// Factor 4: thời gian từ lần thanh toán gần nhất; không có lịch sử thanh toán
	// thì đóng góp cố định 0.5 (không có dữ liệu = rủi ro bất định trung bình-cao)
	if len(paid) > 0 {
		var lastPaid int64
		for _, inv := range paid {
			if *inv.PaidAt > lastPaid {
				lastPaid = *inv.PaidAt
			}
		}
		daysSince := float64(now.UnixMilli()-lastPaid) / millisPerDay
		if daysSince < 0 {
			daysSince = 0
		}
		factors = append(factors, math.Min(daysSince/90, 1))
	} else {
		factors = append(factors, 0.5)
	}

	var sum float64
	for _, f := range factors {
		sum += f
	}
	return round2(sum / float64(len(factors)))
}

// computeDiscountResponsiveness so sánh turnaround (paidAt - createdAt) giữa nhóm
// thanh toán có discount và nhóm không có. Cần >= 2 mẫu có discount và >= 1 mẫu không.
func computeDiscountResponsiveness(invoices []invoicemodels.Invoice) (bool, float64) {
	var discountedTurnarounds, plainTurnarounds []float64
	var discountSum float64

	for _, inv := range invoices {
		if !inv.IsPaid() || inv.PaidAt == nil || inv.CreatedAt == 0 {
			continue
		}
		turnaround := float64(*inv.PaidAt - inv.CreatedAt)
		if turnaround < 0 {
			continue
		}
		if inv.EarlyPaymentDiscountPercent > 0 {
			discountedTurnarounds = append(discountedTurnarounds, turnaround)
			discountSum += inv.EarlyPaymentDiscountPercent
		} else {
			plainTurnarounds = append(plainTurnarounds, turnaround)
		}
	}

	if len(discountedTurnarounds) < 2 || len(plainTurnarounds) < 1 {
		return false, 0
	}

	discountedAvg := mean(discountedTurnarounds)
	plainAvg := mean(plainTurnarounds)
	if plainAvg <= 0 {
		return false, 0
	}

	if discountedAvg <= discountTurnaroundRatio*plainAvg {
		return true, round2(discountSum / float64(len(discountedTurnarounds)))
	}
	return false, 0
}

// modePaymentHour tìm giờ trong ngày có tần suất thanh toán cao nhất.
// Tie-break theo giờ nhỏ hơn để kết quả deterministic.
func modePaymentHour(paid []invoicemodels.Invoice) int {
	var counts [24]int
	for _, inv := range paid {
		counts[time.UnixMilli(*inv.PaidAt).UTC().Hour()]++
	}
	best := 0
	for h := 1; h < 24; h++ {
		if counts[h] > counts[best] {
			best = h
		}
	}
	return best
}

// modePaymentDay tìm thứ trong tuần có tần suất thanh toán cao nhất.
// Tie-break theo thứ tự Sunday..Saturday để kết quả deterministic.
func modePaymentDay(paid []invoicemodels.Invoice) string {
	var counts [7]int
	for _, inv := range paid {
		counts[int(time.UnixMilli(*inv.PaidAt).UTC().Weekday())]++
	}
	best := 0
	for d := 1; d < 7; d++ {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return time.Weekday(best).String()
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
