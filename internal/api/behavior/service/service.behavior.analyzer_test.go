package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	behaviormodels "invoice_recovery/internal/api/behavior/models"
	clientmodels "invoice_recovery/internal/api/client/models"
	invoicemodels "invoice_recovery/internal/api/invoice/models"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestClient() clientmodels.Client {
	return clientmodels.Client{
		ID:                  primitive.NewObjectID(),
		OwnerOrganizationID: primitive.NewObjectID(),
		Name:                "Công ty TNHH Minh Anh",
		Email:               "minhanh@example.com",
		IsActive:            true,
	}
}

func paidInvoice(client clientmodels.Client, createdAt, dueDate, paidAt time.Time, discount float64) invoicemodels.Invoice {
	paid := paidAt.UnixMilli()
	return invoicemodels.Invoice{
		ID:                          primitive.NewObjectID(),
		ClientID:                    client.ID,
		OwnerOrganizationID:         client.OwnerOrganizationID,
		Status:                      invoicemodels.InvoiceStatusPaid,
		DueDate:                     dueDate.UnixMilli(),
		PaidAt:                      &paid,
		CreatedAt:                   createdAt.UnixMilli(),
		EarlyPaymentDiscountPercent: discount,
	}
}

func pendingInvoice(client clientmodels.Client, dueDate time.Time) invoicemodels.Invoice {
	return invoicemodels.Invoice{
		ID:                  primitive.NewObjectID(),
		ClientID:            client.ID,
		OwnerOrganizationID: client.OwnerOrganizationID,
		Status:              invoicemodels.InvoiceStatusPending,
		DueDate:             dueDate.UnixMilli(),
		CreatedAt:           dueDate.AddDate(0, 0, -14).UnixMilli(),
	}
}

func TestComputeProfile_EmptyHistory(t *testing.T) {
	client := newTestClient()

	profile := ComputeProfile(client, nil, testNow)

	// Không có invoice: chỉ factor "không có lịch sử thanh toán" (0.5) tính được
	assert.Equal(t, 0.5, profile.ChurnRiskScore)
	assert.Equal(t, behaviormodels.RiskCategoryMedium, profile.RiskCategory)

	// Các trường khác giữ default, không bịa số liệu từ 0 mẫu
	assert.Equal(t, 0, profile.AvgPaymentDays)
	assert.Equal(t, 0.0, profile.OnTimePaymentRate)
	assert.Equal(t, 10, profile.OptimalSendHour)
	assert.Equal(t, "Tuesday", profile.OptimalSendDay)
	assert.Equal(t, behaviormodels.ChannelEmail, profile.PreferredChannel)
	assert.False(t, profile.RespondsToDiscounts)
	assert.Nil(t, profile.EffectiveDiscountRate)
}

func TestComputeProfile_Idempotent(t *testing.T) {
	client := newTestClient()
	client.WhatsAppEnabled = true
	client.IncomingWhatsAppCount = 12

	due := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	invoices := []invoicemodels.Invoice{
		paidInvoice(client, due.AddDate(0, 0, -20), due, due.AddDate(0, 0, 5), 0),
		paidInvoice(client, due.AddDate(0, 0, -20), due, due.AddDate(0, 0, -2), 0),
		pendingInvoice(client, testNow.AddDate(0, 0, -10)),
	}

	first := ComputeProfile(client, invoices, testNow)
	second := ComputeProfile(client, invoices, testNow)

	assert.Equal(t, first, second)
}

func TestComputeProfile_AvgPaymentDaysClampedToZero(t *testing.T) {
	client := newTestClient()
	due := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	// Khách luôn thanh toán sớm: mean âm phải clamp về 0
	invoices := []invoicemodels.Invoice{
		paidInvoice(client, due.AddDate(0, 0, -30), due, due.AddDate(0, 0, -5), 0),
		paidInvoice(client, due.AddDate(0, 0, -30), due, due.AddDate(0, 0, -3), 0),
	}

	profile := ComputeProfile(client, invoices, testNow)

	assert.Equal(t, 0, profile.AvgPaymentDays)
	assert.Equal(t, 100.0, profile.OnTimePaymentRate)
	assert.Equal(t, 2, profile.PaidOnTimeCount)
	assert.Equal(t, 0, profile.LatePaymentCount)
}

func TestComputeProfile_OnTimeRateTwoDecimals(t *testing.T) {
	client := newTestClient()
	due := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	// 1 đúng hạn / 3 đã thanh toán = 33.33%
	invoices := []invoicemodels.Invoice{
		paidInvoice(client, due.AddDate(0, 0, -30), due, due.AddDate(0, 0, -1), 0),
		paidInvoice(client, due.AddDate(0, 0, -30), due, due.AddDate(0, 0, 4), 0),
		paidInvoice(client, due.AddDate(0, 0, -30), due, due.AddDate(0, 0, 8), 0),
	}

	profile := ComputeProfile(client, invoices, testNow)

	assert.Equal(t, 33.33, profile.OnTimePaymentRate)
	assert.Equal(t, 2, profile.LatePaymentCount)
	// mean(-1, 4, 8) = 3.67 ngày → round = 4
	assert.Equal(t, 4, profile.AvgPaymentDays)
}

func TestComputeProfile_OptimalSendWindow(t *testing.T) {
	client := newTestClient()
	due := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	// Khách thường thanh toán 15h thứ Tư → liên hệ 3 tiếng trước = 12h thứ Tư
	paidAt1 := time.Date(2024, 2, 7, 15, 30, 0, 0, time.UTC)  // Wednesday
	paidAt2 := time.Date(2024, 2, 14, 15, 10, 0, 0, time.UTC) // Wednesday
	invoices := []invoicemodels.Invoice{
		paidInvoice(client, due, due.AddDate(0, 0, 10), paidAt1, 0),
		paidInvoice(client, due, due.AddDate(0, 0, 17), paidAt2, 0),
	}

	profile := ComputeProfile(client, invoices, testNow)

	assert.Equal(t, 12, profile.OptimalSendHour)
	assert.Equal(t, "Wednesday", profile.OptimalSendDay)
}

func TestComputeProfile_OptimalSendHourClampedToBusinessHours(t *testing.T) {
	client := newTestClient()
	due := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	// Thanh toán lúc 7h sáng → 7-3=4 nằm ngoài khung giờ làm việc → clamp lên 9
	paidAt := time.Date(2024, 2, 7, 7, 0, 0, 0, time.UTC)
	invoices := []invoicemodels.Invoice{
		paidInvoice(client, due, due.AddDate(0, 0, 10), paidAt, 0),
	}

	profile := ComputeProfile(client, invoices, testNow)
	assert.Equal(t, 9, profile.OptimalSendHour)

	// Thanh toán lúc 23h → 23-3=20 vượt khung → clamp xuống 17
	paidAtLate := time.Date(2024, 2, 7, 23, 0, 0, 0, time.UTC)
	invoices = []invoicemodels.Invoice{
		paidInvoice(client, due, due.AddDate(0, 0, 10), paidAtLate, 0),
	}

	profile = ComputeProfile(client, invoices, testNow)
	assert.Equal(t, 17, profile.OptimalSendHour)
}

func TestComputeProfile_PreferredChannel(t *testing.T) {
	client := newTestClient()

	// Chưa enable WhatsApp → email
	profile := ComputeProfile(client, nil, testNow)
	assert.Equal(t, behaviormodels.ChannelEmail, profile.PreferredChannel)

	// Enable nhưng mới nhắn 5 lần (chưa vượt ngưỡng) → vẫn email
	client.WhatsAppEnabled = true
	client.IncomingWhatsAppCount = 5
	profile = ComputeProfile(client, nil, testNow)
	assert.Equal(t, behaviormodels.ChannelEmail, profile.PreferredChannel)

	// Vượt ngưỡng → whatsapp
	client.IncomingWhatsAppCount = 6
	profile = ComputeProfile(client, nil, testNow)
	assert.Equal(t, behaviormodels.ChannelWhatsApp, profile.PreferredChannel)
}

func TestComputeProfile_RiskScoreOverdueFactor(t *testing.T) {
	client := newTestClient()

	// Chỉ có invoice pending quá hạn, chưa từng thanh toán:
	// factor 2 = 0/3, factor 3 = min(3/3, 1) = 1, factor 4 = 0.5 (không có lịch sử)
	// score = (0 + 1 + 0.5) / 3 = 0.5
	invoices := []invoicemodels.Invoice{
		pendingInvoice(client, testNow.AddDate(0, 0, -10)),
		pendingInvoice(client, testNow.AddDate(0, 0, -20)),
		pendingInvoice(client, testNow.AddDate(0, 0, -30)),
	}

	profile := ComputeProfile(client, invoices, testNow)

	assert.Equal(t, 0.5, profile.ChurnRiskScore)
	assert.Equal(t, behaviormodels.RiskCategoryMedium, profile.RiskCategory)
}

func TestComputeProfile_RiskScoreLowForReliablePayer(t *testing.T) {
	client := newTestClient()
	due := testNow.AddDate(0, 0, -10)

	// Thanh toán đúng hạn 11 ngày trước, không có invoice quá hạn:
	// factor 1 = 0, factor 2 = 0, factor 3 = 0, factor 4 = 11/90 ≈ 0.12
	// score = 0.12/4 ≈ 0.03 → low
	paidAt := due.AddDate(0, 0, -1)
	invoices := []invoicemodels.Invoice{
		paidInvoice(client, due.AddDate(0, 0, -20), due, paidAt, 0),
	}

	profile := ComputeProfile(client, invoices, testNow)

	require.Less(t, profile.ChurnRiskScore, 0.3)
	assert.Equal(t, behaviormodels.RiskCategoryLow, profile.RiskCategory)
}

func TestComputeProfile_DiscountResponsiveness(t *testing.T) {
	client := newTestClient()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mk := func(turnaroundDays int, discount float64) invoicemodels.Invoice {
		created := base
		paidAt := base.AddDate(0, 0, turnaroundDays)
		return paidInvoice(client, created, created.AddDate(0, 0, 30), paidAt, discount)
	}

	// 2 mẫu discount (turnaround 2, 4 ngày → avg 3) vs 1 mẫu thường (10 ngày):
	// 3 <= 0.7*10 → responds, effective rate = mean(5, 3) = 4
	invoices := []invoicemodels.Invoice{
		mk(2, 5),
		mk(4, 3),
		mk(10, 0),
	}

	profile := ComputeProfile(client, invoices, testNow)

	assert.True(t, profile.RespondsToDiscounts)
	require.NotNil(t, profile.EffectiveDiscountRate)
	assert.Equal(t, 4.0, *profile.EffectiveDiscountRate)
}

func TestComputeProfile_DiscountNeedsEnoughSamples(t *testing.T) {
	client := newTestClient()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mk := func(turnaroundDays int, discount float64) invoicemodels.Invoice {
		paidAt := base.AddDate(0, 0, turnaroundDays)
		return paidInvoice(client, base, base.AddDate(0, 0, 30), paidAt, discount)
	}

	// Chỉ 1 mẫu có discount → không đủ điều kiện dù turnaround nhanh hơn hẳn
	invoices := []invoicemodels.Invoice{
		mk(1, 5),
		mk(10, 0),
	}
	profile := ComputeProfile(client, invoices, testNow)
	assert.False(t, profile.RespondsToDiscounts)

	// Đủ 2 mẫu discount nhưng không có mẫu thường để so sánh → không đủ điều kiện
	invoices = []invoicemodels.Invoice{
		mk(1, 5),
		mk(2, 5),
	}
	profile = ComputeProfile(client, invoices, testNow)
	assert.False(t, profile.RespondsToDiscounts)
}

func TestComputeProfile_DiscountNotFastEnough(t *testing.T) {
	client := newTestClient()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mk := func(turnaroundDays int, discount float64) invoicemodels.Invoice {
		paidAt := base.AddDate(0, 0, turnaroundDays)
		return paidInvoice(client, base, base.AddDate(0, 0, 30), paidAt, discount)
	}

	// avg discount = 8 ngày > 0.7 * 10 ngày → không responds
	invoices := []invoicemodels.Invoice{
		mk(8, 5),
		mk(8, 5),
		mk(10, 0),
	}

	profile := ComputeProfile(client, invoices, testNow)

	assert.False(t, profile.RespondsToDiscounts)
	assert.Nil(t, profile.EffectiveDiscountRate)
}
