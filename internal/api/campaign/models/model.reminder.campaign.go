// Package models - ReminderCampaign và ReminderRecord thuộc domain Campaign.
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trạng thái vận hành của campaign (trực giao với escalation stage)
const (
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusFailed    = "failed"
)

// Lý do dừng campaign
const (
	StopReasonPaymentReceived = "payment_received"
	StopReasonManual          = "manual"
	StopReasonMaxAttempts     = "max_attempts"
)

// ReminderCampaign - Chiến dịch nhắc nợ tự động cho một invoice.
// Mỗi invoice có tối đa một campaign active (unique sparse trên invoiceId khi active).
//
// Bất biến:
//   - Campaign active luôn có nextScheduledAt != nil, trừ khi đã gửi đủ số reminder
//     tối đa hoặc invoice đã thanh toán.
//   - currentStage chỉ tiến về phía trước (gentle → standard → urgent → final), không lùi.
type ReminderCampaign struct {
	ID                  primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	InvoiceID           primitive.ObjectID `json:"invoiceId" bson:"invoiceId" index:"single:1"`
	ClientID            primitive.ObjectID `json:"clientId" bson:"clientId" index:"single:1"`
	OwnerOrganizationID primitive.ObjectID `json:"ownerOrganizationId" bson:"ownerOrganizationId" index:"single:1"`

	CurrentStage string `json:"currentStage" bson:"currentStage"` // gentle | standard | urgent | final | stopped
	Channel      string `json:"channel" bson:"channel"`           // email | whatsapp | both (copy từ strategy)

	TotalRemindersSent int    `json:"totalRemindersSent" bson:"totalRemindersSent"`
	LastReminderSentAt *int64 `json:"lastReminderSentAt,omitempty" bson:"lastReminderSentAt,omitempty"`
	NextScheduledAt    *int64 `json:"nextScheduledAt,omitempty" bson:"nextScheduledAt,omitempty" index:"single:1;compound:campaign_status_due"`

	// Plan đang áp dụng cho lần gửi kế tiếp
	ScheduledHour int    `json:"scheduledHour" bson:"scheduledHour"`
	ScheduledDay  string `json:"scheduledDay" bson:"scheduledDay"`

	Status     string  `json:"status" bson:"status" index:"single:1;compound:campaign_status_due"`
	StopReason *string `json:"stopReason,omitempty" bson:"stopReason,omitempty"`

	PaymentReceived   bool   `json:"paymentReceived" bson:"paymentReceived"`
	PaymentReceivedAt *int64 `json:"paymentReceivedAt,omitempty" bson:"paymentReceivedAt,omitempty"`

	// Lease xử lý: chống hai evaluation đồng thời trên cùng campaign.
	// ProcessingBy là token của worker đang giữ lease, ProcessingAt để reclaim lease stale.
	ProcessingBy string `json:"-" bson:"processingBy,omitempty"`
	ProcessingAt *int64 `json:"-" bson:"processingAt,omitempty"`

	CreatedAt int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`
}

// IsTerminal trả về true nếu campaign đã kết thúc (không mutate stage/schedule nữa)
func (c *ReminderCampaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusFailed
}
