// Package models - Invoice thuộc domain Invoice (external collaborator).
// Engine chỉ đọc invoice và yêu cầu invoicing subsystem tăng reminder counters;
// không bao giờ tự ý sửa các trường nghiệp vụ khác.
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trạng thái lifecycle của invoice
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusDisputed  = "disputed"
)

// Invoice - Hóa đơn của một client.
// Timestamps (issueDate, dueDate, paidAt) là UnixMilli.
type Invoice struct {
	ID                  primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	ClientID            primitive.ObjectID `json:"clientId" bson:"clientId" index:"single:1;compound:invoice_client_org"`
	OwnerOrganizationID primitive.ObjectID `json:"ownerOrganizationId" bson:"ownerOrganizationId" index:"single:1;compound:invoice_client_org"`
	InvoiceNumber       string             `json:"invoiceNumber" bson:"invoiceNumber"`
	Amount              float64            `json:"amount" bson:"amount"`
	Currency            string             `json:"currency" bson:"currency"`
	IssueDate           int64              `json:"issueDate" bson:"issueDate"`
	DueDate             int64              `json:"dueDate" bson:"dueDate" index:"single:1"`
	Status              string             `json:"status" bson:"status" index:"single:1"`
	PaidAt              *int64             `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	PaymentLink         string             `json:"paymentLink,omitempty" bson:"paymentLink,omitempty"`

	// EarlyPaymentDiscountPercent > 0 nghĩa là invoice có ưu đãi thanh toán sớm.
	EarlyPaymentDiscountPercent float64 `json:"earlyPaymentDiscountPercent,omitempty" bson:"earlyPaymentDiscountPercent,omitempty"`

	// Reminder bookkeeping (engine yêu cầu cập nhật qua InvoiceService)
	RemindersSent      int    `json:"remindersSent" bson:"remindersSent"`
	EscalationLevel    int    `json:"escalationLevel" bson:"escalationLevel"`
	LastReminderSentAt *int64 `json:"lastReminderSentAt,omitempty" bson:"lastReminderSentAt,omitempty"`

	CreatedAt int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`
}

// IsPaid trả về true nếu invoice đã thanh toán
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsOverdue trả về true nếu invoice chưa thanh toán và đã quá hạn tại thời điểm nowMillis
func (i *Invoice) IsOverdue(nowMillis int64) bool {
	return i.Status == InvoiceStatusPending && i.DueDate > 0 && i.DueDate < nowMillis
}
