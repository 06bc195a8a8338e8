// Package dto chứa payload của các webhook từ collaborators bên ngoài.
package dto

// PaymentWebhookRequest là payload từ payment subsystem khi invoice được thanh toán
type PaymentWebhookRequest struct {
	InvoiceID string `json:"invoiceId" validate:"required,len=24,hexadecimal"`
	PaidAt    int64  `json:"paidAt,omitempty"` // UnixMilli; 0 = dùng thời điểm nhận webhook
}

// DeliveryWebhookRequest là payload từ WhatsApp provider khi trạng thái message thay đổi
type DeliveryWebhookRequest struct {
	MessageID string `json:"messageId" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=delivered read"`
	Timestamp int64  `json:"timestamp,omitempty"` // UnixMilli; 0 = dùng thời điểm nhận webhook
}
