// Package render chịu trách nhiệm sinh nội dung reminder (subject + body) theo tone.
// Có hai renderer: AIRenderer (gọi text-generation capability bên ngoài) và
// TemplateRenderer (bộ template deterministic). AIRenderer luôn có TemplateRenderer
// làm fallback để engine vẫn hoạt động khi capability AI không khả dụng.
package render

import (
	"context"
	"time"
)

// Request chứa các dữ kiện có cấu trúc của invoice để render nội dung.
// Bốn tone (friendly, professional, urgent, final) dùng chung đúng các variable slots này.
type Request struct {
	Tone          string    // friendly | professional | urgent | final
	Stage         string    // escalation stage hiện tại (quyết định subject)
	ClientName    string
	InvoiceNumber string
	Amount        float64
	Currency      string
	DueDate       time.Time
	DaysOverdue   int
	PaymentLink   string

	// Discount offer (chỉ khi client qualify và tone != final)
	OfferDiscount bool
	DiscountRate  float64
}

// Message là nội dung đã render cho một lần gửi.
// BodyText dùng cho WhatsApp, BodyHTML dùng cho email.
type Message struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// TextRenderer render nội dung reminder từ dữ kiện invoice có cấu trúc.
type TextRenderer interface {
	Render(ctx context.Context, req Request) (*Message, error)
}
