package render

import (
	"context"
	"fmt"
	"strings"
)

// toneConfig là cấu hình copy/visual cho một tone. Bốn tone dùng chung một hàm build
// body duy nhất, chỉ khác nhau ở record cấu hình này.
type toneConfig struct {
	Emoji       string
	HeaderColor string
	Greeting    string // biến: %s = tên client
	Intro       string // đoạn mở đầu, biến: %s = invoice number
	UrgencyLine string // dòng nhấn mạnh mức độ (rỗng với friendly)
	Closing     string
}

// toneConfigs là bảng tone tĩnh, load một lần lúc khởi động process.
var toneConfigs = map[string]toneConfig{
	"friendly": {
		Emoji:       "😊",
		HeaderColor: "#4A90D9",
		Greeting:    "Chào %s,",
		Intro:       "Chúng tôi muốn nhắc nhẹ rằng hóa đơn %s vẫn đang chờ thanh toán.",
		UrgencyLine: "",
		Closing:     "Nếu bạn đã thanh toán, vui lòng bỏ qua email này. Cảm ơn bạn!",
	},
	"professional": {
		Emoji:       "📋",
		HeaderColor: "#E8A33D",
		Greeting:    "Kính gửi %s,",
		Intro:       "Hóa đơn %s đã quá hạn thanh toán. Vui lòng sắp xếp thanh toán sớm.",
		UrgencyLine: "Khoản thanh toán này đã quá hạn, mong bạn xử lý trong thời gian sớm nhất.",
		Closing:     "Trân trọng cảm ơn sự hợp tác của bạn.",
	},
	"urgent": {
		Emoji:       "⚠️",
		HeaderColor: "#E2574C",
		Greeting:    "Kính gửi %s,",
		Intro:       "Hóa đơn %s đã quá hạn đáng kể và cần được thanh toán ngay.",
		UrgencyLine: "Đây là nhắc nhở khẩn. Vui lòng thanh toán ngay để tránh gián đoạn dịch vụ.",
		Closing:     "Nếu bạn gặp khó khăn trong việc thanh toán, hãy liên hệ với chúng tôi ngay.",
	},
	"final": {
		Emoji:       "🚨",
		HeaderColor: "#8B0000",
		Greeting:    "Kính gửi %s,",
		Intro:       "Đây là thông báo cuối cùng về hóa đơn %s trước khi chúng tôi chuyển sang bước xử lý tiếp theo.",
		UrgencyLine: "Nếu không nhận được thanh toán trong 48 giờ, khoản nợ sẽ được chuyển cho bộ phận thu hồi.",
		Closing:     "Vui lòng xử lý ngay để tránh các bước xử lý không mong muốn.",
	},
}

// subjectByTone build subject theo tone. Subject đi theo stage của campaign
// (stage quyết định template), tone chỉ là fallback khi stage không có cấu hình.
var subjectByTone = map[string]string{
	"friendly":     "Nhắc nhẹ: hóa đơn %s đang chờ thanh toán",
	"professional": "Hóa đơn %s đã quá hạn thanh toán",
	"urgent":       "KHẨN: hóa đơn %s cần thanh toán ngay",
	"final":        "Thông báo cuối cùng về hóa đơn %s",
}

// TemplateRenderer là bộ render deterministic, không phụ thuộc external capability.
// Dùng làm fallback cho AIRenderer và là renderer mặc định khi không cấu hình AI.
type TemplateRenderer struct{}

// NewTemplateRenderer tạo mới TemplateRenderer
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

// Render build subject + body từ tone config. Deterministic: cùng input cho cùng output.
func (r *TemplateRenderer) Render(_ context.Context, req Request) (*Message, error) {
	cfg, ok := toneConfigs[req.Tone]
	if !ok {
		return nil, fmt.Errorf("tone không hợp lệ: %q", req.Tone)
	}

	subjectTpl, ok := subjectByTone[req.Tone]
	if !ok {
		subjectTpl = subjectByTone["professional"]
	}
	subject := fmt.Sprintf(subjectTpl, req.InvoiceNumber)

	amount := FormatAmount(req.Amount, req.Currency)
	dueDate := req.DueDate.Format("02/01/2006")

	// Các dòng nội dung chung cho cả text và HTML
	var lines []string
	lines = append(lines, fmt.Sprintf(cfg.Greeting, req.ClientName))
	lines = append(lines, fmt.Sprintf(cfg.Intro, req.InvoiceNumber))
	lines = append(lines, fmt.Sprintf("Số tiền: %s", amount))
	lines = append(lines, fmt.Sprintf("Hạn thanh toán: %s", dueDate))
	if req.DaysOverdue > 0 {
		lines = append(lines, fmt.Sprintf("Số ngày quá hạn: %d", req.DaysOverdue))
	}
	if cfg.UrgencyLine != "" {
		lines = append(lines, cfg.UrgencyLine)
	}
	// Discount offer: không bao giờ xuất hiện ở tone final
	if req.OfferDiscount && req.Tone != "final" && req.DiscountRate > 0 {
		lines = append(lines, fmt.Sprintf(
			"Ưu đãi dành riêng cho bạn: thanh toán trong 48 giờ để được giảm %.1f%% giá trị hóa đơn.",
			req.DiscountRate))
	}
	if req.PaymentLink != "" {
		lines = append(lines, fmt.Sprintf("Thanh toán tại: %s", req.PaymentLink))
	}
	lines = append(lines, cfg.Closing)

	bodyText := strings.Join(lines, "\n\n")

	// HTML: header màu theo tone + các đoạn <p>
	var html strings.Builder
	html.WriteString(fmt.Sprintf(
		`<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;">`+
			`<div style="background-color:%s;color:#ffffff;padding:16px 24px;border-radius:6px 6px 0 0;">`+
			`<h2 style="margin:0;">%s %s</h2></div>`+
			`<div style="padding:24px;border:1px solid #e0e0e0;border-top:none;border-radius:0 0 6px 6px;">`,
		cfg.HeaderColor, cfg.Emoji, subject))
	for i, line := range lines {
		style := ""
		if req.PaymentLink != "" && strings.Contains(line, req.PaymentLink) {
			html.WriteString(fmt.Sprintf(
				`<p style="text-align:center;"><a href="%s" style="display:inline-block;padding:12px 28px;`+
					`background-color:%s;color:#ffffff;text-decoration:none;border-radius:5px;">Thanh toán ngay</a></p>`,
				req.PaymentLink, cfg.HeaderColor))
			continue
		}
		if i == 0 {
			style = ` style="font-weight:bold;"`
		}
		html.WriteString(fmt.Sprintf("<p%s>%s</p>", style, line))
	}
	html.WriteString(`</div></div>`)

	return &Message{
		Subject:  subject,
		BodyHTML: html.String(),
		BodyText: bodyText,
	}, nil
}

// FormatAmount format số tiền kèm currency (vd: "R$ 1.250,00" đơn giản hóa thành "1250.00 BRL")
func FormatAmount(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}
