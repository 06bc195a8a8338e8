package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoice_recovery/internal/logger"
)

// AIRenderer gọi text-generation capability bên ngoài (API dạng chat-completions)
// để sinh nội dung reminder cá nhân hóa. Mọi lỗi (thiếu config, timeout, response
// không parse được) đều degrade về fallback renderer deterministic — engine không
// bao giờ fail vì capability AI không khả dụng.
type AIRenderer struct {
	providerURL string
	apiKey      string
	model       string
	client      *http.Client
	fallback    TextRenderer
}

// NewAIRenderer tạo mới AIRenderer. fallback là bắt buộc.
func NewAIRenderer(providerURL, apiKey, model string, timeout time.Duration, fallback TextRenderer) *AIRenderer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AIRenderer{
		providerURL: providerURL,
		apiKey:      apiKey,
		model:       model,
		client:      &http.Client{Timeout: timeout},
		fallback:    fallback,
	}
}

// chatRequest / chatResponse theo format chat-completions
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Render gọi AI provider để sinh nội dung; fallback về template khi không khả dụng.
func (r *AIRenderer) Render(ctx context.Context, req Request) (*Message, error) {
	log := logger.GetAppLogger()

	// Configuration absence: degrade về fallback, không phải lỗi
	if r.providerURL == "" || r.apiKey == "" {
		return r.fallback.Render(ctx, req)
	}

	msg, err := r.renderViaProvider(ctx, req)
	if err != nil {
		log.WithError(err).WithFields(map[string]interface{}{
			"invoiceNumber": req.InvoiceNumber,
			"tone":          req.Tone,
		}).Warn("🤖 [RENDER] AI provider không khả dụng, dùng fallback template")
		return r.fallback.Render(ctx, req)
	}
	return msg, nil
}

func (r *AIRenderer) renderViaProvider(ctx context.Context, req Request) (*Message, error) {
	prompt := buildPrompt(req)

	payload, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: "Bạn là trợ lý viết email nhắc thanh toán hóa đơn. Trả lời đúng format: dòng đầu 'Subject: ...', sau đó một dòng trống, rồi phần body."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.providerURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("AI provider trả về status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, err
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("AI provider trả về response rỗng")
	}

	subject, body, err := parseGeneratedText(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	// AI chỉ sinh text; phần HTML dùng khung của template renderer với body thay thế
	return &Message{
		Subject:  subject,
		BodyText: body,
		BodyHTML: "<div style=\"font-family:Arial,sans-serif;white-space:pre-line;\">" + body + "</div>",
	}, nil
}

// buildPrompt build prompt từ dữ kiện invoice có cấu trúc
func buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Viết reminder thanh toán với tone %q cho:\n", req.Tone))
	sb.WriteString(fmt.Sprintf("- Khách hàng: %s\n", req.ClientName))
	sb.WriteString(fmt.Sprintf("- Hóa đơn: %s\n", req.InvoiceNumber))
	sb.WriteString(fmt.Sprintf("- Số tiền: %s\n", FormatAmount(req.Amount, req.Currency)))
	sb.WriteString(fmt.Sprintf("- Hạn thanh toán: %s\n", req.DueDate.Format("02/01/2006")))
	if req.DaysOverdue > 0 {
		sb.WriteString(fmt.Sprintf("- Quá hạn: %d ngày\n", req.DaysOverdue))
	}
	if req.OfferDiscount && req.Tone != "final" && req.DiscountRate > 0 {
		sb.WriteString(fmt.Sprintf("- Kèm ưu đãi giảm %.1f%% nếu thanh toán trong 48 giờ\n", req.DiscountRate))
	}
	if req.PaymentLink != "" {
		sb.WriteString(fmt.Sprintf("- Link thanh toán: %s\n", req.PaymentLink))
	}
	return sb.String()
}

// parseGeneratedText tách subject và body từ text AI sinh ra
func parseGeneratedText(text string) (subject, body string, err error) {
	text = strings.TrimSpace(text)
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) < 2 || !strings.HasPrefix(strings.ToLower(lines[0]), "subject:") {
		return "", "", fmt.Errorf("AI response không đúng format subject/body")
	}
	subject = strings.TrimSpace(strings.TrimPrefix(lines[0], "Subject:"))
	subject = strings.TrimSpace(strings.TrimPrefix(subject, "subject:"))
	body = strings.TrimSpace(lines[1])
	if subject == "" || body == "" {
		return "", "", fmt.Errorf("AI response thiếu subject hoặc body")
	}
	return subject, body, nil
}
