package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"invoice_recovery/internal/utility"
)

// WhatsAppChannel gửi message qua WhatsApp Business API provider.
// Số điện thoại được chuẩn hóa về dạng country-coded digit string trước khi gửi.
type WhatsAppChannel struct {
	apiURL             string
	token              string
	defaultCountryCode string
	client             *http.Client
}

// NewWhatsAppChannel tạo mới WhatsAppChannel
func NewWhatsAppChannel(apiURL, token, defaultCountryCode string, timeout time.Duration) *WhatsAppChannel {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WhatsAppChannel{
		apiURL:             apiURL,
		token:              token,
		defaultCountryCode: defaultCountryCode,
		client:             &http.Client{Timeout: timeout},
	}
}

// IsConfigured trả về true nếu channel có đủ credentials để gửi
func (c *WhatsAppChannel) IsConfigured() bool {
	return c.apiURL != "" && c.token != ""
}

type whatsAppSendRequest struct {
	MessagingProduct string              `json:"messaging_product"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	Text             whatsAppTextPayload `json:"text"`
}

type whatsAppTextPayload struct {
	Body string `json:"body"`
}

type whatsAppSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// SendMessage gửi một text message, trả về message id của provider để match webhook delivery.
func (c *WhatsAppChannel) SendMessage(ctx context.Context, phoneNumber, text string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("WhatsApp channel chưa được cấu hình credentials")
	}

	normalized, err := utility.NormalizePhoneNumber(phoneNumber, c.defaultCountryCode)
	if err != nil {
		return "", fmt.Errorf("số điện thoại không hợp lệ: %w", err)
	}

	payload, err := json.Marshal(whatsAppSendRequest{
		MessagingProduct: "whatsapp",
		To:               normalized,
		Type:             "text",
		Text:             whatsAppTextPayload{Body: text},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("WhatsApp provider trả về status %d: %s", resp.StatusCode, string(body))
	}

	var sendResp whatsAppSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return "", err
	}
	if sendResp.Error != nil {
		return "", fmt.Errorf("WhatsApp provider lỗi %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}
	if len(sendResp.Messages) == 0 {
		return "", fmt.Errorf("WhatsApp provider không trả về message id")
	}
	return sendResp.Messages[0].ID, nil
}
