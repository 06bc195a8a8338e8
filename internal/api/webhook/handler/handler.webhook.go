// Package webhookhdl chứa HTTP handler cho các webhook từ hệ thống bên ngoài.
package webhookhdl

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	basehdl "invoice_recovery/internal/api/base/handler"
	campaignsvc "invoice_recovery/internal/api/campaign/service"
	clientsvc "invoice_recovery/internal/api/client/service"
	invoicesvc "invoice_recovery/internal/api/invoice/service"
	webhookdto "invoice_recovery/internal/api/webhook/dto"
	"invoice_recovery/internal/common"
	"invoice_recovery/internal/dispatch"
	"invoice_recovery/internal/global"
	"invoice_recovery/internal/logger"
	"invoice_recovery/internal/scheduling"
)

// WebhookHandler xử lý webhook thanh toán và webhook delivery status.
// Delivery webhook luôn trả 200 để provider không retry vô hạn.
type WebhookHandler struct {
	invoices   *invoicesvc.InvoiceService
	clients    *clientsvc.ClientService
	campaigns  *campaignsvc.CampaignService
	records    *campaignsvc.ReminderRecordService
	dispatcher *dispatch.Dispatcher
	clock      scheduling.Clock
}

// NewWebhookHandler tạo mới WebhookHandler. Dispatcher dùng để gửi payment receipt
// best-effort khi campaign kết thúc vì thanh toán.
func NewWebhookHandler(dispatcher *dispatch.Dispatcher) (*WebhookHandler, error) {
	invoices, err := invoicesvc.NewInvoiceService()
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice service: %w", err)
	}
	clients, err := clientsvc.NewClientService()
	if err != nil {
		return nil, fmt.Errorf("failed to create client service: %w", err)
	}
	campaigns, err := campaignsvc.NewCampaignService()
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign service: %w", err)
	}
	records, err := campaignsvc.NewReminderRecordService()
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder record service: %w", err)
	}
	return &WebhookHandler{
		invoices:   invoices,
		clients:    clients,
		campaigns:  campaigns,
		records:    records,
		dispatcher: dispatcher,
		clock:      scheduling.NewRealClock(),
	}, nil
}

// Payment xử lý POST /webhooks/payment: payment subsystem báo invoice đã được thanh toán.
// Đánh dấu invoice paid và kết thúc ngay campaign active của invoice đó (nếu có).
func (h *WebhookHandler) Payment(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		var input webhookdto.PaymentWebhookRequest
		if err := c.Bind().Body(&input); err != nil {
			return basehdl.HandleResponse(c, nil, common.NewError(
				common.ErrCodeValidationInput, "Body không hợp lệ", common.StatusBadRequest, err))
		}
		if err := global.Validator.Struct(&input); err != nil {
			return basehdl.HandleResponse(c, nil, common.NewError(
				common.ErrCodeValidationInput, "Dữ liệu đầu vào không hợp lệ", common.StatusBadRequest, err))
		}

		invoiceID, err := primitive.ObjectIDFromHex(input.InvoiceID)
		if err != nil {
			return basehdl.HandleResponse(c, nil, common.ErrInvalidFormat)
		}

		paidAt := input.PaidAt
		if paidAt == 0 {
			paidAt = h.clock.Now().UnixMilli()
		}

		ctx := c.Context()
		invoice, err := h.invoices.MarkPaid(ctx, invoiceID, paidAt)
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}

		audit := logger.GetAuditLogger().WithFields(map[string]interface{}{
			"invoiceId": invoice.ID.Hex(),
			"paidAt":    paidAt,
		})

		// Campaign active của invoice (nếu có) kết thúc ngay, không đợi sweep kế tiếp
		campaign, err := h.campaigns.FindActiveByInvoice(ctx, invoiceID)
		if err == nil {
			if _, err := h.campaigns.MarkPaymentReceived(ctx, campaign.ID, paidAt); err != nil {
				logger.GetErrorLogger().WithError(err).WithField("campaignId", campaign.ID.Hex()).
					Error("❌ [WEBHOOK] Không kết thúc được campaign sau thanh toán")
			} else {
				audit = audit.WithField("campaignId", campaign.ID.Hex())
				if h.dispatcher != nil {
					client, cerr := h.clients.FindOneById(ctx, invoice.ClientID)
					if cerr == nil {
						if rerr := h.dispatcher.SendPaymentReceipt(ctx, &invoice, &client); rerr != nil {
							logger.GetErrorLogger().WithError(rerr).WithField("invoiceId", invoice.ID.Hex()).
								Warn("⚠️ [WEBHOOK] Gửi payment receipt thất bại")
						}
					}
				}
			}
		}

		audit.Info("💰 [WEBHOOK] Đã ghi nhận thanh toán từ payment subsystem")
		return basehdl.HandleResponse(c, invoice, nil)
	})
}

// Delivery xử lý POST /webhooks/delivery: provider báo trạng thái message thay đổi.
// Luôn trả 200 kể cả khi messageId không khớp record nào; chỉ log để theo dõi.
func (h *WebhookHandler) Delivery(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		var input webhookdto.DeliveryWebhookRequest
		if err := c.Bind().Body(&input); err != nil {
			logger.GetAppLogger().WithError(err).Warn("⚠️ [WEBHOOK] Delivery webhook có body không đọc được")
			return basehdl.HandleResponse(c, fiber.Map{"received": true}, nil)
		}
		if err := global.Validator.Struct(&input); err != nil {
			logger.GetAppLogger().WithError(err).Warn("⚠️ [WEBHOOK] Delivery webhook thiếu trường bắt buộc")
			return basehdl.HandleResponse(c, fiber.Map{"received": true}, nil)
		}

		at := input.Timestamp
		if at == 0 {
			at = h.clock.Now().UnixMilli()
		}

		ctx := c.Context()
		var err error
		switch input.Status {
		case "delivered":
			err = h.records.MarkDelivered(ctx, input.MessageID, at)
		case "read":
			err = h.records.MarkRead(ctx, input.MessageID, at)
		}
		if err != nil {
			logger.GetAppLogger().WithError(err).WithFields(map[string]interface{}{
				"messageId": input.MessageID,
				"status":    input.Status,
			}).Warn("⚠️ [WEBHOOK] Không cập nhật được delivery status")
		}

		return basehdl.HandleResponse(c, fiber.Map{"received": true}, nil)
	})
}
