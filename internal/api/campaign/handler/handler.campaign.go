// Package campaignhdl chứa HTTP handler cho domain Campaign.
package campaignhdl

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	campaignmodels "invoice_recovery/internal/api/campaign/models"

	basehdl "invoice_recovery/internal/api/base/handler"
	behaviorsvc "invoice_recovery/internal/api/behavior/service"
	campaigndto "invoice_recovery/internal/api/campaign/dto"
	campaignsvc "invoice_recovery/internal/api/campaign/service"
	clientsvc "invoice_recovery/internal/api/client/service"
	invoicesvc "invoice_recovery/internal/api/invoice/service"
	"invoice_recovery/internal/common"
	"invoice_recovery/internal/escalation"
	"invoice_recovery/internal/global"
	"invoice_recovery/internal/logger"
	"invoice_recovery/internal/scheduling"
)

// CampaignHandler xử lý các route vận hành reminder campaign
type CampaignHandler struct {
	campaigns *campaignsvc.CampaignService
	records   *campaignsvc.ReminderRecordService
	invoices  *invoicesvc.InvoiceService
	clients   *clientsvc.ClientService
	analyzer  *behaviorsvc.BehaviorAnalyzer
	engine    *campaignsvc.CampaignEngine
	clock     scheduling.Clock
}

// NewCampaignHandler tạo mới CampaignHandler. Engine và analyzer được wire từ cmd
// vì chúng cần dispatcher/transport đã cấu hình.
func NewCampaignHandler(engine *campaignsvc.CampaignEngine, analyzer *behaviorsvc.BehaviorAnalyzer) (*CampaignHandler, error) {
	campaigns, err := campaignsvc.NewCampaignService()
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign service: %w", err)
	}
	records, err := campaignsvc.NewReminderRecordService()
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder record service: %w", err)
	}
	invoices, err := invoicesvc.NewInvoiceService()
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice service: %w", err)
	}
	clients, err := clientsvc.NewClientService()
	if err != nil {
		return nil, fmt.Errorf("failed to create client service: %w", err)
	}
	return &CampaignHandler{
		campaigns: campaigns,
		records:   records,
		invoices:  invoices,
		clients:   clients,
		analyzer:  analyzer,
		engine:    engine,
		clock:     scheduling.NewRealClock(),
	}, nil
}

// Start xử lý POST /campaigns/start: bật automation cho một invoice.
// Strategy đầu tiên được tính từ behavior profile (tạo mới nếu chưa có).
func (h *CampaignHandler) Start(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		var input campaigndto.CampaignStartInput
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

		ctx := c.Context()
		invoice, err := h.invoices.FindOneById(ctx, invoiceID)
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		if invoice.IsPaid() {
			return basehdl.HandleResponse(c, nil, common.NewError(
				common.ErrCodeBusinessOperation, "Invoice đã thanh toán, không cần automation",
				common.StatusUnprocessableEntity, nil))
		}

		client, err := h.clients.FindOneById(ctx, invoice.ClientID)
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}

		profile, err := h.analyzer.EnsureProfile(ctx, client)
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}

		strategy := scheduling.Build(&profile, escalation.StageGentle)
		nextAt := scheduling.NextSendTime(h.clock.Now(), strategy.SendDay, strategy.SendHour, scheduling.DefaultMinLead)

		campaign, err := h.campaigns.StartAutomation(ctx, invoice.ID, client.ID, invoice.OwnerOrganizationID, strategy, nextAt.UnixMilli())
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}

		logger.GetAuditLogger().WithFields(map[string]interface{}{
			"campaignId": campaign.ID.Hex(),
			"invoiceId":  invoice.ID.Hex(),
		}).Info("📣 [CAMPAIGN] Đã bật automation cho invoice")

		return basehdl.HandleResponse(c, campaign, nil)
	})
}

// Stop xử lý POST /campaigns/:id/stop: dừng campaign thủ công.
// Có hiệu lực trước lần đánh giá kế tiếp; evaluation đang chạy sẽ không reschedule.
func (h *CampaignHandler) Stop(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		campaignID, err := primitive.ObjectIDFromHex(c.Params("id"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, common.ErrInvalidFormat)
		}

		var input campaigndto.CampaignStopInput
		_ = c.Bind().Body(&input) // body optional

		campaign, err := h.campaigns.Stop(c.Context(), campaignID, campaignmodels.CampaignStatusPaused, campaignmodels.StopReasonManual)
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}

		logger.GetAuditLogger().WithFields(map[string]interface{}{
			"campaignId": campaign.ID.Hex(),
			"reason":     input.Reason,
		}).Info("🛑 [CAMPAIGN] Campaign đã được dừng thủ công")

		return basehdl.HandleResponse(c, campaign, nil)
	})
}

// Sweep xử lý POST /campaigns/sweep: trigger thủ công một lượt quét
// (bình thường do ReminderSweepWorker chạy định kỳ)
func (h *CampaignHandler) Sweep(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		processed, err := h.engine.EvaluateDue(c.Context())
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		return basehdl.HandleResponse(c, fiber.Map{"processed": processed}, nil)
	})
}

// FindOneById xử lý GET /campaigns/:id
func (h *CampaignHandler) FindOneById(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		campaignID, err := primitive.ObjectIDFromHex(c.Params("id"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, common.ErrInvalidFormat)
		}
		campaign, err := h.campaigns.FindOneById(c.Context(), campaignID)
		return basehdl.HandleResponse(c, campaign, err)
	})
}

// Records xử lý GET /campaigns/:id/records: audit trail các lần gửi của campaign
func (h *CampaignHandler) Records(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		campaignID, err := primitive.ObjectIDFromHex(c.Params("id"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, common.ErrInvalidFormat)
		}
		records, err := h.records.FindByCampaign(c.Context(), campaignID)
		return basehdl.HandleResponse(c, records, err)
	})
}
