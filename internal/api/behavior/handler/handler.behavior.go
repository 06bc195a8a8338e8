// Package behaviorhdl chứa HTTP handler cho domain Behavior.
package behaviorhdl

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	basehdl "invoice_recovery/internal/api/base/handler"
	behaviorsvc "invoice_recovery/internal/api/behavior/service"
	clientsvc "invoice_recovery/internal/api/client/service"
	"invoice_recovery/internal/common"
)

// BehaviorHandler xử lý các route đọc/tính lại behavior profile
type BehaviorHandler struct {
	profiles *behaviorsvc.BehaviorProfileService
	clients  *clientsvc.ClientService
	analyzer *behaviorsvc.BehaviorAnalyzer
}

// NewBehaviorHandler tạo mới BehaviorHandler
func NewBehaviorHandler(analyzer *behaviorsvc.BehaviorAnalyzer) (*BehaviorHandler, error) {
	profiles, err := behaviorsvc.NewBehaviorProfileService()
	if err != nil {
		return nil, fmt.Errorf("failed to create behavior profile service: %w", err)
	}
	clients, err := clientsvc.NewClientService()
	if err != nil {
		return nil, fmt.Errorf("failed to create client service: %w", err)
	}
	return &BehaviorHandler{
		profiles: profiles,
		clients:  clients,
		analyzer: analyzer,
	}, nil
}

// FindByClient xử lý GET /behavior/:clientId?orgId=...
// Trả về profile hiện có, 404 nếu client chưa được phân tích.
func (h *BehaviorHandler) FindByClient(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		clientID, err := primitive.ObjectIDFromHex(c.Params("clientId"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, common.ErrInvalidFormat)
		}
		orgID, err := primitive.ObjectIDFromHex(c.Query("orgId"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, common.NewError(
				common.ErrCodeValidationInput, "orgId không hợp lệ", common.StatusBadRequest, err))
		}
		profile, err := h.profiles.FindByClient(c.Context(), clientID, orgID)
		return basehdl.HandleResponse(c, profile, err)
	})
}

// Analyze xử lý POST /behavior/:clientId/analyze: tính lại profile on-demand
// từ toàn bộ invoice history (ghi đè bản cũ nếu có).
func (h *BehaviorHandler) Analyze(c fiber.Ctx) error {
	return basehdl.SafeHandler(c, func() error {
		clientID, err := primitive.ObjectIDFromHex(c.Params("clientId"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, common.ErrInvalidFormat)
		}
		client, err := h.clients.FindOneById(c.Context(), clientID)
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		profile, err := h.analyzer.AnalyzeClient(c.Context(), client)
		return basehdl.HandleResponse(c, profile, err)
	})
}
