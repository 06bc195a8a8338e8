// Package router đăng ký các route thuộc domain Campaign.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	behaviorsvc "invoice_recovery/internal/api/behavior/service"
	campaignhdl "invoice_recovery/internal/api/campaign/handler"
	campaignsvc "invoice_recovery/internal/api/campaign/service"
)

// Register đăng ký tất cả route campaign lên v1.
func Register(v1 fiber.Router, engine *campaignsvc.CampaignEngine, analyzer *behaviorsvc.BehaviorAnalyzer) error {
	handler, err := campaignhdl.NewCampaignHandler(engine, analyzer)
	if err != nil {
		return fmt.Errorf("create campaign handler: %w", err)
	}

	group := v1.Group("/campaigns")
	group.Post("/start", handler.Start)
	group.Post("/sweep", handler.Sweep)
	group.Get("/:id", handler.FindOneById)
	group.Post("/:id/stop", handler.Stop)
	group.Get("/:id/records", handler.Records)

	return nil
}
