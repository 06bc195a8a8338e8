// Package router đăng ký các route webhook.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	webhookhdl "invoice_recovery/internal/api/webhook/handler"
	"invoice_recovery/internal/dispatch"
)

// Register đăng ký các route webhook lên v1.
func Register(v1 fiber.Router, dispatcher *dispatch.Dispatcher) error {
	handler, err := webhookhdl.NewWebhookHandler(dispatcher)
	if err != nil {
		return fmt.Errorf("create webhook handler: %w", err)
	}

	group := v1.Group("/webhooks")
	group.Post("/payment", handler.Payment)
	group.Post("/delivery", handler.Delivery)

	return nil
}
