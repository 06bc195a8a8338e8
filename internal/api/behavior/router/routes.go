// Package router đăng ký các route thuộc domain Behavior.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	behaviorhdl "invoice_recovery/internal/api/behavior/handler"
	behaviorsvc "invoice_recovery/internal/api/behavior/service"
)

// Register đăng ký tất cả route behavior lên v1.
func Register(v1 fiber.Router, analyzer *behaviorsvc.BehaviorAnalyzer) error {
	handler, err := behaviorhdl.NewBehaviorHandler(analyzer)
	if err != nil {
		return fmt.Errorf("create behavior handler: %w", err)
	}

	group := v1.Group("/behavior")
	group.Get("/:clientId", handler.FindByClient)
	group.Post("/:clientId/analyze", handler.Analyze)

	return nil
}
