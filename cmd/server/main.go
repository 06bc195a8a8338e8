package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"

	"invoice_recovery/internal/database"
	"invoice_recovery/internal/global"
	"invoice_recovery/internal/logger"
)

// initLogger khởi tạo và cấu hình logger cho toàn bộ ứng dụng
func initLogger() {
	if err := logger.Init(nil); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	logger.GetAppLogger().Info("Logger system initialized successfully")
}

// main_thread khởi tạo và chạy Fiber server trên main goroutine
func main_thread(app *fiber.App) {
	address := global.ServerConfig.Address
	log := logger.GetAppLogger()

	log.WithFields(map[string]interface{}{
		"address":  address,
		"protocol": "HTTP",
	}).Info("Starting Fiber server...")

	if err := app.Listen(address, fiber.ListenConfig{}); err != nil {
		log.Fatalf("Error in Fiber Listen: %v", err)
	}
}

// Hàm main
func main() {
	// Khởi tạo logger
	initLogger()

	// Khởi tạo các biến toàn cục
	InitGlobal()

	// Khởi tạo registry
	InitRegistry()

	// Khởi tạo engine stack (services, transports, dispatcher, workers)
	components := InitComponents()

	log := logger.GetAppLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reminder sweep worker: driver định kỳ của engine
	if err := components.Sweep.Start(ctx); err != nil {
		log.Fatalf("Failed to start reminder sweep worker: %v", err)
	}

	// Behavior refresh worker: phân tích lại các profile stale
	components.Refresh.Start(ctx)

	app := InitFiberApp(components)

	// Graceful shutdown: dừng workers rồi mới đóng server và database
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Info("Shutdown signal received, stopping...")
		components.Sweep.Stop()
		cancel()

		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("Error during Fiber shutdown")
		}
		database.CloseInstance(global.MongoDB_Session)
	}()

	// Chạy Fiber server trên main thread
	main_thread(app)
}
