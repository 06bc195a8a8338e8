// Package worker chứa các background worker chạy định kỳ của engine.
package worker

import (
	"context"
	"runtime/debug"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	campaignsvc "invoice_recovery/internal/api/campaign/service"
	"invoice_recovery/internal/logger"
)

// ReminderSweepWorker là driver định kỳ của engine: theo cron spec cấu hình,
// quét các campaign đến hạn và đưa vào CampaignEngine xử lý.
// Trigger là at-least-once; tính idempotent do engine đảm bảo.
type ReminderSweepWorker struct {
	engine   *campaignsvc.CampaignEngine
	cronSpec string
	cron     *cron.Cron
	log      *logrus.Logger
}

// NewReminderSweepWorker tạo mới ReminderSweepWorker
func NewReminderSweepWorker(engine *campaignsvc.CampaignEngine, cronSpec string) *ReminderSweepWorker {
	if cronSpec == "" {
		cronSpec = "@every 5m"
	}
	return &ReminderSweepWorker{
		engine:   engine,
		cronSpec: cronSpec,
		cron:     cron.New(),
		log:      logger.GetAppLogger(),
	}
}

// Start đăng ký job và khởi động scheduler. Trả về lỗi nếu cron spec không hợp lệ.
func (w *ReminderSweepWorker) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.cronSpec, func() {
		w.sweep(ctx)
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	w.log.WithField("spec", w.cronSpec).Info("🚀 [SWEEP] Reminder sweep worker đã khởi động")
	return nil
}

// Stop dừng scheduler, chờ job đang chạy hoàn tất
func (w *ReminderSweepWorker) Stop() {
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	w.log.Info("🛑 [SWEEP] Reminder sweep worker đã dừng")
}

// sweep chạy một lượt quét; panic được recover để không kéo sập scheduler
func (w *ReminderSweepWorker) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("❌ [SWEEP] Panic trong lượt quét")
		}
	}()

	processed, err := w.engine.EvaluateDue(ctx)
	if err != nil {
		w.log.WithError(err).Error("❌ [SWEEP] Lượt quét thất bại")
		return
	}
	if processed > 0 {
		w.log.WithField("processed", processed).Info("🔁 [SWEEP] Hoàn tất lượt quét campaigns")
	}
}
