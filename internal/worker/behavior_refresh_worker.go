package worker

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	behaviorsvc "invoice_recovery/internal/api/behavior/service"
	clientsvc "invoice_recovery/internal/api/client/service"
	"invoice_recovery/internal/logger"
)

const refreshBatchLimit = 200

// BehaviorRefreshWorker phân tích lại định kỳ các behavior profile đã stale
// (quá N ngày chưa recompute), để Scheduling Strategy luôn đọc dữ liệu tương đối mới.
// Chạy đồng thời với engine là chấp nhận được: profile hơi stale không phải lỗi.
type BehaviorRefreshWorker struct {
	analyzer  *behaviorsvc.BehaviorAnalyzer
	profiles  *behaviorsvc.BehaviorProfileService
	clients   *clientsvc.ClientService
	interval  time.Duration
	staleDays int
	log       *logrus.Logger
}

// NewBehaviorRefreshWorker tạo mới BehaviorRefreshWorker
func NewBehaviorRefreshWorker(analyzer *behaviorsvc.BehaviorAnalyzer, profiles *behaviorsvc.BehaviorProfileService, clients *clientsvc.ClientService, interval time.Duration, staleDays int) *BehaviorRefreshWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if staleDays <= 0 {
		staleDays = 7
	}
	return &BehaviorRefreshWorker{
		analyzer:  analyzer,
		profiles:  profiles,
		clients:   clients,
		interval:  interval,
		staleDays: staleDays,
		log:       logger.GetAppLogger(),
	}
}

// Start chạy vòng lặp refresh cho đến khi context bị hủy
func (w *BehaviorRefreshWorker) Start(ctx context.Context) {
	w.log.WithField("interval", w.interval.String()).Info("🚀 [BEHAVIOR-REFRESH] Worker đã khởi động")

	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.log.Info("🛑 [BEHAVIOR-REFRESH] Worker đã dừng")
				return
			case <-ticker.C:
				w.refreshStale(ctx)
			}
		}
	}()
}

// refreshStale phân tích lại một batch profile stale; lỗi của một client
// không chặn các client còn lại trong batch
func (w *BehaviorRefreshWorker) refreshStale(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("❌ [BEHAVIOR-REFRESH] Panic trong lượt refresh")
		}
	}()

	stale, err := w.profiles.FindStale(ctx, w.staleDays, refreshBatchLimit)
	if err != nil {
		w.log.WithError(err).Error("❌ [BEHAVIOR-REFRESH] Không query được profiles stale")
		return
	}
	if len(stale) == 0 {
		return
	}

	refreshed := 0
	for _, profile := range stale {
		client, err := w.clients.FindOneById(ctx, profile.ClientID)
		if err != nil {
			w.log.WithError(err).WithField("clientId", profile.ClientID.Hex()).
				Warn("⚠️ [BEHAVIOR-REFRESH] Không tìm thấy client của profile, bỏ qua")
			continue
		}
		if _, err := w.analyzer.AnalyzeClient(ctx, client); err != nil {
			w.log.WithError(err).WithField("clientId", client.ID.Hex()).
				Warn("⚠️ [BEHAVIOR-REFRESH] Phân tích lại thất bại")
			continue
		}
		refreshed++
	}

	w.log.WithFields(logrus.Fields{
		"stale":     len(stale),
		"refreshed": refreshed,
	}).Info("🧠 [BEHAVIOR-REFRESH] Hoàn tất lượt refresh profiles")
}
