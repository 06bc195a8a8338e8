package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	invoicemodels "invoice_recovery/internal/api/invoice/models"

	basesvc "invoice_recovery/internal/api/base/service"
	"invoice_recovery/internal/api/events"
	"invoice_recovery/internal/global"
	"invoice_recovery/internal/logger"
)

// RegisterInvoiceChangeHandler đăng ký handler đánh dấu behavior profile stale
// khi invoice của client thay đổi. Profile stale sẽ được BehaviorRefreshWorker
// phân tích lại ở lượt kế tiếp thay vì recompute đồng bộ trong write path.
func RegisterInvoiceChangeHandler(profiles *BehaviorProfileService) {
	log := logger.GetAppLogger()

	events.OnDataChanged(func(ctx context.Context, e events.DataChangeEvent) {
		if e.CollectionName != global.MongoDB_ColNames.Invoices {
			return
		}

		invoice, ok := e.Document.(invoicemodels.Invoice)
		if !ok {
			return
		}

		// lastAnalyzedAt = 0 đưa profile lên đầu hàng đợi stale
		_, err := profiles.UpdateOne(ctx, bson.M{
			"clientId":            invoice.ClientID,
			"ownerOrganizationId": invoice.OwnerOrganizationID,
		}, &basesvc.UpdateData{Set: map[string]interface{}{
			"lastAnalyzedAt": int64(0),
		}}, nil)
		if err != nil {
			// Client chưa có profile: không có gì để đánh dấu
			return
		}

		log.WithField("clientId", invoice.ClientID.Hex()).
			Debug("🔖 [BEHAVIOR] Đã đánh dấu profile stale do invoice thay đổi")
	})
}
