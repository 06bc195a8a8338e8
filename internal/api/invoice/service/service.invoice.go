// Package services - InvoiceService cho domain Invoice.
package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invoice_recovery/internal/api/invoice/models"

	basesvc "invoice_recovery/internal/api/base/service"
	"invoice_recovery/internal/global"
)

// InvoiceService cung cấp truy cập vào dữ liệu invoice.
// Engine đọc invoice history và yêu cầu tăng reminder counters qua service này;
// các trường nghiệp vụ khác thuộc quyền của invoicing subsystem.
type InvoiceService struct {
	*basesvc.BaseServiceMongoImpl[models.Invoice]
}

// NewInvoiceService tạo mới InvoiceService
func NewInvoiceService() (*InvoiceService, error) {
	col, err := global.RegistryCollections.Get(global.MongoDB_ColNames.Invoices)
	if err != nil {
		return nil, err
	}
	return NewInvoiceServiceWithCollection(col), nil
}

// NewInvoiceServiceWithCollection tạo InvoiceService với collection được inject (dùng cho test)
func NewInvoiceServiceWithCollection(col *mongo.Collection) *InvoiceService {
	return &InvoiceService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.Invoice](col),
	}
}

// FindByClient trả về toàn bộ invoice history của một client trong một organization,
// sắp xếp theo createdAt tăng dần. Đây là input cho Behavior Analyzer.
func (s *InvoiceService) FindByClient(ctx context.Context, clientID, orgID primitive.ObjectID) ([]models.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return s.Find(ctx, bson.M{
		"clientId":            clientID,
		"ownerOrganizationId": orgID,
	}, opts)
}

// IncrementReminderCounters tăng remindersSent và cập nhật lastReminderSentAt/escalationLevel.
// Được gọi sau khi dispatch thành công ít nhất một channel.
func (s *InvoiceService) IncrementReminderCounters(ctx context.Context, invoiceID primitive.ObjectID, escalationLevel int, sentAtMillis int64) error {
	_, err := s.UpdateOne(ctx, bson.M{"_id": invoiceID}, &basesvc.UpdateData{
		Set: map[string]interface{}{
			"lastReminderSentAt": sentAtMillis,
			"escalationLevel":    escalationLevel,
		},
		Inc: map[string]interface{}{
			"remindersSent": 1,
		},
	}, nil)
	return err
}

// MarkPaid đánh dấu invoice đã thanh toán (gọi từ payment webhook)
func (s *InvoiceService) MarkPaid(ctx context.Context, invoiceID primitive.ObjectID, paidAtMillis int64) (models.Invoice, error) {
	return s.UpdateOne(ctx, bson.M{"_id": invoiceID}, &basesvc.UpdateData{
		Set: map[string]interface{}{
			"status": models.InvoiceStatusPaid,
			"paidAt": paidAtMillis,
		},
	}, nil)
}
