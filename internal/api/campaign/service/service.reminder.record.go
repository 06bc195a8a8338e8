// Package services - CampaignService, ReminderRecordService và CampaignEngine cho domain Campaign.
package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invoice_recovery/internal/api/campaign/models"

	basesvc "invoice_recovery/internal/api/base/service"
	"invoice_recovery/internal/global"
)

// ReminderRecordService quản lý audit trail các lần gửi reminder.
// Record là append-only: chỉ các transition trạng thái delivery được phép mutate.
type ReminderRecordService struct {
	*basesvc.BaseServiceMongoImpl[models.ReminderRecord]
}

// NewReminderRecordService tạo mới ReminderRecordService
func NewReminderRecordService() (*ReminderRecordService, error) {
	col, err := global.RegistryCollections.Get(global.MongoDB_ColNames.ReminderRecords)
	if err != nil {
		return nil, err
	}
	return NewReminderRecordServiceWithCollection(col), nil
}

// NewReminderRecordServiceWithCollection tạo service với collection được inject (dùng cho test)
func NewReminderRecordServiceWithCollection(col *mongo.Collection) *ReminderRecordService {
	return &ReminderRecordService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.ReminderRecord](col),
	}
}

// Append ghi một record mới với trạng thái pending. Phải được gọi TRƯỚC khi
// thực hiện external send để crash giữa chừng vẫn để lại dấu vết.
func (s *ReminderRecordService) Append(ctx context.Context, record models.ReminderRecord) (models.ReminderRecord, error) {
	record.DeliveryStatus = models.RecordStatusPending
	return s.InsertOne(ctx, record)
}

// MarkSent chuyển record pending → sent sau khi external send thành công
func (s *ReminderRecordService) MarkSent(ctx context.Context, recordID primitive.ObjectID, externalMessageID string, sentAtMillis int64) error {
	set := map[string]interface{}{
		"deliveryStatus": models.RecordStatusSent,
		"sentAt":         sentAtMillis,
	}
	if externalMessageID != "" {
		set["externalMessageId"] = externalMessageID
	}
	_, err := s.UpdateOne(ctx, bson.M{
		"_id":            recordID,
		"deliveryStatus": models.RecordStatusPending,
	}, &basesvc.UpdateData{Set: set}, nil)
	return err
}

// MarkFailed chuyển record pending → failed kèm error message
func (s *ReminderRecordService) MarkFailed(ctx context.Context, recordID primitive.ObjectID, errorMessage string) error {
	_, err := s.UpdateOne(ctx, bson.M{
		"_id":            recordID,
		"deliveryStatus": models.RecordStatusPending,
	}, &basesvc.UpdateData{Set: map[string]interface{}{
		"deliveryStatus": models.RecordStatusFailed,
		"errorMessage":   errorMessage,
	}}, nil)
	return err
}

// MarkDelivered cập nhật record sent → delivered theo external message id (từ webhook provider)
func (s *ReminderRecordService) MarkDelivered(ctx context.Context, externalMessageID string, deliveredAtMillis int64) error {
	_, err := s.UpdateOne(ctx, bson.M{
		"externalMessageId": externalMessageID,
		"deliveryStatus":    models.RecordStatusSent,
	}, &basesvc.UpdateData{Set: map[string]interface{}{
		"deliveryStatus": models.RecordStatusDelivered,
		"deliveredAt":    deliveredAtMillis,
	}}, nil)
	return err
}

// MarkRead cập nhật record delivered/sent → read theo external message id
func (s *ReminderRecordService) MarkRead(ctx context.Context, externalMessageID string, readAtMillis int64) error {
	_, err := s.UpdateOne(ctx, bson.M{
		"externalMessageId": externalMessageID,
		"deliveryStatus": bson.M{"$in": []string{
			models.RecordStatusSent, models.RecordStatusDelivered,
		}},
	}, &basesvc.UpdateData{Set: map[string]interface{}{
		"deliveryStatus": models.RecordStatusRead,
		"readAt":         readAtMillis,
	}}, nil)
	return err
}

// FindByCampaign trả về lịch sử gửi của một campaign, mới nhất trước
func (s *ReminderRecordService) FindByCampaign(ctx context.Context, campaignID primitive.ObjectID) ([]models.ReminderRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.Find(ctx, bson.M{"campaignId": campaignID}, opts)
}
