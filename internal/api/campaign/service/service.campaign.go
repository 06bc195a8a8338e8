package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invoice_recovery/internal/api/campaign/models"

	basesvc "invoice_recovery/internal/api/base/service"
	"invoice_recovery/internal/common"
	"invoice_recovery/internal/escalation"
	"invoice_recovery/internal/global"
	"invoice_recovery/internal/scheduling"
)

// leaseStaleAfter là thời gian tối đa một worker được giữ lease; lease cũ hơn
// ngưỡng này coi như worker đã chết và được reclaim.
const leaseStaleAfter = 10 * time.Minute

// CampaignService quản lý lifecycle của ReminderCampaign: tạo, chọn campaigns đến hạn,
// lease chống xử lý đồng thời, cập nhật sau khi gửi và các transition dừng.
type CampaignService struct {
	*basesvc.BaseServiceMongoImpl[models.ReminderCampaign]
}

// NewCampaignService tạo mới CampaignService
func NewCampaignService() (*CampaignService, error) {
	col, err := global.RegistryCollections.Get(global.MongoDB_ColNames.ReminderCampaigns)
	if err != nil {
		return nil, err
	}
	return NewCampaignServiceWithCollection(col), nil
}

// NewCampaignServiceWithCollection tạo service với collection được inject (dùng cho test)
func NewCampaignServiceWithCollection(col *mongo.Collection) *CampaignService {
	return &CampaignService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.ReminderCampaign](col),
	}
}

// StartAutomation tạo campaign mới cho một invoice với stage gentle.
// Mỗi invoice chỉ có tối đa một campaign active; trả về lỗi conflict nếu đã có.
func (s *CampaignService) StartAutomation(ctx context.Context, invoiceID, clientID, orgID primitive.ObjectID, strategy scheduling.SendStrategy, nextAtMillis int64) (models.ReminderCampaign, error) {
	exists, err := s.DocumentExists(ctx, bson.M{
		"invoiceId": invoiceID,
		"status":    models.CampaignStatusActive,
	})
	if err != nil {
		return models.ReminderCampaign{}, err
	}
	if exists {
		return models.ReminderCampaign{}, common.NewError(
			common.ErrCodeDatabaseDuplicate,
			"Invoice đã có campaign đang chạy",
			common.StatusConflict,
			nil,
		)
	}

	campaign := models.ReminderCampaign{
		InvoiceID:           invoiceID,
		ClientID:            clientID,
		OwnerOrganizationID: orgID,
		CurrentStage:        string(escalation.StageGentle),
		Channel:             strategy.Channel,
		ScheduledHour:       strategy.SendHour,
		ScheduledDay:        strategy.SendDay,
		NextScheduledAt:     &nextAtMillis,
		Status:              models.CampaignStatusActive,
	}
	return s.InsertOne(ctx, campaign)
}

// FindDue chọn các campaign active đến hạn (nextScheduledAt <= now), tối đa limit bản ghi.
// Các campaign đang bị worker khác giữ lease còn tươi sẽ bị loại.
func (s *CampaignService) FindDue(ctx context.Context, nowMillis int64, limit int64) ([]models.ReminderCampaign, error) {
	staleBefore := nowMillis - leaseStaleAfter.Milliseconds()
	opts := options.Find().
		SetSort(bson.D{{Key: "nextScheduledAt", Value: 1}}).
		SetLimit(limit)
	return s.Find(ctx, bson.M{
		"status":          models.CampaignStatusActive,
		"nextScheduledAt": bson.M{"$lte": nowMillis},
		"$or": []bson.M{
			{"processingBy": bson.M{"$in": []interface{}{nil, ""}}},
			{"processingAt": bson.M{"$lt": staleBefore}},
		},
	}, opts)
}

// AcquireLease giành quyền xử lý độc quyền một campaign bằng CAS trên processingBy.
// Trả về ErrNotFound nếu campaign đã bị worker khác giữ hoặc không còn active —
// caller phải bỏ qua campaign đó, không retry.
func (s *CampaignService) AcquireLease(ctx context.Context, campaignID primitive.ObjectID, token string, nowMillis int64) (models.ReminderCampaign, error) {
	staleBefore := nowMillis - leaseStaleAfter.Milliseconds()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return s.FindOneAndUpdate(ctx, bson.M{
		"_id":    campaignID,
		"status": models.CampaignStatusActive,
		"$or": []bson.M{
			{"processingBy": bson.M{"$in": []interface{}{nil, ""}}},
			{"processingAt": bson.M{"$lt": staleBefore}},
		},
	}, &basesvc.UpdateData{Set: map[string]interface{}{
		"processingBy": token,
		"processingAt": nowMillis,
	}}, opts)
}

// ReleaseLease trả lease về. Chỉ worker đang giữ đúng token mới release được;
// lease đã bị reclaim bởi worker khác thì bỏ qua im lặng.
func (s *CampaignService) ReleaseLease(ctx context.Context, campaignID primitive.ObjectID, token string) {
	_, err := s.UpdateOne(ctx, bson.M{
		"_id":          campaignID,
		"processingBy": token,
	}, &basesvc.UpdateData{Unset: map[string]interface{}{
		"processingBy": "",
		"processingAt": "",
	}}, nil)
	_ = err // lease đã đổi chủ hoặc campaign đã terminal: không có gì để làm
}

// UpdateAfterSend cập nhật campaign sau một lần gửi thành công: tăng counter,
// ghi nhận stage (có thể đã leo thang) và plan cho lần gửi kế tiếp.
//
// Filter yêu cầu status active: nếu campaign bị dừng trong lúc đang gửi,
// update này không match (ErrNotFound) — lần gửi đã xong nhưng KHÔNG reschedule.
func (s *CampaignService) UpdateAfterSend(ctx context.Context, campaignID primitive.ObjectID, stage escalation.Stage, strategy scheduling.SendStrategy, nextAtMillis, sentAtMillis int64) (models.ReminderCampaign, error) {
	return s.UpdateOne(ctx, bson.M{
		"_id":    campaignID,
		"status": models.CampaignStatusActive,
	}, &basesvc.UpdateData{
		Set: map[string]interface{}{
			"currentStage":       string(stage),
			"channel":            strategy.Channel,
			"scheduledHour":      strategy.SendHour,
			"scheduledDay":       strategy.SendDay,
			"nextScheduledAt":    nextAtMillis,
			"lastReminderSentAt": sentAtMillis,
		},
		Inc: map[string]interface{}{
			"totalRemindersSent": 1,
		},
	}, nil)
}

// Stop dừng campaign: status terminal, stage stopped, xóa lịch gửi kế tiếp.
func (s *CampaignService) Stop(ctx context.Context, campaignID primitive.ObjectID, status, stopReason string) (models.ReminderCampaign, error) {
	return s.UpdateOne(ctx, bson.M{
		"_id":    campaignID,
		"status": bson.M{"$in": []string{models.CampaignStatusActive, models.CampaignStatusPaused}},
	}, &basesvc.UpdateData{
		Set: map[string]interface{}{
			"status":       status,
			"stopReason":   stopReason,
			"currentStage": string(escalation.StageStopped),
		},
		Unset: map[string]interface{}{
			"nextScheduledAt": "",
			"processingBy":    "",
			"processingAt":    "",
		},
	}, nil)
}

// MarkPaymentReceived kết thúc campaign vì invoice đã thanh toán.
func (s *CampaignService) MarkPaymentReceived(ctx context.Context, campaignID primitive.ObjectID, receivedAtMillis int64) (models.ReminderCampaign, error) {
	return s.UpdateOne(ctx, bson.M{
		"_id":    campaignID,
		"status": bson.M{"$in": []string{models.CampaignStatusActive, models.CampaignStatusPaused}},
	}, &basesvc.UpdateData{
		Set: map[string]interface{}{
			"status":            models.CampaignStatusCompleted,
			"stopReason":        models.StopReasonPaymentReceived,
			"currentStage":      string(escalation.StageStopped),
			"paymentReceived":   true,
			"paymentReceivedAt": receivedAtMillis,
		},
		Unset: map[string]interface{}{
			"nextScheduledAt": "",
			"processingBy":    "",
			"processingAt":    "",
		},
	}, nil)
}

// FindActiveByInvoice tìm campaign active của một invoice (dùng bởi payment webhook)
func (s *CampaignService) FindActiveByInvoice(ctx context.Context, invoiceID primitive.ObjectID) (models.ReminderCampaign, error) {
	return s.FindOne(ctx, bson.M{
		"invoiceId": invoiceID,
		"status":    models.CampaignStatusActive,
	}, nil)
}
