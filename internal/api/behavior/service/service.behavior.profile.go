// Package services - BehaviorProfileService và BehaviorAnalyzer cho domain Behavior.
package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invoice_recovery/internal/api/behavior/models"

	basesvc "invoice_recovery/internal/api/base/service"
	"invoice_recovery/internal/global"
	"invoice_recovery/internal/utility"
)

// BehaviorProfileService quản lý lưu trữ BehaviorProfile.
// Mỗi cặp (clientId, ownerOrganizationId) có đúng một profile; ghi đè toàn bộ mỗi lần phân tích.
type BehaviorProfileService struct {
	*basesvc.BaseServiceMongoImpl[models.BehaviorProfile]
}

// NewBehaviorProfileService tạo mới BehaviorProfileService
func NewBehaviorProfileService() (*BehaviorProfileService, error) {
	col, err := global.RegistryCollections.Get(global.MongoDB_ColNames.BehaviorProfiles)
	if err != nil {
		return nil, err
	}
	return NewBehaviorProfileServiceWithCollection(col), nil
}

// NewBehaviorProfileServiceWithCollection tạo service với collection được inject (dùng cho test)
func NewBehaviorProfileServiceWithCollection(col *mongo.Collection) *BehaviorProfileService {
	return &BehaviorProfileService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.BehaviorProfile](col),
	}
}

// FindByClient tìm profile của một client trong một organization
func (s *BehaviorProfileService) FindByClient(ctx context.Context, clientID, orgID primitive.ObjectID) (models.BehaviorProfile, error) {
	return s.FindOne(ctx, bson.M{
		"clientId":            clientID,
		"ownerOrganizationId": orgID,
	}, nil)
}

// ReplaceForClient ghi đè toàn bộ profile cho một client (upsert theo unique key).
// Tính lại toàn bộ, không update tăng dần.
func (s *BehaviorProfileService) ReplaceForClient(ctx context.Context, profile models.BehaviorProfile) (models.BehaviorProfile, error) {
	dataMap, err := utility.ToMap(profile)
	if err != nil {
		return models.BehaviorProfile{}, err
	}
	// _id và createdAt do storage quản lý, không thuộc nội dung profile
	delete(dataMap, "_id")
	delete(dataMap, "createdAt")
	delete(dataMap, "updatedAt")

	return s.Upsert(ctx, bson.M{
		"clientId":            profile.ClientID,
		"ownerOrganizationId": profile.OwnerOrganizationID,
	}, dataMap)
}

// FindStale tìm các profile chưa được phân tích lại trong staleDays ngày,
// giới hạn limit bản ghi. Dùng bởi behavior refresh worker.
func (s *BehaviorProfileService) FindStale(ctx context.Context, staleDays int, limit int64) ([]models.BehaviorProfile, error) {
	cutoff := time.Now().AddDate(0, 0, -staleDays).UnixMilli()
	opts := options.Find().
		SetSort(bson.D{{Key: "lastAnalyzedAt", Value: 1}}).
		SetLimit(limit)
	return s.Find(ctx, bson.M{
		"lastAnalyzedAt": bson.M{"$lt": cutoff},
	}, opts)
}
