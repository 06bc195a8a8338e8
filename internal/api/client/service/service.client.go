// Package services - ClientService cho domain Client.
package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"invoice_recovery/internal/api/client/models"

	basesvc "invoice_recovery/internal/api/base/service"
	"invoice_recovery/internal/global"
)

// ClientService cung cấp truy cập read-only vào dữ liệu client.
// Engine chỉ đọc client để quyết định kênh gửi và thông tin người nhận.
type ClientService struct {
	*basesvc.BaseServiceMongoImpl[models.Client]
}

// NewClientService tạo mới ClientService
func NewClientService() (*ClientService, error) {
	col, err := global.RegistryCollections.Get(global.MongoDB_ColNames.Clients)
	if err != nil {
		return nil, err
	}
	return NewClientServiceWithCollection(col), nil
}

// NewClientServiceWithCollection tạo ClientService với collection được inject (dùng cho test)
func NewClientServiceWithCollection(col *mongo.Collection) *ClientService {
	return &ClientService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.Client](col),
	}
}

// FindActiveByOrganization tìm các client đang active của một organization
func (s *ClientService) FindActiveByOrganization(ctx context.Context, orgID primitive.ObjectID) ([]models.Client, error) {
	return s.Find(ctx, bson.M{
		"ownerOrganizationId": orgID,
		"isActive":            true,
	}, nil)
}
