// Package models - Client thuộc domain Client (external collaborator, engine chỉ đọc).
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client - Khách hàng của một organization.
// Engine chỉ đọc dữ liệu client (email, phone, trạng thái WhatsApp) để quyết định kênh gửi.
type Client struct {
	ID                  primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerOrganizationID primitive.ObjectID `json:"ownerOrganizationId" bson:"ownerOrganizationId" index:"single:1"`
	Name                string             `json:"name" bson:"name"`
	Email               string             `json:"email,omitempty" bson:"email,omitempty"`
	PhoneNumber         string             `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	WhatsAppEnabled     bool               `json:"whatsappEnabled" bson:"whatsappEnabled"`
	// IncomingWhatsAppCount đếm số message WhatsApp khách đã gửi đến (do webhook subsystem cập nhật).
	// Dùng để suy ra preferred channel: > 5 messages → khách quen dùng WhatsApp.
	IncomingWhatsAppCount int   `json:"incomingWhatsappCount" bson:"incomingWhatsappCount"`
	IsActive              bool  `json:"isActive" bson:"isActive" index:"single:1"`
	CreatedAt             int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt             int64 `json:"updatedAt" bson:"updatedAt"`
}
