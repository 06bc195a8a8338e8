package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trạng thái delivery của một lần gửi reminder.
// pending → sent | failed do dispatcher; delivered/read do webhook collaborators cập nhật sau.
const (
	RecordStatusPending   = "pending"
	RecordStatusSent      = "sent"
	RecordStatusDelivered = "delivered"
	RecordStatusRead      = "read"
	RecordStatusFailed    = "failed"
)

// ReminderRecord - Log bất biến cho mỗi lần thử gửi reminder (một row mỗi channel).
// Append-only audit trail: không bao giờ sửa ngoài các transition trạng thái delivery.
// Row được ghi với status=pending TRƯỚC khi gọi external send, để crash giữa chừng
// vẫn để lại dấu vết trong audit trail.
type ReminderRecord struct {
	ID                  primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	CampaignID          primitive.ObjectID `json:"campaignId" bson:"campaignId" index:"single:1"`
	InvoiceID           primitive.ObjectID `json:"invoiceId" bson:"invoiceId" index:"single:1"`
	ClientID            primitive.ObjectID `json:"clientId" bson:"clientId"`
	OwnerOrganizationID primitive.ObjectID `json:"ownerOrganizationId" bson:"ownerOrganizationId" index:"single:1"`

	Stage   string `json:"stage" bson:"stage"`     // escalation stage tại thời điểm gửi
	Tone    string `json:"tone" bson:"tone"`       // friendly | professional | urgent | final
	Channel string `json:"channel" bson:"channel"` // email | whatsapp (mỗi channel một row)

	Recipient string `json:"recipient" bson:"recipient"` // địa chỉ email hoặc số điện thoại đã chuẩn hóa
	Subject   string `json:"subject,omitempty" bson:"subject,omitempty"`
	Content   string `json:"content" bson:"content"` // nội dung đã render

	DeliveryStatus string `json:"deliveryStatus" bson:"deliveryStatus" index:"single:1"`
	ErrorMessage   string `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`

	// ExternalMessageID là message id do transport provider trả về (WhatsApp),
	// dùng để match webhook delivered/read.
	ExternalMessageID string `json:"externalMessageId,omitempty" bson:"externalMessageId,omitempty" index:"single:1"`

	SentAt      *int64 `json:"sentAt,omitempty" bson:"sentAt,omitempty"`
	DeliveredAt *int64 `json:"deliveredAt,omitempty" bson:"deliveredAt,omitempty"`
	ReadAt      *int64 `json:"readAt,omitempty" bson:"readAt,omitempty"`

	CreatedAt int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`
}
