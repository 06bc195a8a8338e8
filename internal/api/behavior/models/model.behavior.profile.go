// Package models - BehaviorProfile thuộc domain Behavior.
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kênh liên lạc ưa thích của client
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelBoth     = "both"
)

// Phân loại rủi ro, suy ra từ ChurnRiskScore theo ngưỡng cố định
const (
	RiskCategoryLow    = "low"    // score < 0.3
	RiskCategoryMedium = "medium" // score < 0.6
	RiskCategoryHigh   = "high"   // score >= 0.6
)

// BehaviorProfile - Hồ sơ hành vi thanh toán của một client trong một organization.
// Mỗi cặp (clientId, ownerOrganizationId) có đúng một profile (unique compound index).
// Profile được tính lại toàn bộ mỗi lần phân tích, không update tăng dần.
type BehaviorProfile struct {
	ID                  primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	ClientID            primitive.ObjectID `json:"clientId" bson:"clientId" index:"compound:behavior_client_org_unique"`
	OwnerOrganizationID primitive.ObjectID `json:"ownerOrganizationId" bson:"ownerOrganizationId" index:"compound:behavior_client_org_unique"`

	// Thống kê tốc độ thanh toán
	AvgPaymentDays    int     `json:"avgPaymentDays" bson:"avgPaymentDays"`       // mean(paidAt - dueDate) theo ngày, clamp >= 0
	TotalInvoices     int     `json:"totalInvoices" bson:"totalInvoices"`
	PaidOnTimeCount   int     `json:"paidOnTimeCount" bson:"paidOnTimeCount"`
	LatePaymentCount  int     `json:"latePaymentCount" bson:"latePaymentCount"`
	OnTimePaymentRate float64 `json:"onTimePaymentRate" bson:"onTimePaymentRate"` // phần trăm 0-100, 2 số lẻ

	// Cửa sổ liên lạc tối ưu
	OptimalSendHour int    `json:"optimalSendHour" bson:"optimalSendHour"` // giờ trong [9,17]
	OptimalSendDay  string `json:"optimalSendDay" bson:"optimalSendDay"`   // Monday..Sunday

	PreferredChannel string `json:"preferredChannel" bson:"preferredChannel"` // email | whatsapp | both

	// Phản ứng với discount
	RespondsToDiscounts   bool     `json:"respondsToDiscounts" bson:"respondsToDiscounts"`
	EffectiveDiscountRate *float64 `json:"effectiveDiscountRate,omitempty" bson:"effectiveDiscountRate,omitempty"`

	// Rủi ro churn
	ChurnRiskScore float64 `json:"churnRiskScore" bson:"churnRiskScore"` // [0.0, 1.0], 2 số lẻ
	RiskCategory   string  `json:"riskCategory" bson:"riskCategory" index:"single:1"`

	LastAnalyzedAt int64 `json:"lastAnalyzedAt" bson:"lastAnalyzedAt" index:"single:1"`
	CreatedAt      int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt      int64 `json:"updatedAt" bson:"updatedAt"`
}

// QualifiesForDiscount trả về true nếu profile đủ điều kiện nhận discount offer.
// Việc loại trừ stage final do Scheduling Strategy quyết định, không phải ở đây.
func (p *BehaviorProfile) QualifiesForDiscount() bool {
	return p.RespondsToDiscounts
}

// RiskCategoryFromScore suy ra risk category từ score theo ngưỡng cố định.
func RiskCategoryFromScore(score float64) string {
	switch {
	case score < 0.3:
		return RiskCategoryLow
	case score < 0.6:
		return RiskCategoryMedium
	default:
		return RiskCategoryHigh
	}
}
