// Package scheduling quyết định kế hoạch gửi reminder: kênh, tone khuyến nghị,
// discount offer và thời điểm gửi kế tiếp, dựa trên BehaviorProfile và escalation stage.
package scheduling

import (
	"time"

	behaviormodels "invoice_recovery/internal/api/behavior/models"
	"invoice_recovery/internal/escalation"
)

// DefaultMinLead là khoảng đệm tối thiểu giữa "bây giờ" và lần gửi kế tiếp,
// tránh re-send gần như ngay lập tức khi slot mục tiêu trùng với thời điểm hiện tại.
const DefaultMinLead = 4 * time.Hour

// SendStrategy là kế hoạch gửi cho một lần reminder.
// RecommendedTone chỉ là khuyến nghị từ risk category; template nội dung thực tế
// do currentStage của campaign quyết định.
type SendStrategy struct {
	SendHour        int     `json:"sendHour"`
	SendDay         string  `json:"sendDay"`
	Channel         string  `json:"channel"`
	RiskCategory    string  `json:"riskCategory"`
	OfferDiscount   bool    `json:"offerDiscount"`
	DiscountRate    float64 `json:"discountRate,omitempty"`
	RecommendedTone string  `json:"recommendedTone"`
}

// toneByRisk map risk category sang tone khuyến nghị
var toneByRisk = map[string]string{
	behaviormodels.RiskCategoryHigh:   "urgent",
	behaviormodels.RiskCategoryMedium: "standard",
	behaviormodels.RiskCategoryLow:    "gentle",
}

// Build xây dựng SendStrategy từ profile và stage hiện tại của campaign.
// Discount không bao giờ được offer khi campaign đã ở stage final.
func Build(profile *behaviormodels.BehaviorProfile, stage escalation.Stage) SendStrategy {
	strategy := SendStrategy{
		SendHour:        profile.OptimalSendHour,
		SendDay:         profile.OptimalSendDay,
		Channel:         profile.PreferredChannel,
		RiskCategory:    profile.RiskCategory,
		RecommendedTone: toneByRisk[profile.RiskCategory],
	}
	if strategy.RecommendedTone == "" {
		strategy.RecommendedTone = "standard"
	}

	if profile.QualifiesForDiscount() && stage != escalation.StageFinal {
		strategy.OfferDiscount = true
		if profile.EffectiveDiscountRate != nil {
			strategy.DiscountRate = *profile.EffectiveDiscountRate
		}
	}
	return strategy
}

// weekdayIndex map tên ngày sang index Sun=0..Sat=6 (theo time.Weekday)
var weekdayIndex = map[string]int{
	"Sunday":    0,
	"Monday":    1,
	"Tuesday":   2,
	"Wednesday": 3,
	"Thursday":  4,
	"Friday":    5,
	"Saturday":  6,
}

// NextSendTime tính thời điểm gửi kế tiếp từ (now, ngày mục tiêu, giờ mục tiêu).
// Hàm thuần: cùng input luôn cho cùng output, không có randomness.
//
//  1. daysUntil = (targetIdx - nowIdx + 7) mod 7
//  2. Nếu daysUntil == 0 và giờ hiện tại >= giờ mục tiêu, slot hôm nay đã qua → +7 ngày
//  3. Set time-of-day của ngày kết quả về targetHour:00:00
//  4. Nếu kết quả cách now dưới minLead, đẩy về now + minLead
func NextSendTime(now time.Time, targetDay string, targetHour int, minLead time.Duration) time.Time {
	targetIdx, ok := weekdayIndex[targetDay]
	if !ok {
		targetIdx = weekdayIndex["Tuesday"]
	}
	if minLead <= 0 {
		minLead = DefaultMinLead
	}

	daysUntil := (targetIdx - int(now.Weekday()) + 7) % 7
	if daysUntil == 0 && now.Hour() >= targetHour {
		daysUntil = 7
	}

	target := now.AddDate(0, 0, daysUntil)
	result := time.Date(target.Year(), target.Month(), target.Day(), targetHour, 0, 0, 0, now.Location())

	if result.Sub(now) < minLead {
		result = now.Add(minLead)
	}
	return result
}
