package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	behaviormodels "invoice_recovery/internal/api/behavior/models"
	"invoice_recovery/internal/escalation"
)

func TestNextSendTime_TargetTomorrow(t *testing.T) {
	// Thứ Hai 08:00, mục tiêu thứ Ba 10h → thứ Ba 10:00 tuần này
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	got := NextSendTime(now, "Tuesday", 10, DefaultMinLead)

	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), got)
}

func TestNextSendTime_SameDayLeadBuffer(t *testing.T) {
	// Thứ Ba 09:00, mục tiêu thứ Ba 10h: slot hôm nay chưa qua nhưng chỉ còn 1 tiếng,
	// dưới khoảng đệm 4 tiếng → đẩy về now + 4h = 13:00
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	got := NextSendTime(now, "Tuesday", 10, DefaultMinLead)

	assert.Equal(t, time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC), got)
}

func TestNextSendTime_SameDayAlreadyPassed(t *testing.T) {
	// Thứ Ba 11:00, mục tiêu thứ Ba 10h: slot hôm nay đã qua → tuần sau
	now := time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC)
	got := NextSendTime(now, "Tuesday", 10, DefaultMinLead)

	assert.Equal(t, time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC), got)
}

func TestNextSendTime_Deterministic(t *testing.T) {
	now := time.Date(2024, 3, 7, 14, 30, 0, 0, time.UTC)
	first := NextSendTime(now, "Friday", 9, DefaultMinLead)
	second := NextSendTime(now, "Friday", 9, DefaultMinLead)

	assert.Equal(t, first, second)
}

func TestNextSendTime_UnknownDayFallsBackToTuesday(t *testing.T) {
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC) // thứ Hai
	got := NextSendTime(now, "someday", 10, DefaultMinLead)

	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), got)
}

func TestBuild_DiscountExcludedAtFinalStage(t *testing.T) {
	rate := 5.0
	profile := &behaviormodels.BehaviorProfile{
		OptimalSendHour:       10,
		OptimalSendDay:        "Tuesday",
		PreferredChannel:      behaviormodels.ChannelEmail,
		RiskCategory:          behaviormodels.RiskCategoryMedium,
		RespondsToDiscounts:   true,
		EffectiveDiscountRate: &rate,
	}

	for _, stage := range []escalation.Stage{
		escalation.StageGentle, escalation.StageStandard, escalation.StageUrgent,
	} {
		strategy := Build(profile, stage)
		assert.True(t, strategy.OfferDiscount, "stage %s phải được offer discount", stage)
		assert.Equal(t, 5.0, strategy.DiscountRate)
	}

	// Đã leo đến final: không bao giờ offer discount nữa
	strategy := Build(profile, escalation.StageFinal)
	assert.False(t, strategy.OfferDiscount)
	assert.Equal(t, 0.0, strategy.DiscountRate)
}

func TestBuild_ToneFollowsRiskCategory(t *testing.T) {
	cases := map[string]string{
		behaviormodels.RiskCategoryHigh:   "urgent",
		behaviormodels.RiskCategoryMedium: "standard",
		behaviormodels.RiskCategoryLow:    "gentle",
	}

	for risk, wantTone := range cases {
		profile := &behaviormodels.BehaviorProfile{
			OptimalSendHour:  10,
			OptimalSendDay:   "Tuesday",
			PreferredChannel: behaviormodels.ChannelEmail,
			RiskCategory:     risk,
		}
		strategy := Build(profile, escalation.StageGentle)
		assert.Equal(t, wantTone, strategy.RecommendedTone)
	}
}

func TestBuild_CopiesProfileWindow(t *testing.T) {
	profile := &behaviormodels.BehaviorProfile{
		OptimalSendHour:  14,
		OptimalSendDay:   "Friday",
		PreferredChannel: behaviormodels.ChannelBoth,
		RiskCategory:     behaviormodels.RiskCategoryLow,
	}

	strategy := Build(profile, escalation.StageStandard)

	assert.Equal(t, 14, strategy.SendHour)
	assert.Equal(t, "Friday", strategy.SendDay)
	assert.Equal(t, behaviormodels.ChannelBoth, strategy.Channel)
	assert.Equal(t, behaviormodels.RiskCategoryLow, strategy.RiskCategory)
}
