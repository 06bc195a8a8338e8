// Package escalation định nghĩa thang leo thang reminder và bảng cấu hình tĩnh theo stage.
// Bảng cấu hình là immutable, load một lần khi khởi động process — không phải global state mutable.
package escalation

// Stage là một bậc trong thang leo thang gentle → standard → urgent → final.
// stopped là trạng thái terminal, không có cấu hình gửi.
type Stage string

const (
	StageGentle   Stage = "gentle"
	StageStandard Stage = "standard"
	StageUrgent   Stage = "urgent"
	StageFinal    Stage = "final"
	StageStopped  Stage = "stopped"
)

// Tone của nội dung reminder, map 1-1 từ stage
const (
	ToneFriendly     = "friendly"
	ToneProfessional = "professional"
	ToneUrgent       = "urgent"
	ToneFinal        = "final"
)

// ladder là thứ tự các stage có thể gửi, dùng cho Index/Next
var ladder = []Stage{StageGentle, StageStandard, StageUrgent, StageFinal}

// StageConfig là cấu hình tĩnh cho một stage: tone nội dung, subject template,
// emoji/màu header cho email, và số ngày sau hạn mà stage này thường áp dụng.
type StageConfig struct {
	Stage           Stage
	Tone            string
	SubjectTemplate string // biến: {{invoiceNumber}}, {{clientName}}
	Emoji           string
	HeaderColor     string // màu header của email HTML
	DaysAfterDue    int    // mốc ngày-quá-hạn tham khảo của stage
}

// stageConfigs là bảng cấu hình cố định, khởi tạo một lần lúc load package.
var stageConfigs = map[Stage]StageConfig{
	StageGentle: {
		Stage:           StageGentle,
		Tone:            ToneFriendly,
		SubjectTemplate: "Nhắc nhẹ: hóa đơn {{invoiceNumber}} đang chờ thanh toán",
		Emoji:           "😊",
		HeaderColor:     "#4A90D9",
		DaysAfterDue:    3,
	},
	StageStandard: {
		Stage:           StageStandard,
		Tone:            ToneProfessional,
		SubjectTemplate: "Hóa đơn {{invoiceNumber}} đã quá hạn thanh toán",
		Emoji:           "📋",
		HeaderColor:     "#E8A33D",
		DaysAfterDue:    7,
	},
	StageUrgent: {
		Stage:           StageUrgent,
		Tone:            ToneUrgent,
		SubjectTemplate: "KHẨN: hóa đơn {{invoiceNumber}} cần thanh toán ngay",
		Emoji:           "⚠️",
		HeaderColor:     "#E2574C",
		DaysAfterDue:    14,
	},
	StageFinal: {
		Stage:           StageFinal,
		Tone:            ToneFinal,
		SubjectTemplate: "Thông báo cuối cùng về hóa đơn {{invoiceNumber}}",
		Emoji:           "🚨",
		HeaderColor:     "#8B0000",
		DaysAfterDue:    21,
	},
}

// Config trả về cấu hình của stage. ok=false nếu stage không có cấu hình gửi (stopped hoặc không hợp lệ).
func Config(s Stage) (StageConfig, bool) {
	cfg, ok := stageConfigs[s]
	return cfg, ok
}

// Index trả về vị trí của stage trong thang (gentle=0 ... final=3), -1 nếu không thuộc thang.
func Index(s Stage) int {
	for i, st := range ladder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next trả về stage kế tiếp trong thang. ok=false nếu đã ở final (không còn stage sau).
func Next(s Stage) (Stage, bool) {
	idx := Index(s)
	if idx < 0 || idx >= len(ladder)-1 {
		return s, false
	}
	return ladder[idx+1], true
}

// IsValid kiểm tra stage có thuộc thang gửi không
func IsValid(s Stage) bool {
	return Index(s) >= 0
}
