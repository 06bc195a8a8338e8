package global

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// Validator là validator instance toàn cục (go-playground/validator)
	Validator *validator.Validate

	validatorOnce sync.Once
)

// InitValidator khởi tạo validator toàn cục và đăng ký các custom validators.
func InitValidator() {
	validatorOnce.Do(func() {
		Validator = validator.New()

		// send_day: tên thứ trong tuần hợp lệ (Monday..Sunday)
		_ = Validator.RegisterValidation("send_day", func(fl validator.FieldLevel) bool {
			switch strings.ToLower(fl.Field().String()) {
			case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
				return true
			}
			return false
		})

		// reminder_channel: kênh gửi hợp lệ
		_ = Validator.RegisterValidation("reminder_channel", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "email", "whatsapp", "both":
				return true
			}
			return false
		})
	})
}
