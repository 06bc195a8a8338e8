package utility

import (
	"fmt"
	"strings"
)

// NormalizePhoneNumber chuẩn hóa số điện thoại về dạng chuỗi số có mã quốc gia
// (vd: "+55 (11) 98765-4321" → "5511987654321"). Dùng trước khi gửi WhatsApp.
//
// Quy tắc:
//   - Loại bỏ mọi ký tự không phải số
//   - Số bắt đầu bằng "00" (international prefix) → bỏ "00"
//   - Số bắt đầu bằng "0" (trunk prefix nội địa) → bỏ "0" và thêm defaultCountryCode
//   - Số chưa có mã quốc gia (ngắn hơn 11 số sau khi strip) → thêm defaultCountryCode
func NormalizePhoneNumber(raw string, defaultCountryCode string) (string, error) {
	var sb strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := sb.String()

	if len(digits) < 8 {
		return "", fmt.Errorf("số điện thoại không hợp lệ: %q", raw)
	}

	switch {
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		digits = defaultCountryCode + digits[1:]
	case len(digits) <= 10 && !strings.HasPrefix(digits, defaultCountryCode):
		digits = defaultCountryCode + digits
	}

	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("số điện thoại sau chuẩn hóa không hợp lệ: %q", digits)
	}

	return digits, nil
}
