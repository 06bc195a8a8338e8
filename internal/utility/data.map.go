// Package utility chứa các helper dùng chung: chuyển đổi dữ liệu, chuẩn hóa format.
package utility

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// ToMap chuyển đổi struct thành map[string]interface{} theo bson tags.
// Dùng bởi base service khi cần thêm timestamps vào document trước khi insert/update.
func ToMap(data interface{}) (map[string]interface{}, error) {
	if data == nil {
		return nil, fmt.Errorf("data không được nil")
	}

	// Nếu đã là map, trả về luôn
	if m, ok := data.(map[string]interface{}); ok {
		return m, nil
	}

	raw, err := bson.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("lỗi khi marshal data: %w", err)
	}

	var result map[string]interface{}
	if err := bson.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("lỗi khi unmarshal data thành map: %w", err)
	}

	return result, nil
}
