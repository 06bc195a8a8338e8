// Package common chứa error types, error codes và HTTP status constants dùng chung toàn ứng dụng.
package common

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// HTTP status constants
const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusConflict            = 409
	StatusUnprocessableEntity = 422
	StatusInternalServerError = 500
	StatusServiceUnavailable  = 503
)

// MsgSuccess là message mặc định cho response thành công
const MsgSuccess = "Thành công"

// ErrorCode định danh loại lỗi, dùng cho client phân loại lỗi
type ErrorCode struct {
	Code        string // Mã lỗi (vd: DB01, VAL01)
	Description string // Mô tả loại lỗi
}

// Các error codes chuẩn của hệ thống
var (
	ErrCodeDatabase          = ErrorCode{Code: "DB01", Description: "Lỗi thao tác database"}
	ErrCodeDatabaseDuplicate = ErrorCode{Code: "DB02", Description: "Dữ liệu bị trùng lặp"}
	ErrCodeValidationInput   = ErrorCode{Code: "VAL01", Description: "Dữ liệu đầu vào không hợp lệ"}
	ErrCodeValidationFormat  = ErrorCode{Code: "VAL02", Description: "Định dạng dữ liệu không hợp lệ"}
	ErrCodeBusinessOperation = ErrorCode{Code: "BIZ01", Description: "Thao tác nghiệp vụ không hợp lệ"}
	ErrCodeTransport         = ErrorCode{Code: "TRANS01", Description: "Lỗi gửi qua kênh external"}
	ErrCodeInternalServer    = ErrorCode{Code: "SYS01", Description: "Lỗi hệ thống"}
)

// Error là custom error của ứng dụng, mang theo code, message và HTTP status.
type Error struct {
	Code       ErrorCode   // Mã lỗi
	Message    string      // Message cho client
	StatusCode int         // HTTP status code
	Details    interface{} // Chi tiết bổ sung (optional)
	cause      error       // Lỗi gốc (để unwrap)
}

// NewError tạo một *Error mới
func NewError(code ErrorCode, message string, statusCode int, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		cause:      cause,
	}
}

// Error implement error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code.Code, e.Message)
}

// Unwrap trả về lỗi gốc để errors.Is/As hoạt động
func (e *Error) Unwrap() error {
	return e.cause
}

// Sentinel errors dùng chung
var (
	ErrNotFound      = errors.New("không tìm thấy dữ liệu")
	ErrRequiredField = errors.New("thiếu trường bắt buộc")
	ErrInvalidFormat = errors.New("định dạng dữ liệu không hợp lệ")
)

// ConvertMongoError chuyển lỗi MongoDB driver thành error chuẩn của ứng dụng.
// Duplicate key → DB02, no documents → ErrNotFound, còn lại → DB01.
func ConvertMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return NewError(ErrCodeDatabaseDuplicate, "Dữ liệu bị trùng lặp (vi phạm unique index)", StatusConflict, err)
	}
	return NewError(ErrCodeDatabase, "Lỗi thao tác database", StatusInternalServerError, err)
}
