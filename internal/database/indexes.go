package database

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invoice_recovery/internal/logger"
)

// CreateIndexes đọc struct tag `index:` trên model và tạo các index tương ứng cho collection.
//
// Các dạng tag hỗ trợ:
//   - index:"single:1" / index:"single:-1" — single field index, thứ tự tăng/giảm
//   - index:"unique" / index:"unique,sparse" — unique index (có thể sparse)
//   - index:"ttl:86400" — TTL index, expire sau N giây
//   - index:"compound:group_name" — gom các field cùng group thành compound index;
//     group name chứa "_unique" sẽ set unique
func CreateIndexes(ctx context.Context, collection *mongo.Collection, model interface{}) error {
	log := logger.GetAppLogger()

	modelType := reflect.TypeOf(model)
	if modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}

	compoundGroups := map[string]bson.D{}

	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		tag, ok := field.Tag.Lookup("index")
		if !ok {
			continue
		}

		bsonField := bsonFieldName(field)
		if bsonField == "" || bsonField == "-" {
			continue
		}

		for _, part := range strings.Split(tag, ";") {
			part = strings.TrimSpace(part)
			switch {
			case strings.HasPrefix(part, "single:"):
				order := 1
				if strings.HasSuffix(part, ":-1") {
					order = -1
				}
				model := mongo.IndexModel{
					Keys:    bson.D{{Key: bsonField, Value: order}},
					Options: options.Index().SetName(bsonField + "_single"),
				}
				if err := ensureIndex(ctx, collection, model); err != nil {
					return err
				}

			case strings.HasPrefix(part, "unique"):
				opts := options.Index().SetName(bsonField + "_unique").SetUnique(true)
				// Sparse cho phép nhiều document không có field này
				if strings.Contains(part, "sparse") {
					opts = opts.SetSparse(true)
				}
				model := mongo.IndexModel{
					Keys:    bson.D{{Key: bsonField, Value: 1}},
					Options: opts,
				}
				if err := ensureIndex(ctx, collection, model); err != nil {
					return err
				}

			case strings.HasPrefix(part, "ttl:"):
				ttl, err := strconv.Atoi(strings.TrimPrefix(part, "ttl:"))
				if err != nil {
					return fmt.Errorf("TTL không hợp lệ trên field %s: %w", field.Name, err)
				}
				model := mongo.IndexModel{
					Keys:    bson.D{{Key: bsonField, Value: 1}},
					Options: options.Index().SetName(bsonField + "_ttl").SetExpireAfterSeconds(int32(ttl)),
				}
				if err := ensureIndex(ctx, collection, model); err != nil {
					return err
				}

			case strings.HasPrefix(part, "compound:"):
				groupName := strings.TrimPrefix(part, "compound:")
				compoundGroups[groupName] = append(compoundGroups[groupName], bson.E{Key: bsonField, Value: 1})
			}
		}
	}

	// Tạo các compound indexes sau khi đã gom đủ fields
	for groupName, keys := range compoundGroups {
		opts := options.Index().SetName(groupName)
		if strings.Contains(groupName, "_unique") {
			opts = opts.SetUnique(true)
		}
		model := mongo.IndexModel{Keys: keys, Options: opts}
		if err := ensureIndex(ctx, collection, model); err != nil {
			return err
		}
	}

	log.WithFields(map[string]interface{}{
		"collection": collection.Name(),
	}).Debug("Đã đảm bảo indexes cho collection")
	return nil
}

// ensureIndex tạo index, bỏ qua lỗi index đã tồn tại với cùng cấu hình
func ensureIndex(ctx context.Context, collection *mongo.Collection, model mongo.IndexModel) error {
	if _, err := collection.Indexes().CreateOne(ctx, model); err != nil && !isIndexExistsError(err) {
		return fmt.Errorf("không thể tạo index trên collection %s: %w", collection.Name(), err)
	}
	return nil
}

// isIndexExistsError kiểm tra lỗi trùng index (IndexOptionsConflict / IndexKeySpecsConflict)
func isIndexExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "IndexOptionsConflict") ||
		strings.Contains(msg, "IndexKeySpecsConflict") ||
		strings.Contains(msg, "already exists")
}

// bsonFieldName lấy tên field bson từ struct tag (bỏ các option như omitempty)
func bsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("bson")
	if tag == "" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}
