// Package global chứa các biến toàn cục của ứng dụng: config, database session,
// collection registry và tên các collections.
package global

import (
	"go.mongodb.org/mongo-driver/mongo"

	"invoice_recovery/config"
	"invoice_recovery/internal/registry"
)

// ColNames chứa tên các collection trong database
type ColNames struct {
	Clients           string
	Invoices          string
	BehaviorProfiles  string
	ReminderCampaigns string
	ReminderRecords   string
}

var (
	// ServerConfig là cấu hình server, được khởi tạo khi app start
	ServerConfig *config.Configuration

	// MongoDB_Session là kết nối MongoDB toàn cục
	MongoDB_Session *mongo.Client

	// MongoDB_ColNames chứa tên các collection, gán giá trị khi init
	MongoDB_ColNames ColNames

	// RegistryCollections quản lý các mongo collections theo tên
	RegistryCollections = registry.NewRegistry[*mongo.Collection]()
)
