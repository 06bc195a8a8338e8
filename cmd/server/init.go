package main

import (
	"context"

	"github.com/sirupsen/logrus"

	behaviormodels "invoice_recovery/internal/api/behavior/models"
	campaignmodels "invoice_recovery/internal/api/campaign/models"
	clientmodels "invoice_recovery/internal/api/client/models"
	invoicemodels "invoice_recovery/internal/api/invoice/models"

	"invoice_recovery/config"
	"invoice_recovery/internal/database"
	"invoice_recovery/internal/global"
)

// Hàm khởi tạo các biến toàn cục
func InitGlobal() {
	initColNames()         // Khởi tạo tên các collection trong database
	initValidator()        // Khởi tạo validator
	initConfig()           // Khởi tạo cấu hình server
	initDatabase_MongoDB() // Khởi tạo kết nối database
}

// Hàm khởi tạo tên các collection trong database
func initColNames() {
	global.MongoDB_ColNames.Clients = "clients"
	global.MongoDB_ColNames.Invoices = "invoices"
	global.MongoDB_ColNames.BehaviorProfiles = "behavior_profiles"
	global.MongoDB_ColNames.ReminderCampaigns = "reminder_campaigns"
	global.MongoDB_ColNames.ReminderRecords = "reminder_records"

	logrus.Info("Initialized collection names")
}

// Hàm khởi tạo validator (global.InitValidator đăng ký custom validators)
func initValidator() {
	global.InitValidator()
	logrus.Info("Initialized validator")
}

// Hàm khởi tạo cấu hình server
func initConfig() {
	global.ServerConfig = config.NewConfig()
	if global.ServerConfig == nil {
		logrus.Fatalf("Failed to initialize config: config is nil")
	}
	logrus.Info("Initialized server config")
}

// Hàm khởi tạo kết nối database và các index
func initDatabase_MongoDB() {
	var err error
	global.MongoDB_Session, err = database.GetInstance(global.ServerConfig)
	if err != nil {
		logrus.Fatalf("Failed to get database instance: %v", err)
	}
	logrus.Info("Connected to MongoDB")

	dbName := global.ServerConfig.MongoDB_DBName
	db := global.MongoDB_Session.Database(dbName)

	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.Clients), clientmodels.Client{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.Invoices), invoicemodels.Invoice{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.BehaviorProfiles), behaviormodels.BehaviorProfile{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.ReminderCampaigns), campaignmodels.ReminderCampaign{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.ReminderRecords), campaignmodels.ReminderRecord{})
	logrus.Info("Ensured collection indexes")
}
