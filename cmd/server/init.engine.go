package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	behaviorsvc "invoice_recovery/internal/api/behavior/service"
	campaignsvc "invoice_recovery/internal/api/campaign/service"
	clientsvc "invoice_recovery/internal/api/client/service"
	invoicesvc "invoice_recovery/internal/api/invoice/service"
	"invoice_recovery/internal/dispatch"
	"invoice_recovery/internal/dispatch/channels"
	"invoice_recovery/internal/global"
	"invoice_recovery/internal/render"
	"invoice_recovery/internal/scheduling"
	"invoice_recovery/internal/worker"
)

// AppComponents gom các thành phần runtime cần wire từ cmd:
// engine, analyzer, dispatcher và các background worker.
type AppComponents struct {
	Engine     *campaignsvc.CampaignEngine
	Analyzer   *behaviorsvc.BehaviorAnalyzer
	Dispatcher *dispatch.Dispatcher
	Sweep      *worker.ReminderSweepWorker
	Refresh    *worker.BehaviorRefreshWorker
}

// InitComponents khởi tạo toàn bộ engine stack từ config.
// Transport thiếu config sẽ degrade (nil) thay vì chặn app start.
func InitComponents() *AppComponents {
	cfg := global.ServerConfig
	clock := scheduling.NewRealClock()

	clients, err := clientsvc.NewClientService()
	if err != nil {
		logrus.Fatalf("Failed to create client service: %v", err)
	}
	invoices, err := invoicesvc.NewInvoiceService()
	if err != nil {
		logrus.Fatalf("Failed to create invoice service: %v", err)
	}
	profiles, err := behaviorsvc.NewBehaviorProfileService()
	if err != nil {
		logrus.Fatalf("Failed to create behavior profile service: %v", err)
	}
	campaigns, err := campaignsvc.NewCampaignService()
	if err != nil {
		logrus.Fatalf("Failed to create campaign service: %v", err)
	}
	records, err := campaignsvc.NewReminderRecordService()
	if err != nil {
		logrus.Fatalf("Failed to create reminder record service: %v", err)
	}

	analyzer := behaviorsvc.NewBehaviorAnalyzer(clients, invoices, profiles, clock)

	// Invoice thay đổi → đánh dấu profile stale để refresh worker phân tích lại
	behaviorsvc.RegisterInvoiceChangeHandler(profiles)

	transportTimeout := time.Duration(cfg.TransportTimeoutSeconds) * time.Second

	var email dispatch.EmailSender
	if cfg.SMTPHost != "" && cfg.SMTPFromEmail != "" {
		from := cfg.SMTPFromEmail
		if cfg.SMTPFromName != "" {
			from = fmt.Sprintf("%s <%s>", cfg.SMTPFromName, cfg.SMTPFromEmail)
		}
		email = channels.NewEmailChannel(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, from, transportTimeout)
		logrus.Info("Email transport configured")
	} else {
		logrus.Warn("SMTP chưa cấu hình, kênh email sẽ bị bỏ qua")
	}

	var whatsapp dispatch.WhatsAppSender
	if cfg.WhatsAppAPIURL != "" && cfg.WhatsAppAPIToken != "" {
		whatsapp = channels.NewWhatsAppChannel(cfg.WhatsAppAPIURL, cfg.WhatsAppAPIToken, cfg.WhatsAppDefaultCountryCode, transportTimeout)
		logrus.Info("WhatsApp transport configured")
	} else {
		logrus.Warn("WhatsApp chưa cấu hình, kênh whatsapp sẽ bị bỏ qua")
	}

	// AIRenderer tự fallback về template renderer khi provider thiếu config hoặc lỗi
	renderer := render.NewAIRenderer(
		cfg.AIProviderURL,
		cfg.AIProviderAPIKey,
		cfg.AIModel,
		time.Duration(cfg.AITimeoutSeconds)*time.Second,
		render.NewTemplateRenderer(),
	)

	dispatcher := dispatch.NewDispatcher(renderer, records, email, whatsapp, clock)

	engine := campaignsvc.NewCampaignEngine(campaigns, invoices, clients, analyzer, dispatcher, clock, campaignsvc.EngineConfig{
		MaxReminders:           cfg.MaxRemindersPerCampaign,
		EscalationIntervalDays: cfg.EscalationIntervalDays,
		MinLeadHours:           cfg.MinLeadTimeHours,
		BatchSize:              cfg.SweepBatchSize,
		Workers:                cfg.SweepWorkers,
	})

	return &AppComponents{
		Engine:     engine,
		Analyzer:   analyzer,
		Dispatcher: dispatcher,
		Sweep:      worker.NewReminderSweepWorker(engine, cfg.SweepCronSpec),
		Refresh: worker.NewBehaviorRefreshWorker(
			analyzer, profiles, clients,
			time.Duration(cfg.BehaviorRefreshInterval)*time.Hour,
			cfg.BehaviorStaleDays,
		),
	}
}
