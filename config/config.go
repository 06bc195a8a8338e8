package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration chứa thông tin tĩnh cần thiết để chạy ứng dụng.
// Bao gồm cấu hình server, database và các tham số của reminder engine.
type Configuration struct {
	Address               string `env:"ADDRESS" envDefault:":8080"`                // Địa chỉ server
	MongoDB_ConnectionURI string `env:"MONGODB_CONNECTION_URI,required"`           // URL kết nối cơ sở dữ liệu
	MongoDB_DBName        string `env:"MONGODB_DBNAME,required"`                   // Tên cơ sở dữ liệu
	CORS_Origins          string `env:"CORS_ORIGINS" envDefault:"*"`               // Các origins được phép (phân cách bởi dấu phẩy, * = tất cả)
	CORS_AllowCredentials bool   `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"` // Cho phép gửi credentials
	FrontendURL           string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"` // URL frontend (dùng cho payment link)

	// Reminder Engine Configuration
	SweepCronSpec       string `env:"SWEEP_CRON_SPEC" envDefault:"@every 5m"` // Chu kỳ quét campaigns đến hạn
	SweepBatchSize      int    `env:"SWEEP_BATCH_SIZE" envDefault:"100"`      // Số campaigns tối đa mỗi lần quét
	SweepWorkers        int    `env:"SWEEP_WORKERS" envDefault:"5"`           // Số goroutine xử lý campaigns đồng thời
	MaxRemindersPerCampaign int `env:"MAX_REMINDERS_PER_CAMPAIGN" envDefault:"6"` // Số reminder tối đa trước khi dừng campaign
	EscalationIntervalDays  int `env:"ESCALATION_INTERVAL_DAYS" envDefault:"7"`   // Số ngày giữa 2 lần leo thang stage
	MinLeadTimeHours        int `env:"MIN_LEAD_TIME_HOURS" envDefault:"4"`        // Buffer tối thiểu trước lần gửi kế tiếp
	BehaviorRefreshInterval int `env:"BEHAVIOR_REFRESH_INTERVAL_HOURS" envDefault:"24"` // Chu kỳ refresh behavior profiles (giờ)
	BehaviorStaleDays       int `env:"BEHAVIOR_STALE_DAYS" envDefault:"7"`              // Profile quá N ngày chưa phân tích lại coi là stale

	// Email Transport (SMTP)
	SMTPHost     string `env:"SMTP_HOST"`     // SMTP host (optional - thiếu thì bỏ qua kênh email)
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Invoice Recovery"`
	SMTPFromEmail string `env:"SMTP_FROM_EMAIL"`

	// WhatsApp Transport (optional - thiếu thì degrade, chỉ gửi email)
	WhatsAppAPIURL      string `env:"WHATSAPP_API_URL"`                     // Base URL của WhatsApp provider
	WhatsAppAPIToken    string `env:"WHATSAPP_API_TOKEN"`                   // Token xác thực provider
	WhatsAppDefaultCountryCode string `env:"WHATSAPP_DEFAULT_COUNTRY_CODE" envDefault:"55"` // Mã quốc gia mặc định khi số thiếu prefix
	TransportTimeoutSeconds    int    `env:"TRANSPORT_TIMEOUT_SECONDS" envDefault:"15"`     // Timeout cho mọi external send

	// AI Text Generation (optional - thiếu thì dùng fallback templates)
	AIProviderURL    string `env:"AI_PROVIDER_URL"`
	AIProviderAPIKey string `env:"AI_PROVIDER_API_KEY"`
	AIModel          string `env:"AI_MODEL" envDefault:"gpt-4o-mini"`
	AITimeoutSeconds int    `env:"AI_TIMEOUT_SECONDS" envDefault:"20"`
}

// getEnvPath trả về đường dẫn đến file env dựa trên môi trường
func getEnvPath() string {
	// Mặc định sử dụng môi trường development
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	currentDir, err := os.Getwd()
	if err != nil {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không thể lấy được thư mục hiện tại: %v\n", err)
		return ""
	}

	// Tìm thư mục config/env bằng cách đi lên từ working directory
	for {
		envDir := filepath.Join(currentDir, "config", "env")
		if _, err := os.Stat(envDir); err == nil {
			return filepath.Join(envDir, fmt.Sprintf("%s.env", env))
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

// NewConfig sẽ đọc dữ liệu cấu hình từ file env được cung cấp
func NewConfig() *Configuration {
	envPath := getEnvPath()
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			// Không fatal: cho phép chạy bằng env variables thuần (container)
			fmt.Printf("Không thể load file env tại %s: %v\n", envPath, err)
		}
	}

	cfg := Configuration{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Printf("Lỗi khi parse config: %+v\n", err)
		return nil
	}

	return &cfg
}
