package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIEnv          string `envconfig:"API_ENV" default:"local"`
	Port            string `envconfig:"PORT" default:"9090"`
	AppHost         string `envconfig:"APP_HOST"`
	MaintenanceMode bool   `envconfig:"MAINTENANCE_MODE" default:"false"`
	LogDir          string `envconfig:"LOG_DIR" default:"logs"`

	// Sections are embedded so envconfig reads their keys without a prefix.
	Database
	Gateway
	Storage
	Mail
	Locks
	Tickets
	Timeouts
	Delivery

	BookingsQueue string `envconfig:"BOOKINGS_QUEUE"`
}

type Database struct {
	Host     string `envconfig:"DATABASE_HOST" default:"localhost"`
	Port     string `envconfig:"DATABASE_PORT" default:"5432"`
	SSLMode  string `envconfig:"DATABASE_SSLMODE" default:"disable"`
	TimeZone string `envconfig:"DATABASE_TIMEZONE" default:"Asia/Kolkata"`
	User     string `envconfig:"DATABASE_USER" default:"postgres"`
	Password string `envconfig:"DATABASE_PASSWORD"`
	Name     string `envconfig:"DATABASE_NAME" default:"ticketsdb"`
}

// DSN returns the postgres connection string for gorm.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone)
}

type Gateway struct {
	// Provider is either "razorpay" or "stripe".
	Provider          string `envconfig:"GATEWAY_PROVIDER" default:"razorpay"`
	Currency          string `envconfig:"GATEWAY_CURRENCY" default:"INR"`
	RazorpayKeyID     string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpaySecret    string `envconfig:"RAZORPAY_SECRET"`
	StripeSecretKey   string `envconfig:"STRIPE_SECRET_KEY"`
	VerifyOrderAmount bool   `envconfig:"GATEWAY_VERIFY_ORDER_AMOUNT" default:"true"`
}

type Storage struct {
	// Driver is either "local" or "s3".
	Driver  string `envconfig:"STORAGE_DRIVER" default:"local"`
	TempDir string `envconfig:"TEMP_DIR" default:"tickets"`
	Bucket  string `envconfig:"S3_TICKETS_BUCKET"`
}

type Mail struct {
	// Driver is one of "smtp", "sendgrid" or "ses".
	Driver        string `envconfig:"MAIL_DRIVER" default:"smtp"`
	Host          string `envconfig:"SMTP_HOST"`
	Port          int    `envconfig:"SMTP_PORT" default:"587"`
	Username      string `envconfig:"SMTP_USERNAME"`
	Password      string `envconfig:"SMTP_PASSWORD"`
	From          string `envconfig:"MAIL_FROM"`
	FromName      string `envconfig:"MAIL_FROM_NAME" default:"Event Tickets"`
	RetryAttempts uint   `envconfig:"MAIL_RETRY_ATTEMPTS" default:"1"`

	// TLSPolicy is one of "mandatory", "opportunistic" or "none".
	TLSPolicy string `envconfig:"SMTP_TLS_POLICY" default:"mandatory"`
}

type Locks struct {
	// Driver is either "memory" or "redis".
	Driver    string        `envconfig:"LOCK_DRIVER" default:"memory"`
	RedisHost string        `envconfig:"REDIS_HOST"`
	TTL       time.Duration `envconfig:"LOCK_TTL" default:"30s"`
}

type Tickets struct {
	// QRSecret is a hex encoded AES key. Tickets carry a plain QR payload when empty.
	QRSecret string `envconfig:"API_QRC_SECRET"`
}

type Timeouts struct {
	Gateway time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
	Storage time.Duration `envconfig:"STORAGE_TIMEOUT" default:"15s"`
	Mail    time.Duration `envconfig:"MAIL_TIMEOUT" default:"20s"`
	DB      time.Duration `envconfig:"DB_TIMEOUT" default:"5s"`
	Queue   time.Duration `envconfig:"QUEUE_TIMEOUT" default:"5s"`
}

type Delivery struct {
	Interval    time.Duration `envconfig:"REDELIVERY_INTERVAL" default:"10m"`
	MaxAttempts int           `envconfig:"REDELIVERY_MAX_ATTEMPTS" default:"5"`
	BatchSize   int           `envconfig:"REDELIVERY_BATCH_SIZE" default:"50"`
}

func (c *Config) IsLocal() bool {
	return c.APIEnv == "local"
}

// Load reads the process environment into a Config.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}
