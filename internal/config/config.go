package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds environment-driven configuration.
type Config struct {
	Addr           string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	LogMode        string
	AllowedOrigins string

	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string

	StoreName     string
	OperatorEmail string
	PublicBaseURL string
	APIBaseURL    string

	SubscriberCutoff          time.Time
	SubscriberDiscountPercent int64
	DuplicateWindow           time.Duration

	DeliveryFeeColombo int64
	DeliveryFeeSuburbs int64
	DeliveryFeeOthers  int64

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	EmailTimeout      time.Duration

	ImageProjectID string
	ImageDataset   string

	PayHereMerchantID     string
	PayHereMerchantSecret string
	PayHereSandbox        bool
	Currency              string
}

var defaultSubscriberCutoff = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// Load reads configuration from environment variables.
func Load() Config {
	addr := os.Getenv("SHOP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Config{
		Addr:           addr,
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		LogMode:        envString("LOG_MODE", "dev"),
		AllowedOrigins: envString("ALLOWED_ORIGINS", "*"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminEmail:        strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPasswordHash: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH")),

		StoreName:     envString("STORE_NAME", "Pantry"),
		OperatorEmail: strings.TrimSpace(os.Getenv("OPERATOR_EMAIL")),
		PublicBaseURL: strings.TrimRight(envString("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		APIBaseURL:    strings.TrimRight(envString("API_BASE_URL", "http://localhost:8080"), "/"),

		SubscriberCutoff:          envTime("SUBSCRIBER_CUTOFF", defaultSubscriberCutoff),
		SubscriberDiscountPercent: int64(envInt("SUBSCRIBER_DISCOUNT_PERCENT", 15)),
		DuplicateWindow:           envDuration("DUPLICATE_WINDOW", 30*time.Second),

		DeliveryFeeColombo: int64(envInt("DELIVERY_FEE_COLOMBO", 350)),
		DeliveryFeeSuburbs: int64(envInt("DELIVERY_FEE_SUBURBS", 450)),
		DeliveryFeeOthers:  int64(envInt("DELIVERY_FEE_OTHERS", 650)),

		SendGridAPIKey:    strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		SendGridFromEmail: strings.TrimSpace(os.Getenv("SENDGRID_FROM_EMAIL")),
		SendGridFromName:  strings.TrimSpace(os.Getenv("SENDGRID_FROM_NAME")),
		EmailTimeout:      envDuration("EMAIL_TIMEOUT", 20*time.Second),

		ImageProjectID: strings.TrimSpace(os.Getenv("IMAGE_PROJECT_ID")),
		ImageDataset:   envString("IMAGE_DATASET", "production"),

		PayHereMerchantID:     strings.TrimSpace(os.Getenv("PAYHERE_MERCHANT_ID")),
		PayHereMerchantSecret: strings.TrimSpace(os.Getenv("PAYHERE_MERCHANT_SECRET")),
		PayHereSandbox:        envBool("PAYHERE_SANDBOX", true),
		Currency:              envString("CURRENCY", "LKR"),
	}
}

func envString(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func envDuration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envTime(name string, def time.Time) time.Time {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return def
	}
	return t.UTC()
}
