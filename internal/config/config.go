package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	Timezone      string
	WorkerCount   int

	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWhatsAppFrom  string
	TwilioWebhookSecret string

	StorefrontWebhookSecret string

	GoogleCredentialsPath string
	GoogleTokenPath       string
	GoogleCalendarID      string
	UseMemoryCalendar     bool

	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DatabaseURL   string

	Subscribers       []string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	OwnerEmail        string
	EmailProvider     string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	AdminJWTSecret string

	TherapyProducts []string
	Links           ProductLinks

	PendingBookingTTL      time.Duration
	FollowupReminderDelay  time.Duration
	FollowupDay6Delay      time.Duration
	FollowupDay7Delay      time.Duration
	FollowupNoConvertDelay time.Duration

	HorizonDays int
	MaxSlots    int
}

// ProductLinks is the set of storefront and media links quoted in outbound messages.
type ProductLinks struct {
	TherapyPackage string
	SingleSession  string
	Course         string
	Book           string
	Ebook          string
	MethodVideo    string
	TreatmentVideo string
	Coupon         string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "5000"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Timezone:      getEnv("TIMEZONE", "America/Mexico_City"),
		WorkerCount:   getEnvAsInt("WORKER_COUNT", 4),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:  getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),

		StorefrontWebhookSecret: getEnv("WOOCOMMERCE_WEBHOOK_SECRET", ""),

		GoogleCredentialsPath: getEnv("GOOGLE_CALENDAR_CREDENTIALS", "credentials.json"),
		GoogleTokenPath:       getEnv("GOOGLE_CALENDAR_TOKEN", "token.json"),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", "primary"),
		UseMemoryCalendar:     getEnvAsBool("USE_MEMORY_CALENDAR", false),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		Subscribers:       getEnvAsList("SUBSCRIBERS", nil),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "AvatarM Exchange"),
		OwnerEmail:        getEnv("OWNER_EMAIL", ""),
		EmailProvider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "sendgrid")),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		TherapyProducts: getEnvAsList("THERAPY_PRODUCTS", []string{
			"Tratamiento completo 3 sesiones",
			"Terapia individual",
		}),
		Links: ProductLinks{
			TherapyPackage: getEnv("PRODUCT_LINK_THERAPY_PACKAGE", "https://avatarmexchange.com/product/tratamiento-completo-3-cesiones/?currency=mxn"),
			SingleSession:  getEnv("PRODUCT_LINK_SINGLE_SESSION", "https://avatarmexchange.com/product/terapia-online/?currency=mxn"),
			Course:         getEnv("PRODUCT_LINK_COURSE", "https://avatarmexchange.com/product/medicina-de-quinta-dimension/?currency=mxn"),
			Book:           getEnv("PRODUCT_LINK_BOOK", "https://avatarmexchange.com/product/el-metodo-la-cura-y-sanacion-a-toda-enfermedad/"),
			Ebook:          getEnv("PRODUCT_LINK_EBOOK", "https://mega.nz/file/I7EQBThK#9h_XGs8O0qFZ0rakwjTX38hILssOmS6_U04QX4kbEdg"),
			MethodVideo:    getEnv("PRODUCT_LINK_METHOD_VIDEO", "https://www.instagram.com/p/C9fNSX8s6Rp/"),
			TreatmentVideo: getEnv("PRODUCT_LINK_TREATMENT_VIDEO", "https://www.instagram.com/p/C8jBPP0osN-/"),
			Coupon:         getEnv("PRODUCT_COUPON", "3terapias"),
		},

		PendingBookingTTL:      getEnvAsDuration("PENDING_BOOKING_TTL", 72*time.Hour),
		FollowupReminderDelay:  getEnvAsDuration("FOLLOWUP_REMINDER_DELAY", time.Hour),
		FollowupDay6Delay:      getEnvAsDuration("FOLLOWUP_DAY6_DELAY", 6*24*time.Hour),
		FollowupDay7Delay:      getEnvAsDuration("FOLLOWUP_DAY7_DELAY", 24*time.Hour),
		FollowupNoConvertDelay: getEnvAsDuration("FOLLOWUP_NO_CONVERSION_DELAY", 24*time.Hour),

		HorizonDays: getEnvAsInt("SLOT_HORIZON_DAYS", 7),
		MaxSlots:    getEnvAsInt("SLOT_MAX_RESULTS", 10),
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsTherapyProduct reports whether a storefront line item is a therapy product.
func (c *Config) IsTherapyProduct(name string) bool {
	name = strings.TrimSpace(name)
	for _, p := range c.TherapyProducts {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
