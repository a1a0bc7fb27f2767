package configs

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// AppConfig menampung semua konfigurasi yang dibaca dari ENV saat boot.
type AppConfig struct {
	Port    string
	AppEnv  string
	AuthURL string // entry point login di FE, target redirect saat sesi hilang

	// Supabase (identity provider + storage)
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// Object storage
	StorageDriver    string // "supabase" | "oss"
	PassportBucket   string
	OSSEndpoint      string
	OSSAccessKey     string
	OSSSecretKey     string
	OSSSecurityToken string
	OSSBucket        string
	OSSPublicBase    string

	// Redis (persistent session cache); kosong = memory saja
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Payment widget
	PaymentRequired   bool
	PaymentGateway    string // "paystack" | "midtrans"
	PaystackPublicKey string
	PaystackSecretKey string
	MidtransServerKey string
	MidtransClientKey string
	MidtransUseProd   bool
	WidgetTimeout     time.Duration
	WidgetMaxAttempts int
	PaymentWindow     time.Duration

	// Events
	KafkaBrokers []string
	KafkaTopic   string

	// Housekeeping
	WorkspaceIdleTTL time.Duration
	DBAutoMigrate    bool
}

var App AppConfig

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ .env tidak ditemukan, menggunakan ENV dari sistem")
		} else {
			log.Println("✅ .env file berhasil dimuat!")
		}
	} else {
		log.Println("🚀 Running in Railway, menggunakan ENV dari sistem")
	}

	App = AppConfig{
		Port:    GetEnv("PORT", "3000"),
		AppEnv:  GetEnv("APP_ENV", "development"),
		AuthURL: GetEnv("AUTH_ENTRY_URL", "/auth"),

		SupabaseURL:        strings.TrimRight(GetEnv("SUPABASE_PROJECT_URL"), "/"),
		SupabaseAnonKey:    GetEnv("SUPABASE_ANON_KEY"),
		SupabaseServiceKey: GetEnv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:  GetEnv("SUPABASE_JWT_SECRET"),

		StorageDriver:    strings.ToLower(GetEnv("STORAGE_DRIVER", "supabase")),
		PassportBucket:   GetEnv("PASSPORT_BUCKET", "passports"),
		OSSEndpoint:      GetEnv("OSS_ENDPOINT"),
		OSSAccessKey:     GetEnv("OSS_ACCESS_KEY_ID"),
		OSSSecretKey:     GetEnv("OSS_ACCESS_KEY_SECRET"),
		OSSSecurityToken: GetEnv("OSS_SECURITY_TOKEN"),
		OSSBucket:        GetEnv("OSS_BUCKET"),
		OSSPublicBase:    GetEnv("OSS_PUBLIC_BASE"),

		RedisAddr:     GetEnv("REDIS_ADDR"),
		RedisPassword: GetEnv("REDIS_PASSWORD"),
		RedisDB:       GetEnvInt("REDIS_DB", 0),

		PaymentRequired:   GetEnvBool("PAYMENT_REQUIRED", true),
		PaymentGateway:    strings.ToLower(GetEnv("PAYMENT_GATEWAY", "paystack")),
		PaystackPublicKey: GetEnv("PAYSTACK_PUBLIC_KEY"),
		PaystackSecretKey: GetEnv("PAYSTACK_SECRET_KEY"),
		MidtransServerKey: GetEnv("MIDTRANS_SERVER_KEY"),
		MidtransClientKey: GetEnv("MIDTRANS_CLIENT_KEY"),
		MidtransUseProd:   GetEnvBool("MIDTRANS_USE_PROD", false),
		WidgetTimeout:     GetEnvDuration("PAYMENT_WIDGET_TIMEOUT", 15*time.Second),
		WidgetMaxAttempts: GetEnvInt("PAYMENT_WIDGET_MAX_ATTEMPTS", 3),
		PaymentWindow:     GetEnvDuration("PAYMENT_WINDOW", 30*time.Minute),

		KafkaBrokers: splitCSV(GetEnv("KAFKA_BROKERS")),
		KafkaTopic:   GetEnv("KAFKA_TOPIC_SUBMISSIONS", "grant_application.submitted"),

		WorkspaceIdleTTL: GetEnvDuration("WORKSPACE_IDLE_TTL", 12*time.Hour),
		DBAutoMigrate:    GetEnvBool("DB_AUTOMIGRATE", false),
	}

	if App.SupabaseURL == "" {
		log.Println("❌ SUPABASE_PROJECT_URL belum diset!")
	} else {
		log.Println("✅ SUPABASE_PROJECT_URL berhasil dimuat.")
	}
	if App.SupabaseJWTSecret == "" {
		log.Println("⚠️ SUPABASE_JWT_SECRET kosong, verifikasi sesi lewat provider (lebih lambat)")
	}
	if App.PaymentRequired && App.PaymentGateway == "paystack" && App.PaystackSecretKey == "" {
		log.Println("❌ PAYSTACK_SECRET_KEY belum diset!")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return strings.TrimSpace(value)
}

func GetEnvInt(key string, def int) int {
	if v := GetEnv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[WARN] %s bukan angka, pakai default %d", key, def)
	}
	return def
}

func GetEnvBool(key string, def bool) bool {
	if v := GetEnv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("[WARN] %s bukan boolean, pakai default %v", key, def)
	}
	return def
}

// GetEnvDuration menerima format time.ParseDuration ("15s") atau angka detik ("15").
func GetEnvDuration(key string, def time.Duration) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("[WARN] %s bukan durasi valid, pakai default %s", key, def)
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger() gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormLogger.Warn,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	nl := *l
	nl.LogLevel = level
	return &nl
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		log.Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		log.Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		log.Errorf(msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := log.WithFields(log.Fields{
		"file":    utils.FileWithLineNum(),
		"elapsed": elapsed.String(),
		"rows":    rows,
	})

	switch {
	case err != nil && l.LogLevel >= gormLogger.Error:
		entry.WithError(err).Errorf("[SQL] %s", sql)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		entry.Warnf("[SLOW SQL] %s", sql)
	case l.LogLevel >= gormLogger.Info:
		entry.Debugf("[QUERY] %s", sql)
	}
}
