package config

import (
	"errors"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort       string
	JWTSecret     string
	TokenTTLHours int
	// Gin framework configuration
	GinMode string
	GinPath string
	// CORS and abuse protection
	AllowedOrigins     []string
	RateLimitPerMinute int
	// Database; DBDriver is "mysql" or "memory"
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis backs token revocation; empty host disables it
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Attachment storage; StorageDriver is "local", "cloudinary" or "s3"
	StorageDriver       string
	UploadDir           string
	UploadPublicPath    string
	CloudinaryURL       string
	CloudinaryFolder    string
	S3Bucket            string
	S3Region            string
	S3Endpoint          string
	S3PublicBaseURL     string
	MaxAttachmentSizeMB int
	MaxAttachments      int
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: .env -> config/config.json -> defaults -> environment variable overrides
	_ = godotenv.Load()

	c, err := Read("config")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Override replaces the cached configuration. Intended for tests and tools.
func Override(c AppConfig) {
	cfg = c
	loaded = true
}

// Read builds an AppConfig from config.json found in dir (optional), defaults and the environment.
func Read(dir string) (AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, err
		}
	}

	return AppConfig{
		AppPort:             v.GetString("app.port"),
		JWTSecret:           v.GetString("app.jwt_secret"),
		TokenTTLHours:       v.GetInt("app.token_ttl_hours"),
		GinMode:             v.GetString("gin.mode"),
		GinPath:             v.GetString("gin.log_path"),
		AllowedOrigins:      stringList(v, "app.allowed_origins"),
		RateLimitPerMinute:  v.GetInt("app.rate_limit_per_minute"),
		DBDriver:            strings.ToLower(v.GetString("database.driver")),
		DatabaseURI:         v.GetString("database.uri"),
		DBHost:              v.GetString("database.host"),
		DBPort:              v.GetString("database.port"),
		DBUser:              v.GetString("database.user"),
		DBPassword:          v.GetString("database.password"),
		DBName:              v.GetString("database.name"),
		RedisHost:           v.GetString("redis.host"),
		RedisPort:           v.GetInt("redis.port"),
		RedisDB:             v.GetInt("redis.db"),
		RedisPassword:       v.GetString("redis.password"),
		LogLevel:            v.GetString("log.level"),
		LogPath:             v.GetString("log.path"),
		LogMaxSizeMB:        v.GetInt("log.max_size_mb"),
		LogMaxBackups:       v.GetInt("log.max_backups"),
		LogMaxAgeDays:       v.GetInt("log.max_age_days"),
		LogCompress:         v.GetBool("log.compress"),
		StorageDriver:       strings.ToLower(v.GetString("storage.driver")),
		UploadDir:           v.GetString("storage.upload_dir"),
		UploadPublicPath:    v.GetString("storage.public_path"),
		CloudinaryURL:       v.GetString("storage.cloudinary_url"),
		CloudinaryFolder:    v.GetString("storage.cloudinary_folder"),
		S3Bucket:            v.GetString("storage.s3_bucket"),
		S3Region:            v.GetString("storage.s3_region"),
		S3Endpoint:          v.GetString("storage.s3_endpoint"),
		S3PublicBaseURL:     v.GetString("storage.s3_public_base_url"),
		MaxAttachmentSizeMB: v.GetInt("storage.max_attachment_size_mb"),
		MaxAttachments:      v.GetInt("storage.max_attachments"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "5000")
	v.SetDefault("app.token_ttl_hours", 72)
	v.SetDefault("app.allowed_origins", []string{"https://crop-rec-app-kappa.vercel.app", "http://localhost:3000"})
	v.SetDefault("app.rate_limit_per_minute", 120)

	v.SetDefault("gin.mode", "release")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "community")

	v.SetDefault("redis.port", 6379)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.public_path", "/uploads")
	v.SetDefault("storage.cloudinary_folder", "community/attachments")
	v.SetDefault("storage.max_attachment_size_mb", 5)
	v.SetDefault("storage.max_attachments", 10)
}

// bindEnv maps flat environment names (the deployment convention) onto config keys.
func bindEnv(v *viper.Viper) {
	binds := map[string][]string{
		"app.port":                       {"PORT", "APP_PORT"},
		"app.jwt_secret":                 {"JWT_SECRET"},
		"app.token_ttl_hours":            {"TOKEN_TTL_HOURS"},
		"app.allowed_origins":            {"ALLOWED_ORIGINS"},
		"app.rate_limit_per_minute":      {"RATE_LIMIT_PER_MINUTE"},
		"gin.mode":                       {"GIN_MODE"},
		"gin.log_path":                   {"GIN_LOG_PATH"},
		"database.driver":                {"DB_DRIVER"},
		"database.uri":                   {"DATABASE_URI"},
		"database.host":                  {"DB_HOST"},
		"database.port":                  {"DB_PORT"},
		"database.user":                  {"DB_USER"},
		"database.password":              {"DB_PASSWORD"},
		"database.name":                  {"DB_NAME"},
		"redis.host":                     {"REDIS_HOST"},
		"redis.port":                     {"REDIS_PORT"},
		"redis.db":                       {"REDIS_DB"},
		"redis.password":                 {"REDIS_PASSWORD"},
		"log.level":                      {"LOG_LEVEL"},
		"log.path":                       {"LOG_PATH"},
		"log.max_size_mb":                {"LOG_MAX_SIZE_MB"},
		"log.max_backups":                {"LOG_MAX_BACKUPS"},
		"log.max_age_days":               {"LOG_MAX_AGE_DAYS"},
		"log.compress":                   {"LOG_COMPRESS"},
		"storage.driver":                 {"STORAGE_DRIVER"},
		"storage.upload_dir":             {"UPLOAD_DIR"},
		"storage.public_path":            {"UPLOAD_PUBLIC_PATH"},
		"storage.cloudinary_url":         {"CLOUDINARY_URL"},
		"storage.cloudinary_folder":      {"CLOUDINARY_FOLDER"},
		"storage.s3_bucket":              {"S3_BUCKET"},
		"storage.s3_region":              {"S3_REGION", "AWS_REGION"},
		"storage.s3_endpoint":            {"S3_ENDPOINT"},
		"storage.s3_public_base_url":     {"S3_PUBLIC_BASE_URL"},
		"storage.max_attachment_size_mb": {"MAX_ATTACHMENT_SIZE_MB"},
		"storage.max_attachments":        {"MAX_ATTACHMENTS"},
	}
	for key, envs := range binds {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

// stringList accepts either a JSON array or a comma separated env value.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return v.GetStringSlice(key)
}
