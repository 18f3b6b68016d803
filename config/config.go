package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	ArchiveNone     = "none"
	ArchiveSupabase = "supabase"
	ArchiveMinio    = "minio"
	ArchiveGCS      = "gcs"
)

type Config struct {
	Port   string
	AppEnv string

	StoreDriver string
	DatabaseDir string
	SQLitePath  string
	DB          DBConfig

	GeminiAPIKey      string
	GeminiModel       string
	GenerationTimeout time.Duration

	MaxUploadMB int64
	UploadDir   string
	CORSOrigins []string

	ArchiveDriver string
	Supabase      SupabaseConfig
	Minio         MinioConfig
	GCSBucket     string

	SpeechEnabled   bool
	SpeechLanguage  string
	CredentialsFile string

	TTSEnabled  bool
	TTSVoice    string
	TTSLanguage string

	RedisAddr        string
	RedisPassword    string
	UploadRateLimit  int
	UploadRateWindow time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type SupabaseConfig struct {
	URL    string
	Key    string
	Bucket string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads .env when present, then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:        envOr("PORT", "8080"),
		AppEnv:      envOr("APP_ENV", "development"),
		StoreDriver: strings.ToLower(envOr("STORE_DRIVER", StoreFile)),
		DatabaseDir: envOr("DATABASE_DIR", "/tmp/database"),
		SQLitePath:  envOr("SQLITE_PATH", "scholar.db"),
		DB: DBConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     envOr("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  envOr("DB_SSLMODE", "disable"),
		},

		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		GenerationTimeout: envDurationOr("GENERATION_TIMEOUT", 120*time.Second),

		MaxUploadMB: int64(envIntOr("MAX_UPLOAD_MB", 20)),
		UploadDir:   envOr("UPLOAD_DIR", os.TempDir()),
		CORSOrigins: splitList(envOr("CORS_ORIGINS", "*")),

		ArchiveDriver: strings.ToLower(envOr("ARCHIVE_DRIVER", ArchiveNone)),
		Supabase: SupabaseConfig{
			URL:    os.Getenv("SUPABASE_URL"),
			Key:    os.Getenv("SUPABASE_KEY"),
			Bucket: envOr("SUPABASE_BUCKET", "uploads"),
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    os.Getenv("MINIO_BUCKET"),
			UseSSL:    envBoolOr("MINIO_USE_SSL", false),
		},
		GCSBucket: os.Getenv("GCS_BUCKET_NAME"),

		SpeechEnabled:   envBoolOr("SPEECH_ENABLED", false),
		SpeechLanguage:  envOr("SPEECH_LANGUAGE", "en-US"),
		CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_JSON"),

		TTSEnabled:  envBoolOr("TTS_ENABLED", false),
		TTSVoice:    envOr("TTS_VOICE", "en-US-Standard-C"),
		TTSLanguage: envOr("TTS_LANGUAGE", "en-US"),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		UploadRateLimit:  envIntOr("UPLOAD_RATE_LIMIT", 0),
		UploadRateWindow: envDurationOr("UPLOAD_RATE_WINDOW", time.Minute),
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}

	switch c.StoreDriver {
	case StoreFile:
		if c.DatabaseDir == "" {
			errs = append(errs, errors.New("DATABASE_DIR cannot be empty for the file store"))
		}
	case StorePostgres:
		if c.DB.Host == "" || c.DB.Name == "" || c.DB.User == "" {
			errs = append(errs, errors.New("DB_HOST, DB_USER and DB_NAME are required for postgres"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH cannot be empty for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.ArchiveDriver {
	case ArchiveNone, "":
	case ArchiveSupabase:
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required for the supabase archive"))
		}
	case ArchiveMinio:
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio archive"))
		}
	case ArchiveGCS:
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET_NAME is required for the gcs archive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ARCHIVE_DRIVER %q", c.ArchiveDriver))
	}

	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB))
	}
	if c.GenerationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("GENERATION_TIMEOUT must be positive, got %s", c.GenerationTimeout))
	}
	if c.UploadRateLimit < 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_RATE_LIMIT cannot be negative, got %d", c.UploadRateLimit))
	}
	if c.UploadRateLimit > 0 {
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when UPLOAD_RATE_LIMIT is set"))
		}
		if c.UploadRateWindow <= 0 {
			errs = append(errs, errors.New("UPLOAD_RATE_WINDOW must be positive"))
		}
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	}
	return false
}

func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// envDurationOr accepts Go durations ("90s") or a bare number of seconds.
func envDurationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
