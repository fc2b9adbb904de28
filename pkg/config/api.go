package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment          string
	Addr                 string
	DatabaseURL          string
	MigrationsDir        string
	JWTSecret            string
	TokenEncryptionKey   string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	RateLimitRedisAddr   string
	RateLimitRedisPass   string
	RateLimitRedisDB     int
	GitHubClientID       string
	GitHubAPIBaseURL     string
	GitHubOAuthBaseURL   string
	GitHubStatsCacheTTL  time.Duration
	GeminiAPIKey         string
	GeminiBaseURL        string
	GeminiModel          string
	CertificateThreshold float64
	MaxCertificateBytes  int64
	ExternalCallTimeout  time.Duration
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:          GetString("APP_ENV", "development"),
		Addr:                 GetString("API_ADDR", ":4000"),
		DatabaseURL:          GetString("DATABASE_URL", "postgres://teamup:teamup@db:5432/teamup?sslmode=disable"),
		MigrationsDir:        GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:            GetString("JWT_SECRET", "supersecuresecret"),
		TokenEncryptionKey:   GetString("TOKEN_ENCRYPTION_KEY", "supersecuresecret"),
		AccessTokenTTL:       time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTokenTTL:      time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 24)) * time.Hour,
		RateLimitRedisAddr:   GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:   GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:     GetInt("RATE_LIMIT_REDIS_DB", 0),
		GitHubClientID:       GetString("GITHUB_CLIENT_ID", ""),
		GitHubAPIBaseURL:     GetString("GITHUB_API_BASE_URL", "https://api.github.com"),
		GitHubOAuthBaseURL:   GetString("GITHUB_OAUTH_BASE_URL", "https://github.com"),
		GitHubStatsCacheTTL:  time.Duration(GetInt("GITHUB_STATS_CACHE_MIN", 30)) * time.Minute,
		GeminiAPIKey:         GetString("GEMINI_API_KEY", ""),
		GeminiBaseURL:        GetString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:          GetString("GEMINI_MODEL", "gemini-1.5-flash"),
		CertificateThreshold: float64(GetInt("CERTIFICATE_CONFIDENCE_PERCENT", 70)) / 100,
		MaxCertificateBytes:  int64(GetInt("MAX_CERTIFICATE_KB", 4096)) * 1024,
		ExternalCallTimeout:  time.Duration(GetInt("EXTERNAL_CALL_TIMEOUT_SECONDS", 15)) * time.Second,
	}
}
