package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	DownloadsDir string

	MaxConcurrentDownloads int
	StallTimeout           time.Duration
	JobTimeout             time.Duration
	CancelGrace            time.Duration

	Retention      time.Duration
	ErrorRetention time.Duration
	SweepInterval  time.Duration

	// Pipeline selects the fetch adapter: "ytdlp" or "ytdlp-proxy".
	Pipeline       string
	ProxyURL       string
	CookiesFile    string
	FFmpegLocation string
	YTDLPBinary    string
	RateLimitMBps  float64

	SSEPingInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		DownloadsDir: getEnv("DOWNLOADS_DIR", "./downloads"),

		MaxConcurrentDownloads: getEnvInt("MAX_CONCURRENT_DOWNLOADS", 3),
		StallTimeout:           time.Second * time.Duration(getEnvInt("STALL_TIMEOUT_SECONDS", 60)),
		JobTimeout:             time.Minute * time.Duration(getEnvInt("JOB_TIMEOUT_MINUTES", 30)),
		CancelGrace:            time.Second * time.Duration(getEnvInt("CANCEL_GRACE_SECONDS", 5)),

		Retention:      time.Hour * time.Duration(getEnvInt("RETENTION_HOURS", 24)),
		ErrorRetention: time.Minute * time.Duration(getEnvInt("ERROR_RETENTION_MINUTES", 30)),
		SweepInterval:  time.Minute * time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 10)),

		Pipeline:       getEnv("PIPELINE", "ytdlp"),
		ProxyURL:       os.Getenv("PROXY_URL"),
		CookiesFile:    os.Getenv("COOKIES_FILE"),
		FFmpegLocation: os.Getenv("FFMPEG_LOCATION"),
		YTDLPBinary:    getEnv("YTDLP_BINARY", "yt-dlp"),
		RateLimitMBps:  getEnvFloat("DOWNLOAD_RATE_LIMIT_MBPS", 0),

		SSEPingInterval: time.Second * time.Duration(getEnvInt("SSE_PING_INTERVAL_SECONDS", 2)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	switch cfg.Pipeline {
	case "ytdlp":
	case "ytdlp-proxy":
		if cfg.ProxyURL == "" {
			return nil, fmt.Errorf("PROXY_URL is required when PIPELINE=ytdlp-proxy")
		}
	default:
		return nil, fmt.Errorf("unknown PIPELINE %q (expected ytdlp or ytdlp-proxy)", cfg.Pipeline)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
