package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	JWTSecret     string
	JWTExpiresMin int
	CookieName    string
	CookieSecure  bool
	CookieDomain  string

	CORSOrigins []string

	QuizMaxQuestions int

	// Chat proxy upstream (OpenAI-compatible endpoint).
	ChatBaseURL string
	ChatAPIKey  string
	ChatModel   string

	SiteID string
	LogDev bool
}

// FromEnv loads configuration from the environment, reading a local .env
// file first when one exists.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:  envOr("HTTP_ADDR", ":8080"),
		PublicURL: os.Getenv("PUBLIC_URL"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		JWTSecret:     envOr("JWT_SECRET", "dev-only-change-me"),
		JWTExpiresMin: envInt("JWT_EXPIRES_MIN", 60*24),
		CookieName:    envOr("COOKIE_NAME", "motiv_session"),
		CookieSecure:  envBool("COOKIE_SECURE", false),
		CookieDomain:  os.Getenv("COOKIE_DOMAIN"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),

		QuizMaxQuestions: envInt("QUIZ_MAX_QUESTIONS", 10),

		ChatBaseURL: envOr("CHAT_BASE_URL", "https://api.openai.com"),
		ChatAPIKey:  os.Getenv("CHAT_API_KEY"),
		ChatModel:   envOr("CHAT_MODEL", "llama-3.3-70b-instruct"),

		SiteID: envOr("SITE_ID", "local"),
		LogDev: envBool("LOG_DEV", false),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
