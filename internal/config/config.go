package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs at startup. All values come from
// BALM_* environment variables with local-development defaults.
type Config struct {
	Addr         string
	DBPath       string
	Docstore     string // memory | sqlite | mongo
	MongoURI     string
	MongoDB      string
	RedisAddr    string // empty means the session-local vote ledger
	SessionTTL   time.Duration
	CookieSecure bool
}

func Load() Config {
	cfg := Config{
		Addr:         ":" + getEnv("BALM_PORT", "8080"),
		DBPath:       getEnv("BALM_DB_PATH", "./data/balm.db"),
		Docstore:     getEnv("BALM_DOCSTORE", "sqlite"),
		MongoURI:     getEnv("BALM_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("BALM_MONGO_DB", "balm"),
		RedisAddr:    getEnv("BALM_REDIS_ADDR", ""),
		CookieSecure: getEnv("BALM_COOKIE_SECURE", "false") == "true",
	}

	hours, err := strconv.Atoi(getEnv("BALM_SESSION_HOURS", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	cfg.SessionTTL = time.Duration(hours) * time.Hour

	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
