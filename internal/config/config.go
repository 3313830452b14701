package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultAPIURL = "http://127.0.0.1:8000/api/"

type Config struct {
	Addr   string
	APIURL string
	// APITimeout of zero means requests may hang indefinitely.
	APITimeout   time.Duration
	Storage      Storage
	StrictRender bool
	CookieSecure bool
	RateLimits   RateLimits
	Log          Log
}

type Storage struct {
	// Driver is one of memory, sqlite or postgres.
	Driver string
	DSN    string
	// Key, when set, seals stored tokens.
	Key string
}

type RateLimits struct {
	LoginPerMinute int
}

type Log struct {
	Level  string
	Format string
	File   string
}

// LoadEnvFile preloads variables from a .env file. Variables already set in
// the environment win; a missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func Load() Config {
	addr := envString("FEEDLINE_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}
	driver := strings.ToLower(envString("FEEDLINE_STORAGE", "memory"))
	cfg := Config{
		Addr:       addr,
		APIURL:     envString("FEEDLINE_API_URL", DefaultAPIURL),
		APITimeout: envDuration("FEEDLINE_API_TIMEOUT", 0),
		Storage: Storage{
			Driver: driver,
			DSN:    envString("FEEDLINE_STORAGE_DSN", defaultDSN(driver)),
			Key:    os.Getenv("FEEDLINE_STORAGE_KEY"),
		},
		StrictRender: envBool("FEEDLINE_STRICT_RENDER", false),
		CookieSecure: envBool("FEEDLINE_COOKIE_SECURE", false),
		RateLimits: RateLimits{
			LoginPerMinute: envInt("FEEDLINE_LOGIN_PER_MIN", 10),
		},
		Log: Log{
			Level:  envString("FEEDLINE_LOG_LEVEL", "info"),
			Format: envString("FEEDLINE_LOG_FORMAT", "text"),
			File:   os.Getenv("FEEDLINE_LOG_FILE"),
		},
	}

	return cfg
}

func defaultDSN(driver string) string {
	if driver == "sqlite" {
		return "feedline.db"
	}
	return ""
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
