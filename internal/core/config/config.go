package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthCfg struct {
	Username      string
	Password      string
	SessionSecret string
	SessionMaxAge time.Duration
	SecureCookie  bool
}

type GeocodeCfg struct {
	URL       string
	UserAgent string
	Language  string
	Timeout   time.Duration
	H3Res     int
	CacheSize int
	CacheTTL  time.Duration
}

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Queue   int
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	GapminderCSV   string
	IrisCSV        string
	RedisAddr      string
	CacheOpTimeout time.Duration
	MetricsEnabled bool
	Auth           AuthCfg
	Geocode        GeocodeCfg
	Events         EventsCfg
}

func FromEnv() Config {
	res := getint("GEOCODE_H3_RES", 9)
	if res < 0 || res > 15 {
		res = 9
	}

	return Config{
		Addr:           getenv("ADDR", ":8050"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		GapminderCSV:   getenv("GAPMINDER_CSV", ""),
		IrisCSV:        getenv("IRIS_CSV", ""),
		RedisAddr:      getenv("REDIS_ADDR", ""),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		Auth: AuthCfg{
			Username:      getenv("AUTH_USERNAME", "admin"),
			Password:      getenv("AUTH_PASSWORD", "password"),
			SessionSecret: getenv("SESSION_SECRET", "your_secret_key_here"),
			SessionMaxAge: getduration("SESSION_MAX_AGE", 12*time.Hour),
			SecureCookie:  getbool("SESSION_SECURE_COOKIE", false),
		},
		Geocode: GeocodeCfg{
			URL:       getenv("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getenv("GEOCODE_USER_AGENT", "gapminder-dash"),
			Language:  getenv("GEOCODE_LANGUAGE", "en"),
			Timeout:   getduration("GEOCODE_TIMEOUT", 3*time.Second),
			H3Res:     res,
			CacheSize: getint("GEOCODE_CACHE_SIZE", 1024),
			CacheTTL:  getduration("GEOCODE_CACHE_TTL", 24*time.Hour),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "dashboard-events"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
	}
}

// splits a comma separated broker list, dropping blanks
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
