package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	BackendURL      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SessionKey       string
	CartCacheTTL     time.Duration
	PaymentMarkerTTL time.Duration

	KafkaBrokers    []string
	FlowEventsTopic string

	GatewayReturnParam   string
	OrderPollAttempts    int
	OrderPollInterval    time.Duration
	PaymentPollAttempts  int
	PaymentPollInterval  time.Duration
	CODConfirmDelay      time.Duration
	SuccessRedirectDelay time.Duration

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	LogLevel string
}

// Load reads .env if present, then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8081"),
		BackendURL:      strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8080/api"), "/"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getInt("REDIS_DB", 0),
		SessionKey:       getEnv("SESSION_KEY", "default"),
		CartCacheTTL:     getDuration("CART_CACHE_TTL", 168*time.Hour),
		PaymentMarkerTTL: getDuration("PAYMENT_MARKER_TTL", time.Hour),

		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		FlowEventsTopic: getEnv("FLOW_EVENTS_TOPIC", "checkout-flow-events"),

		GatewayReturnParam:   getEnv("GATEWAY_RETURN_PARAM", "vnp_ResponseCode"),
		OrderPollAttempts:    getAttempts("ORDER_POLL_ATTEMPTS", 6),
		OrderPollInterval:    getDuration("ORDER_POLL_INTERVAL", time.Second),
		PaymentPollAttempts:  getAttempts("PAYMENT_POLL_ATTEMPTS", 60),
		PaymentPollInterval:  getDuration("PAYMENT_POLL_INTERVAL", 5*time.Second),
		CODConfirmDelay:      getDuration("COD_CONFIRM_DELAY", 1500*time.Millisecond),
		SuccessRedirectDelay: getDuration("SUCCESS_REDIRECT_DELAY", 2*time.Second),

		BreakerMaxFailures: uint32(getInt("BREAKER_MAX_FAILURES", 5)),
		BreakerOpenTimeout: getDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

// getAttempts is getInt for poll budgets, which need at least one attempt.
func getAttempts(key string, defaultValue int) int {
	v := getInt(key, defaultValue)
	if v < 1 {
		log.Printf("invalid %s=%d, using %d", key, v, defaultValue)
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		log.Printf("invalid %s=%q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
