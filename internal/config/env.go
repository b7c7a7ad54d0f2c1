package config

import (
	"os"
	"strconv"
)

// FromEnv overlays RELAY_* environment variables onto cfg. REDIS_URL and
// SSE_CHANNEL are honored as fallbacks for deployments that predate the
// RELAY_ prefix.
func FromEnv(cfg *Config) {
	if v := os.Getenv("RELAY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("RELAY_RING_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Ring.Capacity = n
		}
	}
	if v := os.Getenv("RELAY_QUEUE_BOUND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Subscriber.QueueBound = n
		}
	}
	if v := os.Getenv("RELAY_HEARTBEAT_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Subscriber.HeartbeatIntervalMs = n
		}
	}
	if v := os.Getenv("RELAY_RETRY_HINT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Subscriber.RetryHintMs = n
		}
	}
	if v := os.Getenv("RELAY_FILTER_MAX_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Subscriber.FilterMaxLen = n
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("RELAY_BUS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("SSE_CHANNEL"); v != "" {
		cfg.Bus.Channel = v
	}
	if v := os.Getenv("RELAY_BUS_CHANNEL"); v != "" {
		cfg.Bus.Channel = v
	}
	if v := os.Getenv("RELAY_BUS_PENDING_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Bus.PendingLimit = n
		}
	}
	if v := os.Getenv("RELAY_PUBLISH_BACKOFF"); v != "" {
		cfg.Publisher.BackoffType = v
	}
	if v := os.Getenv("RELAY_PUBLISH_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Publisher.BaseMs = n
		}
	}
	if v := os.Getenv("RELAY_PUBLISH_CAP_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Publisher.CapMs = n
		}
	}
	if v := os.Getenv("RELAY_PUBLISH_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Publisher.Factor = f
		}
	}
	if v := os.Getenv("RELAY_PUBLISH_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Publisher.MaxAttempts = n
		}
	}
}
