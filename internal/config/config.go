package config

import (
	"encoding/json"
	"os"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	ListenAddr string           `json:"listenAddr"`
	Ring       RingConfig       `json:"ring"`
	Subscriber SubscriberConfig `json:"subscriber"`
	Bus        BusConfig        `json:"bus"`
	Publisher  PublisherConfig  `json:"publisher"`
}

// RingConfig sizes the replay buffer.
type RingConfig struct {
	Capacity int `json:"capacity"`
}

// SubscriberConfig captures per-connection stream settings.
type SubscriberConfig struct {
	QueueBound          int `json:"queueBound"`
	HeartbeatIntervalMs int `json:"heartbeatIntervalMs"`
	RetryHintMs         int `json:"retryHintMs"`
	FilterMaxLen        int `json:"filterMaxLen"`
}

// BusConfig describes the durable bus connection. An empty URL disables the
// bus entirely; the relay then runs live fan-out and replay only.
type BusConfig struct {
	URL          string `json:"url"`
	Channel      string `json:"channel"`
	PendingLimit int    `json:"pendingLimit"`
}

// PublisherConfig bounds bus publish retries.
type PublisherConfig struct {
	BackoffType string  `json:"backoffType"`
	BaseMs      int     `json:"baseMs"`
	CapMs       int     `json:"capMs"`
	Factor      float64 `json:"factor"`
	MaxAttempts int     `json:"maxAttempts"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		ListenAddr: ":9000",
		Ring: RingConfig{
			Capacity: 256,
		},
		Subscriber: SubscriberConfig{
			QueueBound:          512,
			HeartbeatIntervalMs: 10000,
			RetryHintMs:         3000,
			FilterMaxLen:        1024,
		},
		Bus: BusConfig{
			URL:          "redis://localhost:6379/0",
			Channel:      "agent-events",
			PendingLimit: 1024,
		},
		Publisher: PublisherConfig{
			BackoffType: "exp-jitter",
			BaseMs:      200,
			CapMs:       30000,
			Factor:      2.0,
			MaxAttempts: 5,
		},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
