package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the price sync service.
type Config struct {
	Port string

	// Shopify admin API access
	ShopDomain string
	APIToken   string
	APIVersion string

	// Sync behavior
	UpdateTag          string
	CategoryPrecedence []string
	MetafieldNamespace string
	MetafieldKey       string
	PollInterval       time.Duration
	SyncTimeout        time.Duration

	// Storage
	PriceTableFile string
	RedisURL       string

	// Progress log
	LogBufferCapacity int
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		ShopDomain:         os.Getenv("SHOP_DOMAIN"),
		APIToken:           os.Getenv("API_TOKEN"),
		APIVersion:         getEnv("API_VERSION", "2024-04"),
		UpdateTag:          getEnv("UPDATE_TAG", "CHAINE_UPDATE"),
		CategoryPrecedence: splitList(getEnv("CATEGORY_PRECEDENCE", "collier,bracelet")),
		MetafieldNamespace: getEnv("METAFIELD_NAMESPACE", "custom"),
		MetafieldKey:       getEnv("METAFIELD_KEY", "base_price"),
		PriceTableFile:     getEnv("PRICE_TABLE_FILE", "variant_prices.json"),
		RedisURL:           os.Getenv("REDIS_URL"),
	}

	var err error
	if cfg.PollInterval, err = getEnvDuration("POLL_INTERVAL", 4*time.Second); err != nil {
		return nil, err
	}
	if cfg.SyncTimeout, err = getEnvDuration("SYNC_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LogBufferCapacity, err = getEnvInt("LOG_BUFFER_CAPACITY", 200); err != nil {
		return nil, err
	}

	if cfg.ShopDomain == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("shopify config incomplete: SHOP_DOMAIN and API_TOKEN are required")
	}
	if len(cfg.CategoryPrecedence) == 0 {
		return nil, fmt.Errorf("CATEGORY_PRECEDENCE must name at least one category")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return d, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
