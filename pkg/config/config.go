// Package config loads server configuration from environment variables,
// optionally overridden by a YAML profile file.
package config

import "os"

// Config holds server configuration.
type Config struct {
	Port         string
	LogLevel     string
	HRP          string
	BaseURL      string
	WalletName   string
	RedisAddr    string
	JournalPath  string
	OTLPEndpoint string
	KYCRule      string
	RateLimitRPS float64
	RateBurst    int
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8091"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	hrp := os.Getenv("NETWORK_HRP")
	if hrp == "" {
		hrp = "ttr"
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	walletName := os.Getenv("WALLET_NAME")
	if walletName == "" {
		walletName = "trustrail"
	}

	return &Config{
		Port:         port,
		LogLevel:     logLevel,
		HRP:          hrp,
		BaseURL:      baseURL,
		WalletName:   walletName,
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		JournalPath:  os.Getenv("JOURNAL_PATH"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		KYCRule:      os.Getenv("KYC_RULE"),
		RateLimitRPS: 50,
		RateBurst:    100,
	}
}
