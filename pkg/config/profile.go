package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is an optional YAML file overriding the environment-derived
// configuration and declaring demo users and compliance verdict fixtures.
type Profile struct {
	WalletName   string            `yaml:"wallet_name,omitempty"`
	HRP          string            `yaml:"hrp,omitempty"`
	BaseURL      string            `yaml:"base_url,omitempty"`
	KYCRule      string            `yaml:"kyc_rule,omitempty"`
	Users        []string          `yaml:"users,omitempty"`
	KYCVerdicts  map[string]string `yaml:"kyc_verdicts,omitempty"`
	RateLimitRPS float64           `yaml:"rate_limit_rps,omitempty"`
	RateBurst    int               `yaml:"rate_burst,omitempty"`
}

// LoadProfile reads and applies a profile file onto cfg.
func LoadProfile(path string, cfg *Config) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}

	if p.WalletName != "" {
		cfg.WalletName = p.WalletName
	}
	if p.HRP != "" {
		cfg.HRP = p.HRP
	}
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
	}
	if p.KYCRule != "" {
		cfg.KYCRule = p.KYCRule
	}
	if p.RateLimitRPS > 0 {
		cfg.RateLimitRPS = p.RateLimitRPS
	}
	if p.RateBurst > 0 {
		cfg.RateBurst = p.RateBurst
	}
	return &p, nil
}
