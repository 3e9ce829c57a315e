package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// CompressLedgerEntries enables snappy compression of ledger SQL text at
// rest. Compile-time switch; must not be flipped on a database that
// already holds entries written the other way.
const CompressLedgerEntries = true

type ConfigParam struct {
	KeyEncryptionPasswd string `toml:"key_encryption_passwd"`
	ProbeTimeout        string `toml:"probe_timeout"`
	PublishRetries      int    `toml:"publish_retries"`
	TemplateCacheSize   int    `toml:"template_cache_size"`
}

var cfg *ConfigParam

func Config() *ConfigParam {
	return cfg
}

func defaultConfig() ConfigParam {
	return ConfigParam{
		KeyEncryptionPasswd: "insecure-dev-passphrase",
		ProbeTimeout:        "5s",
		PublishRetries:      3,
		TemplateCacheSize:   128,
	}
}

func LoadConfig(filename string) error {
	// Decode over the defaults so a file that sets only some keys keeps
	// the rest. Retry and cache-size zeros in particular must not leak in.
	cp := defaultConfig()
	if filename == "" {
		cfg = &cp
		return nil
	}
	// Read the config file
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	// Parse the config file
	if _, err := toml.Decode(string(content), &cp); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}
	// assign config to global cfg
	cfg = &cp
	return nil
}

// ProbeTimeoutDuration returns the bounded timeout applied to connection
// probes. Falls back to 5s on a missing or malformed value.
func (c *ConfigParam) ProbeTimeoutDuration() time.Duration {
	d, err := ParseDuration(c.ProbeTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// ParseDuration parses durations of the form "<n><unit>" where unit is one
// of s, m, h or d.
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}

	var duration time.Duration
	switch unit {
	case "s":
		duration = time.Duration(value) * time.Second
	case "m":
		duration = time.Duration(value) * time.Minute
	case "h":
		duration = time.Duration(value) * time.Hour
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}

func init() {
	err := LoadConfig("")
	if err != nil {
		panic(err)
	}
}
