package model

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Naming policies
const (
	NamingContent = "content" // <hexDigest><ext>
	NamingUnique  = "unique"  // <base>[ (n)]<ext>
)

// Hash algorithms for the content policy
const (
	HashSHA256 = "sha256"
	HashBLAKE3 = "blake3"
)

// DefaultDownloadDir is used when download_dir is empty
const DefaultDownloadDir = "downloaded-images"

// Config is the complete imgpull configuration.
// It is built once per command and passed explicitly to the engine and coordinator.
type Config struct {
	DownloadDir  string             `yaml:"download_dir" toml:"download_dir" mapstructure:"download_dir"`
	Concurrency  int                `yaml:"concurrency" toml:"concurrency" mapstructure:"concurrency"`
	Naming       NamingConfig       `yaml:"naming" toml:"naming" mapstructure:"naming"`
	HTTP         HTTPConfig         `yaml:"http" toml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" toml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" toml:"rate_limiting" mapstructure:"rate_limiting"`
	Robots       RobotsConfig       `yaml:"robots" toml:"robots" mapstructure:"robots"`
	Scan         ScanConfig         `yaml:"scan" toml:"scan" mapstructure:"scan"`
	Log          LogConfig          `yaml:"log" toml:"log" mapstructure:"log"`
}

// NamingConfig selects how stored files are named
type NamingConfig struct {
	Policy string `yaml:"policy" toml:"policy" mapstructure:"policy"` // content, unique
	Hash   string `yaml:"hash" toml:"hash" mapstructure:"hash"`       // sha256, blake3
}

// HTTPConfig controls remote fetches
type HTTPConfig struct {
	Timeout     time.Duration `yaml:"timeout" toml:"timeout" mapstructure:"timeout"`
	UserAgent   string        `yaml:"user_agent" toml:"user_agent" mapstructure:"user_agent"`
	MaxBytes    int64         `yaml:"max_bytes" toml:"max_bytes" mapstructure:"max_bytes"`
	InsecureTLS bool          `yaml:"insecure_tls" toml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy   string        `yaml:"http_proxy,omitempty" toml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy  string        `yaml:"https_proxy,omitempty" toml:"https_proxy" mapstructure:"https_proxy"`
}

// CacheConfig controls the fetched-bytes cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir,omitempty" toml:"dir" mapstructure:"dir"` // empty = memory only
	TTL     time.Duration `yaml:"ttl" toml:"ttl" mapstructure:"ttl"`
}

// RateLimitingConfig limits remote requests per host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables
	Burst             int     `yaml:"burst" toml:"burst" mapstructure:"burst"`
}

// RobotsConfig controls robots.txt compliance for remote images
type RobotsConfig struct {
	Respect bool `yaml:"respect" toml:"respect" mapstructure:"respect"`
}

// ScanConfig toggles optional reference syntaxes
type ScanConfig struct {
	HTMLTags bool `yaml:"html_tags" toml:"html_tags" mapstructure:"html_tags"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" mapstructure:"level"`
	Format string `yaml:"format" toml:"format" mapstructure:"format"` // text, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		DownloadDir: DefaultDownloadDir,
		Concurrency: 5,
		Naming: NamingConfig{
			Policy: NamingContent,
			Hash:   HashSHA256,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "imgpull/0.1 (+https://github.com/ppiankov/imgpull)",
			MaxBytes:  25_000_000,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// NormalizeDir returns the canonical vault-relative form of a directory:
// forward slashes, no leading "./" or "/", no trailing slash.
func NormalizeDir(dir string) string {
	dir = strings.TrimSpace(strings.ReplaceAll(dir, "\\", "/"))
	if dir == "" {
		return DefaultDownloadDir
	}
	dir = strings.Trim(path.Clean("/"+dir), "/")
	if dir == "" {
		return DefaultDownloadDir
	}
	return dir
}

// Validate normalizes the configuration in place and reports invalid values
func (c *Config) Validate() error {
	c.DownloadDir = NormalizeDir(c.DownloadDir)

	c.Naming.Policy = strings.ToLower(strings.TrimSpace(c.Naming.Policy))
	switch c.Naming.Policy {
	case "":
		c.Naming.Policy = NamingContent
	case NamingContent, NamingUnique:
	default:
		return fmt.Errorf("naming.policy: unsupported value %q (want %s or %s)", c.Naming.Policy, NamingContent, NamingUnique)
	}

	c.Naming.Hash = strings.ToLower(strings.TrimSpace(c.Naming.Hash))
	switch c.Naming.Hash {
	case "":
		c.Naming.Hash = HashSHA256
	case HashSHA256, HashBLAKE3:
	default:
		return fmt.Errorf("naming.hash: unsupported value %q (want %s or %s)", c.Naming.Hash, HashSHA256, HashBLAKE3)
	}

	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.HTTP.MaxBytes <= 0 {
		return fmt.Errorf("http.max_bytes must be positive, got %d", c.HTTP.MaxBytes)
	}
	if c.RateLimiting.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limiting.requests_per_second must not be negative")
	}
	return nil
}
