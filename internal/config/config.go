package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.ucsync/ucsync.yaml"
)

// Generation modes.
const (
	ModePlan   = "plan"   // diff the trees and render the operation plan
	ModePolicy = "policy" // walk source tables only, never drop
)

// Config is the top-level configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Host       string           `yaml:"host"`
	Token      string           `yaml:"token"`
	Catalogs   []SyncEntry      `yaml:"catalogs"`
	Generation GenerationConfig `yaml:"generation,omitempty"`
	Crawl      CrawlConfig      `yaml:"crawl,omitempty"`
	Logging    LogConfig        `yaml:"logging,omitempty"`
}

// SyncEntry pairs a target catalog with the catalogs it is synced from.
type SyncEntry struct {
	Catalog        string   `yaml:"catalog"`
	PinnedCatalogs []string `yaml:"pinned_catalogs"`
}

// GenerationConfig holds the statement generation policy.
type GenerationConfig struct {
	Mode                  string `yaml:"mode,omitempty"`
	MaxStalenessHours     int    `yaml:"max_staleness_hours"`
	DeepCloneNonManaged   bool   `yaml:"deep_clone_non_managed,omitempty"`
	CreateSchemaIfMissing bool   `yaml:"create_schema_if_missing,omitempty"`
	ReplaceStrategy       string `yaml:"replace_strategy,omitempty"` // create_or_replace or drop_create
}

// Staleness returns the staleness threshold as a duration.
func (g GenerationConfig) Staleness() time.Duration {
	return time.Duration(g.MaxStalenessHours) * time.Hour
}

// CrawlConfig tunes the metadata crawl.
type CrawlConfig struct {
	MaxInFlight       int     `yaml:"max_in_flight,omitempty"`       // default 10
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // 0 = unlimited
	Burst             int     `yaml:"burst,omitempty"`
	MaxRetries        int     `yaml:"max_retries,omitempty"` // default 3

	// Strict aborts the run when any fetch job fails instead of planning
	// against a partial forest.
	Strict bool `yaml:"strict,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // empty = stderr only
}

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Generation.Mode == "" {
		c.Generation.Mode = ModePlan
	}
	if c.Generation.ReplaceStrategy == "" {
		c.Generation.ReplaceStrategy = "create_or_replace"
	}
	if c.Crawl.MaxInFlight == 0 {
		c.Crawl.MaxInFlight = 10
	}
	if c.Crawl.MaxRetries == 0 {
		c.Crawl.MaxRetries = 3
	}
	if c.Crawl.RequestsPerSecond > 0 && c.Crawl.Burst == 0 {
		c.Crawl.Burst = c.Crawl.MaxInFlight
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory != "" {
		c.Logging.Directory = ExpandHome(c.Logging.Directory)
	}
}

// Validate checks the fields a sync run needs.
func (c *Config) Validate() error {
	var problems []string

	if c.Host == "" {
		problems = append(problems, "host is required")
	}
	if strings.Contains(c.Host, "://") {
		problems = append(problems, "host must not include a scheme")
	}
	if c.Token == "" {
		problems = append(problems, "token is required")
	}
	if len(c.Catalogs) == 0 {
		problems = append(problems, "at least one catalogs entry is required")
	}
	for i, e := range c.Catalogs {
		if e.Catalog == "" {
			problems = append(problems, fmt.Sprintf("catalogs[%d].catalog is required", i))
		}
		if len(e.PinnedCatalogs) == 0 {
			problems = append(problems, fmt.Sprintf("catalogs[%d].pinned_catalogs is empty", i))
		}
		if slices.Contains(e.PinnedCatalogs, e.Catalog) {
			problems = append(problems, fmt.Sprintf("catalogs[%d]: %s cannot be pinned to itself", i, e.Catalog))
		}
	}
	if c.Generation.Mode != ModePlan && c.Generation.Mode != ModePolicy {
		problems = append(problems, fmt.Sprintf("generation.mode %q must be plan or policy", c.Generation.Mode))
	}
	if c.Generation.MaxStalenessHours < 0 {
		problems = append(problems, "generation.max_staleness_hours must not be negative")
	}
	switch c.Generation.ReplaceStrategy {
	case "create_or_replace", "drop_create":
	default:
		problems = append(problems, fmt.Sprintf("generation.replace_strategy %q must be create_or_replace or drop_create", c.Generation.ReplaceStrategy))
	}
	if c.Crawl.MaxInFlight < 0 {
		problems = append(problems, "crawl.max_in_flight must be positive")
	}
	if c.Crawl.MaxRetries < 0 {
		problems = append(problems, "crawl.max_retries must not be negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Seeds returns every catalog the sync entries mention, targets and pinned, sorted.
func (c *Config) Seeds() []string {
	var names []string
	for _, e := range c.Catalogs {
		names = append(names, e.Catalog)
		names = append(names, e.PinnedCatalogs...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Token, err = ResolveValue(c.Token)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	c.Host, err = ResolveValue(c.Host)
	if err != nil {
		return fmt.Errorf("host: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
