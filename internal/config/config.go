// Package config resolves stratus settings from flags, STRATUS_* environment
// variables, an optional YAML file and built-in defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vietdv277/stratus/internal/retry"
	"github.com/vietdv277/stratus/internal/topology"
)

// EnvPrefix is prepended to every environment variable, e.g. STRATUS_REGION.
const EnvPrefix = "STRATUS"

// Keys understood in the config file and as STRATUS_* variables.
const (
	KeyProfile             = "profile"
	KeyRegion              = "region"
	KeyEnvironment         = "environment"
	KeyCIDR                = "cidr"
	KeyLogLevel            = "log_level"
	KeyOutput              = "output"
	KeyNatWaitTimeout      = "nat_wait_timeout"
	KeyTeardownMaxRetries  = "teardown.max_retries"
	KeyTeardownInitialWait = "teardown.initial_delay"
	KeyTeardownMaxWait     = "teardown.max_delay"
)

var (
	outputFormats = []string{"table", "json", "yaml"}
	logLevels     = []string{"debug", "info", "warn", "error"}
)

// Config represents the application configuration
type Config struct {
	Profile        string        `yaml:"profile,omitempty" mapstructure:"profile"`
	Region         string        `yaml:"region" mapstructure:"region"`
	Environment    string        `yaml:"environment" mapstructure:"environment"`
	CIDR           string        `yaml:"cidr" mapstructure:"cidr"`
	LogLevel       string        `yaml:"log_level" mapstructure:"log_level"`
	Output         string        `yaml:"output" mapstructure:"output"`
	NatWaitTimeout time.Duration `yaml:"nat_wait_timeout" mapstructure:"nat_wait_timeout"`
	Teardown       Teardown      `yaml:"teardown" mapstructure:"teardown"`
}

// Teardown tunes how long delete waits for NAT gateways to disappear.
type Teardown struct {
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
}

// RetryOptions converts the teardown settings for the NAT deletion poll.
func (t Teardown) RetryOptions() []retry.Option {
	return []retry.Option{
		retry.WithMaxRetries(t.MaxRetries),
		retry.WithInitialDelay(t.InitialDelay),
		retry.WithMaxDelay(t.MaxDelay),
	}
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	poll := retry.DefaultConfig()
	return Config{
		Region:         "ap-south-1",
		Environment:    "Production",
		CIDR:           "10.0.0.0/16",
		LogLevel:       "info",
		Output:         "table",
		NatWaitTimeout: 10 * time.Minute,
		Teardown: Teardown{
			MaxRetries:   poll.MaxRetries,
			InitialDelay: poll.InitialDelay,
			MaxDelay:     poll.MaxDelay,
		},
	}
}

// DefaultPath returns the config file path (~/.stratus.yaml)
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stratus.yaml"
	}
	return filepath.Join(home, ".stratus.yaml")
}

// SetDefaults registers the built-in values with v so every key resolves
// even when neither a flag, a variable nor the file sets it.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(KeyProfile, d.Profile)
	v.SetDefault(KeyRegion, d.Region)
	v.SetDefault(KeyEnvironment, d.Environment)
	v.SetDefault(KeyCIDR, d.CIDR)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyOutput, d.Output)
	v.SetDefault(KeyNatWaitTimeout, d.NatWaitTimeout)
	v.SetDefault(KeyTeardownMaxRetries, d.Teardown.MaxRetries)
	v.SetDefault(KeyTeardownInitialWait, d.Teardown.InitialDelay)
	v.SetDefault(KeyTeardownMaxWait, d.Teardown.MaxDelay)
}

// Load reads the config file at path into v and decodes the merged result.
// An empty path means DefaultPath, which may be absent; an explicit path
// must exist. Flags must already be bound to v.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}
	if c.Environment == "" {
		errs = append(errs, errors.New("environment is required"))
	}
	if err := validateCIDR(c.CIDR); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(outputFormats, c.Output) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(outputFormats, ", "), c.Output))
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of %s, got %q", strings.Join(logLevels, ", "), c.LogLevel))
	}
	if c.NatWaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("nat_wait_timeout must be positive, got %s", c.NatWaitTimeout))
	}
	if c.Teardown.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("teardown.max_retries must not be negative, got %d", c.Teardown.MaxRetries))
	}
	if c.Teardown.InitialDelay <= 0 || c.Teardown.MaxDelay <= 0 {
		errs = append(errs, errors.New("teardown delays must be positive"))
	} else if c.Teardown.InitialDelay > c.Teardown.MaxDelay {
		errs = append(errs, fmt.Errorf("teardown.initial_delay %s exceeds teardown.max_delay %s", c.Teardown.InitialDelay, c.Teardown.MaxDelay))
	}

	return errors.Join(errs...)
}

// validateCIDR checks the VPC block is a canonical IPv4 prefix inside the
// sizes EC2 accepts and large enough to hold both subnet pools.
func validateCIDR(cidr string) error {
	vpc, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("cidr %q is not a valid prefix: %w", cidr, err)
	}
	if !vpc.Addr().Is4() {
		return fmt.Errorf("cidr %q must be IPv4", cidr)
	}
	if vpc.Masked() != vpc {
		return fmt.Errorf("cidr %q has host bits set, did you mean %s?", cidr, vpc.Masked())
	}
	if vpc.Bits() < 16 || vpc.Bits() > 28 {
		return fmt.Errorf("cidr %q must be between /16 and /28", cidr)
	}

	for _, pool := range append(slices.Clone(topology.PublicSubnetCIDRs), topology.PrivateSubnetCIDRs...) {
		subnet := netip.MustParsePrefix(pool)
		if subnet.Bits() < vpc.Bits() || !vpc.Contains(subnet.Addr()) {
			return fmt.Errorf("cidr %q does not contain subnet %s", cidr, pool)
		}
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the configuration to path, refusing to replace an existing
// file unless overwrite is set.
func Save(cfg *Config, path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
