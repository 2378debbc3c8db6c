// Package config loads codec settings from a TOML file and the
// environment.
//
// Settings are resolved in three layers: built-in defaults, an optional
// TOML file, then OSCAR_* environment variables. An environment value
// that fails to parse or falls outside its bounds is logged and ignored.
//
//	max_snac_size = 8192
//	max_chain_records = 1024
//	default_charset = "iso-8859-1"
//	log_level = "debug"
//	rate_error_margin = 50
//
//	[[rate_class]]
//	id = 1
//	window_size = 20
//	clear_avg = 5100
//	warn_avg = 5000
//	limited_avg = 4000
//	disconnect_avg = 3000
//	max_avg = 6000
//	commands = ["0x0004/0x0006", "0x0002/0x0004"]
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/oscarcore/charset"
	"github.com/opd-ai/oscarcore/limits"
	"github.com/opd-ai/oscarcore/logging"
	"github.com/opd-ai/oscarcore/ratelimit"
	"github.com/opd-ai/oscarcore/snac"
)

// Environment variables read by ApplyEnvironmentOverrides.
const (
	EnvMaxSnacSize     = "OSCAR_MAX_SNAC_SIZE"
	EnvMaxChainRecords = "OSCAR_MAX_CHAIN_RECORDS"
	EnvDefaultCharset  = "OSCAR_DEFAULT_CHARSET"
	EnvLogLevel        = "OSCAR_LOG_LEVEL"
	EnvRateErrorMargin = "OSCAR_RATE_ERROR_MARGIN"
)

// Validation bounds.
const (
	// MinSnacSize leaves room for a header and a small body.
	MinSnacSize = limits.SnacHeaderLen + 16
	// MaxRateErrorMargin is the largest accepted margin in milliseconds.
	MaxRateErrorMargin = 60000
)

// ErrInvalidConfig is returned by Validate and Load.
var ErrInvalidConfig = errors.New("invalid configuration")

// RateClass is a rate class preset used before the peer announces its own.
type RateClass struct {
	ID            uint16   `toml:"id"`
	WindowSize    uint32   `toml:"window_size"`
	ClearAvg      uint32   `toml:"clear_avg"`
	WarnAvg       uint32   `toml:"warn_avg"`
	LimitedAvg    uint32   `toml:"limited_avg"`
	DisconnectAvg uint32   `toml:"disconnect_avg"`
	MaxAvg        uint32   `toml:"max_avg"`
	Commands      []string `toml:"commands"`
}

// Config holds codec settings.
type Config struct {
	MaxSnacSize     int         `toml:"max_snac_size"`
	MaxChainRecords int         `toml:"max_chain_records"`
	DefaultCharset  string      `toml:"default_charset"`
	LogLevel        string      `toml:"log_level"`
	RateErrorMargin uint32      `toml:"rate_error_margin"`
	RateClasses     []RateClass `toml:"rate_class"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MaxSnacSize:     limits.MaxSnacSize,
		MaxChainRecords: limits.DefaultMaxChainRecords,
		DefaultCharset:  charset.ASCII.Name(),
		LogLevel:        "info",
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.RateClasses = make([]RateClass, len(c.RateClasses))
	for i, rc := range c.RateClasses {
		rc.Commands = append([]string(nil), rc.Commands...)
		out.RateClasses[i] = rc
	}
	return &out
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     path,
			"keys":     strings.Join(keys, ","),
		}).Warn("Ignoring unknown configuration keys")
	}
	ApplyEnvironmentOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if c.MaxSnacSize < MinSnacSize || c.MaxSnacSize > limits.MaxSnacSize {
		return fmt.Errorf("%w: max_snac_size %d outside [%d, %d]",
			ErrInvalidConfig, c.MaxSnacSize, MinSnacSize, limits.MaxSnacSize)
	}
	if c.MaxChainRecords < 0 {
		return fmt.Errorf("%w: max_chain_records %d is negative", ErrInvalidConfig, c.MaxChainRecords)
	}
	if _, err := c.Charset(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	if c.RateErrorMargin > MaxRateErrorMargin {
		return fmt.Errorf("%w: rate_error_margin %d exceeds %d",
			ErrInvalidConfig, c.RateErrorMargin, MaxRateErrorMargin)
	}
	if _, _, err := c.RateParams(); err != nil {
		return err
	}
	return nil
}

// Charset resolves DefaultCharset.
func (c *Config) Charset() (charset.Charset, error) {
	if c.DefaultCharset == "" {
		return charset.ASCII, nil
	}
	return charset.Lookup(c.DefaultCharset)
}

// RateParams converts the presets into monitor input. Each class starts
// at its maximum average.
func (c *Config) RateParams() ([]ratelimit.Params, map[uint16][]snac.Key, error) {
	params := make([]ratelimit.Params, 0, len(c.RateClasses))
	members := make(map[uint16][]snac.Key, len(c.RateClasses))
	seen := make(map[uint16]bool, len(c.RateClasses))
	for _, rc := range c.RateClasses {
		if seen[rc.ID] {
			return nil, nil, fmt.Errorf("%w: rate class %d listed twice", ErrInvalidConfig, rc.ID)
		}
		seen[rc.ID] = true
		p := ratelimit.Params{
			ClassID:       rc.ID,
			WindowSize:    rc.WindowSize,
			ClearAvg:      rc.ClearAvg,
			WarnAvg:       rc.WarnAvg,
			LimitedAvg:    rc.LimitedAvg,
			DisconnectAvg: rc.DisconnectAvg,
			CurrentAvg:    rc.MaxAvg,
			MaxAvg:        rc.MaxAvg,
		}
		if err := p.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, s := range rc.Commands {
			k, err := ParseKey(s)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: rate class %d: %v", ErrInvalidConfig, rc.ID, err)
			}
			members[rc.ID] = append(members[rc.ID], k)
		}
		params = append(params, p)
	}
	return params, members, nil
}

// ParseKey parses "family/subtype", each number in Go integer syntax.
func ParseKey(s string) (snac.Key, error) {
	fam, sub, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return snac.Key{}, fmt.Errorf("command %q is not family/subtype", s)
	}
	f, err := strconv.ParseUint(strings.TrimSpace(fam), 0, 16)
	if err != nil {
		return snac.Key{}, fmt.Errorf("command %q family: %w", s, err)
	}
	st, err := strconv.ParseUint(strings.TrimSpace(sub), 0, 16)
	if err != nil {
		return snac.Key{}, fmt.Errorf("command %q subtype: %w", s, err)
	}
	return snac.Key{Family: uint16(f), Subtype: uint16(st)}, nil
}

// ApplyEnvironmentOverrides updates c from OSCAR_* environment variables.
func ApplyEnvironmentOverrides(c *Config) {
	parseMaxSnacSizeSetting(c)
	parseMaxChainRecordsSetting(c)
	parseCharsetSetting(c)
	parseLogLevelSetting(c)
	parseRateErrorMarginSetting(c)
}

func parseMaxSnacSizeSetting(c *Config) {
	raw := os.Getenv(EnvMaxSnacSize)
	if raw == "" {
		return
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		warnUnparsable("parseMaxSnacSizeSetting", EnvMaxSnacSize, raw, err, c.MaxSnacSize)
		return
	}
	if size < MinSnacSize || size > limits.MaxSnacSize {
		warnOutOfBounds("parseMaxSnacSizeSetting", EnvMaxSnacSize, size, MinSnacSize, limits.MaxSnacSize, c.MaxSnacSize)
		return
	}
	c.MaxSnacSize = size
}

func parseMaxChainRecordsSetting(c *Config) {
	raw := os.Getenv(EnvMaxChainRecords)
	if raw == "" {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		warnUnparsable("parseMaxChainRecordsSetting", EnvMaxChainRecords, raw, err, c.MaxChainRecords)
		return
	}
	if n < 0 {
		warnOutOfBounds("parseMaxChainRecordsSetting", EnvMaxChainRecords, n, 0, limits.MaxSnacBody, c.MaxChainRecords)
		return
	}
	c.MaxChainRecords = n
}

func parseCharsetSetting(c *Config) {
	raw := os.Getenv(EnvDefaultCharset)
	if raw == "" {
		return
	}
	if _, err := charset.Lookup(raw); err != nil {
		warnUnparsable("parseCharsetSetting", EnvDefaultCharset, raw, err, c.DefaultCharset)
		return
	}
	c.DefaultCharset = raw
}

func parseLogLevelSetting(c *Config) {
	raw := os.Getenv(EnvLogLevel)
	if raw == "" {
		return
	}
	if _, err := logrus.ParseLevel(raw); err != nil {
		warnUnparsable("parseLogLevelSetting", EnvLogLevel, raw, err, c.LogLevel)
		return
	}
	c.LogLevel = raw
}

func parseRateErrorMarginSetting(c *Config) {
	raw := os.Getenv(EnvRateErrorMargin)
	if raw == "" {
		return
	}
	margin, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		warnUnparsable("parseRateErrorMarginSetting", EnvRateErrorMargin, raw, err, c.RateErrorMargin)
		return
	}
	if margin > MaxRateErrorMargin {
		warnOutOfBounds("parseRateErrorMarginSetting", EnvRateErrorMargin, margin, 0, MaxRateErrorMargin, c.RateErrorMargin)
		return
	}
	c.RateErrorMargin = uint32(margin)
}

func warnUnparsable(function, envVar, value string, err error, using interface{}) {
	logging.NewLogger("config", function).WithFields(logrus.Fields{
		"env_var":     envVar,
		"value":       value,
		"error":       err.Error(),
		"using_value": using,
	}).Warn("Failed to parse " + envVar + " environment variable, using default")
}

func warnOutOfBounds(function, envVar string, value, lo, hi, using interface{}) {
	logging.NewLogger("config", function).WithFields(logrus.Fields{
		"env_var":     envVar,
		"value":       value,
		"min":         lo,
		"max":         hi,
		"using_value": using,
	}).Warn(envVar + " value out of bounds, using default")
}
