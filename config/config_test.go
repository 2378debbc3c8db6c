package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/oscarcore/limits"
	"github.com/opd-ai/oscarcore/snac"
)

const sampleTOML = `
max_snac_size = 8192
max_chain_records = 256
default_charset = "iso-8859-1"
log_level = "debug"
rate_error_margin = 25
unknown_key = true

[[rate_class]]
id = 1
window_size = 20
clear_avg = 5100
warn_avg = 5000
limited_avg = 4000
disconnect_avg = 3000
max_avg = 6000
commands = ["0x0004/0x0006", "2/4"]

[[rate_class]]
id = 2
window_size = 10
max_avg = 6000
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oscar.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, limits.MaxSnacSize, cfg.MaxSnacSize)
	assert.Equal(t, limits.DefaultMaxChainRecords, cfg.MaxChainRecords)
	cs, err := cfg.Charset()
	require.NoError(t, err)
	assert.Equal(t, "us-ascii", cs.Name())
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, 8192, cfg.MaxSnacSize)
	assert.Equal(t, 256, cfg.MaxChainRecords)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint32(25), cfg.RateErrorMargin)
	cs, err := cfg.Charset()
	require.NoError(t, err)
	assert.Equal(t, "iso-8859-1", cs.Name())

	params, members, err := cfg.RateParams()
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, uint32(6000), params[0].CurrentAvg)
	assert.Equal(t, uint32(20), params[0].WindowSize)
	assert.Equal(t, []snac.Key{{Family: 4, Subtype: 6}, {Family: 2, Subtype: 4}}, members[1])
	assert.Empty(t, members[2])
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "max_snac_size = ="},
		{"snac too small", "max_snac_size = 4"},
		{"snac too large", "max_snac_size = 70000"},
		{"negative records", "max_chain_records = -1"},
		{"charset", `default_charset = "klingon"`},
		{"log level", `log_level = "loud"`},
		{"margin", "rate_error_margin = 999999"},
		{"zero window", "[[rate_class]]\nid = 1\nmax_avg = 10"},
		{"duplicate class", "[[rate_class]]\nid = 1\nwindow_size = 1\n[[rate_class]]\nid = 1\nwindow_size = 1"},
		{"bad command", "[[rate_class]]\nid = 1\nwindow_size = 1\ncommands = [\"4-6\"]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		verify func(t *testing.T, c *Config)
	}{
		{
			name: "valid values",
			env: map[string]string{
				EnvMaxSnacSize:     "4096",
				EnvMaxChainRecords: "64",
				EnvDefaultCharset:  "unicode-2-0",
				EnvLogLevel:        "warn",
				EnvRateErrorMargin: "100",
			},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, 4096, c.MaxSnacSize)
				assert.Equal(t, 64, c.MaxChainRecords)
				assert.Equal(t, "unicode-2-0", c.DefaultCharset)
				assert.Equal(t, "warn", c.LogLevel)
				assert.Equal(t, uint32(100), c.RateErrorMargin)
			},
		},
		{
			name: "unparsable values keep defaults",
			env: map[string]string{
				EnvMaxSnacSize:     "big",
				EnvMaxChainRecords: "many",
				EnvDefaultCharset:  "nope",
				EnvLogLevel:        "chatty",
				EnvRateErrorMargin: "-5",
			},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, Default(), c)
			},
		},
		{
			name: "out of bounds values keep defaults",
			env: map[string]string{
				EnvMaxSnacSize:     "1",
				EnvMaxChainRecords: "-3",
				EnvRateErrorMargin: "70000",
			},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, Default(), c)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			c := Default()
			ApplyEnvironmentOverrides(c)
			tt.verify(t, c)
		})
	}
}

func TestLoadAppliesEnvironmentLast(t *testing.T) {
	t.Setenv(EnvMaxSnacSize, "1024")
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.MaxSnacSize)
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey(" 0x0001 / 0x0017 ")
	require.NoError(t, err)
	assert.Equal(t, snac.Key{Family: 1, Subtype: 0x17}, k)

	for _, bad := range []string{"", "1", "x/1", "1/x", "0x10000/1"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	cfg.RateClasses = []RateClass{{ID: 1, WindowSize: 1, Commands: []string{"1/2"}}}
	c := cfg.Clone()
	c.RateClasses[0].Commands[0] = "3/4"
	c.MaxSnacSize = 100
	assert.Equal(t, "1/2", cfg.RateClasses[0].Commands[0])
	assert.Equal(t, limits.MaxSnacSize, cfg.MaxSnacSize)
}
