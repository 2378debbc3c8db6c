package factory

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/oscarcore/charset"
	"github.com/opd-ai/oscarcore/config"
	"github.com/opd-ai/oscarcore/logging"
	"github.com/opd-ai/oscarcore/ratelimit"
	"github.com/opd-ai/oscarcore/snac"
	"github.com/opd-ai/oscarcore/snac/icbm"
	"github.com/opd-ai/oscarcore/snac/locate"
	"github.com/opd-ai/oscarcore/snac/service"
)

// Role selects which side of a connection a codec decodes for.
type Role int

const (
	// RoleClient decodes what a server sends.
	RoleClient Role = iota
	// RoleServer decodes what a client sends.
	RoleServer
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// familyFactories lists the modeled families for each role.
func familyFactories(role Role) ([]snac.Factory, error) {
	switch role {
	case RoleClient:
		return []snac.Factory{service.ClientFactory(), locate.ClientFactory(), icbm.ClientFactory()}, nil
	case RoleServer:
		return []snac.Factory{service.ServerFactory(), locate.ServerFactory(), icbm.ServerFactory()}, nil
	default:
		return nil, fmt.Errorf("unknown role %d", role)
	}
}

// CodecFactory creates codecs and rate monitors from one configuration.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type CodecFactory struct {
	mu     sync.RWMutex
	config *config.Config
}

// NewCodecFactory creates a factory from the defaults and the OSCAR_*
// environment variables.
func NewCodecFactory() *CodecFactory {
	cfg := config.Default()
	config.ApplyEnvironmentOverrides(cfg)
	logConfigurationInfo("NewCodecFactory", cfg)
	return &CodecFactory{config: cfg}
}

// NewCodecFactoryWithConfig creates a factory from cfg after validating it.
func NewCodecFactoryWithConfig(cfg *config.Config) (*CodecFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logConfigurationInfo("NewCodecFactoryWithConfig", cfg)
	return &CodecFactory{config: cfg.Clone()}, nil
}

func logConfigurationInfo(function string, cfg *config.Config) {
	logging.NewLogger("factory", function).WithFields(logrus.Fields{
		"max_snac_size":     cfg.MaxSnacSize,
		"max_chain_records": cfg.MaxChainRecords,
		"default_charset":   cfg.DefaultCharset,
		"log_level":         cfg.LogLevel,
		"rate_error_margin": cfg.RateErrorMargin,
		"rate_classes":      len(cfg.RateClasses),
	}).Info("Created codec factory with configuration")
}

// ApplyGlobals sets the process-wide log level and default charset from
// the configuration. Call it once at startup, before any decoding.
func (f *CodecFactory) ApplyGlobals() error {
	f.mu.RLock()
	cfg := f.config
	f.mu.RUnlock()

	cs, err := cfg.Charset()
	if err != nil {
		return err
	}
	logging.Configure(cfg.LogLevel)
	charset.Default = cs
	return nil
}

// CreateRegistry returns a registry holding every modeled family for role.
func (f *CodecFactory) CreateRegistry(role Role) (*snac.Registry, error) {
	factories, err := familyFactories(role)
	if err != nil {
		return nil, err
	}
	reg := snac.NewRegistry(role.String())
	for _, fac := range factories {
		if err := reg.Register(fac); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// CreateCodec returns a codec for role using the configured limits.
func (f *CodecFactory) CreateCodec(role Role) (*snac.Codec, error) {
	reg, err := f.CreateRegistry(role)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	cfg := f.config
	f.mu.RUnlock()

	logging.NewLogger("factory", "CreateCodec").WithFields(logrus.Fields{
		"role":          role.String(),
		"max_snac_size": cfg.MaxSnacSize,
		"commands":      len(reg.Keys()),
	}).Info("Creating codec")

	return snac.NewCodec(reg,
		snac.WithMaxSnacSize(cfg.MaxSnacSize),
		snac.WithMaxChainRecords(cfg.MaxChainRecords),
	), nil
}

// CreateMonitor returns a rate monitor seeded with the configured presets.
// The peer's own rate announcement replaces them once it arrives.
func (f *CodecFactory) CreateMonitor(opts ...ratelimit.Option) (*ratelimit.Monitor, error) {
	f.mu.RLock()
	cfg := f.config
	f.mu.RUnlock()

	params, members, err := cfg.RateParams()
	if err != nil {
		return nil, err
	}
	opts = append([]ratelimit.Option{ratelimit.WithErrorMargin(cfg.RateErrorMargin)}, opts...)
	m := ratelimit.NewMonitor(opts...)
	if len(params) > 0 {
		if err := m.SetClasses(params, members); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// GetCurrentConfig returns a copy of the current configuration.
func (f *CodecFactory) GetCurrentConfig() *config.Config {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.config.Clone()
}

// UpdateConfig replaces the configuration used by later Create calls.
// Codecs and monitors already created keep their settings.
func (f *CodecFactory) UpdateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logging.NewLogger("factory", "UpdateConfig").WithFields(logrus.Fields{
		"old_max_snac_size": f.config.MaxSnacSize,
		"new_max_snac_size": cfg.MaxSnacSize,
		"old_rate_classes":  len(f.config.RateClasses),
		"new_rate_classes":  len(cfg.RateClasses),
	}).Info("Updating factory configuration")

	f.config = cfg.Clone()
	return nil
}
