package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muntasirraihan/orleans/errors"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultResponseTimeout        = 30 * time.Second
	DefaultDebuggingTimeout       = 30 * time.Minute
	DefaultConnectionTimeout      = 10 * time.Second
	DefaultGatewayInitTimeout     = 60 * time.Second
	DefaultStatisticsInterval     = 30 * time.Second
	DefaultStatisticsBulkCap      = 100
	DefaultTableCreationTimeout   = 2 * time.Minute
	DefaultInboundQueueCapacity   = 8192
	DefaultObjectPumpWorkers      = 8
	DefaultObjectPumpQueue        = 4096
)

// ProviderConfig describes one configured plugin provider.
type ProviderConfig struct {
	Name       string         `yaml:"name" json:"name"`
	Type       string         `yaml:"type" json:"type"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// ClientConfig is the complete configuration of a client runtime instance.
// It is immutable after NewRuntime validates it.
type ClientConfig struct {
	// DeploymentID names the deployment this client attaches to; it keys
	// telemetry partitions.
	DeploymentID string `yaml:"deployment_id" json:"deployment_id"`

	// DNSHostName appears in telemetry rows and logs. Defaults to
	// os.Hostname.
	DNSHostName string `yaml:"dns_host_name,omitempty" json:"dns_host_name,omitempty"`

	// GatewayURLs lists the gateway endpoints the transport may connect
	// through. Validate requires at least one.
	GatewayURLs []string `yaml:"gateway_urls" json:"gateway_urls"`

	// ResponseTimeout bounds how long an outbound request waits for its
	// response before the retry hook runs.
	ResponseTimeout time.Duration `yaml:"response_timeout" json:"response_timeout"`

	// DisableResponseTimeoutEnforcement replaces ResponseTimeout with a
	// long debugging default so breakpoints don't expire every in-flight
	// request.
	DisableResponseTimeoutEnforcement bool `yaml:"disable_response_timeout_enforcement,omitempty" json:"disable_response_timeout_enforcement,omitempty"`

	// MaxResendCount bounds how many times a timed-out request is resent
	// before the timeout surfaces to the caller. 0 disables resends.
	MaxResendCount int `yaml:"max_resend_count" json:"max_resend_count"`

	// DropExpiredMessages controls whether messages carry expiration
	// stamps and are dropped once past them.
	DropExpiredMessages bool `yaml:"drop_expired_messages" json:"drop_expired_messages"`

	// ConnectionTimeout bounds the initial transport connect.
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`

	// GatewayInitTimeout bounds gateway list resolution during Start.
	GatewayInitTimeout time.Duration `yaml:"gateway_init_timeout" json:"gateway_init_timeout"`

	// UseStandardSerializer selects the standard JSON serializer flavor
	// instead of the compact one.
	UseStandardSerializer bool `yaml:"use_standard_serializer,omitempty" json:"use_standard_serializer,omitempty"`

	// PreferredFamily selects the address family used when materializing
	// the client address ("ipv4" or "ipv6").
	PreferredFamily string `yaml:"preferred_family,omitempty" json:"preferred_family,omitempty"`

	// NetInterface restricts local address selection to one interface.
	NetInterface string `yaml:"net_interface,omitempty" json:"net_interface,omitempty"`

	// ProviderConfigurations lists plugin providers loaded at init.
	ProviderConfigurations []ProviderConfig `yaml:"providers,omitempty" json:"providers,omitempty"`

	// StatisticsProviderName is set after init when a statistics provider
	// was selected from ProviderConfigurations.
	StatisticsProviderName string `yaml:"statistics_provider_name,omitempty" json:"statistics_provider_name,omitempty"`

	// StatisticsWriteInterval is the telemetry flush period.
	StatisticsWriteInterval time.Duration `yaml:"statistics_write_interval" json:"statistics_write_interval"`

	// StatisticsBulkCap caps rows per bulk insert.
	StatisticsBulkCap int `yaml:"statistics_bulk_cap" json:"statistics_bulk_cap"`

	// TableCreationTimeout bounds statistics table initialization.
	TableCreationTimeout time.Duration `yaml:"table_creation_timeout" json:"table_creation_timeout"`

	// InboundQueueCapacity sizes the transport's inbound message buffer.
	InboundQueueCapacity int `yaml:"inbound_queue_capacity" json:"inbound_queue_capacity"`

	// ObjectPumpWorkers sizes the worker pool draining local object queues.
	ObjectPumpWorkers int `yaml:"object_pump_workers" json:"object_pump_workers"`

	// ObjectPumpQueue sizes the drain task queue.
	ObjectPumpQueue int `yaml:"object_pump_queue" json:"object_pump_queue"`

	// MetricsPort exposes the Prometheus endpoint when non-zero.
	MetricsPort int `yaml:"metrics_port,omitempty" json:"metrics_port,omitempty"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *ClientConfig) ApplyDefaults() {
	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.GatewayInitTimeout == 0 {
		c.GatewayInitTimeout = DefaultGatewayInitTimeout
	}
	if c.StatisticsWriteInterval == 0 {
		c.StatisticsWriteInterval = DefaultStatisticsInterval
	}
	if c.StatisticsBulkCap == 0 {
		c.StatisticsBulkCap = DefaultStatisticsBulkCap
	}
	if c.TableCreationTimeout == 0 {
		c.TableCreationTimeout = DefaultTableCreationTimeout
	}
	if c.InboundQueueCapacity == 0 {
		c.InboundQueueCapacity = DefaultInboundQueueCapacity
	}
	if c.ObjectPumpWorkers == 0 {
		c.ObjectPumpWorkers = DefaultObjectPumpWorkers
	}
	if c.ObjectPumpQueue == 0 {
		c.ObjectPumpQueue = DefaultObjectPumpQueue
	}
	if c.DNSHostName == "" {
		if host, err := os.Hostname(); err == nil {
			c.DNSHostName = host
		}
	}
}

// Validate checks the configuration for construction-time errors.
func (c *ClientConfig) Validate() error {
	if c.DeploymentID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"ClientConfig", "Validate", "deployment id validation")
	}
	if len(c.GatewayURLs) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"ClientConfig", "Validate", "gateway list validation")
	}
	for _, raw := range c.GatewayURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("invalid gateway url %q: %w", raw, err),
				"ClientConfig", "Validate", "gateway url parsing")
		}
		if u.Scheme == "" || u.Host == "" {
			return errors.WrapInvalid(fmt.Errorf("gateway url %q missing scheme or host", raw),
				"ClientConfig", "Validate", "gateway url validation")
		}
	}
	if c.ResponseTimeout < 0 || c.ConnectionTimeout < 0 || c.GatewayInitTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"ClientConfig", "Validate", "timeout validation")
	}
	if c.MaxResendCount < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"ClientConfig", "Validate", "resend count validation")
	}
	if c.StatisticsBulkCap < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"ClientConfig", "Validate", "statistics bulk cap validation")
	}
	if c.PreferredFamily != "" && c.PreferredFamily != "ipv4" && c.PreferredFamily != "ipv6" {
		return errors.WrapInvalid(fmt.Errorf("preferred family %q", c.PreferredFamily),
			"ClientConfig", "Validate", "address family validation")
	}
	return nil
}

// EffectiveResponseTimeout resolves the response timeout, honoring the
// debugging override.
func (c *ClientConfig) EffectiveResponseTimeout() time.Duration {
	if c.DisableResponseTimeoutEnforcement {
		return DefaultDebuggingTimeout
	}
	return c.ResponseTimeout
}

// StatisticsProvider returns the configured statistics provider, if any.
func (c *ClientConfig) StatisticsProvider() (ProviderConfig, bool) {
	for _, p := range c.ProviderConfigurations {
		if p.Type == "statistics" {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// Clone returns a deep copy of the configuration.
func (c *ClientConfig) Clone() *ClientConfig {
	out := *c
	out.GatewayURLs = append([]string(nil), c.GatewayURLs...)
	out.ProviderConfigurations = make([]ProviderConfig, len(c.ProviderConfigurations))
	for i, p := range c.ProviderConfigurations {
		cp := p
		if p.Properties != nil {
			cp.Properties = make(map[string]any, len(p.Properties))
			for k, v := range p.Properties {
				cp.Properties[k] = v
			}
		}
		out.ProviderConfigurations[i] = cp
	}
	return &out
}

// UnmarshalYAML decodes the config, accepting durations as Go duration
// strings ("30s", "2m"). yaml.v3 has no native time.Duration support, so
// duration fields round-trip through strings here.
func (c *ClientConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig struct {
		DeploymentID                      string           `yaml:"deployment_id"`
		DNSHostName                       string           `yaml:"dns_host_name"`
		GatewayURLs                       []string         `yaml:"gateway_urls"`
		ResponseTimeout                   string           `yaml:"response_timeout"`
		DisableResponseTimeoutEnforcement bool             `yaml:"disable_response_timeout_enforcement"`
		MaxResendCount                    int              `yaml:"max_resend_count"`
		DropExpiredMessages               bool             `yaml:"drop_expired_messages"`
		ConnectionTimeout                 string           `yaml:"connection_timeout"`
		GatewayInitTimeout                string           `yaml:"gateway_init_timeout"`
		UseStandardSerializer             bool             `yaml:"use_standard_serializer"`
		PreferredFamily                   string           `yaml:"preferred_family"`
		NetInterface                      string           `yaml:"net_interface"`
		ProviderConfigurations            []ProviderConfig `yaml:"providers"`
		StatisticsProviderName            string           `yaml:"statistics_provider_name"`
		StatisticsWriteInterval           string           `yaml:"statistics_write_interval"`
		StatisticsBulkCap                 int              `yaml:"statistics_bulk_cap"`
		TableCreationTimeout              string           `yaml:"table_creation_timeout"`
		InboundQueueCapacity              int              `yaml:"inbound_queue_capacity"`
		ObjectPumpWorkers                 int              `yaml:"object_pump_workers"`
		ObjectPumpQueue                   int              `yaml:"object_pump_queue"`
		MetricsPort                       int              `yaml:"metrics_port"`
	}

	var raw rawConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}

	parse := func(field, value string, out *time.Duration) error {
		if value == "" {
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", field, err)
		}
		*out = d
		return nil
	}

	c.DeploymentID = raw.DeploymentID
	c.DNSHostName = raw.DNSHostName
	c.GatewayURLs = raw.GatewayURLs
	c.DisableResponseTimeoutEnforcement = raw.DisableResponseTimeoutEnforcement
	c.MaxResendCount = raw.MaxResendCount
	c.DropExpiredMessages = raw.DropExpiredMessages
	c.UseStandardSerializer = raw.UseStandardSerializer
	c.PreferredFamily = raw.PreferredFamily
	c.NetInterface = raw.NetInterface
	c.ProviderConfigurations = raw.ProviderConfigurations
	c.StatisticsProviderName = raw.StatisticsProviderName
	c.StatisticsBulkCap = raw.StatisticsBulkCap
	c.InboundQueueCapacity = raw.InboundQueueCapacity
	c.ObjectPumpWorkers = raw.ObjectPumpWorkers
	c.ObjectPumpQueue = raw.ObjectPumpQueue
	c.MetricsPort = raw.MetricsPort

	if err := parse("response_timeout", raw.ResponseTimeout, &c.ResponseTimeout); err != nil {
		return err
	}
	if err := parse("connection_timeout", raw.ConnectionTimeout, &c.ConnectionTimeout); err != nil {
		return err
	}
	if err := parse("gateway_init_timeout", raw.GatewayInitTimeout, &c.GatewayInitTimeout); err != nil {
		return err
	}
	if err := parse("statistics_write_interval", raw.StatisticsWriteInterval, &c.StatisticsWriteInterval); err != nil {
		return err
	}
	if err := parse("table_creation_timeout", raw.TableCreationTimeout, &c.TableCreationTimeout); err != nil {
		return err
	}
	return nil
}

// LoadFile reads a YAML configuration file, applies defaults, and validates.
func LoadFile(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "ClientConfig", "LoadFile", "config file read")
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "ClientConfig", "LoadFile", "config file parsing")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
