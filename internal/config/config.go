// Package config assembles the bridge's bootstrap configuration from
// flags, environment variables, and an optional YAML file of ambient
// knobs the spec leaves implicit (§6, SPEC_FULL §1). Domain state
// (bridge identity, users, lights, groups, ...) never lives here — it
// is owned exclusively by internal/configstore.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the bootstrap configuration for one bridge process.
type Config struct {
	DataDir                     string
	HassURL                     string
	HassToken                   string
	Verbose                     bool
	HTTPPort                    int
	HTTPSPort                   int
	UseDefaultPortsForDiscovery bool
	LogJSON                     bool

	Ambient Ambient
}

// Ambient holds the knobs spec.md is silent on but the teacher always
// exposes through its YAML config layer: delayed-commit window,
// certificate validity, the Entertainment refresh gate, backend call
// timeout. Only ConfigWriteDelay and BackendTimeout are applied;
// CertificateValidityDays and EntertainmentRefreshMs are parsed but not
// read anywhere, so the certificate validity (transport.certValidityDays)
// and the refresh gate (device.entertainmentRefreshGateMs) stay fixed.
type Ambient struct {
	ConfigWriteDelay        Duration `yaml:"config_write_delay"`
	CertificateValidityDays int      `yaml:"certificate_validity_days"`
	EntertainmentRefreshMs  int      `yaml:"entertainment_refresh_ms"`
	BackendTimeout          Duration `yaml:"backend_timeout"`
}

func defaultAmbient() Ambient {
	return Ambient{
		ConfigWriteDelay:        Duration{10 * time.Second},
		CertificateValidityDays: 3650,
		EntertainmentRefreshMs:  1000,
		BackendTimeout:          Duration{30 * time.Second},
	}
}

// Duration wraps time.Duration for human-friendly YAML ("10s", "2m").
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Load parses flags/env (§6) and, if --config names a readable file,
// layers ambient YAML knobs on top of the defaults.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("huebridged", flag.ContinueOnError)

	cfg := &Config{Ambient: defaultAmbient()}
	var configPath string

	fs.StringVar(&configPath, "config", "", "optional YAML file of ambient tuning knobs")
	fs.StringVar(&cfg.DataDir, "data", envOr("DATA_DIR", "./data"), "data directory (DATA_DIR)")
	fs.StringVar(&cfg.HassURL, "url", envOr("HASS_URL", ""), "backend base URL (HASS_URL)")
	fs.StringVar(&cfg.HassToken, "token", firstNonEmpty(os.Getenv("HASS_TOKEN"), os.Getenv("HASSIO_TOKEN")), "backend auth token (HASS_TOKEN or HASSIO_TOKEN)")
	fs.BoolVar(&cfg.Verbose, "verbose", envBool("VERBOSE", false), "verbose (debug) logging (VERBOSE)")
	fs.IntVar(&cfg.HTTPPort, "http-port", envInt("HTTP_PORT", 80), "HTTP listen port (HTTP_PORT)")
	fs.IntVar(&cfg.HTTPSPort, "https-port", envInt("HTTPS_PORT", 443), "HTTPS listen port (HTTPS_PORT)")
	fs.BoolVar(&cfg.UseDefaultPortsForDiscovery, "use-default-ports-for-discovery", envBool("USE_DEFAULT_PORTS", false), "advertise port 80 in discovery responses regardless of --http-port (USE_DEFAULT_PORTS)")
	fs.BoolVar(&cfg.LogJSON, "log-json", envBool("LOG_JSON", false), "emit JSON logs instead of console output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := cfg.loadAmbientYAML(configPath); err != nil {
			return nil, err
		}
	}

	if cfg.HassURL == "" {
		return nil, fmt.Errorf("backend URL required (--url or HASS_URL)")
	}

	return cfg, nil
}

func (c *Config) loadAmbientYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c.Ambient); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// DiscoveryPort is the port advertised in the SSDP LOCATION header and
// description.xml (§4.5): the real HTTP port, unless
// UseDefaultPortsForDiscovery asks us to advertise 80 for reverse-proxy
// deployments. The mDNS record always advertises 443.
func (c *Config) DiscoveryPort() int {
	if c.UseDefaultPortsForDiscovery {
		return 80
	}
	return c.HTTPPort
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v == "1" || v == "true" || v == "TRUE" || v == "yes"
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
