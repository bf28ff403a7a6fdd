package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr     = ":8000"
	defaultMetricsAddr  = ":9092"
	defaultStorageRoot  = "/tmp/docserve_files"
	defaultTTLHours     = 24
	defaultReapInterval = time.Hour
	defaultWorkDir      = "."
	defaultLimitsPath   = "config/limits.yaml"

	envHTTPAddr       = "DOCSERVE_HTTP_ADDR"
	envMetricsAddr    = "DOCSERVE_METRICS_ADDR"
	envStorageRoot    = "DOCSERVE_STORAGE_ROOT"
	envTTLHours       = "DOCSERVE_DEFAULT_TTL_HOURS"
	envReapInterval   = "DOCSERVE_REAP_INTERVAL"
	envWorkDir        = "DOCSERVE_WORK_DIR"
	envPublicDomain   = "DOCSERVE_PUBLIC_DOMAIN"
	envPublicProtocol = "DOCSERVE_PUBLIC_PROTOCOL"
	envLimitsPath     = "DOCSERVE_LIMITS_PATH"
)

// Config holds runtime configuration for the docserve server.
type Config struct {
	HTTPAddr        string
	MetricsAddr     string
	StorageRoot     string
	WorkDir         string
	DefaultTTLHours int
	ReapInterval    time.Duration
	PublicDomain    string
	PublicProtocol  string
	LimitsPath      string
}

// Load returns configuration using environment variables with sane defaults.
func Load() *Config {
	cfg := &Config{
		HTTPAddr:        getenv(envHTTPAddr, defaultHTTPAddr),
		MetricsAddr:     getenv(envMetricsAddr, defaultMetricsAddr),
		StorageRoot:     getenv(envStorageRoot, defaultStorageRoot),
		WorkDir:         getenv(envWorkDir, defaultWorkDir),
		DefaultTTLHours: defaultTTLHours,
		ReapInterval:    defaultReapInterval,
		PublicDomain:    strings.TrimSpace(os.Getenv(envPublicDomain)),
		PublicProtocol:  getenv(envPublicProtocol, "https"),
		LimitsPath:      getenv(envLimitsPath, defaultLimitsPath),
	}
	if raw := strings.TrimSpace(os.Getenv(envTTLHours)); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			cfg.DefaultTTLHours = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv(envReapInterval)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.ReapInterval = d
		}
	}
	return cfg
}

// PublicBaseURL derives the externally visible URL prefix for download links.
// A configured public domain wins; otherwise the listen address is used with
// plain http.
func (c *Config) PublicBaseURL() string {
	if c.PublicDomain != "" {
		proto := c.PublicProtocol
		if proto == "" {
			proto = "https"
		}
		return fmt.Sprintf("%s://%s", proto, c.PublicDomain)
	}
	host, port, err := net.SplitHostPort(c.HTTPAddr)
	if err != nil {
		return "http://localhost:8000"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port))
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
