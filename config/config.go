// Package config loads and validates the proxy's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shoreline-labs/lb/internal/debug"
	"github.com/shoreline-labs/lb/logger"
	"gopkg.in/yaml.v3"
)

// PersistenceType selects how a session id is derived from a request.
type PersistenceType string

const (
	PersistenceCookie PersistenceType = "Cookie"
	PersistenceIP     PersistenceType = "IP"
	PersistenceNone   PersistenceType = "None"
)

// Strategy names recognised by the configuration, case-sensitive per spec.
const (
	StrategyRoundRobin               = "RoundRobin"
	StrategyWeightedRoundRobin       = "WeightedRoundRobin"
	StrategyRandom                   = "Random"
	StrategyLeastConnections         = "LeastConnections"
	StrategyWeightedLeastConnections = "WeightedLeastConnections"
	StrategyURIPathHash              = "URIPathHash"
	StrategySourceIPHash             = "SourceIPHash"
	StrategyLeastTraffic             = "LeastTraffic"
	StrategyLeastLatency             = "LeastLatency"
)

// BackendConfig describes one upstream server entry under `backends`.
type BackendConfig struct {
	IP     string `yaml:"ip"`
	Port   uint16 `yaml:"port"`
	Path   string `yaml:"path"`
	Scheme string `yaml:"scheme"`
}

// MappingConfig binds a backend name to a match key (a URI path for
// URIPathHash, a client IP for SourceIPHash) under `mappings`.
type MappingConfig struct {
	Path string `yaml:"path"`
}

// HealthCheckConfig configures the active health-check supervisor (C2).
type HealthCheckConfig struct {
	TimeoutSeconds     int `yaml:"timeout"`
	IntervalSeconds    int `yaml:"interval"`
	HealthyThreshold   int `yaml:"healthy_threshold"`
	UnhealthyThreshold int `yaml:"unhealthy_threshold"`
}

func (h HealthCheckConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

func (h HealthCheckConfig) Interval() time.Duration {
	return time.Duration(h.IntervalSeconds) * time.Second
}

// clampThreshold enforces the minimum valid threshold: >= 1, with 0
// treated as 1.
func clampThreshold(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func (h HealthCheckConfig) HealthyThresholdOrDefault() int {
	return clampThreshold(h.HealthyThreshold)
}

func (h HealthCheckConfig) UnhealthyThresholdOrDefault() int {
	return clampThreshold(h.UnhealthyThreshold)
}

// Config is the top-level configuration document.
type Config struct {
	IP              string                   `yaml:"ip"`
	Port            uint16                   `yaml:"port"`
	Strategy        string                   `yaml:"strategy"`
	PersistenceType PersistenceType          `yaml:"persistence_type"`
	Replicas        uint                     `yaml:"replicas"`
	Backends        map[string]BackendConfig `yaml:"backends"`
	Mappings        map[string]MappingConfig `yaml:"mappings"`
	HealthCheck     HealthCheckConfig        `yaml:"health_check"`
}

var current Config

// Load reads and parses the YAML file at path into the package-level
// configuration. Parse and validation failures are fatal.
func Load(path string) {
	buf, err := os.ReadFile(path)
	if err != nil {
		logger.Panic("config.Load", fmt.Sprintf("error loading config file from disk: %s: %s", path, err.Error()))
	}

	var parsed Config
	if err := yaml.Unmarshal(buf, &parsed); err != nil {
		logger.Panic("config.Load", "error unmarshaling config file: "+err.Error())
	}

	if parsed.PersistenceType == "" {
		parsed.PersistenceType = PersistenceCookie
	}

	parsed.validate()

	current = parsed
}

// validate enforces the configuration's startup invariants: unknown
// strategy and persistence_type strings are fatal; mappings that don't resolve
// to a known backend are logged and dropped. Duplicate backend names
// are rejected by yaml.v3's decoder itself (a repeated mapping key is
// a decode error), so Load's Unmarshal call already covers that case.
func (c *Config) validate() {
	switch c.Strategy {
	case StrategyRoundRobin, StrategyWeightedRoundRobin, StrategyRandom,
		StrategyLeastConnections, StrategyWeightedLeastConnections,
		StrategyURIPathHash, StrategySourceIPHash, StrategyLeastTraffic,
		StrategyLeastLatency:
	default:
		logger.Panic("config.validate", "unknown strategy", "strategy", debug.NewPrintable(c.Strategy).String())
	}

	switch c.PersistenceType {
	case PersistenceCookie, PersistenceIP, PersistenceNone:
	default:
		logger.Panic("config.validate", "unknown persistence_type", "persistence_type", string(c.PersistenceType))
	}

	for name, m := range c.Mappings {
		if _, ok := c.Backends[name]; !ok {
			logger.Warn("config.validate", "mapping references unknown backend, dropping",
				"name", name, "path", debug.NewPrintable(m.Path).String())
			delete(c.Mappings, name)
		}
	}
}

// GetConfig returns the currently loaded configuration.
func GetConfig() Config {
	return current
}
