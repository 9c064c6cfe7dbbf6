// Package config holds the per-node runtime configuration.
//
// A node learns its identity and the daemon address from a single
// environment variable populated by the process that spawned it. The same
// structure can also be filled in directly, which keeps node initialization
// testable without touching process-global state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable carrying the YAML-encoded node
// configuration.
const EnvVar = "FLOWNODE_CONFIG"

// Config identifies one node and the daemon it reports to.
type Config struct {
	// NodeID is this node's identifier within the dataflow.
	NodeID string `yaml:"node_id"`
	// DataflowID identifies the dataflow instance the node belongs to.
	DataflowID string `yaml:"dataflow_id"`
	// DaemonAddr is the TCP address of the daemon routing messages
	// between nodes.
	DaemonAddr string `yaml:"daemon_addr"`
}

// FromEnv reads and parses the configuration from EnvVar.
func FromEnv() (Config, error) {
	raw := os.Getenv(EnvVar)
	if raw == "" {
		return Config{}, fmt.Errorf("%s is not set", EnvVar)
	}
	cfg, err := Parse([]byte(raw))
	if err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", EnvVar, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document into a Config and validates it.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding node config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every required field is present.
func (c Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node config: node_id is required")
	}
	if c.DataflowID == "" {
		return fmt.Errorf("node config: dataflow_id is required")
	}
	if c.DaemonAddr == "" {
		return fmt.Errorf("node config: daemon_addr is required")
	}
	return nil
}

// Encode renders the configuration as YAML, suitable for placing into
// EnvVar before spawning a node process.
func (c Config) Encode() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding node config: %w", err)
	}
	return string(out), nil
}
