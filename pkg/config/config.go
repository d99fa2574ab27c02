package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds derived runtime values that other packages may query
// at runtime (populated during startup after merging env+file).
type RuntimeConfig struct {
	SigningKeys map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetSigningKeys returns a copy of configured signing keys.
func GetSigningKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.SigningKeys == nil {
		return out
	}
	for k := range runtimeCfg.SigningKeys {
		out[k] = struct{}{}
	}
	return out
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &c, nil
}

// EffectiveConfigResult carries the merged config plus the resolved listen
// address, db path and a human-readable source summary for the banner.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string
}

// LoadEffective merges, in increasing precedence: built-in defaults, the
// YAML file at path (if readable), and WHISPERBOARD_* environment
// variables. Flags are applied by the caller on top.
func LoadEffective(path string) (EffectiveConfigResult, error) {
	cfg := defaultConfig()
	source := "defaults"

	if path != "" {
		if fileCfg, err := Load(path); err == nil {
			mergeConfig(cfg, fileCfg)
			source = "config"
		} else if !os.IsNotExist(err) {
			return EffectiveConfigResult{}, err
		}
	}
	if applyEnv(cfg) {
		if source == "config" {
			source = "config+env"
		} else {
			source = "env"
		}
	}

	return EffectiveConfigResult{
		Config: cfg,
		Addr:   cfg.Addr(),
		DBPath: cfg.Storage.DBPath,
		Source: source,
	}, nil
}

func defaultConfig() *Config {
	c := &Config{}
	c.Server.Address = "0.0.0.0"
	c.Server.Port = 8080
	c.Storage.DBPath = "./data"
	c.Logging.Level = "info"
	c.Validation.MaxTextLen = 4000
	c.Validation.MaxAttachments = 8
	c.Validation.MaxTopicLen = 64
	c.Notify.SendBuffer = 64
	c.Retention.Cron = "0 3 * * *"
	return c
}
