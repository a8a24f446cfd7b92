package util

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const Name = "nodelink"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host            string
		HttpPort        int           `yaml:"httpPort"`
		SshPort         int           `yaml:"sshPort"`
		BaseURL         string        `yaml:"baseUrl"`
		Database        string        `yaml:"database"`
		NodeUsername    string        `yaml:"nodeUsername"`
		NodePassword    string        `yaml:"nodePassword"`
		WithSsh         bool          `yaml:"withSsh"`
		AdminKeys       []string      `yaml:"adminKeys"`
		RelayTimeout    time.Duration `yaml:"relayTimeout"`
		SyncInterval    time.Duration `yaml:"syncInterval"`
		SyncConcurrency int           `yaml:"syncConcurrency"`
		LogLevel        string        `yaml:"logLevel"`
	}
}

func ReadConf() (*AppConfig, error) {
	log := Logger().WithPrefix("Config")

	configPath := DataPath(ConfigFileName)
	buf, err := os.ReadFile(configPath)
	if err != nil {
		log.Info("config file not found, using embedded defaults", "path", configPath)
		buf = embeddedConfig
		if writeErr := os.WriteFile(configPath, embeddedConfig, 0o600); writeErr != nil {
			log.Warn("could not write default config", "path", configPath, "err", writeErr)
		} else {
			log.Info("created default config file", "path", configPath)
		}
	}

	return ParseConf(buf)
}

// ParseConf decodes a yaml document, applies NODELINK_* overrides and fills defaults.
func ParseConf(buf []byte) (*AppConfig, error) {
	c := &AppConfig{}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

func (c *AppConfig) applyEnv() error {
	if v := os.Getenv("NODELINK_HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := os.Getenv("NODELINK_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NODELINK_HTTPPORT: %w", err)
		}
		c.Conf.HttpPort = port
	}
	if v := os.Getenv("NODELINK_SSHPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NODELINK_SSHPORT: %w", err)
		}
		c.Conf.SshPort = port
	}
	if v := os.Getenv("NODELINK_BASEURL"); v != "" {
		c.Conf.BaseURL = v
	}
	if v := os.Getenv("NODELINK_DATABASE"); v != "" {
		c.Conf.Database = v
	}
	if v := os.Getenv("NODELINK_NODE_USERNAME"); v != "" {
		c.Conf.NodeUsername = v
	}
	if v := os.Getenv("NODELINK_NODE_PASSWORD"); v != "" {
		c.Conf.NodePassword = v
	}
	if os.Getenv("NODELINK_WITH_SSH") == "true" {
		c.Conf.WithSsh = true
	}
	if v := os.Getenv("NODELINK_ADMIN_KEYS"); v != "" {
		c.Conf.AdminKeys = strings.Split(v, ",")
	}
	if v := os.Getenv("NODELINK_RELAY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NODELINK_RELAY_TIMEOUT: %w", err)
		}
		c.Conf.RelayTimeout = d
	}
	if v := os.Getenv("NODELINK_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NODELINK_SYNC_INTERVAL: %w", err)
		}
		c.Conf.SyncInterval = d
	}
	if v := os.Getenv("NODELINK_LOG_LEVEL"); v != "" {
		c.Conf.LogLevel = v
	}
	return nil
}

func (c *AppConfig) applyDefaults() {
	if c.Conf.HttpPort == 0 {
		c.Conf.HttpPort = 8000
	}
	if c.Conf.BaseURL == "" {
		c.Conf.BaseURL = fmt.Sprintf("http://localhost:%d/api/", c.Conf.HttpPort)
	}
	if c.Conf.Database == "" {
		c.Conf.Database = "database.db"
	}
	if c.Conf.RelayTimeout <= 0 {
		c.Conf.RelayTimeout = 10 * time.Second
	}
	if c.Conf.SyncInterval <= 0 {
		c.Conf.SyncInterval = 5 * time.Minute
	}
	if c.Conf.SyncConcurrency <= 0 {
		c.Conf.SyncConcurrency = 4
	}
	if c.Conf.LogLevel == "" {
		c.Conf.LogLevel = "info"
	}
}
