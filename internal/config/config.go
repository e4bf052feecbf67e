package config

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"go.yaml.in/yaml/v3"

	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/provider"
	"github.com/willie68/go_tpkutils/internal/tilecache"
)

type Config struct {
	Port    int                `yaml:"port"`
	Sources provider.ConfigMap `yaml:"sources"`
	Logging logging.Config     `yaml:"logging"`
	Cache   tilecache.Config   `yaml:"cache"`
}

var (
	config Config
)

func Logging() *logging.Config {
	return &config.Logging
}

func Cache() *tilecache.Config {
	return &config.Cache
}

func Sources() *provider.ConfigMap {
	return &config.Sources
}

func SetPort(p int) {
	if p > 0 {
		config.Port = p
	}
}

func Port() int {
	return config.Port
}

func YAML() string {
	ys, err := config.YAML()
	if err != nil {
		return ""
	}
	return ys
}

// Load loads the config
func Load(file string) error {
	_, err := os.Stat(file)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("can't load config file: %s", err.Error())
	}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return fmt.Errorf("can't unmarshal config file: %s", err.Error())
	}
	return nil
}

func Init(inj do.Injector) {
	do.ProvideValue(inj, &config)

	ver := NewVersion()
	do.ProvideValue(inj, *ver)
}

func (c *Config) GetSourcesConfig() provider.ConfigMap {
	return c.Sources
}

func (c *Config) GetCacheConfig() tilecache.Config {
	return c.Cache
}

func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("can't marshal config: %s", err.Error())
	}
	return string(data), nil
}
