package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Address  string `mapstructure:"address"`
		HTTPPort string `mapstructure:"http_port"`
	} `mapstructure:"server"`

	Database struct {
		Driver string `mapstructure:"driver"` // postgres|mysql|sqlite
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	} `mapstructure:"logging"`

	DNS struct {
		DefaultDomain string `mapstructure:"default_domain"`
		TTL           int    `mapstructure:"ttl"`
	} `mapstructure:"dns"`

	Workflow struct {
		// окно коалесинга заданий
		Window time.Duration `mapstructure:"window"`
	} `mapstructure:"workflow"`
}

// Load читает config.yaml (рабочая директория или /etc/maas-sub001) и
// переменные окружения с префиксом MAAS_SUB (MAAS_SUB_DATABASE_DSN и т.д.).
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:maas-sub001.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("dns.default_domain", "maas")
	v.SetDefault("dns.ttl", 30)
	v.SetDefault("workflow.window", 5*time.Second)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/maas-sub001")

	v.SetEnvPrefix("MAAS_SUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// файл не обязателен: дефолты + env
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
