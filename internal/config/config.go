// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CRSFSCOPE_CONNECTION_BAUD
const EnvPrefix = "CRSFSCOPE"

// ConnectionConfig selects and parameterizes the link transport
type ConnectionConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	URL         string        `mapstructure:"url"`
	Username    string        `mapstructure:"username"`
	NoSSLVerify bool          `mapstructure:"noSSLVerify"`
	TCP         string        `mapstructure:"tcp"`
	DialTimeout time.Duration `mapstructure:"dialTimeout"`
}

// LumberjackConfig configures the rolling log file
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig holds log level and output settings
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// HTTPConfig configures the status server used by serve
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// MetricsConfig configures Prometheus exposure
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// MQTTConfig configures the decoded-frame relay
type MQTTConfig struct {
	Enable      bool          `mapstructure:"enable"`
	Broker      string        `mapstructure:"broker"`
	ClientID    string        `mapstructure:"clientID"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	TopicPrefix string        `mapstructure:"topicPrefix"`
	QoS         byte          `mapstructure:"qos"`
	Retain      bool          `mapstructure:"retain"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CaptureConfig configures frame recording
type CaptureConfig struct {
	Path string `mapstructure:"path"`
}

// TransmitConfig configures RC frame generation
type TransmitConfig struct {
	Rate float64 `mapstructure:"rate"`
}

// Config is the top-level configuration
type Config struct {
	Connection ConnectionConfig `mapstructure:"connection"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Transmit   TransmitConfig   `mapstructure:"transmit"`
}

// flagKeys maps command-line flag names onto configuration keys
var flagKeys = map[string]string{
	"port":          "connection.port",
	"baud":          "connection.baud",
	"url":           "connection.url",
	"username":      "connection.username",
	"no-ssl-verify": "connection.noSSLVerify",
	"tcp":           "connection.tcp",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"log-file":      "logging.file.filename",
	"http-addr":     "http.addr",
	"mqtt":          "mqtt.enable",
	"mqtt-broker":   "mqtt.broker",
	"mqtt-prefix":   "mqtt.topicPrefix",
	"record":        "capture.path",
	"rate":          "transmit.rate",
}

// Load reads configuration from an optional YAML/TOML/JSON file, environment
// variables and command-line flags, in increasing order of precedence.
// When path is empty, crsfscope.{yaml,toml,json} is searched for in the working
// directory and $HOME/.config/crsfscope; a missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/crsfscope")
		v.SetConfigName("crsfscope")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection.port", "")
	v.SetDefault("connection.baud", 420000)
	v.SetDefault("connection.url", "")
	v.SetDefault("connection.username", "")
	v.SetDefault("connection.noSSLVerify", false)
	v.SetDefault("connection.tcp", "")
	v.SetDefault("connection.dialTimeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("http.addr", ":9090")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientID", "crsfscope")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topicPrefix", "crsf")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.timeout", "5s")

	v.SetDefault("capture.path", "")

	v.SetDefault("transmit.rate", 50.0)
}
