package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	TickIntervalMS    int     `mapstructure:"tick_interval_ms"`
	HistoryCapacity   int     `mapstructure:"history_capacity"`
	GraceTicks        int     `mapstructure:"grace_ticks"`
	CPUAlertPercent   float64 `mapstructure:"cpu_alert_percent"`
	MemAlertPercent   float64 `mapstructure:"mem_alert_percent"`
	AlertSustainTicks int     `mapstructure:"alert_sustain_ticks"`
	CPUAlertsEnabled  bool    `mapstructure:"cpu_alerts_enabled"`
	MemAlertsEnabled  bool    `mapstructure:"mem_alerts_enabled"`
	RulesFile         string  `mapstructure:"rules_file"`
	ListenAddr        string  `mapstructure:"listen_addr"`
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"`
}

func Default() *Config {
	return &Config{
		TickIntervalMS:    700,
		HistoryCapacity:   120,
		GraceTicks:        3,
		CPUAlertPercent:   85,
		MemAlertPercent:   90,
		AlertSustainTicks: 3,
		CPUAlertsEnabled:  true,
		MemAlertsEnabled:  true,
		ListenAddr:        "127.0.0.1:7700",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("vigil")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("VIGIL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Vigil")
	case "darwin":
		return "/Library/Application Support/Vigil"
	default:
		return "/etc/vigil"
	}
}
