package disk

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// Config holds image handling, logging and mount settings
type Config struct {
	PartitionDetect bool   `mapstructure:"partition_detect" json:"partition_detect" yaml:"partition_detect"`
	BaseSector      uint32 `mapstructure:"base_sector" json:"base_sector" yaml:"base_sector"`
	HomeBlockRange  uint32 `mapstructure:"home_block_range" json:"home_block_range" yaml:"home_block_range"`
	LogLevel        string `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
	LogFormat       string `mapstructure:"log_format" json:"log_format" yaml:"log_format"`
	Verbose         string `mapstructure:"verbose" json:"verbose" yaml:"verbose"`
	MetricsAddr     string `mapstructure:"metrics_addr" json:"metrics_addr" yaml:"metrics_addr"`
	FsName          string `mapstructure:"fs_name" json:"fs_name" yaml:"fs_name"`
	AllowOther      bool   `mapstructure:"allow_other" json:"allow_other" yaml:"allow_other"`
}

// SetConfigDefaults registers the default value of every key
func SetConfigDefaults() {
	viper.SetDefault("partition_detect", true)
	viper.SetDefault("base_sector", 0)
	viper.SetDefault("home_block_range", types.HomeBlockRange)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")
	viper.SetDefault("verbose", "")
	viper.SetDefault("metrics_addr", "")
	viper.SetDefault("fs_name", "agcfs")
	viper.SetDefault("allow_other", false)
}

// LoadConfig loads configuration using Viper. An explicit configFile replaces the
// search paths.
func LoadConfig(configFile string) (*Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("agcfs-config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("$HOME/.agcfs")
		viper.AddConfigPath("/etc/agcfs")
	}

	SetConfigDefaults()

	viper.SetEnvPrefix("AGCFS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// Verbosity parses the configured verbose categories
func (c *Config) Verbosity() (types.Verbosity, error) {
	v, unknown := types.ParseVerbosity(c.Verbose)
	if len(unknown) > 0 {
		return v, fmt.Errorf("unknown verbose categories: %v", unknown)
	}
	return v, nil
}
