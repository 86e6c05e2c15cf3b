// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cmd

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the merged configuration from flags, SATCTL_* environment variables and the optional
// config file.
type Config struct {
	Debug   bool          `mapstructure:"debug"`
	HackDb  string        `mapstructure:"hackdb"`
	Timeout time.Duration `mapstructure:"timeout"`

	Device      string `mapstructure:"device"`
	MegaRAID    string `mapstructure:"megaraid"`
	USB         string `mapstructure:"usb"`
	PassThrough string `mapstructure:"passthrough"`
	Port        int    `mapstructure:"port"`
}

// addDeviceFlags adds the flags selecting a device to a subcommand.
func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().String("device", "", "SCSI generic capable device, e.g., /dev/sda")
	cmd.Flags().String("megaraid", "", "MegaRAID host and device ID, e.g., megaraid0_23")
	cmd.Flags().String("usb", "", "USB bridge vendor and product ID, e.g., 152d:2329")
	cmd.Flags().String("passthrough", "", "Override the pass-through: sat16, sat12, jmicron or jmicron-ext")
	cmd.Flags().Int("port", -1, "JMicron bridge port (default: probe)")
}

// bindDeviceFlags binds the device flags of the running subcommand. Flags are bound at run time
// since every subcommand has its own flag set.
func bindDeviceFlags(cmd *cobra.Command) {
	for _, name := range []string{"device", "megaraid", "usb", "passthrough", "port"} {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = viper.BindPFlag(name, f)
		}
	}
}

func ReadConfig(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{}

	bindDeviceFlags(cmd)

	// Set the prefix for vars so we get only the ones starting with SATCTL
	viper.SetEnvPrefix("SATCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))

	if err := viper.Unmarshal(cfg, hook); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewLogger returns the logger used by all subcommands.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})

	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}
