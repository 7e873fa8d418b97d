// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Query-farm/ligavision-go/session"
)

// cliConfig is the merged flag, environment and file configuration.
type cliConfig struct {
	Session  session.Config
	LogLevel slog.Level
	Trace    bool
}

func setDefaults(v *viper.Viper) {
	d := session.DefaultConfig()
	v.SetDefault("compression", d.Compression)
	v.SetDefault("rows_per_part", d.RowsPerPart)
	v.SetDefault("row_group_length", d.RowGroupLength)
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("http_timeout", d.HTTPTimeout)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("trace", false)
}

// newViper reads LIGAVISION_* variables and an optional ligavision.yaml.
// An explicit config file must exist; the search path may come up empty.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ligavision")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("ligavision")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ligavision")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return v, nil
}

// flagKey maps a flag name to its viper key: "s3-access-key" becomes
// "s3.access_key", "rows-per-part" becomes "rows_per_part".
func flagKey(name string) string {
	if rest, ok := strings.CutPrefix(name, "s3-"); ok {
		return "s3." + strings.ReplaceAll(rest, "-", "_")
	}
	return strings.ReplaceAll(name, "-", "_")
}

// bindFlags binds every flag that names a configuration key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || !configKeys[flagKey(f.Name)] {
			return
		}
		err = v.BindPFlag(flagKey(f.Name), f)
	})
	return err
}

var configKeys = map[string]bool{
	"compression": true, "rows_per_part": true, "row_group_length": true,
	"parallelism": true, "http_timeout": true, "log_level": true, "trace": true,
	"s3.endpoint": true, "s3.access_key": true, "s3.secret_key": true,
	"s3.region": true, "s3.use_ssl": true,
}

func loadConfig(v *viper.Viper) (cliConfig, error) {
	var cfg cliConfig
	cfg.Session = session.Config{
		Compression:    v.GetString("compression"),
		RowsPerPart:    v.GetInt("rows_per_part"),
		RowGroupLength: v.GetInt64("row_group_length"),
		Parallelism:    v.GetInt("parallelism"),
		HTTPTimeout:    v.GetDuration("http_timeout"),
		S3: session.S3Config{
			Endpoint:  v.GetString("s3.endpoint"),
			AccessKey: v.GetString("s3.access_key"),
			SecretKey: v.GetString("s3.secret_key"),
			Region:    v.GetString("s3.region"),
			UseSSL:    v.GetBool("s3.use_ssl"),
		},
	}
	if err := cfg.Session.Validate(); err != nil {
		return cfg, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return cfg, fmt.Errorf("config: log level: %w", err)
	}
	cfg.Trace = v.GetBool("trace")
	return cfg, nil
}
