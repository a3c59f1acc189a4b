// Package configloader builds netlog.Config values from YAML documents and
// environment variables using Viper.
//
// Recognised keys:
//
//	path               final log file; "~" and $VARS are expanded
//	max_total_size     bytes kept on disk, e.g. 41943040, "40MiB" or "50 MB";
//	                   0, "unbounded" or absent for unbounded
//	num_event_files    rotation slots in bounded mode
//	flush_threshold    queue length that triggers a flush
//	capture_mode       default, include_sensitive or everything
//	file_mode          octal permissions as a string, e.g. "0640"
//	compress           gzip the final log once stopped
//	compression_level  gzip level, -2 to 9
//
// Environment variables use the upper-cased key behind a prefix, NETLOG by
// default: NETLOG_MAX_TOTAL_SIZE=10MiB.
//
// Every loader validates the result with netlog.Config.ValidateLimits, so an
// impossible ring (fewer bytes than event files, a zero flush threshold) is
// rejected where it is configured. The path may be left empty for callers
// that supply it later.
package configloader

import (
	"bytes"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/viper"

	"github.com/hyp3rd/netlog"
)

const defaultEnvPrefix = "NETLOG"

// FromEnv loads configuration sourced from environment variables using the provided prefix.
// Environment keys are normalized by uppercasing and replacing dots with underscores.
func FromEnv(prefix string) (*netlog.Config, error) {
	viperInstance := viper.New()

	err := bindEnvironment(viperInstance, normalizePrefix(prefix))
	if err != nil {
		return nil, err
	}

	return load(viperInstance, "environment")
}

// FromYAML loads configuration from a YAML document provided as bytes.
func FromYAML(data []byte) (*netlog.Config, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigType("yaml")

	err := viperInstance.ReadConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to read YAML configuration")
	}

	return load(viperInstance, "yaml")
}

// FromFile loads configuration from a YAML file and merges environment overrides using the default prefix.
func FromFile(path string) (*netlog.Config, error) {
	viperInstance := viper.New()

	err := bindEnvironment(viperInstance, defaultEnvPrefix)
	if err != nil {
		return nil, err
	}

	viperInstance.SetConfigFile(path)

	err = viperInstance.ReadInConfig()
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to read configuration file").
			WithMetadata("path", path)
	}

	return load(viperInstance, path)
}

// load decodes, defaults and validates the configuration held by viperInstance.
// source names where it came from in errors.
func load(viperInstance *viper.Viper, source string) (*netlog.Config, error) {
	raw, err := loadRawFromViper(viperInstance)
	if err != nil {
		return nil, err
	}

	cfg, err := applyRaw(raw)
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid netlog configuration").
			WithMetadata("source", source)
	}

	err = cfg.ValidateLimits()
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid netlog configuration").
			WithMetadata("source", source)
	}

	return cfg, nil
}

func loadRawFromViper(viperInstance *viper.Viper) (rawConfig, error) {
	var raw rawConfig

	// Environment values only reach Unmarshal once they are set explicitly.
	for _, key := range allKeys() {
		if !viperInstance.IsSet(key) {
			continue
		}

		viperInstance.Set(key, viperInstance.Get(key))
	}

	err := viperInstance.Unmarshal(&raw)
	if err != nil {
		return rawConfig{}, ewrap.Wrap(err, "failed to decode configuration")
	}

	return raw, nil
}

func bindEnvironment(viperInstance *viper.Viper, prefix string) error {
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if prefix != "" {
		viperInstance.SetEnvPrefix(prefix)
	}

	viperInstance.AutomaticEnv()

	for _, key := range allKeys() {
		err := viperInstance.BindEnv(key)
		if err != nil {
			return ewrap.Wrap(err, "failed to bind environment key").
				WithMetadata("key", key).
				WithMetadata("prefix", prefix)
		}
	}

	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return defaultEnvPrefix
	}

	prefix = strings.TrimSuffix(prefix, "_")
	prefix = strings.ReplaceAll(prefix, "-", "_")

	return strings.ToUpper(prefix)
}
