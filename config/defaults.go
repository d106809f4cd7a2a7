package config

import "github.com/spf13/viper"

// Default returns the built-in configuration without consulting config files
// or environment variables.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(err)
	}
	return &config
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Lookup table defaults
	v.SetDefault("lookup.filename", "id_lookup_table.csv")

	// Derived file naming
	v.SetDefault("files.backup_suffix", ".backup")
	v.SetDefault("files.training_suffix", "_training")

	// Crash-safe replace protocol
	v.SetDefault("replace.max_attempts", 5)
	v.SetDefault("replace.backoff_ms", 200)
	v.SetDefault("replace.settle_ms", 100)

	// Consent interpretation
	v.SetDefault("consent.legacy_default_granted", true)
}
