// Package config holds the idveil runtime configuration.
//
// Configuration is resolved by Viper in precedence order:
// defaults < idveil.toml (found by walking up from the working directory)
// < IDVEIL_* environment variables.
package config

// Config represents the idveil configuration
type Config struct {
	Lookup  LookupConfig  `mapstructure:"lookup"`
	Files   FilesConfig   `mapstructure:"files"`
	Replace ReplaceConfig `mapstructure:"replace"`
	Consent ConsentConfig `mapstructure:"consent"`
}

// LookupConfig configures the persistent lookup table
type LookupConfig struct {
	// Filename of the lookup table, created next to the mapping file
	Filename string `mapstructure:"filename"`
}

// FilesConfig configures derived file naming
type FilesConfig struct {
	BackupSuffix   string `mapstructure:"backup_suffix"`   // appended to source paths before mutation (default: ".backup")
	TrainingSuffix string `mapstructure:"training_suffix"` // inserted before the extension of training extracts (default: "_training")
}

// ReplaceConfig configures the crash-safe file replacement protocol
type ReplaceConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"` // delete+rename attempts before giving up (default: 5)
	BackoffMs   int `mapstructure:"backoff_ms"`   // initial backoff between attempts, doubles each retry (default: 200)
	SettleMs    int `mapstructure:"settle_ms"`    // pause after fsync before swapping files in (default: 100)
}

// ConsentConfig configures consent interpretation
type ConsentConfig struct {
	// LegacyDefaultGranted treats rows of a legacy relationship table that has
	// no consent_status column as granted. Pre-consent mapping tables keep
	// anonymizing without edits; set to false to refuse hashing instead.
	LegacyDefaultGranted bool `mapstructure:"legacy_default_granted"`
}
