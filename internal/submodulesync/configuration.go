package submodulesync

import "strings"

const (
	defaultSubmodulePathConstant          = "thirdparty/cudf"
	submodulePathConfigurationKeyConstant = "submodule_path"
	configurationKeySeparatorConstant     = "."
	submodulePathSeparatorConstant        = "/"
)

// CommandConfiguration captures configuration values for the submodule-sync command.
type CommandConfiguration struct {
	SubmodulePath string `mapstructure:"submodule_path"`
}

// DefaultCommandConfiguration provides baseline configuration values for submodule-sync.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{SubmodulePath: defaultSubmodulePathConstant}
}

// DefaultConfigurationValues returns viper defaults keyed beneath the provided prefix.
func DefaultConfigurationValues(keyPrefix string) map[string]any {
	return map[string]any{
		keyPrefix + configurationKeySeparatorConstant + submodulePathConfigurationKeyConstant: defaultSubmodulePathConstant,
	}
}

// Sanitize trims configured values and restores defaults for empty entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.SubmodulePath = strings.Trim(strings.TrimSpace(configuration.SubmodulePath), submodulePathSeparatorConstant)
	if len(sanitized.SubmodulePath) == 0 {
		sanitized.SubmodulePath = defaultSubmodulePathConstant
	}
	return sanitized
}
