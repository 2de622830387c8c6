package automerge

const (
	mergeConfigurationKeyConstant     = "merge"
	configurationKeySeparatorConstant = "."
)

// CommandConfiguration captures configuration values for the automerge command.
type CommandConfiguration struct {
	Merge bool `mapstructure:"merge"`
}

// DefaultCommandConfiguration provides baseline configuration values for automerge.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{Merge: true}
}

// DefaultConfigurationValues returns viper defaults keyed beneath the provided prefix.
func DefaultConfigurationValues(keyPrefix string) map[string]any {
	return map[string]any{
		keyPrefix + configurationKeySeparatorConstant + mergeConfigurationKeyConstant: true,
	}
}
