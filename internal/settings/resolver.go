package settings

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/temirov/prsync/internal/utils/flags"
	pathutils "github.com/temirov/prsync/internal/utils/path"
)

const (
	environmentFileReadErrorTemplateConstant = "unable to read environment file %s: %w"
	flagSourceLabelConstant                  = "flag"
	environmentSourceTemplateConstant        = "environment variable %s"
	environmentFileSourceTemplateConstant    = "environment file entry %s"
	configurationSourceLabelConstant         = "configuration"
)

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// EnvironmentFileReader parses dotenv files into key/value pairs.
type EnvironmentFileReader func(filePaths ...string) (map[string]string, error)

// Option describes one value and the sources consulted for it, in priority order.
type Option struct {
	FlagName           string
	FlagValue          string
	EnvironmentNames   []string
	ConfigurationValue string
	Required           bool
}

// Resolver applies the flag, environment, environment file and configuration precedence.
type Resolver struct {
	environmentLookup EnvironmentLookup
	fileEnvironment   map[string]string
}

var homeDirectoryExpander = pathutils.NewHomeExpander()

// NewResolver constructs a resolver. A nil lookup falls back to os.LookupEnv.
func NewResolver(environmentLookup EnvironmentLookup, fileEnvironment map[string]string) *Resolver {
	resolvedEnvironmentLookup := environmentLookup
	if resolvedEnvironmentLookup == nil {
		resolvedEnvironmentLookup = os.LookupEnv
	}

	duplicatedFileEnvironment := make(map[string]string, len(fileEnvironment))
	for environmentKey, environmentValue := range fileEnvironment {
		duplicatedFileEnvironment[environmentKey] = environmentValue
	}

	return &Resolver{
		environmentLookup: resolvedEnvironmentLookup,
		fileEnvironment:   duplicatedFileEnvironment,
	}
}

// ReadEnvironmentFile loads a dotenv file. An empty path yields no entries.
func ReadEnvironmentFile(filePath string, reader EnvironmentFileReader) (map[string]string, error) {
	trimmedFilePath := strings.TrimSpace(filePath)
	if len(trimmedFilePath) == 0 {
		return nil, nil
	}

	resolvedReader := reader
	if resolvedReader == nil {
		resolvedReader = godotenv.Read
	}

	expandedFilePath := homeDirectoryExpander.Expand(trimmedFilePath)
	fileEnvironment, readError := resolvedReader(expandedFilePath)
	if readError != nil {
		return nil, fmt.Errorf(environmentFileReadErrorTemplateConstant, expandedFilePath, readError)
	}
	return fileEnvironment, nil
}

// ResolveString returns the first non-empty value for the option.
func (resolver *Resolver) ResolveString(option Option) (string, error) {
	resolvedValue, _ := resolver.lookup(option)
	if len(resolvedValue) == 0 && option.Required {
		return "", MissingArgumentError{FlagName: option.FlagName, EnvironmentNames: option.EnvironmentNames}
	}
	return resolvedValue, nil
}

// ResolveToggle parses the first non-empty value for the option as a boolean.
func (resolver *Resolver) ResolveToggle(option Option) (bool, error) {
	resolvedValue, source := resolver.lookup(option)
	if len(resolvedValue) == 0 {
		if option.Required {
			return false, MissingArgumentError{FlagName: option.FlagName, EnvironmentNames: option.EnvironmentNames}
		}
		return false, nil
	}

	parsedValue, parseError := flags.ParseToggle(resolvedValue)
	if parseError != nil {
		return false, InvalidValueError{FlagName: option.FlagName, Source: source, Cause: parseError}
	}
	return parsedValue, nil
}

func (resolver *Resolver) lookup(option Option) (string, string) {
	if trimmedFlagValue := strings.TrimSpace(option.FlagValue); len(trimmedFlagValue) > 0 {
		return trimmedFlagValue, flagSourceLabelConstant
	}

	for _, environmentName := range option.EnvironmentNames {
		if environmentValue, exists := resolver.environmentLookup(environmentName); exists {
			if trimmedEnvironmentValue := strings.TrimSpace(environmentValue); len(trimmedEnvironmentValue) > 0 {
				return trimmedEnvironmentValue, fmt.Sprintf(environmentSourceTemplateConstant, environmentName)
			}
		}
	}

	for _, environmentName := range option.EnvironmentNames {
		if fileValue, exists := resolver.fileEnvironment[environmentName]; exists {
			if trimmedFileValue := strings.TrimSpace(fileValue); len(trimmedFileValue) > 0 {
				return trimmedFileValue, fmt.Sprintf(environmentFileSourceTemplateConstant, environmentName)
			}
		}
	}

	if trimmedConfigurationValue := strings.TrimSpace(option.ConfigurationValue); len(trimmedConfigurationValue) > 0 {
		return trimmedConfigurationValue, configurationSourceLabelConstant
	}

	return "", ""
}
