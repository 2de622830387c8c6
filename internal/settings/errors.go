package settings

import (
	"fmt"
	"strings"
)

const (
	missingArgumentTemplateConstant            = "missing required argument: --%s"
	missingArgumentEnvironmentTemplateConstant = "missing required argument: --%s (env %s)"
	environmentNamesJoinSeparatorConstant      = ", "
	environmentNamesFinalSeparatorConstant     = " or "
	invalidOptionValueTemplateConstant         = "invalid value for --%s from %s: %v"
)

// MissingArgumentError reports a required option that neither the command line nor the environment supplied.
type MissingArgumentError struct {
	FlagName         string
	EnvironmentNames []string
}

// Error describes the missing option and its environment fallbacks.
func (missing MissingArgumentError) Error() string {
	if len(missing.EnvironmentNames) == 0 {
		return fmt.Sprintf(missingArgumentTemplateConstant, missing.FlagName)
	}
	return fmt.Sprintf(missingArgumentEnvironmentTemplateConstant, missing.FlagName, joinEnvironmentNames(missing.EnvironmentNames))
}

// InvalidValueError reports an option value that could not be parsed.
type InvalidValueError struct {
	FlagName string
	Source   string
	Cause    error
}

// Error describes the rejected value.
func (invalid InvalidValueError) Error() string {
	return fmt.Sprintf(invalidOptionValueTemplateConstant, invalid.FlagName, invalid.Source, invalid.Cause)
}

// Unwrap exposes the parse failure.
func (invalid InvalidValueError) Unwrap() error {
	return invalid.Cause
}

func joinEnvironmentNames(environmentNames []string) string {
	if len(environmentNames) == 1 {
		return environmentNames[0]
	}
	leadingNames := strings.Join(environmentNames[:len(environmentNames)-1], environmentNamesJoinSeparatorConstant)
	return leadingNames + environmentNamesFinalSeparatorConstant + environmentNames[len(environmentNames)-1]
}
