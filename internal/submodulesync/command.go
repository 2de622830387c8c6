package submodulesync

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/prsync/internal/execshell"
	"github.com/temirov/prsync/internal/pullrequests"
	"github.com/temirov/prsync/internal/settings"
	"github.com/temirov/prsync/internal/utils/flags"
)

const (
	commandUseConstant                    = "submodule-sync"
	commandShortDescriptionConstant       = "Open, comment on and auto-merge the submodule sync pull request"
	commandLongDescriptionConstant        = "submodule-sync reuses or opens a pull request from --head into --base, records the tested commit SHAs in a comment, and auto-merges it when the tests passed against the pull request head."
	currentSHAFlagNameConstant            = "sha"
	currentSHAFlagDescriptionConstant     = "Tested HEAD commit SHA (env SHA); resolved with git rev-parse when omitted"
	submoduleSHAFlagNameConstant          = "cudf_sha"
	submoduleSHAFlagDescriptionConstant   = "Submodule commit SHA (env CUDF_SHA); resolved with git rev-parse when omitted"
	passedFlagNameConstant                = "passed"
	passedFlagDescriptionConstant         = "Whether the tests passed (env PASSED)"
	submodulePathFlagNameConstant         = "submodule-path"
	submodulePathFlagDescriptionConstant  = "Path of the synchronized submodule"
	tokenEnvironmentNameConstant          = "TOKEN"
	currentSHAEnvironmentNameConstant     = "SHA"
	submoduleSHAEnvironmentNameConstant   = "CUDF_SHA"
	passedEnvironmentNameConstant         = "PASSED"
	commandExecutionErrorTemplateConstant = "submodule-sync failed: %w"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ClientProvider creates the pull request client for the resolved options.
type ClientProvider func(executionContext context.Context, logger *zap.Logger, options settings.Options) (pullrequests.Workflow, error)

// CommandBuilder assembles the submodule-sync command.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       func() CommandConfiguration
	SharedConfigurationProvider func() settings.Configuration
	EnvironmentLookup           settings.EnvironmentLookup
	ClientProvider              ClientProvider
	GitExecutor                 GitExecutor
	WorkingDirectory            string
}

// Build constructs the submodule-sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	settings.RegisterFlags(command.Flags())
	command.Flags().String(currentSHAFlagNameConstant, "", currentSHAFlagDescriptionConstant)
	command.Flags().String(submoduleSHAFlagNameConstant, "", submoduleSHAFlagDescriptionConstant)
	command.Flags().String(submodulePathFlagNameConstant, "", submodulePathFlagDescriptionConstant)
	flags.AddToggleFlag(command.Flags(), nil, passedFlagNameConstant, false, passedFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	sharedOptions, options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()
	client, clientError := builder.resolveClient(command.Context(), logger, sharedOptions)
	if clientError != nil {
		return clientError
	}

	gitExecutor, executorError := builder.resolveGitExecutor(logger)
	if executorError != nil {
		return executorError
	}

	service, serviceError := NewService(Dependencies{Logger: logger, Client: client, GitExecutor: gitExecutor})
	if serviceError != nil {
		return serviceError
	}

	result, executionError := service.Execute(command.Context(), options)
	if executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, executionError)
	}

	return pullrequests.WriteReport(command.OutOrStdout(), result)
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (settings.Options, Options, error) {
	configuration := builder.resolveConfiguration()

	resolver, resolverError := settings.NewResolverForFlags(command.Flags(), builder.EnvironmentLookup, nil)
	if resolverError != nil {
		return settings.Options{}, Options{}, resolverError
	}

	sharedOptions, sharedError := resolver.ResolveOptions(command.Flags(), []string{tokenEnvironmentNameConstant}, builder.resolveSharedConfiguration())
	if sharedError != nil {
		return settings.Options{}, Options{}, sharedError
	}

	currentSHAFlagValue, currentSHAFlagError := command.Flags().GetString(currentSHAFlagNameConstant)
	if currentSHAFlagError != nil {
		return settings.Options{}, Options{}, currentSHAFlagError
	}
	currentSHA, currentSHAError := resolver.ResolveString(settings.Option{
		FlagName:         currentSHAFlagNameConstant,
		FlagValue:        currentSHAFlagValue,
		EnvironmentNames: []string{currentSHAEnvironmentNameConstant},
	})
	if currentSHAError != nil {
		return settings.Options{}, Options{}, currentSHAError
	}

	submoduleSHAFlagValue, submoduleSHAFlagError := command.Flags().GetString(submoduleSHAFlagNameConstant)
	if submoduleSHAFlagError != nil {
		return settings.Options{}, Options{}, submoduleSHAFlagError
	}
	submoduleSHA, submoduleSHAError := resolver.ResolveString(settings.Option{
		FlagName:         submoduleSHAFlagNameConstant,
		FlagValue:        submoduleSHAFlagValue,
		EnvironmentNames: []string{submoduleSHAEnvironmentNameConstant},
	})
	if submoduleSHAError != nil {
		return settings.Options{}, Options{}, submoduleSHAError
	}

	passedFlagValue := ""
	if command.Flags().Changed(passedFlagNameConstant) {
		passedValue, passedFlagError := command.Flags().GetBool(passedFlagNameConstant)
		if passedFlagError != nil {
			return settings.Options{}, Options{}, passedFlagError
		}
		passedFlagValue = strconv.FormatBool(passedValue)
	}
	passed, passedError := resolver.ResolveToggle(settings.Option{
		FlagName:         passedFlagNameConstant,
		FlagValue:        passedFlagValue,
		EnvironmentNames: []string{passedEnvironmentNameConstant},
		Required:         true,
	})
	if passedError != nil {
		return settings.Options{}, Options{}, passedError
	}

	submodulePathFlagValue, submodulePathFlagError := command.Flags().GetString(submodulePathFlagNameConstant)
	if submodulePathFlagError != nil {
		return settings.Options{}, Options{}, submodulePathFlagError
	}
	submodulePath := configuration.SubmodulePath
	if trimmedSubmodulePath := strings.TrimSpace(submodulePathFlagValue); len(trimmedSubmodulePath) > 0 {
		submodulePath = CommandConfiguration{SubmodulePath: trimmedSubmodulePath}.Sanitize().SubmodulePath
	}

	return sharedOptions, Options{
		HeadRef:          sharedOptions.HeadRef,
		BaseRef:          sharedOptions.BaseRef,
		CurrentSHA:       currentSHA,
		SubmoduleSHA:     submoduleSHA,
		SubmodulePath:    submodulePath,
		Passed:           passed,
		WorkingDirectory: builder.WorkingDirectory,
	}, nil
}

func (builder *CommandBuilder) resolveClient(executionContext context.Context, logger *zap.Logger, options settings.Options) (pullrequests.Workflow, error) {
	if builder.ClientProvider != nil {
		return builder.ClientProvider(executionContext, logger, options)
	}
	client, clientError := pullrequests.ClientFactory{}.NewClient(executionContext, logger, options)
	if clientError != nil {
		return nil, clientError
	}
	return client, nil
}

func (builder *CommandBuilder) resolveGitExecutor(logger *zap.Logger) (GitExecutor, error) {
	if builder.GitExecutor != nil {
		return builder.GitExecutor, nil
	}
	return execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveSharedConfiguration() settings.Configuration {
	if builder.SharedConfigurationProvider == nil {
		return settings.Configuration{}
	}
	return builder.SharedConfigurationProvider()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
