package automerge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/prsync/internal/pullrequests"
	"github.com/temirov/prsync/internal/settings"
	"github.com/temirov/prsync/internal/utils/flags"
)

const (
	commandUseConstant                    = "automerge"
	commandShortDescriptionConstant       = "Open and merge the pull request that keeps --base up-to-date with --head"
	commandLongDescriptionConstant        = "automerge reuses or opens an [auto-merge] pull request from --head into --base and merges it with a merge commit. A failed merge leaves a comment describing the manual fix."
	mergeFlagNameConstant                 = "merge"
	mergeFlagDescriptionConstant          = "Merge the pull request after opening it"
	automergeTokenEnvironmentNameConstant = "AUTOMERGE_TOKEN"
	tokenEnvironmentNameConstant          = "TOKEN"
	commandExecutionErrorTemplateConstant = "automerge failed: %w"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ClientProvider creates the pull request client for the resolved options.
type ClientProvider func(executionContext context.Context, logger *zap.Logger, options settings.Options) (pullrequests.Workflow, error)

// CommandBuilder assembles the automerge command.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       func() CommandConfiguration
	SharedConfigurationProvider func() settings.Configuration
	EnvironmentLookup           settings.EnvironmentLookup
	ClientProvider              ClientProvider
}

// Build constructs the automerge command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	settings.RegisterFlags(command.Flags())
	flags.AddToggleFlag(command.Flags(), nil, mergeFlagNameConstant, true, mergeFlagDescriptionConstant)

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

	service, serviceError := NewService(Dependencies{Logger: logger, Client: client})
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

	tokenEnvironmentNames := []string{automergeTokenEnvironmentNameConstant, tokenEnvironmentNameConstant}
	sharedOptions, sharedError := resolver.ResolveOptions(command.Flags(), tokenEnvironmentNames, builder.resolveSharedConfiguration())
	if sharedError != nil {
		return settings.Options{}, Options{}, sharedError
	}

	mergeFlagValue := ""
	if command.Flags().Changed(mergeFlagNameConstant) {
		mergeValue, mergeFlagError := command.Flags().GetBool(mergeFlagNameConstant)
		if mergeFlagError != nil {
			return settings.Options{}, Options{}, mergeFlagError
		}
		mergeFlagValue = strconv.FormatBool(mergeValue)
	}
	merge, mergeError := resolver.ResolveToggle(settings.Option{
		FlagName:           mergeFlagNameConstant,
		FlagValue:          mergeFlagValue,
		ConfigurationValue: strconv.FormatBool(configuration.Merge),
	})
	if mergeError != nil {
		return settings.Options{}, Options{}, mergeError
	}

	return sharedOptions, Options{
		HeadRef: sharedOptions.HeadRef,
		BaseRef: sharedOptions.BaseRef,
		Merge:   merge,
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

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
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
