package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/prsync/internal/automerge"
	"github.com/temirov/prsync/internal/pullrequests"
	"github.com/temirov/prsync/internal/settings"
	"github.com/temirov/prsync/internal/submodulesync"
	"github.com/temirov/prsync/internal/utils"
	"github.com/temirov/prsync/internal/utils/flags"
)

const (
	applicationNameConstant                 = "prsync"
	applicationShortDescriptionConstant     = "Pull request automation for CI pipelines"
	applicationLongDescriptionConstant      = "prsync opens, comments on and auto-merges GitHub pull requests for scheduled submodule sync and branch auto-merge pipelines."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	submoduleSyncConfigurationKeyConstant   = "submodule_sync"
	automergeConfigurationKeyConstant       = "automerge"
	environmentPrefixConstant               = "PRSYNC"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	commandBuildErrorTemplateConstant       = "unable to build %s command: %w"
	rootCommandDebugMessageConstant         = "prsync invoked without a command"
	logFieldArgumentsConstant               = "arguments"
	defaultConfigurationSearchPathConstant  = "."
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common        ApplicationCommonConfiguration     `mapstructure:"common"`
	GitHub        settings.GitHubConfiguration       `mapstructure:"github"`
	Repository    settings.RepositoryConfiguration   `mapstructure:"repository"`
	SubmoduleSync submodulesync.CommandConfiguration `mapstructure:"submodule_sync"`
	Automerge     automerge.CommandConfiguration     `mapstructure:"automerge"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	environmentLookup     settings.EnvironmentLookup
	clientProvider        func(executionContext context.Context, logger *zap.Logger, options settings.Options) (pullrequests.Workflow, error)
	buildError            error
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
		environmentLookup:   os.LookupEnv,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	submoduleSyncBuilder := submodulesync.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() submodulesync.CommandConfiguration {
			return application.configuration.SubmoduleSync
		},
		SharedConfigurationProvider: application.sharedConfiguration,
		EnvironmentLookup:           application.lookupEnvironment,
		ClientProvider:              application.provideClient,
	}
	if workingDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
		submoduleSyncBuilder.WorkingDirectory = workingDirectory
	}
	submoduleSyncCommand, submoduleSyncBuildError := submoduleSyncBuilder.Build()
	if submoduleSyncBuildError != nil {
		application.buildError = fmt.Errorf(commandBuildErrorTemplateConstant, submoduleSyncConfigurationKeyConstant, submoduleSyncBuildError)
	} else {
		cobraCommand.AddCommand(submoduleSyncCommand)
	}

	automergeBuilder := automerge.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() automerge.CommandConfiguration {
			return application.configuration.Automerge
		},
		SharedConfigurationProvider: application.sharedConfiguration,
		EnvironmentLookup:           application.lookupEnvironment,
		ClientProvider:              application.provideClient,
	}
	automergeCommand, automergeBuildError := automergeBuilder.Build()
	if automergeBuildError != nil {
		application.buildError = fmt.Errorf(commandBuildErrorTemplateConstant, automergeConfigurationKeyConstant, automergeBuildError)
	} else {
		cobraCommand.AddCommand(automergeCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy against the arguments and ensures logger flushing.
func (application *Application) Execute(arguments []string) error {
	if application.buildError != nil {
		return application.buildError
	}

	normalizedArguments := flags.NormalizeToggleArguments(arguments)
	if normalizedArguments == nil {
		normalizedArguments = []string{}
	}
	application.rootCommand.SetArgs(normalizedArguments)
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes it against the process arguments.
func Execute() error {
	return NewApplication().Execute(os.Args[1:])
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range submodulesync.DefaultConfigurationValues(submoduleSyncConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range automerge.DefaultConfigurationValues(automergeConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

func (application *Application) sharedConfiguration() settings.Configuration {
	return settings.Configuration{
		GitHub:     application.configuration.GitHub,
		Repository: application.configuration.Repository,
	}
}

func (application *Application) lookupEnvironment(name string) (string, bool) {
	if application.environmentLookup == nil {
		return os.LookupEnv(name)
	}
	return application.environmentLookup(name)
}

func (application *Application) provideClient(executionContext context.Context, logger *zap.Logger, options settings.Options) (pullrequests.Workflow, error) {
	if application.clientProvider != nil {
		return application.clientProvider(executionContext, logger, options)
	}
	client, clientError := pullrequests.ClientFactory{}.NewClient(executionContext, logger, options)
	if clientError != nil {
		return nil, clientError
	}
	return client, nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	application.logger.Debug(rootCommandDebugMessageConstant, zap.Strings(logFieldArgumentsConstant, arguments))
	return command.Help()
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
