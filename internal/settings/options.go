package settings

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Flag names shared by every pull request workflow command.
const (
	FlagOwner           = "owner"
	FlagHeadOwner       = "head-owner"
	FlagRepository      = "repo"
	FlagHead            = "head"
	FlagBase            = "base"
	FlagToken           = "token"
	FlagHeadToken       = "head-token"
	FlagBaseToken       = "base-token"
	FlagEnvironmentFile = "env-file"
)

// Environment variable names consulted when the matching flag is absent.
const (
	EnvironmentOwner     = "OWNER"
	EnvironmentHeadOwner = "HEAD_OWNER"
	EnvironmentRepo      = "REPO"
	EnvironmentHead      = "HEAD"
	EnvironmentBase      = "BASE"
	EnvironmentHeadToken = "HEAD_TOKEN"
	EnvironmentBaseToken = "BASE_TOKEN"
)

const (
	ownerFlagUsageConstant           = "Repository owner (env OWNER)"
	headOwnerFlagUsageConstant       = "Owner of the head branch, defaults to --owner (env HEAD_OWNER)"
	repositoryFlagUsageConstant      = "Repository name (env REPO)"
	headFlagUsageConstant            = "Head ref (env HEAD)"
	baseFlagUsageConstant            = "Base ref (env BASE)"
	tokenFlagUsageConstant           = "GitHub token used for both head and base operations"
	headTokenFlagUsageConstant       = "GitHub token for creating and merging, defaults to --token (env HEAD_TOKEN)"
	baseTokenFlagUsageConstant       = "GitHub token for listing and commenting, defaults to --token (env BASE_TOKEN)"
	environmentFileFlagUsageConstant = "Optional dotenv file consulted after the process environment"
)

// GitHubConfiguration describes how the GitHub REST API is reached.
type GitHubConfiguration struct {
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AppID          int64         `mapstructure:"app_id"`
	InstallationID int64         `mapstructure:"installation_id"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
}

// AppConfigured reports whether GitHub App installation credentials are complete.
func (configuration GitHubConfiguration) AppConfigured() bool {
	return configuration.AppID > 0 && configuration.InstallationID > 0 && len(strings.TrimSpace(configuration.PrivateKeyPath)) > 0
}

// RepositoryConfiguration supplies configuration-file fallbacks for the repository options.
type RepositoryConfiguration struct {
	Owner     string `mapstructure:"owner"`
	HeadOwner string `mapstructure:"head_owner"`
	Name      string `mapstructure:"name"`
	Head      string `mapstructure:"head"`
	Base      string `mapstructure:"base"`
}

// Configuration aggregates the configuration-file sections shared by the workflows.
type Configuration struct {
	GitHub     GitHubConfiguration     `mapstructure:"github"`
	Repository RepositoryConfiguration `mapstructure:"repository"`
}

// Options is the resolved, immutable record shared by the workflows.
type Options struct {
	Owner      string
	HeadOwner  string
	Repository string
	HeadRef    string
	BaseRef    string
	HeadToken  string
	BaseToken  string
	GitHub     GitHubConfiguration
}

type boundOption struct {
	option Option
	target *string
}

// RegisterFlags adds the shared workflow flags to the flag set.
func RegisterFlags(flagSet *pflag.FlagSet) {
	flagSet.String(FlagOwner, "", ownerFlagUsageConstant)
	flagSet.String(FlagHeadOwner, "", headOwnerFlagUsageConstant)
	flagSet.String(FlagRepository, "", repositoryFlagUsageConstant)
	flagSet.String(FlagHead, "", headFlagUsageConstant)
	flagSet.String(FlagBase, "", baseFlagUsageConstant)
	flagSet.String(FlagToken, "", tokenFlagUsageConstant)
	flagSet.String(FlagHeadToken, "", headTokenFlagUsageConstant)
	flagSet.String(FlagBaseToken, "", baseTokenFlagUsageConstant)
	flagSet.String(FlagEnvironmentFile, "", environmentFileFlagUsageConstant)
}

// NewResolverForFlags builds a resolver that also consults the --env-file entries.
func NewResolverForFlags(flagSet *pflag.FlagSet, environmentLookup EnvironmentLookup, reader EnvironmentFileReader) (*Resolver, error) {
	environmentFilePath, flagError := flagSet.GetString(FlagEnvironmentFile)
	if flagError != nil {
		return nil, flagError
	}

	fileEnvironment, readError := ReadEnvironmentFile(environmentFilePath, reader)
	if readError != nil {
		return nil, readError
	}

	return NewResolver(environmentLookup, fileEnvironment), nil
}

// ResolveOptions resolves the shared options. tokenEnvironmentNames lists the fallbacks for --token.
// Tokens become optional when GitHub App credentials are configured.
func (resolver *Resolver) ResolveOptions(flagSet *pflag.FlagSet, tokenEnvironmentNames []string, configuration Configuration) (Options, error) {
	flagNames := []string{FlagOwner, FlagHeadOwner, FlagRepository, FlagHead, FlagBase, FlagToken, FlagHeadToken, FlagBaseToken}
	flagValues := make(map[string]string, len(flagNames))
	for _, flagName := range flagNames {
		flagValue, flagError := flagSet.GetString(flagName)
		if flagError != nil {
			return Options{}, flagError
		}
		flagValues[flagName] = flagValue
	}

	resolvedOptions := Options{GitHub: configuration.GitHub}
	resolvedOptions.GitHub.PrivateKeyPath = homeDirectoryExpander.Expand(strings.TrimSpace(configuration.GitHub.PrivateKeyPath))
	repositoryOptions := []boundOption{
		{option: Option{FlagName: FlagOwner, FlagValue: flagValues[FlagOwner], EnvironmentNames: []string{EnvironmentOwner}, ConfigurationValue: configuration.Repository.Owner, Required: true}, target: &resolvedOptions.Owner},
		{option: Option{FlagName: FlagRepository, FlagValue: flagValues[FlagRepository], EnvironmentNames: []string{EnvironmentRepo}, ConfigurationValue: configuration.Repository.Name, Required: true}, target: &resolvedOptions.Repository},
		{option: Option{FlagName: FlagHead, FlagValue: flagValues[FlagHead], EnvironmentNames: []string{EnvironmentHead}, ConfigurationValue: configuration.Repository.Head, Required: true}, target: &resolvedOptions.HeadRef},
		{option: Option{FlagName: FlagBase, FlagValue: flagValues[FlagBase], EnvironmentNames: []string{EnvironmentBase}, ConfigurationValue: configuration.Repository.Base, Required: true}, target: &resolvedOptions.BaseRef},
		{option: Option{FlagName: FlagHeadOwner, FlagValue: flagValues[FlagHeadOwner], EnvironmentNames: []string{EnvironmentHeadOwner}, ConfigurationValue: configuration.Repository.HeadOwner}, target: &resolvedOptions.HeadOwner},
	}

	for _, repositoryOption := range repositoryOptions {
		resolvedValue, resolveError := resolver.ResolveString(repositoryOption.option)
		if resolveError != nil {
			return Options{}, resolveError
		}
		*repositoryOption.target = resolvedValue
	}

	if len(resolvedOptions.HeadOwner) == 0 {
		resolvedOptions.HeadOwner = resolvedOptions.Owner
	}

	sharedToken, _ := resolver.ResolveString(Option{FlagName: FlagToken, FlagValue: flagValues[FlagToken], EnvironmentNames: tokenEnvironmentNames})
	headToken, _ := resolver.ResolveString(Option{FlagName: FlagHeadToken, FlagValue: flagValues[FlagHeadToken], EnvironmentNames: []string{EnvironmentHeadToken}, ConfigurationValue: sharedToken})
	baseToken, _ := resolver.ResolveString(Option{FlagName: FlagBaseToken, FlagValue: flagValues[FlagBaseToken], EnvironmentNames: []string{EnvironmentBaseToken}, ConfigurationValue: sharedToken})

	if (len(headToken) == 0 || len(baseToken) == 0) && !configuration.GitHub.AppConfigured() {
		return Options{}, MissingArgumentError{FlagName: FlagToken, EnvironmentNames: tokenEnvironmentNames}
	}

	resolvedOptions.HeadToken = headToken
	resolvedOptions.BaseToken = baseToken
	return resolvedOptions, nil
}
