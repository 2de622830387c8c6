// Package utils exposes the configuration and logging helpers shared by prsync commands.
//
// ConfigurationLoader layers the embedded defaults, an optional YAML file and
// PRSYNC_ prefixed environment variables through Viper. LoggerFactory builds
// zap loggers for the structured and console formats.
package utils
