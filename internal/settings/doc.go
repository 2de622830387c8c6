// Package settings resolves the options shared by the pull request workflows.
//
// Every option is read from its command-line flag first, then from one or more
// environment variables, then from an optional dotenv file, and finally from the
// configuration file. Required options that no source supplies produce a
// MissingArgumentError naming both the flag and the environment fallbacks.
package settings
