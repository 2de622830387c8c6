// Package execshell provides structured helpers for invoking git.
//
// ShellExecutor wraps a CommandRunner with zap logging and converts non-zero
// exit codes into typed errors. OSCommandRunner is the os/exec backed runner;
// tests substitute recording runners.
package execshell
