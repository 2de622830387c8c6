// Package submodulesync implements the submodule-sync workflow.
//
// The workflow reuses or opens a pull request from the bot sync branch into the
// base branch, records the tested commit SHAs in a comment, and auto-merges the
// pull request when the tests passed against its current head commit. Missing
// commit SHAs are resolved from the local checkout with git rev-parse.
package submodulesync
