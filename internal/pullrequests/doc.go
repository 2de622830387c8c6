// Package pullrequests wraps the GitHub pulls and issues endpoints used by the
// submodule-sync and automerge workflows.
//
// Client exposes four operations: FindOpen, Create, Comment and Merge. Listing and
// commenting authenticate with the base credentials; creating and merging use the
// head credentials. Create reports GitHub's 422 response as a terminated outcome
// rather than an error, Comment only logs failures, and Merge leaves a success or
// remediation comment on the pull request before returning.
package pullrequests
