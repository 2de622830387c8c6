// Package automerge keeps a base branch up-to-date with a head branch by opening
// an "[auto-merge]" pull request when none is open and merging it with a merge commit.
package automerge
