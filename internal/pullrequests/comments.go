package pullrequests

import (
	"fmt"
)

const (
	successCommentConstant = "**SUCCESS** - auto-merge"

	mergeFailureCommentTemplateConstant = "**FAILURE** - Unable to auto-merge. Manual operation is required.\n" +
		"```\n%[1]s\n```\n\n" +
		"Please use the following steps to fix the merge conflicts manually:\n" +
		"```\n" +
		"# Assume upstream is %[2]s/%[3]s remote\n" +
		"git fetch upstream %[4]s %[5]s\n" +
		"git checkout -b fix-auto-merge-conflict-%[6]d upstream/%[5]s\n" +
		"git merge upstream/%[4]s\n" +
		"# Fix any merge conflicts caused by this merge\n" +
		"git commit -am \"Merge %[4]s into %[5]s\"\n" +
		"git push <personal fork> fix-auto-merge-conflict-%[6]d\n" +
		"# Open a PR targets %[2]s/%[3]s %[5]s\n" +
		"```\n" +
		"**IMPORTANT:** Before merging this PR, be sure to change the merging strategy to `Create a merge commit` (repo admin only).\n\n" +
		"Once this PR is merged, the auto-merge PR should automatically be closed since it contains the same commit hashes\n"
)

// SuccessComment returns the comment posted after a successful auto-merge.
func SuccessComment() string {
	return successCommentConstant
}

// BuildMergeFailureComment renders the remediation comment posted when an auto-merge is rejected.
func BuildMergeFailureComment(target Target, number int, responseBody string) string {
	return fmt.Sprintf(mergeFailureCommentTemplateConstant, responseBody, target.Owner, target.Repository, target.HeadRef, target.BaseRef, number)
}
