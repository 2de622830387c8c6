package pullrequests

import (
	"context"
)

// Workflow is the set of pull request operations the drivers orchestrate.
type Workflow interface {
	FindOpen(executionContext context.Context) ([]Reference, error)
	Create(executionContext context.Context, proposal Proposal) (CreateOutcome, error)
	Comment(executionContext context.Context, number int, body string)
	Merge(executionContext context.Context, reference Reference) error
}

// Resolution describes how a pull request handle was obtained.
type Resolution struct {
	Reference Reference
	Outcome   Outcome
}

// Terminated reports whether the head and base refs had no commits to propose.
func (resolution Resolution) Terminated() bool {
	return resolution.Outcome == OutcomeNoCommits
}

// FindOrCreate reuses the first open pull request or opens a new one from the proposal.
func FindOrCreate(executionContext context.Context, workflow Workflow, proposal Proposal) (Resolution, error) {
	openReferences, findError := workflow.FindOpen(executionContext)
	if findError != nil {
		return Resolution{}, findError
	}
	if len(openReferences) > 0 {
		return Resolution{Reference: openReferences[0], Outcome: OutcomeFound}, nil
	}

	createOutcome, createError := workflow.Create(executionContext, proposal)
	if createError != nil {
		return Resolution{}, createError
	}
	if createOutcome.Terminated {
		return Resolution{Outcome: OutcomeNoCommits}, nil
	}
	return Resolution{Reference: createOutcome.Reference, Outcome: OutcomeCreated}, nil
}
