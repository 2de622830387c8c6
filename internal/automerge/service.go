package automerge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/prsync/internal/pullrequests"
)

const (
	loggerMissingMessageConstant = "automerge logger not configured"
	clientMissingMessageConstant = "automerge pull request client not configured"
	titleTemplateConstant        = "[auto-merge] %s to %s [skip ci] [bot]"

	bodyTemplateConstant = "auto-merge triggered by github actions on `%s` to create a PR keeping `%s` up-to-date. " +
		"If this PR is unable to be merged due to conflicts, it will remain open until manually fix."

	noCommitsMessageConstant           = "base already contains head; nothing to merge"
	mergeDisabledMessageConstant       = "merge disabled; leaving pull request open"
	pullRequestResolvedMessageConstant = "auto-merge pull request resolved"
	logFieldOutcomeConstant            = "outcome"
	logFieldPullRequestConstant        = "pull_request"
	logFieldHeadSHAConstant            = "head_sha"
)

// ErrLoggerNotConfigured indicates the service was constructed without a logger.
var ErrLoggerNotConfigured = errors.New(loggerMissingMessageConstant)

// ErrClientNotConfigured indicates the pull request client dependency was missing.
var ErrClientNotConfigured = errors.New(clientMissingMessageConstant)

// Dependencies enumerates the collaborators of the automerge workflow.
type Dependencies struct {
	Logger *zap.Logger
	Client pullrequests.Workflow
}

// Options configures one automerge run.
type Options struct {
	HeadRef string
	BaseRef string
	Merge   bool
}

// Service orchestrates the automerge workflow.
type Service struct {
	logger *zap.Logger
	client pullrequests.Workflow
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Client == nil {
		return nil, ErrClientNotConfigured
	}
	return &Service{logger: dependencies.Logger, client: dependencies.Client}, nil
}

// Execute finds or creates the auto-merge pull request and merges it unless merging is disabled.
func (service *Service) Execute(executionContext context.Context, options Options) (pullrequests.Result, error) {
	proposal := pullrequests.Proposal{
		Title: fmt.Sprintf(titleTemplateConstant, options.HeadRef, options.BaseRef),
		Body:  fmt.Sprintf(bodyTemplateConstant, options.HeadRef, options.BaseRef),
	}

	resolution, resolutionError := pullrequests.FindOrCreate(executionContext, service.client, proposal)
	if resolutionError != nil {
		return pullrequests.Result{}, resolutionError
	}
	if resolution.Terminated() {
		service.logger.Info(noCommitsMessageConstant)
		return pullrequests.NewResult(resolution), nil
	}

	reference := resolution.Reference
	service.logger.Info(
		pullRequestResolvedMessageConstant,
		zap.String(logFieldOutcomeConstant, string(resolution.Outcome)),
		zap.Int(logFieldPullRequestConstant, reference.Number),
		zap.String(logFieldHeadSHAConstant, reference.HeadSHA),
	)

	result := pullrequests.NewResult(resolution)
	if !options.Merge {
		service.logger.Info(mergeDisabledMessageConstant, zap.Int(logFieldPullRequestConstant, reference.Number))
		return result, nil
	}

	if mergeError := service.client.Merge(executionContext, reference); mergeError != nil {
		return result, mergeError
	}

	result.Outcome = pullrequests.OutcomeMerged
	result.Merged = true
	return result, nil
}
