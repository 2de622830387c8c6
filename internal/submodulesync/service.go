package submodulesync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/prsync/internal/execshell"
	"github.com/temirov/prsync/internal/pullrequests"
)

const (
	loggerMissingMessageConstant      = "submodule-sync logger not configured"
	clientMissingMessageConstant      = "submodule-sync pull request client not configured"
	gitExecutorMissingMessageConstant = "submodule-sync git executor not configured"
	titleTemplateConstant             = "[submodule-sync] %s to %s [skip ci] [bot]"

	bodyTemplateConstant = "submodule-sync to create a PR keeping %s up-to-date.  " +
		"HEAD commit SHA: %s, CUDF commit SHA: %s  " +
		"The scheduled sync pipeline gets triggered every 6 hours.  " +
		"This PR will be auto-merged if test passed.  " +
		"If failed, it will remain open until test pass or manually fix."

	statusCommentTemplateConstant      = "HEAD commit SHA: %s, CUDF commit SHA: %s  Test passed: %s"
	passedTrueLabelConstant            = "True"
	passedFalseLabelConstant           = "False"
	gitRevParseSubcommandConstant      = "rev-parse"
	gitHeadReferenceConstant           = "HEAD"
	gitTreeReferenceTemplateConstant   = "HEAD:%s"
	revisionResolutionTemplateConstant = "unable to resolve %s: %w"
	emptyRevisionTemplateConstant      = "git rev-parse %s returned no revision"
	noCommitsMessageConstant           = "submodule already up-to-date; nothing to sync"
	testsFailedMessageConstant         = "tests did not pass; leaving pull request open"
	headMovedMessageConstant           = "pull request head moved since the tested commit; leaving pull request open"
	pullRequestResolvedMessageConstant = "submodule-sync pull request resolved"
	logFieldOutcomeConstant            = "outcome"
	logFieldPullRequestConstant        = "pull_request"
	logFieldHeadSHAConstant            = "head_sha"
	logFieldTestedSHAConstant          = "tested_sha"
	logFieldSubmoduleSHAConstant       = "submodule_sha"
)

// ErrLoggerNotConfigured indicates the service was constructed without a logger.
var ErrLoggerNotConfigured = errors.New(loggerMissingMessageConstant)

// ErrClientNotConfigured indicates the pull request client dependency was missing.
var ErrClientNotConfigured = errors.New(clientMissingMessageConstant)

// ErrGitExecutorNotConfigured indicates the git executor dependency was missing.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Dependencies enumerates the collaborators of the submodule-sync workflow.
type Dependencies struct {
	Logger      *zap.Logger
	Client      pullrequests.Workflow
	GitExecutor GitExecutor
}

// Options configures one submodule-sync run.
type Options struct {
	HeadRef          string
	BaseRef          string
	CurrentSHA       string
	SubmoduleSHA     string
	SubmodulePath    string
	Passed           bool
	WorkingDirectory string
}

// Service orchestrates the submodule-sync workflow.
type Service struct {
	logger      *zap.Logger
	client      pullrequests.Workflow
	gitExecutor GitExecutor
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Client == nil {
		return nil, ErrClientNotConfigured
	}
	if dependencies.GitExecutor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &Service{
		logger:      dependencies.Logger,
		client:      dependencies.Client,
		gitExecutor: dependencies.GitExecutor,
	}, nil
}

// Execute finds or creates the sync pull request, comments the test status and merges when safe.
func (service *Service) Execute(executionContext context.Context, options Options) (pullrequests.Result, error) {
	currentSHA, currentError := service.resolveRevision(executionContext, options.CurrentSHA, gitHeadReferenceConstant, options.WorkingDirectory)
	if currentError != nil {
		return pullrequests.Result{}, currentError
	}
	submoduleSHA, submoduleError := service.resolveRevision(executionContext, options.SubmoduleSHA, fmt.Sprintf(gitTreeReferenceTemplateConstant, options.SubmodulePath), options.WorkingDirectory)
	if submoduleError != nil {
		return pullrequests.Result{}, submoduleError
	}

	proposal := pullrequests.Proposal{
		Title: fmt.Sprintf(titleTemplateConstant, options.HeadRef, options.BaseRef),
		Body:  fmt.Sprintf(bodyTemplateConstant, options.SubmodulePath, currentSHA, submoduleSHA),
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
		zap.String(logFieldTestedSHAConstant, currentSHA),
		zap.String(logFieldSubmoduleSHAConstant, submoduleSHA),
	)

	service.client.Comment(executionContext, reference.Number, BuildStatusComment(currentSHA, submoduleSHA, options.Passed))

	result := pullrequests.NewResult(resolution)
	result.Outcome = pullrequests.OutcomePending

	if !options.Passed {
		service.logger.Info(testsFailedMessageConstant, zap.Int(logFieldPullRequestConstant, reference.Number))
		return result, nil
	}
	if currentSHA != reference.HeadSHA {
		service.logger.Info(headMovedMessageConstant, zap.Int(logFieldPullRequestConstant, reference.Number), zap.String(logFieldHeadSHAConstant, reference.HeadSHA), zap.String(logFieldTestedSHAConstant, currentSHA))
		return result, nil
	}

	if mergeError := service.client.Merge(executionContext, reference); mergeError != nil {
		return result, mergeError
	}

	result.Outcome = pullrequests.OutcomeMerged
	result.Merged = true
	return result, nil
}

// BuildStatusComment renders the comment recording the tested SHAs and the test status.
func BuildStatusComment(currentSHA string, submoduleSHA string, passed bool) string {
	passedLabel := passedFalseLabelConstant
	if passed {
		passedLabel = passedTrueLabelConstant
	}
	return fmt.Sprintf(statusCommentTemplateConstant, currentSHA, submoduleSHA, passedLabel)
}

func (service *Service) resolveRevision(executionContext context.Context, providedSHA string, reference string, workingDirectory string) (string, error) {
	if trimmedSHA := strings.TrimSpace(providedSHA); len(trimmedSHA) > 0 {
		return trimmedSHA, nil
	}

	executionResult, executionError := service.gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, reference},
		WorkingDirectory: workingDirectory,
	})
	if executionError != nil {
		return "", fmt.Errorf(revisionResolutionTemplateConstant, reference, executionError)
	}

	resolvedSHA := strings.TrimSpace(executionResult.StandardOutput)
	if len(resolvedSHA) == 0 {
		return "", fmt.Errorf(emptyRevisionTemplateConstant, reference)
	}
	return resolvedSHA, nil
}
