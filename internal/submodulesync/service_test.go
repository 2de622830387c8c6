package submodulesync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/prsync/internal/execshell"
	"github.com/temirov/prsync/internal/pullrequests"
	"github.com/temirov/prsync/internal/submodulesync"
)

const (
	testHeadRefConstant           = "bot-submodule-sync-branch-24.04"
	testBaseRefConstant           = "branch-24.04"
	testCurrentSHAConstant        = "d3adbeefd3adbeefd3adbeefd3adbeefd3adbeef"
	testSubmoduleSHAConstant      = "c0ffee00c0ffee00c0ffee00c0ffee00c0ffee00"
	testStaleSHAConstant          = "ba5eba11ba5eba11ba5eba11ba5eba11ba5eba11"
	testSubmodulePathConstant     = "thirdparty/cudf"
	testWorkingDirectoryConstant  = "/workspace/spark-rapids-jni"
	testPullRequestNumberConstant = 42
	testExpectedTitleConstant     = "[submodule-sync] bot-submodule-sync-branch-24.04 to branch-24.04 [skip ci] [bot]"
	testPassedCommentConstant     = "HEAD commit SHA: d3adbeefd3adbeefd3adbeefd3adbeefd3adbeef, CUDF commit SHA: c0ffee00c0ffee00c0ffee00c0ffee00c0ffee00  Test passed: True"
	testFailedCommentConstant     = "HEAD commit SHA: d3adbeefd3adbeefd3adbeefd3adbeefd3adbeef, CUDF commit SHA: c0ffee00c0ffee00c0ffee00c0ffee00c0ffee00  Test passed: False"
	testGitHeadArgumentConstant   = "HEAD"
	testGitTreeArgumentConstant   = "HEAD:thirdparty/cudf"
)

type recordedComment struct {
	number int
	body   string
}

type recordingWorkflow struct {
	openReferences []pullrequests.Reference
	findError      error
	createOutcome  pullrequests.CreateOutcome
	createError    error
	mergeError     error
	proposals      []pullrequests.Proposal
	comments       []recordedComment
	merges         []pullrequests.Reference
}

func (workflow *recordingWorkflow) FindOpen(executionContext context.Context) ([]pullrequests.Reference, error) {
	return workflow.openReferences, workflow.findError
}

func (workflow *recordingWorkflow) Create(executionContext context.Context, proposal pullrequests.Proposal) (pullrequests.CreateOutcome, error) {
	workflow.proposals = append(workflow.proposals, proposal)
	return workflow.createOutcome, workflow.createError
}

func (workflow *recordingWorkflow) Comment(executionContext context.Context, number int, body string) {
	workflow.comments = append(workflow.comments, recordedComment{number: number, body: body})
}

func (workflow *recordingWorkflow) Merge(executionContext context.Context, reference pullrequests.Reference) error {
	workflow.merges = append(workflow.merges, reference)
	return workflow.mergeError
}

type recordingGitExecutor struct {
	outputs  map[string]string
	failures map[string]error
	commands []execshell.CommandDetails
}

func (executor *recordingGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.commands = append(executor.commands, details)
	reference := details.Arguments[len(details.Arguments)-1]
	if failure, exists := executor.failures[reference]; exists {
		return execshell.ExecutionResult{}, failure
	}
	return execshell.ExecutionResult{StandardOutput: executor.outputs[reference] + "\n"}, nil
}

func TestServiceExecute(testInstance *testing.T) {
	mergeFailure := pullrequests.MergeError{Number: testPullRequestNumberConstant, StatusCode: 405, Body: "not mergeable"}

	testCases := []struct {
		name             string
		workflow         *recordingWorkflow
		passed           bool
		expectedResult   pullrequests.Result
		expectedComments []recordedComment
		expectedMerges   int
		expectedCreates  int
		expectedError    error
	}{
		{
			name:     "passed_and_head_matches_merges_once",
			workflow: &recordingWorkflow{openReferences: []pullrequests.Reference{{Number: testPullRequestNumberConstant, HeadSHA: testCurrentSHAConstant}}},
			passed:   true,
			expectedResult: pullrequests.Result{
				Outcome: pullrequests.OutcomeMerged,
				Number:  testPullRequestNumberConstant,
				HeadSHA: testCurrentSHAConstant,
				Merged:  true,
			},
			expectedComments: []recordedComment{{number: testPullRequestNumberConstant, body: testPassedCommentConstant}},
			expectedMerges:   1,
		},
		{
			name:     "failed_tests_leave_pull_request_open",
			workflow: &recordingWorkflow{openReferences: []pullrequests.Reference{{Number: testPullRequestNumberConstant, HeadSHA: testCurrentSHAConstant}}},
			passed:   false,
			expectedResult: pullrequests.Result{
				Outcome: pullrequests.OutcomePending,
				Number:  testPullRequestNumberConstant,
				HeadSHA: testCurrentSHAConstant,
			},
			expectedComments: []recordedComment{{number: testPullRequestNumberConstant, body: testFailedCommentConstant}},
		},
		{
			name:     "moved_head_skips_merge",
			workflow: &recordingWorkflow{openReferences: []pullrequests.Reference{{Number: testPullRequestNumberConstant, HeadSHA: testStaleSHAConstant}}},
			passed:   true,
			expectedResult: pullrequests.Result{
				Outcome: pullrequests.OutcomePending,
				Number:  testPullRequestNumberConstant,
				HeadSHA: testStaleSHAConstant,
			},
			expectedComments: []recordedComment{{number: testPullRequestNumberConstant, body: testPassedCommentConstant}},
		},
		{
			name: "created_pull_request_merges",
			workflow: &recordingWorkflow{createOutcome: pullrequests.CreateOutcome{
				Reference: pullrequests.Reference{Number: testPullRequestNumberConstant, HeadSHA: testCurrentSHAConstant},
			}},
			passed: true,
			expectedResult: pullrequests.Result{
				Outcome: pullrequests.OutcomeMerged,
				Number:  testPullRequestNumberConstant,
				HeadSHA: testCurrentSHAConstant,
				Merged:  true,
			},
			expectedComments: []recordedComment{{number: testPullRequestNumberConstant, body: testPassedCommentConstant}},
			expectedMerges:   1,
			expectedCreates:  1,
		},
		{
			name:            "no_commits_terminates_quietly",
			workflow:        &recordingWorkflow{createOutcome: pullrequests.CreateOutcome{Terminated: true}},
			passed:          true,
			expectedResult:  pullrequests.Result{Outcome: pullrequests.OutcomeNoCommits},
			expectedCreates: 1,
		},
		{
			name: "merge_failure_is_returned",
			workflow: &recordingWorkflow{
				openReferences: []pullrequests.Reference{{Number: testPullRequestNumberConstant, HeadSHA: testCurrentSHAConstant}},
				mergeError:     mergeFailure,
			},
			passed: true,
			expectedResult: pullrequests.Result{
				Outcome: pullrequests.OutcomePending,
				Number:  testPullRequestNumberConstant,
				HeadSHA: testCurrentSHAConstant,
			},
			expectedComments: []recordedComment{{number: testPullRequestNumberConstant, body: testPassedCommentConstant}},
			expectedMerges:   1,
			expectedError:    mergeFailure,
		},
		{
			name:          "find_failure_is_returned",
			workflow:      &recordingWorkflow{findError: pullrequests.StatusError{Operation: pullrequests.OperationFindOpen, StatusCode: 500, Body: "boom"}},
			passed:        true,
			expectedError: pullrequests.StatusError{Operation: pullrequests.OperationFindOpen, StatusCode: 500, Body: "boom"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			gitExecutor := &recordingGitExecutor{}
			service, serviceError := submodulesync.NewService(submodulesync.Dependencies{
				Logger:      zap.NewNop(),
				Client:      testCase.workflow,
				GitExecutor: gitExecutor,
			})
			require.NoError(subTest, serviceError)

			result, executionError := service.Execute(context.Background(), submodulesync.Options{
				HeadRef:       testHeadRefConstant,
				BaseRef:       testBaseRefConstant,
				CurrentSHA:    testCurrentSHAConstant,
				SubmoduleSHA:  testSubmoduleSHAConstant,
				SubmodulePath: testSubmodulePathConstant,
				Passed:        testCase.passed,
			})

			if testCase.expectedError != nil {
				require.Error(subTest, executionError)
				require.True(subTest, errors.Is(executionError, testCase.expectedError))
			} else {
				require.NoError(subTest, executionError)
			}
			require.Equal(subTest, testCase.expectedResult, result)
			require.Equal(subTest, testCase.expectedComments, testCase.workflow.comments)
			require.Len(subTest, testCase.workflow.merges, testCase.expectedMerges)
			require.Len(subTest, testCase.workflow.proposals, testCase.expectedCreates)
			require.Empty(subTest, gitExecutor.commands)
		})
	}
}

func TestServiceExecuteBuildsProposal(testInstance *testing.T) {
	workflow := &recordingWorkflow{createOutcome: pullrequests.CreateOutcome{Terminated: true}}
	service, serviceError := submodulesync.NewService(submodulesync.Dependencies{
		Logger:      zap.NewNop(),
		Client:      workflow,
		GitExecutor: &recordingGitExecutor{},
	})
	require.NoError(testInstance, serviceError)

	_, executionError := service.Execute(context.Background(), submodulesync.Options{
		HeadRef:       testHeadRefConstant,
		BaseRef:       testBaseRefConstant,
		CurrentSHA:    testCurrentSHAConstant,
		SubmoduleSHA:  testSubmoduleSHAConstant,
		SubmodulePath: testSubmodulePathConstant,
	})
	require.NoError(testInstance, executionError)
	require.Len(testInstance, workflow.proposals, 1)
	require.Equal(testInstance, testExpectedTitleConstant, workflow.proposals[0].Title)
	require.Contains(testInstance, workflow.proposals[0].Body, testSubmodulePathConstant)
	require.Contains(testInstance, workflow.proposals[0].Body, testCurrentSHAConstant)
	require.Contains(testInstance, workflow.proposals[0].Body, testSubmoduleSHAConstant)
}

func TestServiceExecuteResolvesRevisionsWithGit(testInstance *testing.T) {
	workflow := &recordingWorkflow{openReferences: []pullrequests.Reference{{Number: testPullRequestNumberConstant, HeadSHA: testCurrentSHAConstant}}}
	gitExecutor := &recordingGitExecutor{outputs: map[string]string{
		testGitHeadArgumentConstant: testCurrentSHAConstant,
		testGitTreeArgumentConstant: testSubmoduleSHAConstant,
	}}
	service, serviceError := submodulesync.NewService(submodulesync.Dependencies{
		Logger:      zap.NewNop(),
		Client:      workflow,
		GitExecutor: gitExecutor,
	})
	require.NoError(testInstance, serviceError)

	result, executionError := service.Execute(context.Background(), submodulesync.Options{
		HeadRef:          testHeadRefConstant,
		BaseRef:          testBaseRefConstant,
		SubmodulePath:    testSubmodulePathConstant,
		Passed:           true,
		WorkingDirectory: testWorkingDirectoryConstant,
	})
	require.NoError(testInstance, executionError)
	require.True(testInstance, result.Merged)
	require.Equal(testInstance, []recordedComment{{number: testPullRequestNumberConstant, body: testPassedCommentConstant}}, workflow.comments)

	require.Len(testInstance, gitExecutor.commands, 2)
	require.Equal(testInstance, []string{"rev-parse", testGitHeadArgumentConstant}, gitExecutor.commands[0].Arguments)
	require.Equal(testInstance, []string{"rev-parse", testGitTreeArgumentConstant}, gitExecutor.commands[1].Arguments)
	require.Equal(testInstance, testWorkingDirectoryConstant, gitExecutor.commands[0].WorkingDirectory)
}

func TestServiceExecuteReportsGitFailures(testInstance *testing.T) {
	gitFailure := errors.New("not a git repository")
	workflow := &recordingWorkflow{}
	service, serviceError := submodulesync.NewService(submodulesync.Dependencies{
		Logger:      zap.NewNop(),
		Client:      workflow,
		GitExecutor: &recordingGitExecutor{failures: map[string]error{testGitHeadArgumentConstant: gitFailure}},
	})
	require.NoError(testInstance, serviceError)

	_, executionError := service.Execute(context.Background(), submodulesync.Options{
		HeadRef:       testHeadRefConstant,
		BaseRef:       testBaseRefConstant,
		SubmodulePath: testSubmodulePathConstant,
	})
	require.ErrorIs(testInstance, executionError, gitFailure)
	require.Empty(testInstance, workflow.proposals)
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	testCases := []struct {
		name          string
		dependencies  submodulesync.Dependencies
		expectedError error
	}{
		{
			name:          "missing_logger",
			dependencies:  submodulesync.Dependencies{Client: &recordingWorkflow{}, GitExecutor: &recordingGitExecutor{}},
			expectedError: submodulesync.ErrLoggerNotConfigured,
		},
		{
			name:          "missing_client",
			dependencies:  submodulesync.Dependencies{Logger: zap.NewNop(), GitExecutor: &recordingGitExecutor{}},
			expectedError: submodulesync.ErrClientNotConfigured,
		},
		{
			name:          "missing_git_executor",
			dependencies:  submodulesync.Dependencies{Logger: zap.NewNop(), Client: &recordingWorkflow{}},
			expectedError: submodulesync.ErrGitExecutorNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			service, serviceError := submodulesync.NewService(testCase.dependencies)
			require.Nil(subTest, service)
			require.ErrorIs(subTest, serviceError, testCase.expectedError)
		})
	}
}

func TestBuildStatusComment(testInstance *testing.T) {
	require.Equal(testInstance, testPassedCommentConstant, submodulesync.BuildStatusComment(testCurrentSHAConstant, testSubmoduleSHAConstant, true))
	require.Equal(testInstance, testFailedCommentConstant, submodulesync.BuildStatusComment(testCurrentSHAConstant, testSubmoduleSHAConstant, false))
}

func TestCommandConfigurationSanitize(testInstance *testing.T) {
	testCases := []struct {
		name         string
		input        submodulesync.CommandConfiguration
		expectedPath string
	}{
		{name: "empty_uses_default", input: submodulesync.CommandConfiguration{}, expectedPath: testSubmodulePathConstant},
		{name: "slashes_trimmed", input: submodulesync.CommandConfiguration{SubmodulePath: " /thirdparty/rmm/ "}, expectedPath: "thirdparty/rmm"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			require.Equal(subTest, testCase.expectedPath, testCase.input.Sanitize().SubmodulePath)
		})
	}
}
