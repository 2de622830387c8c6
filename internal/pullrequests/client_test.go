package pullrequests_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/prsync/internal/pullrequests"
	"github.com/temirov/prsync/internal/settings"
)

const (
	testOwnerConstant             = "NVIDIA"
	testRepositoryConstant        = "spark-rapids-jni"
	testHeadRefConstant           = "bot-submodule-sync-branch-24.04"
	testBaseRefConstant           = "branch-24.04"
	testHeadTokenConstant         = "head-secret"
	testBaseTokenConstant         = "base-secret"
	testHeadSHAConstant           = "abc123"
	testPullsPathConstant         = "/repos/NVIDIA/spark-rapids-jni/pulls"
	testMergePathConstant         = "/repos/NVIDIA/spark-rapids-jni/pulls/42/merge"
	testCommentsPathConstant      = "/repos/NVIDIA/spark-rapids-jni/issues/42/comments"
	testServerErrorBodyConstant   = `{"message":"Server Error"}`
	testConflictBodyConstant      = `{"message":"Head branch was modified. Review and try the merge again."}`
	testCreatedBodyConstant       = `{"number": 42, "head": {"sha": "abc123"}}`
	testCommentCreatedConstant    = `{"id": 1}`
	testHeadAuthorizationConstant = "token " + testHeadTokenConstant
	testBaseAuthorizationConstant = "token " + testBaseTokenConstant
	testAcceptHeaderConstant      = "application/vnd.github.v3+json"
	testNoCommitsBodyConstant     = `{"message":"Validation Failed","errors":[{"resource":"PullRequest","code":"custom","message":"No commits between branch-24.04 and bot-submodule-sync-branch-24.04"}]}`
	testListOpenBodyConstant      = `[{"number": 7, "head": {"sha": "def456"}}, {"number": 8, "head": {"sha": "fed654"}}]`
	testMergedBodyConstant        = `{"sha": "merged", "merged": true, "message": "Pull Request successfully merged"}`
	testForbiddenBodyConstant     = `{"message":"Resource not accessible by integration"}`
	testMissingSHABodyConstant    = `{"number": 42, "head": {}}`
	testMethodGetConstant         = http.MethodGet
	testMethodPostConstant        = http.MethodPost
	testMethodPutConstant         = http.MethodPut
)

type cannedResponse struct {
	statusCode int
	body       string
}

type recordedRequest struct {
	method        string
	path          string
	query         map[string]string
	authorization string
	accept        string
	body          map[string]any
}

type fakeGitHubServer struct {
	server    *httptest.Server
	mutex     sync.Mutex
	responses map[string]cannedResponse
	requests  []recordedRequest
}

func newFakeGitHubServer(testInstance *testing.T, responses map[string]cannedResponse) *fakeGitHubServer {
	fake := &fakeGitHubServer{responses: responses}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.handle))
	testInstance.Cleanup(fake.server.Close)
	return fake
}

func (fake *fakeGitHubServer) handle(responseWriter http.ResponseWriter, request *http.Request) {
	recorded := recordedRequest{
		method:        request.Method,
		path:          request.URL.Path,
		query:         map[string]string{},
		authorization: request.Header.Get("Authorization"),
		accept:        request.Header.Get("Accept"),
	}
	for queryKey := range request.URL.Query() {
		recorded.query[queryKey] = request.URL.Query().Get(queryKey)
	}
	if request.Body != nil {
		requestBody, _ := io.ReadAll(request.Body)
		if len(requestBody) > 0 {
			_ = json.Unmarshal(requestBody, &recorded.body)
		}
	}

	fake.mutex.Lock()
	fake.requests = append(fake.requests, recorded)
	response, exists := fake.responses[request.Method+" "+request.URL.Path]
	fake.mutex.Unlock()

	if !exists {
		responseWriter.WriteHeader(http.StatusNotFound)
		return
	}
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(response.statusCode)
	if len(response.body) > 0 {
		_, _ = io.WriteString(responseWriter, response.body)
	}
}

func (fake *fakeGitHubServer) requestsTo(method string, path string) []recordedRequest {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	matching := []recordedRequest{}
	for _, recorded := range fake.requests {
		if recorded.method == method && recorded.path == path {
			matching = append(matching, recorded)
		}
	}
	return matching
}

func newTestClient(testInstance *testing.T, fake *fakeGitHubServer, logger *zap.Logger) *pullrequests.Client {
	options := settings.Options{
		Owner:      testOwnerConstant,
		HeadOwner:  testOwnerConstant,
		Repository: testRepositoryConstant,
		HeadRef:    testHeadRefConstant,
		BaseRef:    testBaseRefConstant,
		HeadToken:  testHeadTokenConstant,
		BaseToken:  testBaseTokenConstant,
		GitHub:     settings.GitHubConfiguration{APIURL: fake.server.URL},
	}
	client, clientError := pullrequests.ClientFactory{}.NewClient(context.Background(), logger, options)
	require.NoError(testInstance, clientError)
	return client
}

func TestClientFindOpen(testInstance *testing.T) {
	testCases := []struct {
		name               string
		response           cannedResponse
		expectedReferences []pullrequests.Reference
		expectedStatus     int
	}{
		{
			name:     "open_pull_requests",
			response: cannedResponse{statusCode: http.StatusOK, body: testListOpenBodyConstant},
			expectedReferences: []pullrequests.Reference{
				{Number: 7, HeadSHA: "def456"},
				{Number: 8, HeadSHA: "fed654"},
			},
		},
		{
			name:               "empty_list",
			response:           cannedResponse{statusCode: http.StatusOK, body: "[]"},
			expectedReferences: []pullrequests.Reference{},
		},
		{
			name:     "not_modified",
			response: cannedResponse{statusCode: http.StatusNotModified},
		},
		{
			name:           "server_error",
			response:       cannedResponse{statusCode: http.StatusInternalServerError, body: testServerErrorBodyConstant},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fake := newFakeGitHubServer(testInstance, map[string]cannedResponse{
				testMethodGetConstant + " " + testPullsPathConstant: testCase.response,
			})
			client := newTestClient(testInstance, fake, zap.NewNop())

			references, findError := client.FindOpen(context.Background())
			if testCase.expectedStatus != 0 {
				var statusError pullrequests.StatusError
				require.ErrorAs(testInstance, findError, &statusError)
				require.Equal(testInstance, testCase.expectedStatus, statusError.StatusCode)
				require.Equal(testInstance, pullrequests.OperationFindOpen, statusError.Operation)
				require.Contains(testInstance, statusError.Body, "Server Error")
			} else {
				require.NoError(testInstance, findError)
				require.Equal(testInstance, testCase.expectedReferences, references)
			}

			listRequests := fake.requestsTo(testMethodGetConstant, testPullsPathConstant)
			require.Len(testInstance, listRequests, 1)
			require.Equal(testInstance, "open", listRequests[0].query["state"])
			require.Equal(testInstance, testOwnerConstant+":"+testHeadRefConstant, listRequests[0].query["head"])
			require.Equal(testInstance, testBaseRefConstant, listRequests[0].query["base"])
			require.Equal(testInstance, testBaseAuthorizationConstant, listRequests[0].authorization)
			require.Equal(testInstance, testAcceptHeaderConstant, listRequests[0].accept)
		})
	}
}

func TestClientCreate(testInstance *testing.T) {
	testCases := []struct {
		name            string
		response        cannedResponse
		expectedOutcome pullrequests.CreateOutcome
		expectedError   any
	}{
		{
			name:            "created",
			response:        cannedResponse{statusCode: http.StatusCreated, body: testCreatedBodyConstant},
			expectedOutcome: pullrequests.CreateOutcome{Reference: pullrequests.Reference{Number: 42, HeadSHA: testHeadSHAConstant}},
		},
		{
			name:            "no_commits",
			response:        cannedResponse{statusCode: http.StatusUnprocessableEntity, body: testNoCommitsBodyConstant},
			expectedOutcome: pullrequests.CreateOutcome{Terminated: true},
		},
		{
			name:          "server_error",
			response:      cannedResponse{statusCode: http.StatusInternalServerError, body: testServerErrorBodyConstant},
			expectedError: pullrequests.StatusError{},
		},
		{
			name:          "missing_head_sha",
			response:      cannedResponse{statusCode: http.StatusCreated, body: testMissingSHABodyConstant},
			expectedError: pullrequests.MissingFieldError{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fake := newFakeGitHubServer(testInstance, map[string]cannedResponse{
				testMethodPostConstant + " " + testPullsPathConstant: testCase.response,
			})
			client := newTestClient(testInstance, fake, zap.NewNop())

			proposal := pullrequests.Proposal{Title: "[auto-merge] a to b [skip ci] [bot]", Body: "keeping b up-to-date"}
			outcome, createError := client.Create(context.Background(), proposal)
			if testCase.expectedError != nil {
				require.Error(testInstance, createError)
				require.IsType(testInstance, testCase.expectedError, createError)
			} else {
				require.NoError(testInstance, createError)
				require.Equal(testInstance, testCase.expectedOutcome, outcome)
			}

			createRequests := fake.requestsTo(testMethodPostConstant, testPullsPathConstant)
			require.Len(testInstance, createRequests, 1)
			require.Equal(testInstance, testHeadAuthorizationConstant, createRequests[0].authorization)
			require.Equal(testInstance, proposal.Title, createRequests[0].body["title"])
			require.Equal(testInstance, proposal.Body, createRequests[0].body["body"])
			require.Equal(testInstance, testOwnerConstant+":"+testHeadRefConstant, createRequests[0].body["head"])
			require.Equal(testInstance, testBaseRefConstant, createRequests[0].body["base"])
			require.Equal(testInstance, true, createRequests[0].body["maintainer_can_modify"])
		})
	}
}

func TestClientCommentLogsWithoutFailing(testInstance *testing.T) {
	testCases := []struct {
		name          string
		response      cannedResponse
		expectedLevel zapcore.Level
		expectedBody  string
	}{
		{
			name:          "created",
			response:      cannedResponse{statusCode: http.StatusCreated, body: testCommentCreatedConstant},
			expectedLevel: zapcore.InfoLevel,
		},
		{
			name:          "forbidden",
			response:      cannedResponse{statusCode: http.StatusForbidden, body: testForbiddenBodyConstant},
			expectedLevel: zapcore.WarnLevel,
			expectedBody:  testForbiddenBodyConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fake := newFakeGitHubServer(testInstance, map[string]cannedResponse{
				testMethodPostConstant + " " + testCommentsPathConstant: testCase.response,
			})
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			client := newTestClient(testInstance, fake, zap.New(observerCore))

			client.Comment(context.Background(), 42, "HEAD commit SHA: a, CUDF commit SHA: b  Test passed: True")

			commentRequests := fake.requestsTo(testMethodPostConstant, testCommentsPathConstant)
			require.Len(testInstance, commentRequests, 1)
			require.Equal(testInstance, testBaseAuthorizationConstant, commentRequests[0].authorization)
			require.Equal(testInstance, "HEAD commit SHA: a, CUDF commit SHA: b  Test passed: True", commentRequests[0].body["body"])

			loggedEntries := observedLogs.All()
			require.Len(testInstance, loggedEntries, 1)
			require.Equal(testInstance, testCase.expectedLevel, loggedEntries[0].Level)
			contextMap := loggedEntries[0].ContextMap()
			require.Equal(testInstance, int64(testCase.response.statusCode), contextMap["status_code"])
			require.Equal(testInstance, int64(42), contextMap["pull_request"])
			if len(testCase.expectedBody) > 0 {
				require.Equal(testInstance, testCase.expectedBody, contextMap["response_body"])
			}
		})
	}
}

func TestClientMerge(testInstance *testing.T) {
	testCases := []struct {
		name              string
		mergeResponse     cannedResponse
		expectMergeError  bool
		expectedComment   []string
		unexpectedComment string
	}{
		{
			name:              "merged",
			mergeResponse:     cannedResponse{statusCode: http.StatusOK, body: testMergedBodyConstant},
			expectedComment:   []string{"**SUCCESS** - auto-merge"},
			unexpectedComment: "**FAILURE**",
		},
		{
			name:             "conflict",
			mergeResponse:    cannedResponse{statusCode: http.StatusConflict, body: testConflictBodyConstant},
			expectMergeError: true,
			expectedComment: []string{
				"**FAILURE** - Unable to auto-merge. Manual operation is required.",
				testConflictBodyConstant,
				"# Assume upstream is NVIDIA/spark-rapids-jni remote",
				"git fetch upstream " + testHeadRefConstant + " " + testBaseRefConstant,
				"git checkout -b fix-auto-merge-conflict-42 upstream/" + testBaseRefConstant,
				"git merge upstream/" + testHeadRefConstant,
				"git commit -am \"Merge " + testHeadRefConstant + " into " + testBaseRefConstant + "\"",
				"git push <personal fork> fix-auto-merge-conflict-42",
				"# Open a PR targets NVIDIA/spark-rapids-jni " + testBaseRefConstant,
			},
			unexpectedComment: "**SUCCESS**",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fake := newFakeGitHubServer(testInstance, map[string]cannedResponse{
				testMethodPutConstant + " " + testMergePathConstant:     testCase.mergeResponse,
				testMethodPostConstant + " " + testCommentsPathConstant: {statusCode: http.StatusCreated, body: testCommentCreatedConstant},
			})
			client := newTestClient(testInstance, fake, zap.NewNop())

			mergeError := client.Merge(context.Background(), pullrequests.Reference{Number: 42, HeadSHA: testHeadSHAConstant})
			if testCase.expectMergeError {
				var typedMergeError pullrequests.MergeError
				require.ErrorAs(testInstance, mergeError, &typedMergeError)
				require.Equal(testInstance, 42, typedMergeError.Number)
				require.Equal(testInstance, http.StatusConflict, typedMergeError.StatusCode)
				require.Equal(testInstance, testConflictBodyConstant, typedMergeError.Body)
			} else {
				require.NoError(testInstance, mergeError)
			}

			mergeRequests := fake.requestsTo(testMethodPutConstant, testMergePathConstant)
			require.Len(testInstance, mergeRequests, 1)
			require.Equal(testInstance, testHeadAuthorizationConstant, mergeRequests[0].authorization)
			require.Equal(testInstance, testHeadSHAConstant, mergeRequests[0].body["sha"])
			require.Equal(testInstance, "merge", mergeRequests[0].body["merge_method"])

			commentRequests := fake.requestsTo(testMethodPostConstant, testCommentsPathConstant)
			require.Len(testInstance, commentRequests, 1)
			commentBody, isString := commentRequests[0].body["body"].(string)
			require.True(testInstance, isString)
			for _, expectedFragment := range testCase.expectedComment {
				require.Contains(testInstance, commentBody, expectedFragment)
			}
			require.False(testInstance, strings.Contains(commentBody, testCase.unexpectedComment))
		})
	}
}

func TestClientReportsTransportFailures(testInstance *testing.T) {
	fake := newFakeGitHubServer(testInstance, map[string]cannedResponse{})
	client := newTestClient(testInstance, fake, zap.NewNop())
	fake.server.Close()

	_, findError := client.FindOpen(context.Background())
	var transportError pullrequests.TransportError
	require.ErrorAs(testInstance, findError, &transportError)
	require.Equal(testInstance, pullrequests.OperationFindOpen, transportError.Operation)
}

func TestNewClientValidatesDependencies(testInstance *testing.T) {
	target := pullrequests.Target{Owner: testOwnerConstant, Repository: testRepositoryConstant}

	_, loggerError := pullrequests.NewClient(nil, target, http.DefaultClient, http.DefaultClient, "")
	require.ErrorIs(testInstance, loggerError, pullrequests.ErrLoggerNotConfigured)

	_, headError := pullrequests.NewClient(zap.NewNop(), target, nil, http.DefaultClient, "")
	require.ErrorIs(testInstance, headError, pullrequests.ErrHeadClientNotConfigured)

	_, baseError := pullrequests.NewClient(zap.NewNop(), target, http.DefaultClient, nil, "")
	require.ErrorIs(testInstance, baseError, pullrequests.ErrBaseClientNotConfigured)
}

func TestTargetQualifiedHeadDefaultsToOwner(testInstance *testing.T) {
	require.Equal(testInstance, "NVIDIA:bot", pullrequests.Target{Owner: "NVIDIA", HeadRef: "bot"}.QualifiedHead())
	require.Equal(testInstance, "fork:bot", pullrequests.Target{Owner: "NVIDIA", HeadOwner: "fork", HeadRef: "bot"}.QualifiedHead())
}

func TestClientFactoryRequiresCredentials(testInstance *testing.T) {
	options := settings.Options{Owner: testOwnerConstant, Repository: testRepositoryConstant, BaseToken: testBaseTokenConstant}
	_, factoryError := pullrequests.ClientFactory{}.NewClient(context.Background(), zap.NewNop(), options)
	require.Error(testInstance, factoryError)
	require.Contains(testInstance, factoryError.Error(), "unable to configure head credentials")
}
