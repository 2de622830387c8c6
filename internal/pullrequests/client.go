package pullrequests

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
	"go.uber.org/zap"
)

const (
	openStateConstant                    = "open"
	mergeMethodConstant                  = "merge"
	qualifiedHeadTemplateConstant        = "%s:%s"
	apiURLTrailingSlashConstant          = "/"
	headSHAFieldNameConstant             = "head.sha"
	numberFieldNameConstant              = "number"
	noPullRequestsMessageConstant        = "no open pull request found"
	openPullRequestsMessageConstant      = "open pull requests listed"
	createdMessageConstant               = "pull request created"
	noCommitsMessageConstant             = "no commits between head and base"
	commentCreatedMessageConstant        = "comment created"
	commentFailedMessageConstant         = "comment creation failed"
	mergeSucceededMessageConstant        = "auto-merge succeeded"
	mergeFailedMessageConstant           = "auto-merge failed"
	requestFailedMessageConstant         = "github request failed"
	logFieldOperationConstant            = "operation"
	logFieldStatusCodeConstant           = "status_code"
	logFieldPullRequestConstant          = "pull_request"
	logFieldHeadSHAConstant              = "head_sha"
	logFieldResponseBodyConstant         = "response_body"
	logFieldCountConstant                = "count"
	logFieldRepositoryConstant           = "repository"
	logFieldHeadConstant                 = "head"
	logFieldBaseConstant                 = "base"
	repositoryIdentifierTemplateConstant = "%s/%s"
)

// Operation names a pull request API call.
type Operation string

// Operations performed by the client.
const (
	OperationFindOpen Operation = "list pull requests"
	OperationCreate   Operation = "create pull request"
	OperationComment  Operation = "create comment"
	OperationMerge    Operation = "merge pull request"
)

// Target identifies the repository and refs a workflow operates on.
type Target struct {
	Owner      string
	Repository string
	HeadOwner  string
	HeadRef    string
	BaseRef    string
}

// QualifiedHead returns the owner-qualified head ref GitHub expects, such as "NVIDIA:bot-sync".
func (target Target) QualifiedHead() string {
	headOwner := target.HeadOwner
	if len(strings.TrimSpace(headOwner)) == 0 {
		headOwner = target.Owner
	}
	return fmt.Sprintf(qualifiedHeadTemplateConstant, headOwner, target.HeadRef)
}

// Reference is a handle to a pull request. The head SHA reflects the API response and may be stale.
type Reference struct {
	Number  int
	HeadSHA string
}

// Proposal holds the title and body of a pull request to open.
type Proposal struct {
	Title string
	Body  string
}

// CreateOutcome is the result of Create. Terminated reports that head and base have no diff.
type CreateOutcome struct {
	Reference  Reference
	Terminated bool
}

// Client implements the pull request operations on top of go-github.
type Client struct {
	logger     *zap.Logger
	target     Target
	headClient *github.Client
	baseClient *github.Client
}

// NewClient constructs a Client. Head requests use headHTTPClient and base requests use baseHTTPClient.
func NewClient(logger *zap.Logger, target Target, headHTTPClient *http.Client, baseHTTPClient *http.Client, apiURL string) (*Client, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if headHTTPClient == nil {
		return nil, ErrHeadClientNotConfigured
	}
	if baseHTTPClient == nil {
		return nil, ErrBaseClientNotConfigured
	}

	baseURL, parseError := parseAPIURL(apiURL)
	if parseError != nil {
		return nil, parseError
	}

	headClient := github.NewClient(headHTTPClient)
	headClient.BaseURL = baseURL
	baseClient := github.NewClient(baseHTTPClient)
	baseClient.BaseURL = baseURL

	return &Client{
		logger:     logger,
		target:     target,
		headClient: headClient,
		baseClient: baseClient,
	}, nil
}

// FindOpen lists open pull requests from the qualified head into the base ref.
// A 304 response counts as no pull requests.
func (client *Client) FindOpen(executionContext context.Context) ([]Reference, error) {
	listOptions := &github.PullRequestListOptions{
		State: openStateConstant,
		Head:  client.target.QualifiedHead(),
		Base:  client.target.BaseRef,
	}

	pullRequests, response, listError := client.baseClient.PullRequests.List(executionContext, client.target.Owner, client.target.Repository, listOptions)
	if listError != nil {
		if statusCodeOf(response) == http.StatusNotModified {
			client.logger.Info(noPullRequestsMessageConstant, client.operationFields(OperationFindOpen, response)...)
			return nil, nil
		}
		return nil, client.requestFailure(OperationFindOpen, response, listError)
	}

	references := make([]Reference, 0, len(pullRequests))
	for _, pullRequest := range pullRequests {
		references = append(references, Reference{Number: pullRequest.GetNumber(), HeadSHA: pullRequest.GetHead().GetSHA()})
	}

	if len(references) == 0 {
		client.logger.Info(noPullRequestsMessageConstant, client.operationFields(OperationFindOpen, response)...)
	} else {
		client.logger.Info(openPullRequestsMessageConstant, append(client.operationFields(OperationFindOpen, response), zap.Int(logFieldCountConstant, len(references)))...)
	}
	return references, nil
}

// Create opens a pull request from the qualified head into the base ref.
// GitHub's 422 response, returned when there are no commits between the refs, yields a terminated outcome.
func (client *Client) Create(executionContext context.Context, proposal Proposal) (CreateOutcome, error) {
	newPullRequest := &github.NewPullRequest{
		Title:               github.Ptr(proposal.Title),
		Head:                github.Ptr(client.target.QualifiedHead()),
		Base:                github.Ptr(client.target.BaseRef),
		Body:                github.Ptr(proposal.Body),
		MaintainerCanModify: github.Ptr(true),
	}

	pullRequest, response, createError := client.headClient.PullRequests.Create(executionContext, client.target.Owner, client.target.Repository, newPullRequest)
	if createError != nil {
		if statusCodeOf(response) == http.StatusUnprocessableEntity {
			client.logger.Info(noCommitsMessageConstant, append(client.operationFields(OperationCreate, response), zap.String(logFieldResponseBodyConstant, describeResponseBody(response, createError)))...)
			return CreateOutcome{Terminated: true}, nil
		}
		return CreateOutcome{}, client.requestFailure(OperationCreate, response, createError)
	}

	if pullRequest.GetNumber() == 0 {
		return CreateOutcome{}, MissingFieldError{Operation: OperationCreate, Field: numberFieldNameConstant}
	}
	if len(pullRequest.GetHead().GetSHA()) == 0 {
		return CreateOutcome{}, MissingFieldError{Operation: OperationCreate, Field: headSHAFieldNameConstant}
	}

	reference := Reference{Number: pullRequest.GetNumber(), HeadSHA: pullRequest.GetHead().GetSHA()}
	client.logger.Info(createdMessageConstant, append(client.operationFields(OperationCreate, response), zap.Int(logFieldPullRequestConstant, reference.Number), zap.String(logFieldHeadSHAConstant, reference.HeadSHA))...)
	return CreateOutcome{Reference: reference}, nil
}

// Comment posts a comment on the pull request. Failures are logged and never returned.
func (client *Client) Comment(executionContext context.Context, number int, body string) {
	comment := &github.IssueComment{Body: github.Ptr(body)}
	_, response, commentError := client.baseClient.Issues.CreateComment(executionContext, client.target.Owner, client.target.Repository, number, comment)
	commentFields := append(client.operationFields(OperationComment, response), zap.Int(logFieldPullRequestConstant, number))
	if commentError != nil {
		client.logger.Warn(commentFailedMessageConstant, append(commentFields, zap.String(logFieldResponseBodyConstant, describeResponseBody(response, commentError)))...)
		return
	}
	client.logger.Info(commentCreatedMessageConstant, commentFields...)
}

// Merge merges the pull request at the referenced head SHA with a merge commit.
// Success leaves a success comment. Failure leaves a remediation comment and returns a MergeError.
func (client *Client) Merge(executionContext context.Context, reference Reference) error {
	mergeOptions := &github.PullRequestOptions{SHA: reference.HeadSHA, MergeMethod: mergeMethodConstant}
	_, response, mergeError := client.headClient.PullRequests.Merge(executionContext, client.target.Owner, client.target.Repository, reference.Number, "", mergeOptions)
	mergeFields := append(client.operationFields(OperationMerge, response), zap.Int(logFieldPullRequestConstant, reference.Number), zap.String(logFieldHeadSHAConstant, reference.HeadSHA))
	if mergeError == nil {
		client.Comment(executionContext, reference.Number, SuccessComment())
		client.logger.Info(mergeSucceededMessageConstant, mergeFields...)
		return nil
	}

	responseBody := describeResponseBody(response, mergeError)
	client.logger.Error(mergeFailedMessageConstant, append(mergeFields, zap.String(logFieldResponseBodyConstant, responseBody))...)
	client.Comment(executionContext, reference.Number, BuildMergeFailureComment(client.target, reference.Number, responseBody))

	return MergeError{
		Number:     reference.Number,
		StatusCode: statusCodeOf(response),
		Body:       responseBody,
		Cause:      mergeError,
	}
}

func (client *Client) requestFailure(operation Operation, response *github.Response, requestError error) error {
	if response == nil || response.Response == nil {
		client.logger.Error(requestFailedMessageConstant, append(client.operationFields(operation, response), zap.Error(requestError))...)
		return TransportError{Operation: operation, Cause: requestError}
	}

	responseBody := describeResponseBody(response, requestError)
	client.logger.Error(requestFailedMessageConstant, append(client.operationFields(operation, response), zap.String(logFieldResponseBodyConstant, responseBody))...)
	return StatusError{Operation: operation, StatusCode: response.StatusCode, Body: responseBody}
}

func (client *Client) operationFields(operation Operation, response *github.Response) []zap.Field {
	return []zap.Field{
		zap.String(logFieldOperationConstant, string(operation)),
		zap.Int(logFieldStatusCodeConstant, statusCodeOf(response)),
		zap.String(logFieldRepositoryConstant, fmt.Sprintf(repositoryIdentifierTemplateConstant, client.target.Owner, client.target.Repository)),
		zap.String(logFieldHeadConstant, client.target.QualifiedHead()),
		zap.String(logFieldBaseConstant, client.target.BaseRef),
	}
}

func statusCodeOf(response *github.Response) int {
	if response == nil || response.Response == nil {
		return 0
	}
	return response.StatusCode
}

// describeResponseBody prefers the raw response body and falls back to the error text.
func describeResponseBody(response *github.Response, requestError error) string {
	if response != nil && response.Response != nil && response.Body != nil {
		bodyContent, readError := io.ReadAll(response.Body)
		if readError == nil {
			if trimmedBody := strings.TrimSpace(string(bodyContent)); len(trimmedBody) > 0 {
				return trimmedBody
			}
		}
	}
	if requestError == nil {
		return ""
	}
	return requestError.Error()
}

func parseAPIURL(apiURL string) (*url.URL, error) {
	trimmedAPIURL := strings.TrimSpace(apiURL)
	if len(trimmedAPIURL) == 0 {
		trimmedAPIURL = DefaultAPIURL
	}
	if !strings.HasSuffix(trimmedAPIURL, apiURLTrailingSlashConstant) {
		trimmedAPIURL += apiURLTrailingSlashConstant
	}

	parsedURL, parseError := url.Parse(trimmedAPIURL)
	if parseError != nil {
		return nil, fmt.Errorf(invalidAPIURLTemplateConstant, apiURL, parseError)
	}
	return parsedURL, nil
}
