package githubauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"golang.org/x/oauth2"
)

const (
	tokenAuthorizationTypeConstant    = "token"
	credentialsMissingMessageConstant = "github credentials not configured: provide a token or app credentials"
	appTransportErrorTemplateConstant = "unable to create github app transport: %w"
	apiURLTrailingSlashConstant       = "/"
	defaultGitHubAPIHostURLConstant   = "https://api.github.com"
)

// ErrCredentialsNotConfigured indicates that neither a token nor app credentials were supplied.
var ErrCredentialsNotConfigured = errors.New(credentialsMissingMessageConstant)

// AppCredentials identifies a GitHub App installation.
type AppCredentials struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

// Configured reports whether every app credential is present.
func (credentials AppCredentials) Configured() bool {
	return credentials.AppID > 0 && credentials.InstallationID > 0 && len(strings.TrimSpace(credentials.PrivateKeyPath)) > 0
}

// Credentials holds the authentication material for one side of a pull request.
type Credentials struct {
	Token string
	App   AppCredentials
}

// AppTransportBuilder creates a round tripper authenticating as a GitHub App installation.
type AppTransportBuilder func(baseTransport http.RoundTripper, credentials AppCredentials, apiURL string) (http.RoundTripper, error)

// HTTPClientFactory creates authenticated clients that share transport and timeout settings.
type HTTPClientFactory struct {
	BaseTransport       http.RoundTripper
	RequestTimeout      time.Duration
	APIURL              string
	AppTransportBuilder AppTransportBuilder
}

// NewHTTPClient returns a client authenticating with the token, or with the app when no token is set.
func (factory HTTPClientFactory) NewHTTPClient(clientContext context.Context, credentials Credentials) (*http.Client, error) {
	baseTransport := factory.BaseTransport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}

	trimmedToken := strings.TrimSpace(credentials.Token)
	if len(trimmedToken) > 0 {
		transportContext := context.WithValue(clientContext, oauth2.HTTPClient, &http.Client{Transport: baseTransport})
		tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: trimmedToken, TokenType: tokenAuthorizationTypeConstant})
		httpClient := oauth2.NewClient(transportContext, tokenSource)
		httpClient.Timeout = factory.RequestTimeout
		return httpClient, nil
	}

	if !credentials.App.Configured() {
		return nil, ErrCredentialsNotConfigured
	}

	appTransportBuilder := factory.AppTransportBuilder
	if appTransportBuilder == nil {
		appTransportBuilder = newInstallationTransport
	}

	appTransport, transportError := appTransportBuilder(baseTransport, credentials.App, factory.APIURL)
	if transportError != nil {
		return nil, fmt.Errorf(appTransportErrorTemplateConstant, transportError)
	}

	return &http.Client{Transport: appTransport, Timeout: factory.RequestTimeout}, nil
}

func newInstallationTransport(baseTransport http.RoundTripper, credentials AppCredentials, apiURL string) (http.RoundTripper, error) {
	installationTransport, transportError := ghinstallation.NewKeyFromFile(baseTransport, credentials.AppID, credentials.InstallationID, credentials.PrivateKeyPath)
	if transportError != nil {
		return nil, transportError
	}

	trimmedAPIURL := strings.TrimSuffix(strings.TrimSpace(apiURL), apiURLTrailingSlashConstant)
	if len(trimmedAPIURL) > 0 && trimmedAPIURL != defaultGitHubAPIHostURLConstant {
		installationTransport.BaseURL = trimmedAPIURL
	}

	return installationTransport, nil
}
