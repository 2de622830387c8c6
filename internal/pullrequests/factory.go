package pullrequests

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/temirov/prsync/internal/githubauth"
	"github.com/temirov/prsync/internal/settings"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com/"

const (
	headCredentialsErrorTemplateConstant = "unable to configure head credentials: %w"
	baseCredentialsErrorTemplateConstant = "unable to configure base credentials: %w"
)

// ClientFactory builds clients from resolved workflow options.
type ClientFactory struct {
	BaseTransport       http.RoundTripper
	AppTransportBuilder githubauth.AppTransportBuilder
}

// NewClient authenticates the head and base sides separately and returns a Client for the options' target.
func (factory ClientFactory) NewClient(clientContext context.Context, logger *zap.Logger, options settings.Options) (*Client, error) {
	apiURL := options.GitHub.APIURL
	if len(apiURL) == 0 {
		apiURL = DefaultAPIURL
	}

	httpClientFactory := githubauth.HTTPClientFactory{
		BaseTransport:       factory.BaseTransport,
		RequestTimeout:      options.GitHub.RequestTimeout,
		APIURL:              apiURL,
		AppTransportBuilder: factory.AppTransportBuilder,
	}
	appCredentials := githubauth.AppCredentials{
		AppID:          options.GitHub.AppID,
		InstallationID: options.GitHub.InstallationID,
		PrivateKeyPath: options.GitHub.PrivateKeyPath,
	}

	headHTTPClient, headError := httpClientFactory.NewHTTPClient(clientContext, githubauth.Credentials{Token: options.HeadToken, App: appCredentials})
	if headError != nil {
		return nil, fmt.Errorf(headCredentialsErrorTemplateConstant, headError)
	}
	baseHTTPClient, baseError := httpClientFactory.NewHTTPClient(clientContext, githubauth.Credentials{Token: options.BaseToken, App: appCredentials})
	if baseError != nil {
		return nil, fmt.Errorf(baseCredentialsErrorTemplateConstant, baseError)
	}

	target := Target{
		Owner:      options.Owner,
		Repository: options.Repository,
		HeadOwner:  options.HeadOwner,
		HeadRef:    options.HeadRef,
		BaseRef:    options.BaseRef,
	}
	return NewClient(logger, target, headHTTPClient, baseHTTPClient, apiURL)
}
