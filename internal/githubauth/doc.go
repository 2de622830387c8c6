// Package githubauth builds authenticated HTTP clients for the GitHub REST API.
//
// Personal or workflow tokens are sent as "Authorization: token <value>" through an
// oauth2 static token source. When no token is available, GitHub App installation
// credentials are exchanged for installation tokens by ghinstallation.
package githubauth
