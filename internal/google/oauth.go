package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrMissingAccessToken is returned when neither an access token nor a
// refreshable token was supplied.
var ErrMissingAccessToken = errors.New("access_token is required")

// Credentials are the OAuth credentials supplied with a tool call.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// CanRefresh reports whether the credentials carry everything needed to
// obtain a new access token.
func (c Credentials) CanRefresh() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Validate checks that the credentials can authenticate a request.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.AccessToken) != "" {
		return nil
	}
	if c.RefreshToken == "" {
		return ErrMissingAccessToken
	}
	if !c.CanRefresh() {
		return fmt.Errorf("%w: a refresh token alone also needs client_id and client_secret", ErrMissingAccessToken)
	}
	return nil
}

// OAuthConfig returns the OAuth2 configuration used to refresh tokens.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       DefaultOAuthScopes,
	}
}

// TokenSource returns a token source for creds. The access token is used
// as-is; refreshable credentials without one are exchanged for a fresh
// access token on first use.
func TokenSource(ctx context.Context, creds Credentials) (oauth2.TokenSource, error) {
	return tokenSource(ctx, creds, OAuthConfig(creds.ClientID, creds.ClientSecret))
}

func tokenSource(ctx context.Context, creds Credentials, conf *oauth2.Config) (oauth2.TokenSource, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: creds.RefreshToken,
	}
	if !creds.CanRefresh() {
		return oauth2.StaticTokenSource(tok), nil
	}
	if tok.AccessToken == "" {
		// Force a refresh on first use.
		tok.Expiry = time.Unix(1, 0)
	}
	return conf.TokenSource(ctx, tok), nil
}

// HTTPClient returns an HTTP client authenticated with creds.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func HTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	ts, err := TokenSource(ctx, creds)
	if err != nil {
		return nil, err
	}
	return newHTTPClient(ctx, ts), nil
}

func newHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}
	return client
}
