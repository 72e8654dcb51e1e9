package actor

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

type AuthMethod string

const (
	AuthAPIKey AuthMethod = "apiKey"
	AuthOAuth2 AuthMethod = "oAuth2"
)

func ParseAuthMethod(s string) (AuthMethod, error) {
	switch AuthMethod(s) {
	case AuthAPIKey:
		return AuthAPIKey, nil
	case AuthOAuth2:
		return AuthOAuth2, nil
	case "":
		return AuthAPIKey, nil
	}
	return "", fmt.Errorf("unknown authentication method %q", s)
}

// CredentialResolver yields the bearer token to attach for an auth method.
type CredentialResolver interface {
	Resolve(ctx context.Context, method AuthMethod) (string, error)
}

// Credentials holds whatever the host has configured for each scheme.
type Credentials struct {
	APIToken    string
	TokenSource oauth2.TokenSource
}

func (c Credentials) Resolve(_ context.Context, method AuthMethod) (string, error) {
	switch method {
	case AuthAPIKey:
		token := strings.TrimSpace(c.APIToken)
		if token == "" {
			return "", &OperationError{Message: "no API token configured for the apiKey authentication method"}
		}
		return token, nil
	case AuthOAuth2:
		if c.TokenSource == nil {
			return "", &OperationError{Message: "no OAuth2 credentials configured for the oAuth2 authentication method"}
		}
		tok, err := c.TokenSource.Token()
		if err != nil {
			return "", &OperationError{Message: "could not obtain OAuth2 access token", Err: err}
		}
		if tok.AccessToken == "" {
			return "", &OperationError{Message: "OAuth2 token source returned an empty access token"}
		}
		return tok.AccessToken, nil
	}
	return "", &OperationError{Message: fmt.Sprintf("unknown authentication method %q", method)}
}

// OAuth2Config describes the OAuth2 app the host authorized against.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	AccessToken  string
	RefreshToken string
}

// NewTokenSource returns a refreshing token source, or nil when no token has
// been configured.
func NewTokenSource(ctx context.Context, cfg OAuth2Config) oauth2.TokenSource {
	if cfg.AccessToken == "" && cfg.RefreshToken == "" {
		return nil
	}
	tok := &oauth2.Token{AccessToken: cfg.AccessToken, RefreshToken: cfg.RefreshToken}
	if cfg.RefreshToken == "" || cfg.TokenURL == "" {
		return oauth2.StaticTokenSource(tok)
	}
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}
	return conf.TokenSource(ctx, tok)
}
