package provider

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/gmail/v1"

	"suggest_server/core/domain"
)

// NewGoogleOAuthConfig builds the Gmail read scope config
func NewGoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			gmail.GmailReadonlyScope,
		},
		Endpoint: google.Endpoint,
	}
}

// NewMicrosoftOAuthConfig builds the Graph Mail.Read scope config
func NewMicrosoftOAuthConfig(clientID, clientSecret, redirectURL, tenantID string) *oauth2.Config {
	if tenantID == "" {
		tenantID = "common"
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"offline_access",
			"https://graph.microsoft.com/Mail.Read",
		},
		Endpoint: microsoft.AzureADEndpoint(tenantID),
	}
}

// tokenSource wraps a stored connection in a refreshing token source.
// The library refreshes via the refresh token when the access token is
// past its expiry.
func tokenSource(ctx context.Context, cfg *oauth2.Config, conn *domain.OAuthConnection) oauth2.TokenSource {
	token := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.ExpiresAt,
	}
	return cfg.TokenSource(ctx, token)
}
