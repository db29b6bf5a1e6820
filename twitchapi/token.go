package twitchapi

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is Twitch's OAuth token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// AppCredentials produce app access (client credentials) tokens.
// NOTE: app tokens cannot send whispers or chat; those need the bot's user token.
type AppCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// TokenSource returns a caching, auto-refreshing token source.
func (ac AppCredentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if ac.ClientID == "" || ac.ClientSecret == "" {
		return nil, errors.New("missing client id/secret for twitch app token")
	}
	tokenURL := ac.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := clientcredentials.Config{
		ClientID:     ac.ClientID,
		ClientSecret: ac.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cfg.TokenSource(ctx), nil
}

// UserTokenSource wraps the bot's chat token. The IRC "oauth:" prefix is stripped.
func UserTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: strings.TrimPrefix(token, "oauth:"),
		TokenType:   "Bearer",
	})
}
