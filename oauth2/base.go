package oauth2

import (
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

// ExternalIdentity is the verified identity obtained from a provider
// exchange.  ID is the provider's stable subject identifier; Profile carries
// whatever profile fields the provider returned.  Callers must not assume
// any profile shape beyond the fields they actually use.
type ExternalIdentity struct {
	ID      string
	Profile map[string]any
}

// HandleUserFunc is called by a provider's callback handler after a
// successful authorization-code exchange.
type HandleUserFunc func(authtype string, provider string, token *oauth2.Token, identity *ExternalIdentity, w http.ResponseWriter, r *http.Request)

// BaseOAuth2 holds the configuration shared by all authorization-code
// providers.
type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string
	HandleUser   HandleUserFunc

	// Where a failed exchange lands.  Defaults to the login form.
	FailureURL string

	oauthConfig oauth2.Config
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string) *BaseOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_CALLBACK_URL")
	}
	return &BaseOAuth2{
		ClientId:     clientId,
		ClientSecret: clientSecret,
		CallbackURL:  callbackUrl,
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
}

// HandleRedirect sends the client to the provider's consent screen.
func (b *BaseOAuth2) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	OauthRedirector(&b.oauthConfig)(w, r)
}

func (b *BaseOAuth2) getFailureURL() string {
	if b.FailureURL != "" {
		return b.FailureURL
	}
	return "/login?error=provider_failed"
}
