package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo?access_token="

// GoogleOAuth2 implements the authorization-code flow against Google.
type GoogleOAuth2 struct {
	*BaseOAuth2

	userInfoURL string
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}

	out := GoogleOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientId, clientSecret, callbackUrl),
		userInfoURL: googleUserInfoURL,
	}
	out.BaseOAuth2.HandleUser = handleUser
	out.BaseOAuth2.oauthConfig.Endpoint = google.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	}
	return &out
}

// HandleCallback completes the authorization-code exchange.  Any failure
// (state mismatch aside, which is a client error) redirects to the failure
// URL rather than surfacing a raw error.
func (g *GoogleOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie("oauthstate")
	if oauthState == nil {
		log.Println("oauth state cookie is missing")
		http.Error(w, "OauthState is nil", http.StatusBadRequest)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			MaxAge: 0,
		})
		http.Error(w, "invalid oauth google state", http.StatusBadRequest)
		return
	}

	code := r.FormValue("code")
	token, err := g.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		log.Println("code exchange wrong: ", err)
		http.Redirect(w, r, g.getFailureURL(), http.StatusFound)
		return
	}

	identity, err := g.resolveIdentity(r.Context(), token)
	if err != nil {
		log.Println("error resolving google identity: ", err)
		http.Redirect(w, r, g.getFailureURL(), http.StatusFound)
		return
	}

	g.HandleUser("oauth", "google", token, identity, w, r)
}

// resolveIdentity extracts a stable subject identifier from the exchanged
// token.  The signed id_token is preferred when present; otherwise the
// userinfo endpoint is queried with the access token.
func (g *GoogleOAuth2) resolveIdentity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error) {
	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		payload, err := idtoken.Validate(ctx, raw, g.ClientId)
		if err == nil && payload.Subject != "" {
			return &ExternalIdentity{ID: payload.Subject, Profile: payload.Claims}, nil
		}
		log.Println("id_token validation failed, falling back to userinfo: ", err)
	}

	userInfo, err := g.getUserData(token)
	if err != nil {
		return nil, err
	}

	id, _ := userInfo["id"].(string)
	if id == "" {
		// userinfo v3 uses "sub" instead of "id"
		id, _ = userInfo["sub"].(string)
	}
	if id == "" {
		return nil, fmt.Errorf("no usable identifier in google profile")
	}
	return &ExternalIdentity{ID: id, Profile: userInfo}, nil
}

func (g *GoogleOAuth2) getUserData(token *oauth2.Token) (map[string]any, error) {
	response, err := http.Get(g.userInfoURL + token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %s", err.Error())
	}
	defer response.Body.Close()
	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %s", err.Error())
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed parsing user info: %s", err.Error())
	}
	return userInfo, nil
}
