// Package secrets is a small authenticated note-sharing web application:
// users register or sign in (locally or with Google), submit a single short
// secret, and browse everyone's secrets anonymized on a shared page.
//
// # Architecture
//
// User: the single persistent entity. A user is created by local registration
// (username + bcrypt password hash) or by the first federated login (provider
// subject id). Each user owns one secret slot that later submissions
// overwrite.
//
// UserStore: the storage interface. Three implementations ship in stores/:
// gorm (Postgres), gae (Cloud Datastore) and fs (JSON files, for development
// and tests). All of them enforce username/provider-id uniqueness and make
// the provider find-or-create atomic.
//
// LocalAuth: username/password registration and login handlers. Failures
// redirect back to the form with a short error code in the query string.
//
// oauth2: the Google authorization-code adapter. It verifies the state
// cookie, exchanges the code and resolves a stable subject identifier,
// preferring the signed id_token over the userinfo endpoint.
//
// Auth: the session layer. On success it puts the user id in a server-side
// scs session and additionally mints a signed JWT auth-token cookie; the
// request middleware resolves either back to a user id. Logout clears both.
//
// App: the route controller. It wires the pieces onto a gorilla/mux router
// and renders the embedded html/template pages.
//
// # Basic Usage
//
//	store := fs.NewFSUserStore("/path/to/storage")
//	session := scs.New()
//	auth := secrets.NewAuth("Secrets", store, session)
//	app := secrets.NewApp(auth)
//	app.Google = oauth2.NewGoogleOAuth2(clientId, clientSecret, callbackUrl,
//	    auth.SaveUserAndRedirect)
//	http.ListenAndServe(":8080", session.LoadAndSave(app.Handler()))
//
// # Security
//
// Passwords are hashed with bcrypt at default cost and compared in constant
// time. Login failures never distinguish an unknown username from a wrong
// password. The secrets listing carries secret texts only; no user field
// reaches that page.
package secrets
