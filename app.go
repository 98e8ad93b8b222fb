package secrets

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/harsh-1012/secrets/oauth2"
)

// App is the route controller.  It composes the auth layers (local,
// federated, session) with the page handlers and owns the HTTP router.
// All collaborators are explicit; nothing is package-global.
type App struct {
	Auth  *Auth
	Store UserStore
	Local *LocalAuth

	// Google is optional.  When nil the federated login routes are not
	// registered (the login page still links to them, they just 404).
	Google *oauth2.GoogleOAuth2

	templates *template.Template
}

// pageData is the single view-model for all pages.  Secrets carries secret
// texts only; no user field ever reaches a template.
type pageData struct {
	LoggedIn bool
	Message  string
	Secrets  []string
}

// NewApp wires the route controller around an Auth.  The local auth handlers
// are created here with the session layer as their success callback; a
// federated adapter can be attached afterwards via the Google field.
func NewApp(auth *Auth) *App {
	auth.EnsureDefaults()
	return &App{
		Auth:  auth,
		Store: auth.Store,
		Local: &LocalAuth{
			Store:       auth.Store,
			HandleUser:  auth.HandleLocalUser,
			LoginURL:    auth.LoginURL,
			RegisterURL: "/register",
		},
		templates: loadTemplates(),
	}
}

// Handler builds the router with all application routes.
func (app *App) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", app.handleHome).Methods("GET")
	router.HandleFunc("/login", app.handleLoginPage).Methods("GET")
	router.HandleFunc("/register", app.handleRegisterPage).Methods("GET")
	router.HandleFunc("/login", app.Local.HandleLogin).Methods("POST")
	router.HandleFunc("/register", app.Local.HandleRegister).Methods("POST")
	router.HandleFunc("/logout", app.Auth.HandleLogout).Methods("GET")
	router.HandleFunc("/secrets", app.handleSecrets).Methods("GET")

	ensure := app.Auth.Middleware.EnsureUser
	router.Handle("/submit", ensure(http.HandlerFunc(app.handleSubmitPage))).Methods("GET")
	router.Handle("/submit", ensure(http.HandlerFunc(app.handleSubmit))).Methods("POST")

	if app.Google != nil {
		router.HandleFunc("/auth/google", app.Google.HandleRedirect).Methods("GET")
		router.HandleFunc("/auth/google/callback", app.Google.HandleCallback).Methods("GET")
	}

	return router
}

func (app *App) handleHome(w http.ResponseWriter, r *http.Request) {
	loggedIn := app.Auth.Middleware.GetLoggedInUserId(r) != ""
	app.render(w, "home.html", &pageData{LoggedIn: loggedIn})
}

func (app *App) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	app.render(w, "login.html", &pageData{
		Message: ErrorMessage(r.URL.Query().Get("error")),
	})
}

func (app *App) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	app.render(w, "register.html", &pageData{
		Message: ErrorMessage(r.URL.Query().Get("error")),
	})
}

func (app *App) handleSubmitPage(w http.ResponseWriter, r *http.Request) {
	app.render(w, "submit.html", &pageData{LoggedIn: true})
}

// handleSubmit overwrites the logged in user's secret.  A session whose user
// id no longer resolves is treated as anonymous and sent back to login.
func (app *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "error parsing form", http.StatusBadRequest)
		return
	}
	userID := app.Auth.Middleware.GetLoggedInUserId(r)
	secret := r.FormValue("secret")

	if err := app.Store.SetSecret(r.Context(), userID, secret); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			app.Auth.SetLoggedInUser(nil, w, r)
			http.Redirect(w, r, app.Auth.LoginURL, http.StatusFound)
			return
		}
		slog.Warn("error saving secret", "err", err)
		app.renderError(w)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// handleSecrets shows every submitted secret, anonymized.  The page is
// visible without logging in.
func (app *App) handleSecrets(w http.ResponseWriter, r *http.Request) {
	texts, err := app.Store.ListSecrets(r.Context())
	if err != nil {
		slog.Warn("error listing secrets", "err", err)
		app.renderError(w)
		return
	}
	app.render(w, "secrets.html", &pageData{Secrets: texts})
}

func (app *App) render(w http.ResponseWriter, name string, data *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := app.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Warn("error rendering template", "template", name, "err", err)
	}
}

func (app *App) renderError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if err := app.templates.ExecuteTemplate(w, "error.html", &pageData{}); err != nil {
		slog.Warn("error rendering template", "template", "error.html", "err", err)
	}
}
