// Command server runs the Secrets web application.
//
// All configuration comes from the environment.  The storage backend is
// selected with SECRETS_STORE (fs, gorm or datastore); the fs backend needs
// no external services and is the development default.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/alexedwards/scs/v2"
	"github.com/caarlos0/env/v11"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	secrets "github.com/harsh-1012/secrets"
	"github.com/harsh-1012/secrets/oauth2"
	fsstore "github.com/harsh-1012/secrets/stores/fs"
	gaestore "github.com/harsh-1012/secrets/stores/gae"
	gormstore "github.com/harsh-1012/secrets/stores/gorm"
)

type config struct {
	Port  string `env:"PORT" envDefault:"8080"`
	Store string `env:"SECRETS_STORE" envDefault:"fs"`

	// fs backend
	StoragePath string `env:"SECRETS_FS_PATH" envDefault:"./data"`

	// gorm backend
	PostgresDSN string `env:"SECRETS_POSTGRES_DSN"`

	// datastore backend
	DatastoreProject   string `env:"SECRETS_DATASTORE_PROJECT"`
	DatastoreNamespace string `env:"SECRETS_DATASTORE_NAMESPACE"`

	JWTSecretKey string `env:"SECRETS_JWT_SECRET_KEY"`

	GoogleClientID     string `env:"OAUTH2_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH2_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"OAUTH2_GOOGLE_CALLBACK_URL" envDefault:"http://localhost:8080/auth/google/callback"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		log.Fatal("error parsing config: ", err)
	}

	store, err := buildStore(context.Background(), &cfg)
	if err != nil {
		log.Fatal("error setting up store: ", err)
	}

	session := scs.New()
	session.Lifetime = 24 * time.Hour

	auth := secrets.NewAuth("Secrets", store, session)
	auth.JWTSecretKey = cfg.JWTSecretKey
	app := secrets.NewApp(auth)

	if cfg.GoogleClientID != "" {
		app.Google = oauth2.NewGoogleOAuth2(
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleCallbackURL,
			auth.SaveUserAndRedirect,
		)
	} else {
		slog.Warn("OAUTH2_GOOGLE_CLIENT_ID not set, google login disabled")
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: session.LoadAndSave(app.Handler()),
	}

	go func() {
		slog.Info("listening", "addr", server.Addr, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error: ", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("error shutting down", "err", err)
	}
}

func buildStore(ctx context.Context, cfg *config) (secrets.UserStore, error) {
	switch cfg.Store {
	case "fs":
		return fsstore.NewFSUserStore(cfg.StoragePath), nil

	case "gorm":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("SECRETS_POSTGRES_DSN is required for the gorm store")
		}
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, fmt.Errorf("error opening postgres: %w", err)
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("error migrating schema: %w", err)
		}
		return gormstore.NewUserStore(db), nil

	case "datastore":
		if cfg.DatastoreProject == "" {
			return nil, fmt.Errorf("SECRETS_DATASTORE_PROJECT is required for the datastore store")
		}
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject)
		if err != nil {
			return nil, fmt.Errorf("error creating datastore client: %w", err)
		}
		return gaestore.NewUserStore(client, cfg.DatastoreNamespace), nil

	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store)
	}
}
