// Package runtime turns configuration into a running HTTP service.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	app "github.com/monitaro/pjmanager/internal/app"
	"github.com/monitaro/pjmanager/internal/app/files"
	filesmem "github.com/monitaro/pjmanager/internal/app/files/memory"
	filess3 "github.com/monitaro/pjmanager/internal/app/files/s3"
	filessupabase "github.com/monitaro/pjmanager/internal/app/files/supabase"
	"github.com/monitaro/pjmanager/internal/app/httpapi"
	"github.com/monitaro/pjmanager/internal/app/identity"
	"github.com/monitaro/pjmanager/internal/app/identity/firebase"
	"github.com/monitaro/pjmanager/internal/app/identity/gotrue"
	identitymem "github.com/monitaro/pjmanager/internal/app/identity/memory"
	"github.com/monitaro/pjmanager/internal/app/notify"
	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/internal/app/storage/memory"
	"github.com/monitaro/pjmanager/internal/app/storage/postgres"
	"github.com/monitaro/pjmanager/internal/app/storage/supabase"
	"github.com/monitaro/pjmanager/internal/config"
	"github.com/monitaro/pjmanager/internal/middleware"
	"github.com/monitaro/pjmanager/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	handler http.Handler
	server  *http.Server
	db      *sqlx.DB
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	return logger.New(logger.LoggingConfig{Level: cfg.Level, Format: cfg.Format, Output: cfg.Output})
}

// NewApplication constructs the application from cfg. A nil cfg is loaded
// from the environment.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	log := NewLogger(cfg.Logging)

	options := config.DefaultOptions()
	if cfg.OptionsFile != "" {
		loaded, err := config.LoadOptions(cfg.OptionsFile)
		if err != nil {
			return nil, fmt.Errorf("load options: %w", err)
		}
		options = loaded
	}

	records, db, err := OpenRecords(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("configure record store: %w", err)
	}
	fileStore, err := openFiles(ctx, cfg)
	if err != nil {
		closeDB(db, log)
		return nil, fmt.Errorf("configure file store: %w", err)
	}
	provider, err := openIdentity(cfg)
	if err != nil {
		closeDB(db, log)
		return nil, fmt.Errorf("configure identity provider: %w", err)
	}
	mailer := notify.New(notify.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		User:     cfg.Mail.User,
		Password: cfg.Mail.Password,
		To:       cfg.Mail.To,
	}, log.Named("notify"))

	application, err := app.New(app.Stores{
		Records:  records,
		Files:    fileStore,
		Identity: provider,
		Mailer:   mailer,
	}, app.Settings{
		AdminEmail:     cfg.Identity.AdminEmail,
		RefreshMargin:  cfg.Identity.RefreshMargin,
		DraftTTL:       cfg.DraftTTL,
		NotifyOnCreate: cfg.Mail.NotifyOnCreate,
		Location:       cfg.Export.Location(),
		FontPath:       cfg.Export.FontPath,
		Options:        options,
	}, log)
	if err != nil {
		closeDB(db, log)
		return nil, err
	}

	if err := application.PDF.Ready(); err != nil {
		log.WithError(err).Warn("project PDF downloads are disabled")
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, log.Named("ratelimit")).
		WithSessions(application.Sessions)
	if err := application.Attach(limiter); err != nil {
		closeDB(db, log)
		return nil, err
	}

	handler := httpapi.Wrap(httpapi.NewHandler(application, log.Named("httpapi")), application.Sessions, httpapi.EdgeConfig{
		Origins: cfg.Server.Origins(),
		Limiter: limiter,
		Log:     log.Named("http"),
	})

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		handler: handler,
		server: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		db: db,
	}, nil
}

// App exposes the composed application.
func (a *Application) App() *app.Application { return a.app }

// Handler returns the fully wrapped HTTP handler.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts the background services and the HTTP server and blocks until
// ctx is cancelled or the server fails. Everything is shut down before it
// returns.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		_ = a.app.Stop(context.Background())
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.WithField("addr", listener.Addr().String()).Info("HTTP server listening")
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown stops the HTTP server, the background services and the database.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.app.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("services: %w", err))
	}
	closeDB(a.db, a.log)
	a.db = nil
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

// OpenRecords builds the configured record store. The returned database is
// non-nil only for the postgres driver and must be closed by the caller.
func OpenRecords(ctx context.Context, cfg config.StoreConfig) (storage.RecordStore, *sqlx.DB, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(db), db, nil
	case "supabase", "":
		store, err := supabase.New(supabase.Config{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseKey()})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown RECORD_STORE %q", cfg.Driver)
	}
}

func openFiles(ctx context.Context, cfg *config.Config) (files.Store, error) {
	switch strings.ToLower(cfg.Files.Driver) {
	case "memory":
		return filesmem.New(""), nil
	case "s3":
		return filess3.New(ctx, filess3.Config{
			Region:        cfg.Files.S3Region,
			Bucket:        cfg.Files.Bucket,
			Endpoint:      cfg.Files.S3Endpoint,
			PublicBaseURL: cfg.Files.S3PublicBaseURL,
			PathStyle:     cfg.Files.S3PathStyle,
		})
	case "supabase", "":
		return filessupabase.New(filessupabase.Config{
			URL:    cfg.Store.SupabaseURL,
			APIKey: cfg.Store.SupabaseKey(),
			Bucket: cfg.Files.Bucket,
		})
	default:
		return nil, fmt.Errorf("unknown FILE_STORE %q", cfg.Files.Driver)
	}
}

func openIdentity(cfg *config.Config) (identity.Provider, error) {
	switch strings.ToLower(cfg.Identity.Provider) {
	case "memory":
		return identitymem.New(), nil
	case "gotrue", "supabase":
		return gotrue.New(gotrue.Config{
			URL:       cfg.Store.SupabaseURL,
			APIKey:    cfg.Store.SupabaseAnonKey,
			JWTSecret: cfg.Identity.SupabaseJWTSecret,
		})
	case "firebase", "":
		return firebase.New(firebase.Config{APIKey: cfg.Identity.FirebaseAPIKey})
	default:
		return nil, fmt.Errorf("unknown IDENTITY_PROVIDER %q", cfg.Identity.Provider)
	}
}

func closeDB(db *sqlx.DB, log *logger.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("error closing database connection")
	}
}
