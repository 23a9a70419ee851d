package app

import (
	"context"
	"fmt"
	"time"

	"github.com/monitaro/pjmanager/internal/app/export"
	"github.com/monitaro/pjmanager/internal/app/files"
	filesmem "github.com/monitaro/pjmanager/internal/app/files/memory"
	"github.com/monitaro/pjmanager/internal/app/identity"
	identitymem "github.com/monitaro/pjmanager/internal/app/identity/memory"
	"github.com/monitaro/pjmanager/internal/app/metrics"
	"github.com/monitaro/pjmanager/internal/app/notify"
	"github.com/monitaro/pjmanager/internal/app/services/customers"
	"github.com/monitaro/pjmanager/internal/app/services/history"
	"github.com/monitaro/pjmanager/internal/app/services/partners"
	"github.com/monitaro/pjmanager/internal/app/services/products"
	"github.com/monitaro/pjmanager/internal/app/services/projects"
	"github.com/monitaro/pjmanager/internal/app/session"
	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/internal/app/storage/memory"
	"github.com/monitaro/pjmanager/internal/app/system"
	"github.com/monitaro/pjmanager/internal/app/workflow"
	"github.com/monitaro/pjmanager/internal/config"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// Stores encapsulates external dependencies. Nil members default to the
// in-memory implementation.
type Stores struct {
	Records  storage.RecordStore
	Files    files.Store
	Identity identity.Provider
	Mailer   *notify.Mailer
}

// Settings carries the behavioural knobs of the application.
type Settings struct {
	AdminEmail     string
	RefreshMargin  time.Duration
	DraftTTL       time.Duration
	NotifyOnCreate bool
	Location       *time.Location
	FontPath       string
	Options        *config.Options
	Clock          func() time.Time
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Records   storage.RecordStore
	Projects  *projects.Service
	Drafts    *projects.Drafts
	Board     *projects.Board
	Customers *customers.Service
	Products  *products.Service
	Partners  *partners.Service
	History   *history.Service
	Uploader  *files.Uploader
	Sessions  *session.Manager
	Workflow  *workflow.Registry
	Mailer    *notify.Mailer
	PDF       *export.PDFRenderer
	Options   *config.Options
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, settings Settings, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	if stores.Records == nil {
		stores.Records = memory.New()
	}
	if stores.Files == nil {
		stores.Files = filesmem.New("")
	}
	if stores.Identity == nil {
		log.Warn("no identity provider configured; using in-memory accounts")
		stores.Identity = identitymem.New()
	}
	if stores.Mailer == nil {
		stores.Mailer = notify.New(notify.Config{}, log.Named("notify"))
	}
	if settings.Options == nil {
		settings.Options = config.DefaultOptions()
	}
	if settings.RefreshMargin <= 0 {
		settings.RefreshMargin = 5 * time.Minute
	}

	records := metrics.InstrumentStore(stores.Records)
	registry := workflow.NewRegistry(settings.DraftTTL, log.Named("workflow"))
	sessions := session.NewManager(stores.Identity, settings.AdminEmail, settings.RefreshMargin, log.Named("session"))

	projectService := projects.New(records, projects.NewNumberer(settings.Location, settings.Clock), log.Named("projects"))
	uploader := files.NewUploader(stores.Files, records, log.Named("files"))

	var notifier projects.Notifier
	if settings.NotifyOnCreate {
		notifier = stores.Mailer
	}

	application := &Application{
		manager:   system.NewManager(),
		log:       log,
		Records:   records,
		Projects:  projectService,
		Drafts:    projects.NewDrafts(projectService, registry, uploader, notifier, log.Named("drafts")),
		Board:     projects.NewBoard(projectService, registry, log.Named("board")),
		Customers: customers.New(records, log.Named("customers")),
		Products:  products.New(records, log.Named("products")),
		Partners:  partners.New(records, log.Named("partners")),
		History:   history.New(records, log.Named("history")),
		Uploader:  uploader,
		Sessions:  sessions,
		Workflow:  registry,
		Mailer:    stores.Mailer,
		PDF:       export.NewPDFRenderer(settings.FontPath),
		Options:   settings.Options,
	}

	for _, svc := range []system.Service{sessions, registry} {
		if err := application.Attach(svc); err != nil {
			return nil, err
		}
	}
	return application, nil
}

// Attach registers an additional lifecycle-managed service.
func (a *Application) Attach(svc system.Service) error {
	if err := a.manager.Register(svc); err != nil {
		return fmt.Errorf("register %s service: %w", svc.Name(), err)
	}
	return nil
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Services lists the registered lifecycle services in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}
