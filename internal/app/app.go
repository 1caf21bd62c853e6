package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/handlers"
	"github.com/ternarybob/longform/internal/httpclient"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/services/billing"
	"github.com/ternarybob/longform/internal/services/events"
	"github.com/ternarybob/longform/internal/services/generation"
	"github.com/ternarybob/longform/internal/services/llm"
	"github.com/ternarybob/longform/internal/services/messaging"
	"github.com/ternarybob/longform/internal/services/pdf"
	"github.com/ternarybob/longform/internal/services/ratelimit"
	"github.com/ternarybob/longform/internal/services/research"
	"github.com/ternarybob/longform/internal/services/scheduler"
	"github.com/ternarybob/longform/internal/services/transform"
	"github.com/ternarybob/longform/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	Publisher        interfaces.Publisher
	SchedulerService *scheduler.Service

	// Generation pipeline
	LLMService        *llm.ProviderFactory
	TransformService  *transform.Service
	PDFExtractor      *pdf.Extractor
	Fetcher           *research.Fetcher
	BillingService    *billing.Service
	Limiter           *ratelimit.Limiter
	GenerationService *generation.Service

	// HTTP handlers
	ScriptHandler  *handlers.ScriptHandler
	CreditsHandler *handlers.CreditsHandler
	RunsHandler    *handlers.RunsHandler
	StatusHandler  *handlers.StatusHandler
	WSHandler      *handlers.WebSocketHandler
}

// Options toggles the parts of the app a command needs
type Options struct {
	// Background starts the scheduler and websocket streaming (serve only)
	Background bool
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger, opts Options) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if opts.Background {
		if err := app.startBackground(); err != nil {
			app.Close()
			return nil, err
		}
	}

	logger.Info().
		Str("version", common.GetVersion()).
		Str("default_provider", string(cfg.LLM.DefaultProvider)).
		Bool("background", opts.Background).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order.
// Storage → events/publisher → LLM → research → billing → generation.
func (a *App) initServices() error {
	kvStorage := a.StorageManager.KeyValueStorage()

	a.EventService = events.NewService(a.Logger)
	if err := events.SubscribeLoggerToAllEvents(a.EventService, a.Logger); err != nil {
		return err
	}

	if url := a.Config.Messaging.NatsURL; url != "" {
		publisher, err := messaging.NewNATSPublisher(url, a.Logger)
		if err != nil {
			return err
		}
		a.Publisher = publisher
	} else {
		a.Publisher = messaging.NoopPublisher{}
	}
	bridge := messaging.NewBridge(a.Publisher, a.Config.Messaging.SubjectPrefix, a.Logger)
	if err := bridge.Attach(a.EventService); err != nil {
		return err
	}

	a.LLMService = llm.NewProviderFactory(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, kvStorage, a.Logger)

	a.TransformService = transform.NewService(a.Logger)
	a.PDFExtractor = pdf.NewExtractor(kvStorage, a.Logger)
	httpClient := httpclient.NewResearchClient(&a.Config.Research)
	a.Fetcher = research.NewFetcher(httpClient, a.TransformService, a.PDFExtractor, &a.Config.Research, a.Logger)

	a.BillingService = billing.NewService(a.StorageManager.LedgerStorage(), &a.Config.Credits, a.Logger)
	a.Limiter = ratelimit.NewLimiter(a.Config.Limits.RequestsPerHour, a.Config.Limits.Burst)

	generationService, err := generation.NewService(a.Config, generation.Dependencies{
		Generator: a.LLMService,
		Models:    a.LLMService,
		Billing:   a.BillingService,
		Scripts:   a.StorageManager.ScriptStorage(),
		Runs:      a.StorageManager.RunStorage(),
		Events:    a.EventService,
		Fetcher:   a.Fetcher,
		Limiter:   a.Limiter,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.GenerationService = generationService

	a.SchedulerService = scheduler.NewService(a.Logger)
	if a.Config.Maintenance.Enabled {
		retention := common.ParseDurationOr(a.Config.Maintenance.RunRetention, 0)
		if retention > 0 {
			if err := a.SchedulerService.RegisterJob("run_retention", a.Config.Maintenance.Schedule,
				"Delete generation runs past retention",
				scheduler.RunRetentionJob(a.StorageManager.RunStorage(), retention, a.Logger)); err != nil {
				return err
			}
		}
		if err := a.SchedulerService.RegisterJob("limiter_prune", "*/30 * * * *",
			"Drop idle per-user rate limiters",
			scheduler.PruneJob("limiter_prune", a.Limiter, a.Logger)); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) initHandlers() {
	a.ScriptHandler = handlers.NewScriptHandler(a.GenerationService, a.StorageManager.ScriptStorage(), a.Logger)
	a.CreditsHandler = handlers.NewCreditsHandler(a.BillingService, a.Logger)
	a.RunsHandler = handlers.NewRunsHandler(a.StorageManager.RunStorage(), a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.SchedulerService)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
}

func (a *App) startBackground() error {
	if err := a.WSHandler.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start websocket streaming: %w", err)
	}
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close shuts services down in reverse dependency order
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close publisher")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
