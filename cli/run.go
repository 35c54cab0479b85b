package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/vostok-rest/backoffice/api"
	"github.com/vostok-rest/backoffice/bot"
	"github.com/vostok-rest/backoffice/cache"
	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/config"
	"github.com/vostok-rest/backoffice/db"
	"github.com/vostok-rest/backoffice/db/repository"
	"github.com/vostok-rest/backoffice/fsm"
	"github.com/vostok-rest/backoffice/permissions"
	syncpkg "github.com/vostok-rest/backoffice/sync"
	"github.com/vostok-rest/backoffice/scheduler"
	"github.com/vostok-rest/backoffice/tree"
	"github.com/vostok-rest/backoffice/upstream/cloud"
	"github.com/vostok-rest/backoffice/upstream/finance"
	"github.com/vostok-rest/backoffice/upstream/pos"
	"github.com/vostok-rest/backoffice/webhook"
	"github.com/vostok-rest/backoffice/workflows"
)

// App holds every long-lived collaborator wired up by Run, so Run itself
// reads as a sequence of construction steps and a final blocking run
// rather than one giant function body.
type App struct {
	cfg       *config.Config
	pg        *db.PostgresDB
	cacheRepo *repository.RedisRepository // nil unless Cache.URL is set
	server    *api.Server
	tg        *bot.Telegram
	scheduler *scheduler.Scheduler
}

// Run loads configuration, wires every collaborator, starts the bot's
// long-poll loop, the scheduler, and the HTTP server, and blocks until ctx
// is cancelled (SIGINT/SIGTERM from root.go), then shuts everything down.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	configureLogger(cfg.Service)

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer app.pg.Close()
	if app.cacheRepo != nil {
		defer app.cacheRepo.Close()
	}

	return app.run(ctx)
}

func configureLogger(svc config.ServiceConfig) {
	if level, err := logrus.ParseLevel(svc.LogLevel); err == nil {
		common.Logger.SetLevel(level)
	}
	if svc.LogFormat == "json" {
		common.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

func buildApp(ctx context.Context, cfg *config.Config) (*App, error) {
	clock := common.NewClock(cfg.Scheduler.Timezone)

	pg, err := db.NewPostgresDB(ctx, cfg.Database.DSN, db.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var cacheRepo *repository.RedisRepository
	var locker syncpkg.Locker = syncpkg.NewInProcessLocker()
	var ttlCache *cache.TTLCache = cache.NewTTLCache()
	var sessions bot.SessionClearer = fsm.NewManager()

	if cfg.Cache.URL != "" {
		cacheRepo, err = repository.NewRedisRepository(cfg.Cache.URL)
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to connect to shared cache: %w", err)
		}
		locker = syncpkg.NewRedisLocker(cacheRepo)
		ttlCache = cache.NewSharedTTLCache(cacheRepo)
		sessions = fsm.NewDurableManager(cacheRepo, 30*time.Minute)
	}

	// repositories
	refs := repository.NewPostgresReferenceRepository(pg)
	employees := repository.NewPostgresEmployeeRepository(pg)
	syncLogs := repository.NewPostgresSyncLogRepository(pg)
	financeMirror := repository.NewPostgresFinanceMirrorRepository(pg)
	writeoffRepo := repository.NewPostgresWriteoffRepository(pg)
	stoplistRepo := repository.NewPostgresStoplistRepository(pg)
	pinnedRepo := repository.NewPostgresPinnedMessageRepository(pg)
	invoiceTemplates := repository.NewPostgresInvoiceTemplateRepository(pg)
	productRequests := repository.NewPostgresProductRequestRepository(pg)
	ocrDocs := repository.NewPostgresOCRDocumentRepository(pg)
	runRecorder := repository.NewPostgresRunRecorder(pg)
	adminDirectory := repository.NewPostgresAdminDirectory(pg)
	cloudTokens := repository.NewPostgresCloudTokenSource(pg)

	// upstream clients
	posClient := pos.New(pos.Config{
		BaseURL:  cfg.POS.BaseURL,
		Login:    cfg.POS.Login,
		Password: cfg.POS.Password,
		Timeout:  30 * time.Second,
	})
	financeClient := finance.New(finance.Config{
		BaseURL:     cfg.Finance.BaseURL,
		BearerToken: cfg.Finance.BearerToken,
		Timeout:     30 * time.Second,
	})
	cloudClient := cloud.New(cloud.Config{
		BaseURL:       cfg.Cloud.BaseURL,
		WebhookSecret: cfg.Cloud.WebhookSecret,
		Timeout:       30 * time.Second,
	}, cloudTokens)

	// navigation
	treeResolver := tree.NewResolver(refs)

	// telegram transport + notification fan-out
	tg, err := bot.NewTelegram(cfg.Telegram.BotToken)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to start telegram client: %w", err)
	}
	notifiers := bot.NewNotifiers(tg, adminDirectory)
	transferNotifications := bot.NewTransferNotifications(notifiers)

	// permissions
	var sheet *permissions.Spreadsheet
	var legacy permissions.LegacyRepository
	if cfg.Spreadsheet.UseLegacyAdminTables {
		legacy = adminDirectory
	} else {
		svc, err := sheets.NewService(ctx, option.WithCredentialsJSON([]byte(cfg.Spreadsheet.CredentialsJSON)))
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to build sheets client: %w", err)
		}
		sheet = permissions.NewSpreadsheet(svc, cfg.Spreadsheet.SpreadsheetID, "Permissions!A1:Z")
	}
	resolver := permissions.NewResolver(
		permissions.Config{
			UseLegacyAdminTables: cfg.Spreadsheet.UseLegacyAdminTables,
			AdminToken:           "admin",
			ReceiverToken:        "receiver",
		},
		sheet, legacy,
		permissions.TextPermissions{},
		permissions.CallbackPermissions{
			"wo_approve:": {AdminOnly: true},
			"wo_edit:":    {AdminOnly: true},
			"wo_reject:":  {AdminOnly: true},
		},
	)

	cooldowns := bot.NewCooldownLedger()

	// workflows
	authWF := workflows.NewAuthorisation(employees, ttlCache)
	writeoffWF := workflows.NewWriteoff(writeoffRepo, posClient, notifiers)
	invoiceWF := workflows.NewInvoice(invoiceTemplates, treeResolver, posClient)
	_ = workflows.NewProductRequests(productRequests, invoiceWF, notifiers)
	_ = workflows.NewOCR(newUnconfiguredOCRExtractor(), ocrDocs)
	transferWF := workflows.NewNegativeConsumableTransfer(posClient, syncLogs, transferNotifications, workflows.TransferConfig{
		GroupBy:        cfg.Transfer.GroupBy,
		TopParent:      cfg.Transfer.TopParent,
		SourcePrefix:   cfg.Transfer.SourcePrefix,
		TargetPrefixes: cfg.Transfer.TargetPrefixes,
		ProductID:      cfg.Transfer.ProductID,
	}, clock)

	// webhook intake + stop-list debounce
	dispatcher := webhook.NewDispatcher(cloudClient)
	fetch := stoplistFetcher(cloudClient, cfg.Cloud.TerminalGroupID)
	pinnedNotifier := webhook.NewPinnedNotifier(stoplistRepo, pinnedRepo, notifiers, tg)
	debouncer := webhook.NewDebouncer(stoplistRepo, fetch, pinnedNotifier)
	dispatcher.On("StopListUpdate", func(e webhook.Event) error {
		debouncer.Trigger(ctx)
		return nil
	})

	// bot handlers (representative subset, see handlers.go)
	registerBotHandlers(botWiring{
		tg:        tg,
		perms:     resolver,
		nav:       bot.NavigationButtons{"🏠 Главное меню": true, "⬅️ Назад": true},
		sessions:  sessions,
		cooldowns: cooldowns,
		auth:      authWF,
		writeoff:  writeoffWF,
		employees: employees,
	})

	// scheduler
	sched := scheduler.New(clock, runRecorder)
	jobs := []scheduler.Job{
		{
			Name: "daily_sync",
			Spec: "0 7 * * *",
			Run:  dailySyncJob(pg, posClient, financeClient, refs, financeMirror, syncLogs, locker, clock, notifiers),
		},
		{
			Name: "evening_stoplist_report",
			Spec: "0 22 * * *",
			Run:  eveningStoplistReport(pg, notifiers),
		},
		{
			Name: "negative_consumable_transfer",
			Spec: "0 23 * * *",
			Run:  transferWF.Run,
		},
	}
	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to register scheduled job %s: %w", job.Name, err)
		}
	}

	// operator HTTP surface
	var tokenService *api.TokenService
	if cfg.Server.OperatorTokenSecret != "" {
		tokenService = api.NewTokenService(cfg.Server.OperatorTokenSecret, 24*time.Hour)
	}
	state := newAppState(syncLogs, stoplistRepo)
	server := api.New(api.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, dispatcher, state, tokenService)

	return &App{
		cfg:       cfg,
		pg:        pg,
		cacheRepo: cacheRepo,
		server:    server,
		tg:        tg,
		scheduler: sched,
	}, nil
}

func (a *App) run(ctx context.Context) error {
	go a.tg.Run(ctx)

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
		if err := a.server.Start(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			common.Logger.WithFields(common.ErrorFields(err, "http_server")).Error("http server exited unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

// dailySyncJob runs the 07:00 chain: entity, POS, and finance mirror sync,
// followed by the per-store stock balance refresh and a below-minimum
// stock alert pass — in that order, since the latter two both depend on
// the entity sync's store list being current.
func dailySyncJob(
	pg *db.PostgresDB,
	posClient *pos.Client,
	financeClient *finance.Client,
	refs repository.ReferenceRepository,
	financeMirror repository.FinanceMirrorRepository,
	syncLogs repository.SyncLogRepository,
	locker syncpkg.Locker,
	clock *common.Clock,
	notifier interface {
		NotifyAdminsText(ctx context.Context, summary string) error
	},
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := syncpkg.SyncAllEntity(ctx, pg, entityReconcilerBuilder(posClient, locker, syncLogs, clock)); err != nil {
			return fmt.Errorf("entity sync failed: %w", err)
		}

		posReconcilers := buildPosReconcilers(posClient, refs, locker, syncLogs, clock)
		if errs := syncpkg.SyncAllPos(ctx, posReconcilers); len(errs) > 0 {
			return fmt.Errorf("pos sync failed: %v", errs)
		}

		financeReconcilers := buildFinanceReconcilers(financeClient, financeMirror, locker, syncLogs, clock)
		if errs := syncpkg.SyncAllFinance(ctx, financeReconcilers); len(errs) > 0 {
			return fmt.Errorf("finance sync failed: %v", errs)
		}

		if err := syncStockBalances(ctx, posClient, refs); err != nil {
			return err
		}

		stores, err := refs.ListEntities(ctx, "store")
		if err != nil {
			return fmt.Errorf("failed to list stores for min-stock alerts: %w", err)
		}
		return minStockAlerts(ctx, refs, stores, notifier)
	}
}
