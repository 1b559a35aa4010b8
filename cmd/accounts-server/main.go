package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/mailer"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
)

type App struct {
	config *config.AppConfig
	logger *glog.BaseLogger
	db     *bun.DB
	repo   accounts.RepositoryManager
	srv    router.Server[*fiber.App]
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("accounts"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Server.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(cfg.Server))
		fmt.Println("============")
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithSentry(app); err != nil {
		app.GetLogger("sentry").Error("sentry init failed", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := WithPersistence(ctx, app); err != nil {
		app.GetLogger("persistence").Error("persistence setup failed", "error", err)
		os.Exit(1)
	}
	defer app.db.Close()

	if err := WithHTTPServer(app); err != nil {
		app.GetLogger("http").Error("http setup failed", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := app.srv.Serve(cfg.Server.Address); err != nil {
			app.GetLogger("http").Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("http").Error("shutdown failed", "error", err)
	}
}

func WithSentry(app *App) error {
	if app.config.Sentry.DSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              app.config.Sentry.DSN,
		Environment:      app.config.Sentry.Environment,
		AttachStacktrace: true,
	})
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := accounts.OpenDatabase(app.config.Database.Driver, app.config.Database.DSN)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	if app.config.Database.Migrate {
		if err := accounts.Migrate(ctx, db); err != nil {
			db.Close()
			return err
		}
	}

	app.db = db
	app.repo = accounts.NewRepositoryManager(db)
	app.repo.MustValidate()

	return nil
}

func WithNotifier(app *App) (accounts.Notifier, error) {
	var sender mailer.Sender
	switch app.config.Mail.Driver {
	case "smtp":
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     app.config.Mail.Host,
			Port:     app.config.Mail.Port,
			Username: app.config.Mail.Username,
			Password: app.config.Mail.Password,
			From:     app.config.Mail.From,
		})
	default:
		sender = mailer.LogSender{Logger: app.GetLogger("mail")}
	}

	return mailer.New(sender, app.config.BaseURL,
		mailer.WithLogger(app.GetLogger("mailer")),
		mailer.WithVerificationTTL(app.config.Auth.VerificationTokenTTL),
	)
}

func WithHTTPServer(app *App) error {
	notifier, err := WithNotifier(app)
	if err != nil {
		return err
	}

	accountsCfg := app.config.AccountsConfig()

	service := accounts.NewAccountService(accountsCfg, app.repo,
		accounts.WithServiceLogger(app.GetLogger("accounts")),
		accounts.WithNotifier(notifier),
		accounts.WithActivitySink(accounts.LoggerActivitySink{Logger: app.GetLogger("activity")}),
	)

	errorHandler := accounts.NewErrorHandler(app.GetLogger("http"), func(c router.Context, err error) {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("method", c.Method())
			scope.SetTag("path", c.Path())
			sentry.CaptureException(err)
		})
	})

	app.srv = router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:       "go-accounts",
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	app.srv.Router().WithLogger(app.GetLogger("router"))

	controller := accounts.NewHTTPController(service, accountsCfg.GetBaseURL(),
		accounts.WithControllerDebug(app.config.Server.Debug),
		accounts.WithControllerLogger(app.GetLogger("controller")),
		accounts.WithControllerErrorHandler(errorHandler),
		accounts.WithHealthCheck(func(ctx context.Context) error {
			return app.db.PingContext(ctx)
		}),
	)
	accounts.RegisterAccountRoutes(app.srv.Router(), controller)

	return nil
}
