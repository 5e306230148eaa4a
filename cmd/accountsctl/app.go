package main

import (
	"context"
	"strings"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/authz"
	"github.com/goliatone/go-accounts/internal/config"
	"github.com/goliatone/go-accounts/memstore"
	"github.com/goliatone/go-accounts/notify"
	"github.com/goliatone/go-accounts/redistokens"
	"github.com/goliatone/go-accounts/repository"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

type App struct {
	config   *config.Config
	logger   *glog.BaseLogger
	db       *bun.DB
	redis    *redis.Client
	store    accounts.Store
	tokens   accounts.TokenRepository
	notifier accounts.Notifier
	mailer   *notify.EmailNotifier
	manager  *accounts.Manager
	authz    *authz.Authorizer
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) Close() {
	if a.mailer != nil {
		a.mailer.Wait()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func newLogger(cfg config.LogConfig) *glog.BaseLogger {
	level := glog.Info
	switch strings.ToLower(cfg.Level) {
	case "trace", "debug":
		level = glog.Trace
	}

	if cfg.Pretty {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(level),
			glog.WithName("accountsctl"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLevel(level),
		glog.WithName("accountsctl"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func newApp(ctx context.Context, opts config.Options) (*App, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, err
	}

	app := &App{
		config: cfg,
		logger: newLogger(cfg.Log),
	}

	steps := []func(context.Context, *App) error{
		WithStorage,
		WithTokenStore,
		WithNotifier,
		WithManager,
	}
	for _, step := range steps {
		if err := step(ctx, app); err != nil {
			app.Close()
			return nil, err
		}
	}

	app.authz = authz.New(authz.DefaultPolicy())
	return app, nil
}

func WithStorage(_ context.Context, app *App) error {
	cfg := app.config.Database
	if cfg.Driver == "memory" {
		app.GetLogger("storage").Warn("using in memory storage, state is lost on exit")
		app.store = memstore.New()
		return nil
	}

	db, err := repository.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}
	app.db = db
	app.store = repository.NewStore(db)
	return nil
}

func WithTokenStore(ctx context.Context, app *App) error {
	cfg := app.config.Redis
	if !cfg.Enabled() {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return errors.Wrap(err, errors.CategoryInternal, "failed to reach redis at "+cfg.Addr)
	}

	app.redis = client
	app.tokens = redistokens.New(client, redistokens.WithPrefix(cfg.Prefix))
	app.GetLogger("storage").Info("verification tokens stored in redis", "addr", cfg.Addr)
	return nil
}

func WithNotifier(_ context.Context, app *App) error {
	cfg := app.config.Mail
	logger := app.GetLogger("notify")

	var mailer notify.Mailer
	switch cfg.Provider {
	case "mailgun":
		mailer = notify.NewMailgunMailer(cfg.Mailgun.Domain, cfg.Mailgun.APIKey, cfg.Mailgun.APIBase)
	case "smtp":
		mailer = notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	}

	activity := accounts.NewActivityNotifier(accounts.ActivitySinkFunc(app.recordActivity), logger)

	if mailer == nil {
		app.notifier = accounts.NewMultiNotifier(notify.NewLogNotifier(logger, true), activity)
		return nil
	}

	email, err := notify.NewEmailNotifier(mailer, cfg.From,
		notify.WithBaseURL(cfg.BaseURL),
		notify.WithEmailLogger(logger),
		notify.WithAsync(cfg.Async),
	)
	if err != nil {
		return err
	}
	app.mailer = email
	app.notifier = accounts.NewMultiNotifier(email, notify.NewLogNotifier(logger, false), activity)
	return nil
}

func WithManager(_ context.Context, app *App) error {
	sec := app.config.Security
	ttl := app.config.Tokens

	policyOpts := []accounts.CredentialPolicyOption{}
	if sec.BcryptCost > 0 {
		policyOpts = append(policyOpts, accounts.WithHashCost(sec.BcryptCost))
	}
	if sec.PasswordComplexity {
		policyOpts = append(policyOpts, accounts.WithPasswordRules(accounts.ComplexityRules()...))
	}

	opts := []accounts.ManagerOption{
		accounts.WithLogger(app.GetLogger("accounts")),
		accounts.WithNotifier(app.notifier),
		accounts.WithActivitySink(accounts.ActivitySinkFunc(app.recordActivity)),
		accounts.WithCredentialPolicy(accounts.NewCredentialPolicy(policyOpts...)),
		accounts.WithTokenTTL(accounts.TokenPurposeRegistration, ttl.RegistrationTTL),
		accounts.WithTokenTTL(accounts.TokenPurposePasswordReset, ttl.PasswordResetTTL),
		accounts.WithTokenTTL(accounts.TokenPurposeEmailChange, ttl.EmailChangeTTL),
		accounts.WithTokenTTL(accounts.TokenPurposeAccountUnblock, ttl.UnblockTTL),
		accounts.WithHashedIDs(sec.HashedIDs),
		accounts.WithUnblockTokenOnLockout(sec.UnblockOnLockout),
		accounts.WithOperationTimeout(sec.OperationTimeout),
	}
	if app.tokens != nil {
		opts = append(opts, accounts.WithTokenRepository(app.tokens))
	}

	app.manager = accounts.NewManager(app.store, opts...)
	return nil
}

func (a *App) recordActivity(_ context.Context, event accounts.ActivityEvent) error {
	record := activitymap.Normalize(event, activitymap.WithDefaultChannel("accountsctl"))
	a.GetLogger("activity").Info(record.Verb,
		"actor", record.ActorID,
		"object", record.ObjectType+":"+record.ObjectID,
		"at", record.OccurredAt,
		"metadata", record.Metadata,
	)
	return nil
}

// caller resolves --as. An empty login is the local operator and skips authorization.
func (a *App) caller(ctx context.Context, login string) (*authz.Caller, error) {
	if login == "" {
		return nil, nil
	}
	account, err := a.manager.FindAccount(ctx, login)
	if err != nil {
		return nil, err
	}
	caller := authz.CallerFromAccount(a.manager.AccessLevels(), account)
	return &caller, nil
}

func (a *App) authorize(ctx context.Context, as string, op authz.Operation, target authz.Target) error {
	caller, err := a.caller(ctx, as)
	if err != nil {
		return err
	}
	if caller == nil {
		return nil
	}
	return a.authz.Authorize(ctx, *caller, op, target)
}

// write runs fn with the configured conflict retries.
func (a *App) write(ctx context.Context, fn func(ctx context.Context) error) error {
	return accounts.RetryOnConflict(ctx, a.config.Security.RetryAttempts, fn)
}
