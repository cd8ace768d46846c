// Package cli is the terminal front-end of the Whispr client. It wires
// configuration, storage, the session and the remote API into cobra
// commands and prints results as text, JSON or YAML.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"whispr/internal/api"
	"whispr/internal/config"
	"whispr/internal/media"
	"whispr/internal/notify"
	"whispr/internal/observability"
	"whispr/internal/session"
	"whispr/internal/storage"
)

// Options are the process-level inputs of the CLI. Zero values mean the
// real terminal and the configured storage driver.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Store replaces the configured storage driver. The CLI does not close it.
	Store storage.Store
	// HTTPClient is used for backend and CDN calls.
	HTTPClient *http.Client
	Version    string
}

func (o Options) withDefaults() Options {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	return o
}

// App is one bootstrapped client: everything a command needs.
type App struct {
	cfg      *config.Config
	logger   *observability.Logger
	store    storage.Store
	jar      *api.PersistentJar
	client   *api.Client
	session  *session.Store
	auth     *session.Auth
	uploader *media.Uploader
	notifier notify.Notifier

	ownsStore bool
	shutdown  func(context.Context) error
}

// bootstrap builds an App: config, logging and tracing, storage, the
// cookie jar and API client, then the session store.
func bootstrap(ctx context.Context, opts Options, configFile, apiURL string) (*App, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIBaseURL = apiURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := observability.InitLogging(observability.LogOptions{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: opts.Stderr,
	})

	tc := cfg.TracingConfig(opts.Version)
	tc.Output = opts.Stderr
	shutdown, err := observability.InitTracing(tc)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, shutdown: shutdown}
	a.notifier = notify.Multi{
		NewTerminalNotifier(opts.Stderr),
		notify.LogNotifier{Logger: logger},
	}

	a.store = opts.Store
	if a.store == nil {
		a.store, err = storage.Open(ctx, storage.Options{
			Driver:     cfg.StorageDriver,
			Dir:        cfg.StorageDir,
			RedisURL:   cfg.RedisURL,
			SQLDialect: cfg.SQLDialect,
			SQLDSN:     cfg.SQLDSN,
			BadgerDir:  cfg.BadgerDir,
			Logger:     logger,
		})
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.ownsStore = true
	}

	a.jar, err = api.NewPersistentJar(ctx, a.store, cfg.CookieKey, cfg.APIBaseURL, logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	clientOpts := []api.Option{
		api.WithCookieJar(a.jar),
		api.WithTimeout(cfg.HTTPTimeout()),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithLogger(logger),
	}
	uploadOpts := []media.UploaderOption{media.WithUploadLogger(logger)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(opts.HTTPClient))
		uploadOpts = append(uploadOpts, media.WithUploadHTTPClient(opts.HTTPClient))
	}
	a.client, err = api.New(cfg.APIBaseURL, clientOpts...)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.uploader = media.NewUploader(cfg.UploadEndpoint(), cfg.CDNUploadPreset, uploadOpts...)

	a.session = session.New(a.store, a.client,
		session.WithKey(cfg.SessionKey),
		session.WithLogger(logger),
	)
	if err := a.session.Initialize(ctx); err != nil {
		logger.WarnContext(ctx, "session restore failed", slog.String("error", err.Error()))
	}
	a.auth = session.NewAuth(a.client, a.session, a.jar, a.notifier)
	return a, nil
}

// Close releases the session, storage and tracer.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.session != nil {
		a.session.Teardown()
	}
	if a.ownsStore && a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	return errors.Join(errs...)
}

// requireLogin fails with errNotLoggedIn when there is no session.
func (a *App) requireLogin() error {
	if !a.session.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

var errNotLoggedIn = errors.New("not logged in: run `whispr login` first")
