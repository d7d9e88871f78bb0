// Package app provides the shared runtime behind the utsuwa daemon and its
// one-shot CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/config"
	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/internal/cron"
	"github.com/flemzord/utsuwa/internal/embedding"
	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/savefile"
	"github.com/flemzord/utsuwa/internal/security"
	"github.com/flemzord/utsuwa/internal/store"
	"github.com/flemzord/utsuwa/internal/telemetry"
)

// Params configures a Runtime.
type Params struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.ResolvePath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Batch marks one-shot commands that must never load an embedding
	// model, whatever the configuration says.
	Batch bool
}

// Runtime holds every service of a running companion core.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Redactor  *security.Redactor
	Metrics   *telemetry.Metrics
	Store     store.Store
	Embedder  *embedding.Service
	Live      *companion.Live
	Codec     *savefile.Codec
	Migrator  *savefile.Migrator
	Recaller  *memory.Recaller
	Scheduler *cron.Scheduler

	app             *core.App
	started         bool
	hasModel        bool
	shutdownTracing telemetry.ShutdownFunc
}

// Open loads and validates the configuration, provisions every configured
// module and builds the services on top of them. Nothing is started: the
// daemon calls Run, one-shot commands use the services and Close.
func Open(ctx context.Context, p Params) (*Runtime, error) {
	cfgPath := p.ConfigPath
	if cfgPath == "" {
		resolved, err := config.ResolvePath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	dataDir := p.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	cfg.ApplyDefaults(dataDir)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return build(ctx, cfg, dataDir, p)
}

func build(ctx context.Context, cfg *config.Config, dataDir string, p Params) (*Runtime, error) {
	out := p.LogOutput
	if out == nil {
		out = os.Stderr
	}

	// Wrap the text handler in a redacting handler to prevent secret leakage in logs.
	redactor := security.NewRedactor()
	inner := slog.NewTextHandler(out, &slog.HandlerOptions{Level: p.LogLevel})
	logger := slog.New(security.NewRedactingHandler(inner, redactor))

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing, p.Version)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:          cfg,
		Logger:          logger,
		Redactor:        redactor,
		Metrics:         telemetry.NewMetrics(),
		shutdownTracing: shutdownTracing,
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.RedactorService, redactor)
	appCtx.RegisterService(telemetry.ServiceName, rt.Metrics)

	rt.app = core.NewApp(appCtx)
	if err := rt.app.LoadModules(config.Resolve(cfg)); err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	if err := rt.wireServices(ctx, appCtx, p); err != nil {
		rt.app.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}
	if err := rt.wireJobs(appCtx); err != nil {
		rt.app.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}
	return rt, nil
}

// wireServices builds the core services from what the modules registered
// during Provision and registers them for the gateway.
func (rt *Runtime) wireServices(ctx context.Context, appCtx *core.AppContext, p Params) error {
	cfg := rt.Config

	s, err := core.ServiceAs[store.Store](appCtx, store.ServiceName)
	if err != nil {
		rt.Logger.Warn("no store module configured, using an in-memory store")
		s = store.NewInMemoryStore()
		appCtx.RegisterService(store.ServiceName, s)
	}
	rt.Store = s

	loader, err := core.ServiceAs[embedding.Loader](appCtx, embedding.LoaderService)
	if err != nil {
		rt.Logger.Info("no embedding module configured, semantic recall disabled")
	}
	rt.hasModel = loader != nil
	rt.Embedder = embedding.NewService(loader, embedding.Options{
		Interactive: cfg.Embedding.IsInteractive() && !p.Batch,
		LoadTimeout: cfg.Embedding.LoadTimeout,
		Logger:      rt.Logger.With("component", "embedding"),
		Metrics:     rt.Metrics,
	})
	appCtx.RegisterService(embedding.ServiceName, rt.Embedder)

	rt.Live = companion.NewLive(s.Characters(), companion.WithLogger(rt.Logger))
	if err := rt.Live.Reload(ctx); err != nil {
		return fmt.Errorf("app: load character: %w", err)
	}
	appCtx.RegisterService(companion.LiveService, rt.Live)

	opts := savefile.Options{
		AppVersion: p.Version,
		Logger:     rt.Logger.With("component", "savefile"),
		Metrics:    rt.Metrics,
	}
	rt.Codec = savefile.NewCodec(s, rt.Live, opts)
	rt.Migrator = savefile.NewMigrator(s, rt.Live, opts)
	appCtx.RegisterService(savefile.CodecService, rt.Codec)
	appCtx.RegisterService(savefile.MigratorService, rt.Migrator)

	rt.Recaller = memory.NewRecaller(rt.Embedder, s.Facts(), cfg.Memory.RankOptions, rt.Logger.With("component", "memory"))
	appCtx.RegisterService(memory.RecallerService, rt.Recaller)
	return nil
}

// Recall ranks stored facts against query using the configured limit.
func (rt *Runtime) Recall(ctx context.Context, query string) ([]memory.SimilarFact, error) {
	return rt.Recaller.Recall(ctx, query, rt.Config.Memory.Limit)
}

// Close stops the modules and releases the model and the tracer. It is
// safe to call after Run returned.
func (rt *Runtime) Close(ctx context.Context) error {
	if !rt.started {
		rt.app.Close()
	}
	return errors.Join(rt.Embedder.Close(), rt.shutdownTracing(ctx))
}

// Run starts every module, the scheduler included, and blocks until ctx is
// done or a shutdown signal is received. The embedding model is warmed in
// the background so the first recall does not pay for the load.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.started = true
	if rt.hasModel {
		go rt.Embedder.Init(context.WithoutCancel(ctx))
	}
	return rt.app.Run(ctx)
}

// Run is the daemon entry point: Open, Run, Close.
func Run(ctx context.Context, p Params) error {
	rt, err := Open(ctx, p)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
			rt.Logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	rt.Logger.Info("utsuwa starting", "version", p.Version, "commit", p.Commit, "character", rt.Live.Snapshot().Name)
	return rt.Run(ctx)
}
