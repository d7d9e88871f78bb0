// Package gateway provides the HTTP surface of the companion runtime:
// health and metrics, save-file download and import, and memory recall.
// It binds to loopback by default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/core"
	"github.com/flemzord/utsuwa/internal/cron"
	"github.com/flemzord/utsuwa/internal/embedding"
	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/savefile"
	"github.com/flemzord/utsuwa/internal/security"
	"github.com/flemzord/utsuwa/internal/store"
	"github.com/flemzord/utsuwa/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// ModuleID is the id under which the gateway registers.
const ModuleID core.ModuleID = "gateway.http"

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Gateway is the HTTP gateway module. It is a leaf module: nothing
// imports it, and every service it serves is optional.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	now       func() time.Time

	// Resolved lazily at Start() via service registry.
	store     store.Store
	embedder  *embedding.Service
	live      *companion.Live
	codec     *savefile.Codec
	migrator  *savefile.Migrator
	recaller  *memory.Recaller
	scheduler *cron.Scheduler
	metrics   *telemetry.Metrics
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.now = time.Now

	if r, err := core.ServiceAs[*security.Redactor](ctx, security.RedactorService); err == nil {
		r.AddLiteral(g.config.Auth.BearerToken)
		r.AddLiteral(g.config.Auth.BasicPass)
	}
	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway: no auth configured, admin endpoints disabled")
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.bind()
	g.startedAt = g.now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// bind resolves optional services. Missing ones disable their endpoints.
func (g *Gateway) bind() {
	g.store = lookup[store.Store](g.appCtx, store.ServiceName)
	g.embedder = lookup[*embedding.Service](g.appCtx, embedding.ServiceName)
	g.live = lookup[*companion.Live](g.appCtx, companion.LiveService)
	g.codec = lookup[*savefile.Codec](g.appCtx, savefile.CodecService)
	g.migrator = lookup[*savefile.Migrator](g.appCtx, savefile.MigratorService)
	g.recaller = lookup[*memory.Recaller](g.appCtx, memory.RecallerService)
	g.scheduler = lookup[*cron.Scheduler](g.appCtx, cron.SchedulerService)
	g.metrics = lookup[*telemetry.Metrics](g.appCtx, telemetry.ServiceName)
}

func lookup[T any](ctx *core.AppContext, name string) T {
	svc, _ := core.ServiceAs[T](ctx, name)
	return svc
}
