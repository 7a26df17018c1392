// Package app wires every component into one running process: the
// Definition Store, Variable Mapper, Driver Registry, Expression Host,
// Metric Buffer/Updater, History Log, Webhook Fanout, Definition
// Synchroniser, Collector Config Emitter, and the HTTP admin surface.
//
// Wiring order and shutdown sequencing follow the teacher's own top-level
// wiring (cmd/ariadne-server/main.go): open storage first, build the
// components that depend on it, start background loops last, and tear
// down in reverse.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"wavectl/internal/app/httpapi"
	"wavectl/internal/collector"
	"wavectl/internal/config"
	"wavectl/internal/drivers"
	"wavectl/internal/expr"
	"wavectl/internal/history"
	"wavectl/internal/metricbuffer"
	"wavectl/internal/metricupdater"
	"wavectl/internal/scheduler"
	"wavectl/internal/store"
	synchroniser "wavectl/internal/sync"
	"wavectl/internal/telemetry/logging"
	"wavectl/internal/telemetry/metrics"
	"wavectl/internal/varmap"
	"wavectl/internal/webhook"
)

// App owns every long-lived component and the background goroutines that
// drive them.
type App struct {
	cfg *config.AppConfig
	log logging.Logger

	store      *store.Store
	varmapper  *varmap.Mapper
	registry   *drivers.Registry
	buffer     *metricbuffer.Buffer
	updater    *metricupdater.Updater
	history    *history.Log
	webhooks   *webhook.Fanout
	collectors *collector.Supervisor
	sync       *synchroniser.Synchroniser
	metricsP   metrics.Provider
	metricsH   http.Handler
	tracerP    *sdktrace.TracerProvider

	httpServer *http.Server
}

// New loads configuration from configPath and constructs every component.
// It does not start any background loop; call Run for that.
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.Observ.LogLevel))
	base := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	log := logging.New(base)

	st, err := store.Open(ctx, cfg.Store.DBURL, log)
	if err != nil {
		return nil, err
	}
	if cfg.Store.ResetDefinitionsOnStartup {
		if err := st.ResetDefinitions(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	varmapper, err := varmap.New(cfg.Variables.Dir, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := varmapper.WatchReload(); err != nil {
		log.WarnCtx(ctx, "app: variable hot reload unavailable", "error", err)
	}

	registry := drivers.NewRegistry()

	buffer := metricbuffer.New(metricbuffer.Config{
		BudgetBytes:    cfg.MetricBuf.BudgetBytes,
		PersistEnabled: cfg.MetricBuf.PersistEnabled,
	}, st, base)

	histLog, err := history.New(ctx, st.DB(), st.Driver(), log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fanout := webhook.New(log, 0)

	ingestURL := fmt.Sprintf("http://127.0.0.1:%d/api/metrics-receiver", cfg.Server.Port)
	collectors := collector.New(collector.Config{
		BinDir:       cfg.Collectors.BinDir,
		ConfigDir:    cfg.Collectors.ConfigDir,
		IngestURL:    ingestURL,
		DownloadURLs: cfg.Collectors.DownloadURLs,
	}, log)

	var metricsP metrics.Provider
	var metricsH http.Handler
	if cfg.Observ.MetricsEnabled {
		metricsP, metricsH = metrics.NewProvider(cfg.Observ.MetricsBackend)
	}

	// A real TracerProvider gives logging's trace/span correlation
	// (internal/telemetry/logging) something to correlate: every scheduler
	// dispatch starts a span under it when tracing is enabled. Left
	// exporter-less, same as the metrics bridge, until a deployment
	// attaches one.
	var tracerP *sdktrace.TracerProvider
	if cfg.Observ.TracingEnabled {
		tracerP = sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tracerP)
	}

	// The Metric Updater reads whatever metric id set the Definition
	// Synchroniser's most recent rebuild observed, but the synchroniser
	// itself holds a reference to the updater (to call Refresh on
	// rebuild) — a genuine circular dependency. scRef breaks the cycle:
	// the updater's MetricIDsFunc closes over it and only dereferences
	// it after New returns below.
	var scRef *synchroniser.Synchroniser
	updater := metricupdater.New(buffer, func() []string {
		if scRef == nil {
			return nil
		}
		return scRef.MetricIDs()
	}, log)

	// E reads through I's decoupled snapshot rather than the Metric Buffer
	// directly, so every get()/getValues() call — and therefore every plan
	// tick — actually exercises the Metric Updater instead of bypassing it.
	exprHost := expr.New(updater)

	schedDeps := scheduler.Deps{
		Expr:     exprHost,
		Drivers:  registry,
		History:  histLog,
		Notifier: fanout,
		Mapper:   varmapper,
		Metrics:  updater,
		Log:      log,
	}
	sc := synchroniser.New(st, registry, updater, synchroniser.SchedulerDeps{
		Deps:     schedDeps,
		Interval: scheduler.DefaultInterval,
	}, log)
	scRef = sc

	a := &App{
		cfg:        cfg,
		log:        log,
		store:      st,
		varmapper:  varmapper,
		registry:   registry,
		buffer:     buffer,
		updater:    updater,
		history:    histLog,
		webhooks:   fanout,
		collectors: collectors,
		sync:       sc,
		metricsP:   metricsP,
		metricsH:   metricsH,
		tracerP:    tracerP,
	}
	return a, nil
}

// Run starts every background loop (definition sync, metric updater,
// collector sync, hourly history sweep, HTTP server) and blocks until ctx is cancelled or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	go a.sync.Run(ctx, a.cfg.Sync.WatchInterval())
	go a.updater.Run(ctx, time.Duration(metricupdaterIntervalSeconds)*time.Second)
	go a.runCollectorSync(ctx)
	go func() {
		retention, _ := a.cfg.History.Retention()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.history.Sweep(ctx, retention); err != nil {
					a.log.WarnCtx(ctx, "app: history sweep failed", "error", err)
				}
			}
		}
	}()

	router := httpapi.New(a.store, a.buffer, a.log).Router(a.metricsH)

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	a.httpServer = &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		a.log.InfoCtx(ctx, "app: http server listening", "addr", addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// metricupdaterIntervalSeconds is the Metric Updater's refresh cadence.
const metricupdaterIntervalSeconds = 15

// runCollectorSync keeps the Collector Config Emitter's running processes
// in step with the enabled metric set, polling at the same cadence as the
// Definition Synchroniser's store watch.
func (a *App) runCollectorSync(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Sync.WatchInterval())
	defer ticker.Stop()
	for {
		metrics, err := a.store.GetEnabledMetrics(ctx)
		if err != nil {
			a.log.WarnCtx(ctx, "app: collector sync fetch failed", "error", err)
		} else if err := a.collectors.Sync(ctx, metrics); err != nil {
			a.log.WarnCtx(ctx, "app: collector sync failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Shutdown tears down every component in the reverse order Run started
// them, giving the HTTP server up to 10s to drain in-flight requests.
func (a *App) Shutdown(ctx context.Context) {
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.WarnCtx(ctx, "app: http server shutdown error", "error", err)
		}
	}
	a.collectors.StopAll()
	a.buffer.Close()
	_ = a.varmapper.Close()
	if otelP, ok := a.metricsP.(*metrics.OTelProvider); ok {
		if err := otelP.Shutdown(ctx); err != nil {
			a.log.WarnCtx(ctx, "app: otel metrics shutdown error", "error", err)
		}
	}
	if a.tracerP != nil {
		if err := a.tracerP.Shutdown(ctx); err != nil {
			a.log.WarnCtx(ctx, "app: otel tracer shutdown error", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.WarnCtx(ctx, "app: store close error", "error", err)
	}
}
