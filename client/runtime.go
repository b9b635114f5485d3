package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/muntasirraihan/orleans/config"
	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/health"
	"github.com/muntasirraihan/orleans/metric"
	"github.com/muntasirraihan/orleans/pkg/worker"
	"github.com/muntasirraihan/orleans/serializer"
	"github.com/muntasirraihan/orleans/stats"
	"github.com/muntasirraihan/orleans/transport"
)

// runtimeState tracks the lifecycle phase.
type runtimeState int

const (
	stateCreated runtimeState = iota
	stateStarted
	stateStopped
)

// The process-wide current-runtime slot. Start claims it under the mutex,
// Reset clears it. At most one live instance holds it between Start and
// Reset.
var (
	slotMu         sync.Mutex
	currentRuntime *Runtime
)

// Current returns the process's active runtime, or nil outside
// Start..Reset.
func Current() *Runtime {
	slotMu.Lock()
	defer slotMu.Unlock()
	return currentRuntime
}

// Runtime is one grain client runtime instance.
type Runtime struct {
	cfg             *config.ClientConfig
	logger          *slog.Logger
	metricsRegistry *metric.MetricsRegistry
	metrics         *metric.Metrics
	serializer      serializer.Serializer
	identity        *Identity
	responseTimeout time.Duration

	transport    transport.Transport
	callbacks    *callbackRegistry
	localObjects *localObjectRegistry
	pumpPool     *worker.Pool[drainTask]

	pumpCtx    context.Context
	pumpCancel context.CancelFunc
	pumpWG     sync.WaitGroup

	statsRegistry *stats.Registry
	counters      stats.CoreCounters
	statsTable    *stats.TableStatistics
	statsReporter *stats.Reporter
	statsPub      stats.Publisher

	healthMonitor *health.Monitor
	dropLimiter   *rate.Limiter

	typeMapMu sync.RWMutex
	typeMap   grain.InterfaceMap

	streamsMu   sync.Mutex
	streams     transport.StreamSubscriberTable
	streamsOnce bool

	// secondary suppresses global handler installation, for harnesses
	// hosting two clients in one process.
	secondary  bool
	prevLogger *slog.Logger

	mu       sync.Mutex
	state    runtimeState
	disposed bool
}

// Option customizes runtime construction.
type Option func(*Runtime)

// WithLogger sets the runtime's base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = logger }
}

// WithTransport substitutes the gateway transport. Tests use this to run
// against an in-memory channel.
func WithTransport(tr transport.Transport) Option {
	return func(rt *Runtime) { rt.transport = tr }
}

// WithStatisticsPublisher installs the external statistics store.
func WithStatisticsPublisher(pub stats.Publisher) Option {
	return func(rt *Runtime) { rt.statsPub = pub }
}

// AsSecondary marks this runtime as a secondary instance: global handler
// installation is suppressed, everything else behaves identically.
func AsSecondary() Option {
	return func(rt *Runtime) { rt.secondary = true }
}

// NewRuntime validates the configuration and builds a runtime. No network
// I/O happens until Start. A construction failure tears down everything
// already initialized before returning.
func NewRuntime(cfg *config.ClientConfig, opts ...Option) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Runtime", "NewRuntime", "config validation")
	}

	local := cfg.Clone()
	local.ApplyDefaults()
	if err := local.Validate(); err != nil {
		return nil, errors.WrapFatal(err, "Runtime", "NewRuntime", "config validation")
	}

	rt = &Runtime{
		cfg:         local,
		identity:    newIdentity(),
		dropLimiter: rate.NewLimiter(rate.Every(5*time.Second), 3),
	}

	defer func() {
		if err != nil {
			if rt != nil {
				rt.constructorReset()
			}
			rt = nil
		}
	}()

	for _, opt := range opts {
		opt(rt)
	}

	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	rt.logger = rt.logger.With(
		"client_guid", rt.identity.GUID.String(),
		"generation", rt.identity.Generation,
	)

	rt.metricsRegistry = metric.NewMetricsRegistry()
	rt.metrics = rt.metricsRegistry.CoreMetrics()
	rt.serializer = serializer.FromConfig(local.UseStandardSerializer)
	rt.responseTimeout = local.EffectiveResponseTimeout()

	rt.statsRegistry = stats.NewRegistry()
	rt.counters = stats.NewCoreCounters(rt.statsRegistry)

	// Provider resolution is a static registry: the configured statistics
	// provider, when present, names itself on the effective config.
	if provider, ok := local.StatisticsProvider(); ok {
		local.StatisticsProviderName = provider.Name
	}

	rt.callbacks = newCallbackRegistry(rt.responseTimeout, rt.logger, rt.metrics)
	rt.localObjects = newLocalObjectRegistry()

	rt.pumpPool = worker.NewPool(local.ObjectPumpWorkers, local.ObjectPumpQueue,
		func(ctx context.Context, task drainTask) error {
			rt.drainObject(ctx, task.data)
			return nil
		},
		worker.WithMetricsRegistry[drainTask](rt.metricsRegistry, "object_pump"),
	)

	rt.healthMonitor = health.NewMonitor(10*time.Second, rt.logger,
		health.WithChangeCallback(func(name string, healthy bool) {
			if name == "gateway" && !healthy {
				rt.counters.ConnectionLost.Increment()
			}
		}),
	)

	if rt.transport == nil {
		gateways := transport.NewGatewayManager(transport.NewStaticGatewayListProvider(local))
		tr, terr := transport.NewNATSTransport(transport.NATSTransportDeps{
			Config:          local,
			ClientGUID:      rt.identity.GUID,
			Generation:      rt.identity.Generation,
			GatewayManager:  gateways,
			MetricsRegistry: rt.metricsRegistry,
			Logger:          rt.logger,
		})
		if terr != nil {
			err = errors.Wrap(terr, "Runtime", "NewRuntime", "transport construction")
			return rt, err
		}
		rt.transport = tr
	}

	if rt.statsPub != nil {
		table, serr := stats.NewTableStatistics(stats.TableStatisticsOptions{
			DeploymentID: local.DeploymentID,
			HostName:     local.DNSHostName,
			ClientEpoch:  fmt.Sprintf("%d", -rt.identity.Generation),
			BulkCap:      local.StatisticsBulkCap,
			Registry:     rt.statsRegistry,
			Publisher:    rt.statsPub,
		})
		if serr != nil {
			err = errors.Wrap(serr, "Runtime", "NewRuntime", "statistics construction")
			return rt, err
		}
		rt.statsTable = table
		rt.statsReporter = stats.NewReporter(table, local.StatisticsWriteInterval, rt.logger)
	}

	return rt, nil
}

// constructorReset releases whatever a failed construction acquired.
func (rt *Runtime) constructorReset() {
	if rt.transport != nil {
		_ = rt.transport.Stop()
	}
}

// Identity returns the client identity.
func (rt *Runtime) Identity() *Identity {
	return rt.identity
}

// Config returns the effective, immutable configuration.
func (rt *Runtime) Config() *config.ClientConfig {
	return rt.cfg
}

// MetricsRegistry exposes the runtime's metrics registry.
func (rt *Runtime) MetricsRegistry() *metric.MetricsRegistry {
	return rt.metricsRegistry
}

// Start claims the process-wide runtime slot, brings up the transport,
// materializes the self address, starts telemetry, launches the inbound
// pump, and fetches the type-code map from the gateway.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	if rt.state == stateStarted {
		rt.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyRunning, "Runtime", "Start", "state check")
	}
	if rt.state == stateStopped || rt.disposed {
		rt.mu.Unlock()
		return errors.WrapInvalid(errors.ErrRuntimeStopped, "Runtime", "Start", "state check")
	}
	rt.mu.Unlock()

	slotMu.Lock()
	if currentRuntime != nil {
		slotMu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyRunning, "Runtime", "Start", "singleton claim")
	}
	currentRuntime = rt
	slotMu.Unlock()

	ok := false
	defer func() {
		if !ok {
			rt.teardown()
			rt.releaseSlot()
		}
	}()

	rt.installGlobalHandlers()

	if err := rt.transport.Start(ctx); err != nil {
		return errors.Wrap(err, "Runtime", "Start", "transport start")
	}

	addr, err := rt.transport.MyAddress()
	if err != nil {
		return errors.Wrap(err, "Runtime", "Start", "self address derivation")
	}
	rt.identity.bind(addr)

	// The pump lifetime is owned by the runtime, not the Start caller.
	rt.pumpCtx, rt.pumpCancel = context.WithCancel(context.Background())
	if err := rt.pumpPool.Start(rt.pumpCtx); err != nil {
		return errors.Wrap(err, "Runtime", "Start", "pump pool start")
	}
	rt.pumpWG.Add(1)
	go rt.runMessagePump(rt.pumpCtx)

	if rt.statsTable != nil {
		initCtx, cancel := context.WithTimeout(ctx, rt.cfg.TableCreationTimeout)
		err := rt.statsTable.Init(initCtx)
		cancel()
		if err != nil {
			return errors.Wrap(err, "Runtime", "Start", "statistics table init")
		}
		rt.statsReporter.Start(rt.pumpCtx)
	}

	// The type-code map blocks init; the stream subscriber table is
	// fetched alongside it but only logged on failure.
	fetchCtx, cancel := context.WithTimeout(ctx, rt.cfg.GatewayInitTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		m, err := rt.transport.GetTypeCodeMap(gctx)
		if err != nil {
			return err
		}
		rt.typeMapMu.Lock()
		rt.typeMap = m
		rt.typeMapMu.Unlock()
		return nil
	})
	g.Go(func() error {
		table, err := rt.transport.GetImplicitStreamSubscriberTable(gctx)
		if err != nil {
			rt.logger.Warn("Stream subscriber table fetch failed, deferring", "error", err)
			return nil
		}
		rt.streamsMu.Lock()
		rt.streams = table
		rt.streamsOnce = true
		rt.streamsMu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "Runtime", "Start", "type-code map fetch")
	}

	rt.healthMonitor.RegisterCheck("gateway", func(context.Context) error {
		_, err := rt.transport.MyAddress()
		return err
	})
	rt.healthMonitor.RegisterCheck("pump", func(context.Context) error {
		if rt.pumpCtx.Err() != nil {
			return errors.ErrRuntimeStopped
		}
		return nil
	})
	rt.healthMonitor.Start(rt.pumpCtx)

	rt.mu.Lock()
	rt.state = stateStarted
	rt.mu.Unlock()

	ok = true
	rt.logger.Info("Client runtime started",
		"deployment", rt.cfg.DeploymentID,
		"self_address", addr.String(),
		"interfaces", rt.TypeCodeMap().Len())
	return nil
}

// ensureRunning guards operations that require a live runtime.
func (rt *Runtime) ensureRunning(op string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	switch rt.state {
	case stateStarted:
		return nil
	case stateStopped:
		return errors.WrapInvalid(errors.ErrRuntimeStopped, "Runtime", op, "state check")
	default:
		return errors.WrapInvalid(errors.ErrNotStarted, "Runtime", op, "state check")
	}
}

// guard runs one teardown step, logging failures without aborting the
// remaining steps.
func (rt *Runtime) guard(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("Teardown step panicked", "step", step, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		rt.logger.Warn("Teardown step failed", "step", step, "error", err)
	}
}

// teardown stops everything Start brought up. Every step is independently
// guarded so one failure never prevents the rest.
func (rt *Runtime) teardown() {
	rt.mu.Lock()
	rt.state = stateStopped
	rt.mu.Unlock()

	rt.guard("pump-cancel", func() error {
		if rt.pumpCancel != nil {
			rt.pumpCancel()
		}
		rt.pumpWG.Wait()
		return nil
	})
	rt.guard("pump-pool", func() error {
		return rt.pumpPool.Stop(5 * time.Second)
	})
	rt.guard("transport-prepare", func() error {
		rt.transport.PrepareToStop()
		return nil
	})
	rt.guard("transport-stop", func() error {
		return rt.transport.Stop()
	})
	rt.guard("stats", func() error {
		if rt.statsReporter != nil {
			rt.statsReporter.Stop()
		}
		return nil
	})
	rt.guard("health", func() error {
		rt.healthMonitor.Stop()
		return nil
	})
	rt.guard("identity", func() error {
		rt.identity.unbind()
		return nil
	})
	rt.guard("global-handlers", func() error {
		rt.restoreGlobalHandlers()
		return nil
	})
}

// releaseSlot clears the singleton slot if this runtime holds it.
func (rt *Runtime) releaseSlot() {
	slotMu.Lock()
	defer slotMu.Unlock()
	if currentRuntime == rt {
		currentRuntime = nil
	}
}

// Reset signals the inbound pump to stop, tears down the transport and
// telemetry, clears the singleton slot, and restores global handlers.
// Outstanding callbacks are not cancelled; they time out naturally.
func (rt *Runtime) Reset() {
	rt.mu.Lock()
	if rt.state != stateStarted {
		rt.mu.Unlock()
		return
	}
	rt.mu.Unlock()

	rt.logger.Info("Client runtime resetting")
	rt.teardown()
	rt.releaseSlot()
	rt.logger.Info("Client runtime reset complete")
}

// Dispose releases the runtime's cancellation source. Idempotent; resets
// first if the runtime is still running.
func (rt *Runtime) Dispose() {
	rt.mu.Lock()
	if rt.disposed {
		rt.mu.Unlock()
		return
	}
	started := rt.state == stateStarted
	rt.mu.Unlock()

	if started {
		rt.Reset()
	}

	rt.mu.Lock()
	rt.disposed = true
	rt.pumpCancel = nil
	rt.pumpCtx = nil
	rt.mu.Unlock()
}

// installGlobalHandlers makes this runtime's logger the process default.
// Secondary instances skip this; the test harness owns process state.
func (rt *Runtime) installGlobalHandlers() {
	if rt.secondary {
		return
	}
	rt.prevLogger = slog.Default()
	slog.SetDefault(rt.logger)
}

// restoreGlobalHandlers undoes installGlobalHandlers.
func (rt *Runtime) restoreGlobalHandlers() {
	if rt.secondary || rt.prevLogger == nil {
		return
	}
	slog.SetDefault(rt.prevLogger)
	rt.prevLogger = nil
}

// TypeCodeMap returns the interface map fetched at Start.
func (rt *Runtime) TypeCodeMap() grain.InterfaceMap {
	rt.typeMapMu.RLock()
	defer rt.typeMapMu.RUnlock()
	return rt.typeMap
}

// StreamSubscriberTable returns the implicit stream subscriber table,
// fetching it on first use if the Start-time fetch was deferred.
func (rt *Runtime) StreamSubscriberTable(ctx context.Context) (transport.StreamSubscriberTable, error) {
	rt.streamsMu.Lock()
	defer rt.streamsMu.Unlock()
	if rt.streamsOnce {
		return rt.streams, nil
	}
	table, err := rt.transport.GetImplicitStreamSubscriberTable(ctx)
	if err != nil {
		return transport.StreamSubscriberTable{}, errors.Wrap(err,
			"Runtime", "StreamSubscriberTable", "gateway fetch")
	}
	rt.streams = table
	rt.streamsOnce = true
	return table, nil
}

// Healthy reports overall runtime health.
func (rt *Runtime) Healthy() bool {
	if err := rt.ensureRunning("Healthy"); err != nil {
		return false
	}
	return rt.healthMonitor.Healthy()
}
