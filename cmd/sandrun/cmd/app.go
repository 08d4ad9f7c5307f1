package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/virelia/sandrun/internal/config"
	"github.com/virelia/sandrun/internal/engine"
	"github.com/virelia/sandrun/internal/metrics"
	"github.com/virelia/sandrun/internal/risk"
	"github.com/virelia/sandrun/internal/runtime"
	"github.com/virelia/sandrun/internal/sandbox"
	"github.com/virelia/sandrun/internal/tools"
)

// app bundles the wired components behind one Close.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector
	engine    *engine.Engine
	registry  *tools.Registry
	executor  *tools.Executor

	pools []*sandbox.Pool
}

// buildApp loads configuration and wires every component against the
// default prometheus registerer.
func buildApp() (*app, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, nil)
}

// newApp wires every component from cfg. Docker-backed runtimes are skipped
// with a warning when the daemon is unreachable, so the in-process runtimes
// keep working without it.
func newApp(cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.collector = metrics.NewCollector("sandrun", reg)

	analyzer := risk.NewAnalyzer(risk.Config{
		AllowedImports: cfg.Risk.AllowedImports,
		MaxLines:       cfg.Risk.MaxLines,
		MaxNesting:     cfg.Risk.MaxNesting,
	}, logger)

	a.engine = engine.New(analyzer, a.collector, logger)

	dockerUp := cfg.Sandbox.Enabled && dockerReachable(logger)
	outputLimit := cfg.Runtime.OutputLimitBytes

	for _, lang := range cfg.Runtime.Languages {
		switch lang {
		case "python":
			if !dockerUp {
				logger.Warn("python runtime disabled, docker unavailable")
				continue
			}
			pool := a.newPool(cfg.Sandbox.PythonImage)
			a.engine.Register(runtime.NewPythonRuntime(pool, outputLimit, logger))
		case "javascript":
			if !dockerUp {
				logger.Warn("javascript runtime disabled, docker unavailable")
				continue
			}
			pool := a.newPool(cfg.Sandbox.NodeImage)
			a.engine.Register(runtime.NewNodeRuntime(pool, outputLimit, logger))
		case "lua":
			a.engine.Register(runtime.NewLuaRuntime(outputLimit, logger))
		case "shell":
			var pool *sandbox.Pool
			if dockerUp {
				pool = a.newPool(cfg.Sandbox.ShellImage)
			}
			local := sandbox.NewLocalExecutor("", logger)
			a.engine.Register(runtime.NewShellRuntime(pool, local, cfg.Runtime.ShellCommands, outputLimit, logger))
		default:
			return nil, fmt.Errorf("unknown language %q in runtime.languages", lang)
		}
	}
	if len(a.engine.Languages()) == 0 {
		return nil, fmt.Errorf("no runtimes available")
	}

	a.registry = tools.NewRegistry(logger)
	tools.RegisterBuiltins(a.registry, a.engine)
	a.executor = tools.NewExecutor(a.registry, logger,
		tools.WithCacheTTL(cfg.CacheTTL()),
		tools.WithBatchParallelism(cfg.Tools.BatchParallelism),
		tools.WithMetrics(a.collector),
	)

	return a, nil
}

func (a *app) newPool(image string) *sandbox.Pool {
	sbCfg := sandbox.DefaultConfig().WithImage(image)
	sbCfg.MemoryMB = a.cfg.Sandbox.MemoryMB
	sbCfg.CPUPercent = a.cfg.Sandbox.CPUPercent
	sbCfg.MaxProcesses = a.cfg.Sandbox.MaxProcesses

	pool := sandbox.NewPool(sbCfg, a.cfg.Sandbox.PoolSize, a.logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := pool.Warmup(ctx, a.cfg.Sandbox.PoolSize); err != nil {
		// A cold pool still works, runs just pay the container start.
		a.logger.Warn("sandbox warmup incomplete",
			zap.String("image", image), zap.Error(err))
	}

	a.pools = append(a.pools, pool)
	return pool
}

// Close tears down the container pools and flushes the logger.
func (a *app) Close() {
	for _, pool := range a.pools {
		pool.Close()
	}
	_ = a.logger.Sync()
}

// dockerReachable probes the daemon with a short deadline.
func dockerReachable(logger *zap.Logger) bool {
	probe, err := sandbox.New(sandbox.DefaultConfig(), logger)
	if err != nil {
		return false
	}
	defer probe.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return probe.Ping(ctx) == nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zapCfg.Level = level
	return zapCfg.Build()
}
