// Package engine is the unified entry point for running untrusted code. It
// detects the language when asked to, consults the risk analyzer, and
// dispatches approved snippets to the matching runtime.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/virelia/sandrun/internal/metrics"
	"github.com/virelia/sandrun/internal/risk"
	"github.com/virelia/sandrun/internal/runtime"
)

// LanguageAuto asks the engine to detect the language from the source.
const LanguageAuto = "auto"

var (
	// ErrNoRuntimes means the engine was built without any runtime.
	ErrNoRuntimes = errors.New("engine: no runtimes registered")
	// ErrUnsupportedLanguage means the request named a language no
	// registered runtime handles.
	ErrUnsupportedLanguage = errors.New("engine: unsupported language")
)

// CodeRequest describes one snippet to run.
type CodeRequest struct {
	Source string
	// Language selects a runtime by name; empty or "auto" enables
	// detection.
	Language string
	// Timeout is the hard deadline; zero selects the runtime default.
	Timeout time.Duration
	// Bindings are read-only input values exposed to the snippet.
	Bindings map[string]any
}

// Engine dispatches code requests. It holds no state between calls; every
// Run is independent.
type Engine struct {
	analyzer *risk.Analyzer
	runtimes map[string]runtime.Runtime
	// order records registration order for detection tie-breaking.
	order   []string
	metrics *metrics.Collector
	logger  *zap.Logger
}

// New creates an engine around the given analyzer. metrics may be nil.
func New(analyzer *risk.Analyzer, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		analyzer: analyzer,
		runtimes: make(map[string]runtime.Runtime),
		metrics:  collector,
		logger:   logger,
	}
}

// Register adds a runtime. Registering a language twice replaces the
// earlier runtime but keeps its detection priority.
func (e *Engine) Register(rt runtime.Runtime) {
	lang := rt.Language()
	if _, exists := e.runtimes[lang]; !exists {
		e.order = append(e.order, lang)
	}
	e.runtimes[lang] = rt
}

// Languages returns the registered language names in registration order.
func (e *Engine) Languages() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Run executes one request: detect language if asked, gate on the risk
// analyzer, then dispatch. A blocked verdict produces a blocked result and
// the runtime is never invoked.
func (e *Engine) Run(ctx context.Context, req CodeRequest) (runtime.Result, error) {
	if len(e.order) == 0 {
		return runtime.Result{}, ErrNoRuntimes
	}

	runID := xid.New().String()
	log := e.logger.With(zap.String("run_id", runID))

	lang := req.Language
	if lang == "" || lang == LanguageAuto {
		lang = detect(req.Source, e.order)
		log.Debug("language detected", zap.String("language", lang))
	}

	rt, ok := e.runtimes[lang]
	if !ok {
		return runtime.Result{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	verdict := e.analyzer.Check(req.Source, lang)
	if verdict.Blocked {
		log.Info("snippet blocked",
			zap.String("language", lang),
			zap.Strings("reasons", verdict.Reasons),
			zap.Float64("score", verdict.Score))
		e.metrics.IncRiskBlock(lang)
		return runtime.Result{
			Status:      runtime.StatusBlocked,
			Language:    lang,
			ErrorDetail: strings.Join(verdict.Reasons, "; "),
		}, nil
	}

	res, err := rt.Execute(ctx, req.Source, req.Timeout, req.Bindings)
	if err != nil {
		log.Error("runtime fault", zap.String("language", lang), zap.Error(err))
		return runtime.Result{}, err
	}
	res.Language = lang

	e.metrics.ObserveExecution(lang, string(res.Status), res.Duration)
	log.Debug("run finished",
		zap.String("language", lang),
		zap.String("status", string(res.Status)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// Evaluator is implemented by runtimes with an expression-only mode.
type Evaluator interface {
	Eval(ctx context.Context, expr string) (runtime.Result, error)
}

// Eval evaluates a single expression in the named language under the
// tighter expression budget. The expression still passes through the risk
// analyzer first.
func (e *Engine) Eval(ctx context.Context, lang, expr string) (runtime.Result, error) {
	rt, ok := e.runtimes[lang]
	if !ok {
		return runtime.Result{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	ev, ok := rt.(Evaluator)
	if !ok {
		return runtime.Result{}, fmt.Errorf("%w: %q has no expression mode", ErrUnsupportedLanguage, lang)
	}

	// Analyze the expression as the statement it will run as; a bare
	// expression is not a valid chunk on its own in every language.
	verdict := e.analyzer.Check("return ("+strings.TrimSpace(expr)+")", lang)
	if verdict.Blocked {
		e.metrics.IncRiskBlock(lang)
		return runtime.Result{
			Status:      runtime.StatusBlocked,
			Language:    lang,
			ErrorDetail: strings.Join(verdict.Reasons, "; "),
		}, nil
	}

	res, err := ev.Eval(ctx, expr)
	if err != nil {
		return runtime.Result{}, err
	}
	res.Language = lang
	e.metrics.ObserveExecution(lang, string(res.Status), res.Duration)
	return res, nil
}
