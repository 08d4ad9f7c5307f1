// Package risk performs static safety analysis of untrusted code snippets.
// It never executes anything; it approves, blocks, or flags input based on
// per-language pattern analysis and an import allow-list.
package risk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Severity classifies how dangerous a finding is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// score maps a severity to its contribution to the verdict risk score.
func (s Severity) score() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.7
	case SeverityMedium:
		return 0.4
	default:
		return 0.15
	}
}

// Issue is a single finding in a snippet.
type Issue struct {
	Severity Severity
	Message  string
	// Line is the 1-based source line, 0 when the finding has no location.
	Line int
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s", i.Severity, i.Line, i.Message)
	}
	return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
}

// Verdict is the outcome of a Check call. It is produced fresh per request
// and must not be cached: the snippet text may repeat while policy evolves.
type Verdict struct {
	Blocked bool
	Reasons []string
	Score   float64
}

// Config controls the analyzer. The import allow-lists are supplied by the
// caller; absent an entry for a language, a conservative built-in default
// (arithmetic, string and collection manipulation, no I/O) applies.
type Config struct {
	// AllowedImports maps language name to additional allowed modules,
	// merged over the built-in safe set.
	AllowedImports map[string][]string

	// MaxLines flags (but does not block) snippets longer than this.
	// Default 500.
	MaxLines int

	// MaxNesting flags indentation deeper than this many levels. Default 8.
	MaxNesting int
}

// Analyzer checks code snippets for dangerous constructs.
type Analyzer struct {
	allowed    map[string]map[string]bool
	maxLines   int
	maxNesting int
	logger     *zap.Logger
}

// NewAnalyzer builds an Analyzer from cfg. A nil logger defaults to zap.NewNop.
func NewAnalyzer(cfg Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = 500
	}
	if cfg.MaxNesting <= 0 {
		cfg.MaxNesting = 8
	}

	allowed := make(map[string]map[string]bool)
	merge := func(lang string, base []string) {
		set := make(map[string]bool, len(base))
		for _, m := range base {
			set[m] = true
		}
		for _, m := range cfg.AllowedImports[lang] {
			set[m] = true
		}
		allowed[lang] = set
	}
	merge("python", safePythonImports)
	merge("javascript", safeNodeModules)
	merge("lua", safeLuaModules)

	return &Analyzer{
		allowed:    allowed,
		maxLines:   cfg.MaxLines,
		maxNesting: cfg.MaxNesting,
		logger:     logger,
	}
}

// Check analyzes source for the given language and returns a verdict.
// Unknown languages are blocked: safety cannot be verified for a grammar
// the analyzer does not understand.
func (a *Analyzer) Check(source, language string) Verdict {
	var issues []Issue

	if strings.TrimSpace(source) == "" {
		issues = append(issues, Issue{Severity: SeverityCritical, Message: "empty input"})
		return a.verdict(language, issues)
	}
	if !utf8.ValidString(source) || strings.ContainsRune(source, 0) {
		issues = append(issues, Issue{
			Severity: SeverityCritical,
			Message:  "cannot verify safety of undecodable input",
		})
		return a.verdict(language, issues)
	}

	switch language {
	case "python":
		issues = append(issues, a.checkPython(source)...)
		issues = append(issues, a.checkComplexity(source)...)
	case "javascript":
		issues = append(issues, a.checkJavaScript(source)...)
		issues = append(issues, a.checkComplexity(source)...)
	case "lua":
		issues = append(issues, a.checkLua(source)...)
		issues = append(issues, a.checkComplexity(source)...)
	case "shell":
		issues = append(issues, a.checkShell(source)...)
	default:
		issues = append(issues, Issue{
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("unsupported language %q: cannot verify safety", language),
		})
	}

	return a.verdict(language, issues)
}

// verdict folds issues into a Verdict. Any critical finding blocks; lesser
// findings are recorded as reasons and raise the score without blocking.
func (a *Analyzer) verdict(language string, issues []Issue) Verdict {
	v := Verdict{}
	for _, issue := range issues {
		v.Reasons = append(v.Reasons, issue.String())
		if issue.Severity == SeverityCritical {
			v.Blocked = true
		}
		if s := issue.Severity.score(); s > v.Score {
			v.Score = s
		}
	}
	if v.Blocked {
		a.logger.Info("snippet blocked",
			zap.String("language", language),
			zap.Strings("reasons", v.Reasons))
	}
	return v
}

// checkComplexity flags structurally suspect but permitted code: very long
// snippets and deep nesting. These never block on their own.
func (a *Analyzer) checkComplexity(source string) []Issue {
	var issues []Issue
	lines := strings.Split(source, "\n")

	if len(lines) > a.maxLines {
		issues = append(issues, Issue{
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("snippet is very long (%d lines)", len(lines)),
		})
	}

	maxIndent := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := 0
		for _, r := range line {
			if r == ' ' {
				indent++
			} else if r == '\t' {
				indent += 4
			} else {
				break
			}
		}
		if depth := indent / 4; depth > maxIndent {
			maxIndent = depth
		}
	}
	if maxIndent > a.maxNesting {
		issues = append(issues, Issue{
			Severity: SeverityLow,
			Message:  fmt.Sprintf("deep nesting (%d levels)", maxIndent),
		})
	}

	return issues
}

// scanLines runs a set of line-level patterns over source and reports each
// match with its line number.
func scanLines(source string, patterns []codePattern) []Issue {
	var issues []Issue
	for num, line := range strings.Split(source, "\n") {
		for _, p := range patterns {
			if p.re.MatchString(line) {
				issues = append(issues, Issue{
					Severity: p.severity,
					Message:  p.message,
					Line:     num + 1,
				})
			}
		}
	}
	return issues
}
