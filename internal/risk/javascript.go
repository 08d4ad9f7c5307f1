package risk

import (
	"fmt"
	"regexp"
	"strings"
)

// safeNodeModules is the conservative default allow-list for require().
// Only pure computation helpers, no I/O.
var safeNodeModules = []string{
	"assert", "buffer", "querystring", "string_decoder", "util",
}

var javascriptPatterns = []codePattern{
	{regexp.MustCompile(`\beval\s*\(`), "eval() reinterprets strings as code", SeverityCritical},
	{regexp.MustCompile(`\bnew\s+Function\s*\(`), "dynamic function construction", SeverityCritical},
	{regexp.MustCompile(`\bFunction\s*\(\s*["'\x60]`), "dynamic function construction", SeverityCritical},
	{regexp.MustCompile(`\bprocess\s*\.\s*(exit|kill|env|binding)`), "process control", SeverityCritical},
	{regexp.MustCompile(`\bchild_process\b`), "subprocess spawning", SeverityCritical},
	{regexp.MustCompile(`\bfetch\s*\(`), "network access", SeverityCritical},
	{regexp.MustCompile(`\bXMLHttpRequest\b`), "network access", SeverityCritical},
	{regexp.MustCompile(`\bWebSocket\b`), "network access", SeverityCritical},
	{regexp.MustCompile(`\bimport\s*\(`), "dynamic import", SeverityCritical},
	{regexp.MustCompile(`\bglobalThis\b`), "global object access", SeverityHigh},
	{regexp.MustCompile(`while\s*\(\s*(true|1)\s*\)`), "unbounded loop", SeverityMedium},
	{regexp.MustCompile(`for\s*\(\s*;\s*;\s*\)`), "unbounded loop", SeverityMedium},
}

var nodeRequireRe = regexp.MustCompile(`\brequire\s*\(\s*["']([^"']+)["']\s*\)`)

func (a *Analyzer) checkJavaScript(source string) []Issue {
	issues := scanLines(source, javascriptPatterns)

	for num, line := range strings.Split(source, "\n") {
		for _, m := range nodeRequireRe.FindAllStringSubmatch(line, -1) {
			module := strings.TrimPrefix(m[1], "node:")
			if !a.allowed["javascript"][module] {
				issues = append(issues, Issue{
					Severity: SeverityCritical,
					Message:  fmt.Sprintf("require(%q) is not on the allow-list", module),
					Line:     num + 1,
				})
			}
		}
	}

	return issues
}
