package risk

import (
	"fmt"
	"regexp"
	"strings"

	luaparse "github.com/yuin/gopher-lua/parse"
)

// safeLuaModules is the conservative default allow-list for require().
// The lua runtime only loads the base, string, table and math libraries,
// so the list mirrors that.
var safeLuaModules = []string{
	"string", "table", "math",
}

var luaPatterns = []codePattern{
	{regexp.MustCompile(`\bos\s*\.\s*(execute|exit|remove|rename|getenv|setenv)`), "process or filesystem control", SeverityCritical},
	{regexp.MustCompile(`\bio\s*\.`), "file access", SeverityCritical},
	{regexp.MustCompile(`\bload(string|file)?\s*\(`), "load() reinterprets strings as code", SeverityCritical},
	{regexp.MustCompile(`\bdofile\s*\(`), "dofile() executes external files", SeverityCritical},
	{regexp.MustCompile(`\bdebug\s*\.`), "debug library grants introspection of the host", SeverityCritical},
	{regexp.MustCompile(`\bcollectgarbage\s*\(`), "garbage collector control", SeverityMedium},
	{regexp.MustCompile(`\bwhile\s+true\s+do\b`), "unbounded loop", SeverityMedium},
}

var luaRequireRe = regexp.MustCompile(`\brequire\s*\(?\s*["']([^"']+)["']`)

// checkLua parses the snippet with the real lua grammar; a parse failure is
// itself a block reason, never a silent approval.
func (a *Analyzer) checkLua(source string) []Issue {
	var issues []Issue

	if _, err := luaparse.Parse(strings.NewReader(source), "snippet"); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("cannot verify safety of unparsable input: %v", err),
		})
		return issues
	}

	issues = append(issues, scanLines(source, luaPatterns)...)

	for num, line := range strings.Split(source, "\n") {
		for _, m := range luaRequireRe.FindAllStringSubmatch(line, -1) {
			if !a.allowed["lua"][m[1]] {
				issues = append(issues, Issue{
					Severity: SeverityCritical,
					Message:  fmt.Sprintf("require(%q) is not on the allow-list", m[1]),
					Line:     num + 1,
				})
			}
		}
	}

	return issues
}
