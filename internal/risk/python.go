package risk

import (
	"fmt"
	"regexp"
	"strings"
)

// codePattern pairs a compiled pattern with its finding.
type codePattern struct {
	re       *regexp.Regexp
	message  string
	severity Severity
}

// dangerousPythonImports maps module names to the capability they expose.
// Any import of these is blocked regardless of the allow-list.
var dangerousPythonImports = map[string]string{
	"os":              "process and filesystem control",
	"sys":             "interpreter manipulation",
	"subprocess":      "subprocess spawning",
	"importlib":       "dynamic imports",
	"pickle":          "arbitrary code execution on load",
	"marshal":         "arbitrary code execution on load",
	"shelve":          "filesystem access",
	"shutil":          "filesystem operations",
	"tempfile":        "filesystem access",
	"pathlib":         "filesystem access",
	"socket":          "network socket creation",
	"urllib":          "network access",
	"requests":        "network access",
	"http":            "network access",
	"ftplib":          "network access",
	"telnetlib":       "network access",
	"ctypes":          "host system calls",
	"signal":          "process signalling",
	"threading":       "thread control",
	"multiprocessing": "process spawning",
}

// safePythonImports is the conservative default allow-list: arithmetic,
// string and collection manipulation, no I/O.
var safePythonImports = []string{
	"math", "cmath", "random", "datetime", "time", "json", "collections",
	"itertools", "functools", "operator", "string", "re", "decimal",
	"fractions", "statistics", "copy", "dataclasses", "typing", "enum",
	"abc", "heapq", "bisect", "array", "numbers", "unicodedata", "textwrap",
}

var pythonPatterns = []codePattern{
	{regexp.MustCompile(`\beval\s*\(`), "eval() reinterprets strings as code", SeverityCritical},
	{regexp.MustCompile(`\bexec\s*\(`), "exec() reinterprets strings as code", SeverityCritical},
	{regexp.MustCompile(`\b__import__\s*\(`), "dynamic import", SeverityCritical},
	{regexp.MustCompile(`\bcompile\s*\(`), "dynamic code compilation", SeverityCritical},
	{regexp.MustCompile(`\bopen\s*\(`), "file access", SeverityCritical},
	{regexp.MustCompile(`__(?:class|bases|subclasses|globals|mro)__`), "sandbox escape via introspection", SeverityCritical},
	{regexp.MustCompile(`\bos\s*\.\s*(system|popen|exec\w*|spawn\w*|kill|environ|putenv)`), "process or environment control", SeverityCritical},
	{regexp.MustCompile(`\bgetattr\s*\(`), "dynamic attribute access", SeverityLow},
	{regexp.MustCompile(`\bsetattr\s*\(`), "dynamic attribute mutation", SeverityMedium},
	{regexp.MustCompile(`\bglobals\s*\(\s*\)`), "global namespace access", SeverityHigh},
	{regexp.MustCompile(`\blocals\s*\(\s*\)`), "local namespace access", SeverityLow},
	{regexp.MustCompile(`while\s+True\s*:`), "unbounded loop", SeverityMedium},
	{regexp.MustCompile(`for\s+\w+\s+in\s+range\s*\(\s*\d{7,}`), "very large iteration count", SeverityMedium},
}

// pythonImportRe matches both "import x" and "from x import y" forms.
var pythonImportRe = regexp.MustCompile(`^\s*(?:from\s+([\w.]+)\s+import|import\s+([\w.,\s]+))`)

func (a *Analyzer) checkPython(source string) []Issue {
	issues := scanLines(source, pythonPatterns)

	for num, line := range strings.Split(source, "\n") {
		m := pythonImportRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var modules []string
		if m[1] != "" {
			modules = []string{m[1]}
		} else {
			for _, part := range strings.Split(m[2], ",") {
				modules = append(modules, strings.TrimSpace(strings.SplitN(strings.TrimSpace(part), " ", 2)[0]))
			}
		}
		for _, module := range modules {
			root := strings.SplitN(module, ".", 2)[0]
			if root == "" {
				continue
			}
			if why, bad := dangerousPythonImports[root]; bad {
				issues = append(issues, Issue{
					Severity: SeverityCritical,
					Message:  fmt.Sprintf("import %q: %s", root, why),
					Line:     num + 1,
				})
			} else if !a.allowed["python"][root] {
				issues = append(issues, Issue{
					Severity: SeverityCritical,
					Message:  fmt.Sprintf("import %q is not on the allow-list", root),
					Line:     num + 1,
				})
			}
		}
	}

	return issues
}
