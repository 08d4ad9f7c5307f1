package engine

import "regexp"

// languageSignatures are keyword and syntax markers with per-match weights.
// Detection scores each registered language and picks the highest total;
// ties, including the all-zero case, fall back to the first registered
// language.
var languageSignatures = map[string][]signature{
	"python": {
		{regexp.MustCompile(`(?m)^\s*def\s+\w+\s*\(.*\)\s*:`), 3},
		{regexp.MustCompile(`(?m)^\s*(import|from)\s+\w`), 3},
		{regexp.MustCompile(`\bprint\s*\(`), 1},
		{regexp.MustCompile(`(?m)^\s*(if|for|while|elif|else)\b[^\n{]*:\s*$`), 2},
		{regexp.MustCompile(`\bself\.`), 2},
		{regexp.MustCompile(`\b(True|False|None)\b`), 2},
		{regexp.MustCompile(`\blambda\s+\w`), 2},
		{regexp.MustCompile(`f"[^"]*\{`), 2},
	},
	"javascript": {
		{regexp.MustCompile(`\b(const|let|var)\s+\w+\s*=`), 3},
		{regexp.MustCompile(`\bfunction\s*\w*\s*\(`), 2},
		{regexp.MustCompile(`=>`), 2},
		{regexp.MustCompile(`\bconsole\.\w+\(`), 3},
		{regexp.MustCompile(`\b(null|undefined)\b`), 2},
		{regexp.MustCompile(`===|!==`), 2},
		{regexp.MustCompile("`[^`]*\\$\\{"), 2},
	},
	"lua": {
		{regexp.MustCompile(`\blocal\s+\w`), 3},
		{regexp.MustCompile(`\b(then|elseif)\b`), 2},
		{regexp.MustCompile(`(?m)\bend\s*$`), 2},
		{regexp.MustCompile(`\bnil\b`), 1},
		{regexp.MustCompile(`~=`), 2},
		{regexp.MustCompile(`\.\.`), 1},
		{regexp.MustCompile(`\bfunction\s+\w+[.:]?\w*\s*\(`), 1},
		{regexp.MustCompile(`--\[\[|(?m)^\s*--`), 2},
	},
	"shell": {
		{regexp.MustCompile(`(?m)^\s*(echo|ls|cat|grep|pwd|date|head|tail|wc)\b`), 3},
		{regexp.MustCompile(`\|\s*(grep|wc|head|tail|sort|uniq|cut)\b`), 3},
		{regexp.MustCompile(`(?m)^#!`), 3},
		{regexp.MustCompile(`\$\w+|\$\{\w+\}`), 1},
		{regexp.MustCompile(`(?m)^\s*\w+=[^=\s]`), 1},
	},
}

type signature struct {
	re     *regexp.Regexp
	weight int
}

// detect scores source against each language in order and returns the best
// match. order is the registration order; it breaks ties and catches the
// no-signal case.
func detect(source string, order []string) string {
	if len(order) == 0 {
		return ""
	}
	best := order[0]
	bestScore := 0
	for _, lang := range order {
		score := 0
		for _, sig := range languageSignatures[lang] {
			if n := len(sig.re.FindAllStringIndex(source, 4)); n > 0 {
				score += sig.weight * n
			}
		}
		if score > bestScore {
			best = lang
			bestScore = score
		}
	}
	return best
}
