package risk

import (
	"regexp"
	"strings"
)

// shellPatterns block destructive or host-controlling commands before the
// shell runtime ever sees them. The runtime additionally enforces its own
// command allow-list; this layer catches compound and obfuscated forms.
var shellPatterns = []codePattern{
	// Destructive recursive deletion
	{regexp.MustCompile(`(?i)\brm\s+(-[a-z]*)?-[a-z]*r[a-z]*\b`), "recursive file deletion", SeverityCritical},
	{regexp.MustCompile(`(?i)\brm\s+(-[a-z]*\s+)*--no-preserve-root`), "rm with --no-preserve-root", SeverityCritical},

	// Disk formatting and direct device writes
	{regexp.MustCompile(`(?i)\b(mkfs|fdisk|parted|gdisk|wipefs|blkdiscard|shred)\b`), "disk or filesystem destruction", SeverityCritical},
	{regexp.MustCompile(`(?i)\bdd\s+.*\bof\s*=\s*/dev/`), "direct device write", SeverityCritical},
	{regexp.MustCompile(`(?i)>\s*/dev/(sd[a-z]|hd[a-z]|nvme|vd[a-z]|xvd[a-z])`), "redirect to disk device", SeverityCritical},
	{regexp.MustCompile(`(?i)>\s*/(proc|sys)/`), "write to kernel filesystem", SeverityCritical},

	// Host state control
	{regexp.MustCompile(`(?i)\b(shutdown|reboot|poweroff|halt)\b`), "host power control", SeverityCritical},
	{regexp.MustCompile(`(?i)\binit\s+[06]\b`), "host runlevel change", SeverityCritical},
	{regexp.MustCompile(`(?i)\bsystemctl\s+(halt|poweroff|reboot|shutdown)`), "host power control", SeverityCritical},
	{regexp.MustCompile(`(?i)\bkill(all)?\s`), "process termination", SeverityCritical},

	// Fork bombs
	{regexp.MustCompile(`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`), "fork bomb", SeverityCritical},
	{regexp.MustCompile(`(?i)\bwhile\s+true.*\bfork\b`), "fork loop", SeverityCritical},

	// Remote code execution
	{regexp.MustCompile(`(?i)\b(curl|wget)\s+.*\|\s*(ba|z)?sh`), "download piped to shell", SeverityCritical},
	{regexp.MustCompile(`(?i)\b(curl|wget|nc|ncat|telnet|ssh|scp)\b`), "network command", SeverityCritical},

	// Privilege and credential access
	{regexp.MustCompile(`(?i)\bsudo\b`), "privilege escalation", SeverityCritical},
	{regexp.MustCompile(`(?i)\bchmod\s+(-[a-z]*\s+)*777\s+/`), "world-writable root", SeverityCritical},
	{regexp.MustCompile(`(?i)/etc/(passwd|shadow|sudoers)`), "credential file access", SeverityCritical},

	// Environment mutation
	{regexp.MustCompile(`(?i)\bexport\s+\w+=`), "environment mutation", SeverityHigh},
	{regexp.MustCompile(`(?i)\bunset\s+\w+`), "environment mutation", SeverityMedium},
}

func (a *Analyzer) checkShell(source string) []Issue {
	issues := scanLines(source, shellPatterns)

	if reason := shellObfuscation(source); reason != "" {
		issues = append(issues, Issue{Severity: SeverityCritical, Message: reason})
	}

	return issues
}

var (
	hexEscapeRe   = regexp.MustCompile(`\\x[0-9a-fA-F]{2}`)
	octalEscapeRe = regexp.MustCompile(`\\[0-7]{1,3}`)
	base64PipeRe  = regexp.MustCompile(`(?i)base64\s+(-d|--decode).*\|\s*(ba)?sh`)
	evalEncodedRe = regexp.MustCompile("(?i)\\beval\\s+.*(\\$\\(|\x60|base64|decode)")
)

// shellObfuscation detects encodings used to smuggle commands past pattern
// checks. Returns a non-empty reason when the snippet looks obfuscated.
func shellObfuscation(command string) string {
	backslashes := strings.Count(command, `\`)
	if backslashes > 10 && float64(backslashes)/float64(len(command)) > 0.1 {
		return "excessive escape sequences suggest obfuscation"
	}
	if len(hexEscapeRe.FindAllString(command, -1)) > 5 {
		return "hex escape sequences suggest obfuscation"
	}
	if len(octalEscapeRe.FindAllString(command, -1)) > 5 {
		return "octal escape sequences suggest obfuscation"
	}
	if base64PipeRe.MatchString(command) {
		return "base64 decode piped to shell"
	}
	if evalEncodedRe.MatchString(command) {
		return "eval of encoded content"
	}
	return ""
}
