package shell

import (
	"regexp"
	"strings"
)

// blockedPatterns are destructive command shapes run_terminal_command
// refuses outright: recursive root deletes, disk formatting, raw device
// writes, fork bombs, and host power control.
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+(-[a-zA-Z]*r[a-zA-Z]*f|-[a-zA-Z]*f[a-zA-Z]*r)[a-zA-Z]*\s+(/|~|\$HOME)(\s|$)`),
	regexp.MustCompile(`\brm\s+-[a-zA-Z]*r[a-zA-Z]*\s+(/|~)\s*$`),
	regexp.MustCompile(`\bmkfs(\.[a-z0-9]+)?\b`),
	regexp.MustCompile(`\bdd\s+[^|;]*of=/dev/`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;\s*:`),
	regexp.MustCompile(`\b(shutdown|reboot|halt|poweroff)\b`),
	regexp.MustCompile(`\bchmod\s+-[a-zA-Z]*R[a-zA-Z]*\s+777\s+/(\s|$)`),
}

// CheckBlocked returns a non-empty reason when command matches the
// destructive blocklist.
func CheckBlocked(command string) string {
	trimmed := strings.TrimSpace(command)
	for _, pattern := range blockedPatterns {
		if pattern.MatchString(trimmed) {
			return "command matches the destructive-command blocklist: " + pattern.String()
		}
	}
	return ""
}
