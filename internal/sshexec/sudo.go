package sshexec

import (
	"fmt"
	"strings"
)

// wrapSudo rewrites command to run under sudo, feeding the escalation
// secret on stdin so no interactive prompt appears. Commands that
// already invoke sudo are left untouched. The secret is shell-quoted
// before interpolation so metacharacters in it cannot break out of the
// echo argument.
func wrapSudo(command, secret string) string {
	if strings.HasPrefix(strings.TrimSpace(command), "sudo") {
		return command
	}
	return fmt.Sprintf("echo %s | sudo -S -p '' %s", shellQuote(secret), command)
}

// shellQuote wraps s in single quotes, escaping embedded single quotes
// with the standard '\'' dance.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// stripSudoPrompt removes sudo password prompt lines from captured
// output so they never reach logs, results, or broadcasts. Handles
// both the "[sudo] password for user:" and bare "Password:" styles.
func stripSudoPrompt(b []byte) []byte {
	if len(b) == 0 {
		return b
	}

	lines := strings.Split(string(b), "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[sudo] password for ") && strings.HasSuffix(trimmed, ":") {
			continue
		}
		if trimmed == "Password:" {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(kept, "\n")
	return []byte(out)
}

// redactSecret replaces any literal occurrence of the escalation
// secret in output with a fixed mask. The secret normally never echoes
// back, but a command that dumps its own process table or environment
// could surface it.
func redactSecret(b []byte, secret string) []byte {
	if secret == "" || len(b) == 0 {
		return b
	}
	return []byte(strings.ReplaceAll(string(b), secret, "********"))
}
