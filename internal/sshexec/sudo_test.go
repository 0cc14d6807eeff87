package sshexec

import (
	"strings"
	"testing"
)

func TestWrapSudo(t *testing.T) {
	tests := []struct {
		name    string
		command string
		secret  string
		want    string
	}{
		{
			name:    "plain command",
			command: "apt-get update",
			secret:  "hunter2",
			want:    "echo 'hunter2' | sudo -S -p '' apt-get update",
		},
		{
			name:    "already sudo",
			command: "sudo systemctl restart nginx",
			secret:  "hunter2",
			want:    "sudo systemctl restart nginx",
		},
		{
			name:    "leading whitespace before sudo",
			command: "  sudo whoami",
			secret:  "hunter2",
			want:    "  sudo whoami",
		},
		{
			name:    "secret with single quote",
			command: "whoami",
			secret:  "it's",
			want:    `echo 'it'\''s' | sudo -S -p '' whoami`,
		},
		{
			name:    "secret with shell metacharacters",
			command: "whoami",
			secret:  "a;rm -rf $HOME",
			want:    "echo 'a;rm -rf $HOME' | sudo -S -p '' whoami",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapSudo(tt.command, tt.secret)
			if got != tt.want {
				t.Errorf("wrapSudo(%q, %q) = %q, want %q", tt.command, tt.secret, got, tt.want)
			}
		})
	}
}

func TestStripSudoPrompt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "sudo prompt line",
			in:   "[sudo] password for deploy:\ntotal 4\n",
			want: "total 4\n",
		},
		{
			name: "bare password prompt",
			in:   "Password:\nok\n",
			want: "ok\n",
		},
		{
			name: "no prompt",
			in:   "Linux web-1 6.8.0\n",
			want: "Linux web-1 6.8.0\n",
		},
		{
			name: "prompt only",
			in:   "[sudo] password for root:",
			want: "",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(stripSudoPrompt([]byte(tt.in)))
			if got != tt.want {
				t.Errorf("stripSudoPrompt(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactSecret(t *testing.T) {
	out := redactSecret([]byte("the password is hunter2, really hunter2"), "hunter2")
	if strings.Contains(string(out), "hunter2") {
		t.Errorf("secret survived redaction: %q", out)
	}
	if !strings.Contains(string(out), "********") {
		t.Errorf("expected mask in output, got %q", out)
	}

	// Empty secret must not touch the output.
	in := []byte("untouched")
	if got := redactSecret(in, ""); string(got) != "untouched" {
		t.Errorf("redactSecret with empty secret altered output: %q", got)
	}
}
