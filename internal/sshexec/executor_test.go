package sshexec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fleetd/internal/events"
	"fleetd/internal/fleet"
	"fleetd/internal/sshtest"
)

func passwordTarget(t *testing.T, addr, password string) fleet.Resolved {
	t.Helper()
	host, port := sshtest.ParseAddr(t, addr)
	return fleet.Resolved{
		HostID:   "h1",
		Name:     "test-host",
		Address:  host,
		Port:     port,
		Username: "deploy",
		Password: password,
	}
}

func TestRun_PasswordAuth(t *testing.T) {
	addr := sshtest.Start(t,
		sshtest.WithPassword("secret"),
		sshtest.WithCmdHandler(func(cmd string) (string, string, int) {
			return "Linux web-1 6.8.0\n", "", 0
		}),
	)

	e := New(nil)
	res := e.Run(context.Background(), passwordTarget(t, addr, "secret"), "uname -a")

	if res.Status != fleet.StatusSuccess {
		t.Fatalf("status = %s, error = %s", res.Status, res.Error)
	}
	if res.Output != "Linux web-1 6.8.0\n" {
		t.Errorf("output = %q", res.Output)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if res.CompletedAt.Before(res.StartedAt) {
		t.Error("completion precedes start")
	}
}

func TestRun_KeyAuth(t *testing.T) {
	pub, pemKey := sshtest.GenerateKey(t)
	addr := sshtest.Start(t, sshtest.WithPublicKey(pub))

	host, port := sshtest.ParseAddr(t, addr)
	target := fleet.Resolved{
		HostID:     "h1",
		Name:       "test-host",
		Address:    host,
		Port:       port,
		Username:   "deploy",
		PrivateKey: pemKey,
	}

	e := New(nil)
	res := e.Run(context.Background(), target, "hostname")
	if res.Status != fleet.StatusSuccess {
		t.Fatalf("status = %s, error = %s", res.Status, res.Error)
	}
	// Default handler echoes the command back.
	if res.Output != "hostname" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	addr := sshtest.Start(t,
		sshtest.WithPassword("secret"),
		sshtest.WithCmdHandler(func(cmd string) (string, string, int) {
			return "", "ls: cannot access '/nope': No such file or directory\n", 2
		}),
	)

	e := New(nil)
	res := e.Run(context.Background(), passwordTarget(t, addr, "secret"), "ls /nope")

	if res.Status != fleet.StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if res.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", res.ExitCode)
	}
	if !strings.Contains(res.Error, "command exited with code 2") {
		t.Errorf("error = %q, want exit-code message", res.Error)
	}
	if !strings.Contains(res.Error, "No such file") {
		t.Errorf("error should carry stderr detail, got %q", res.Error)
	}
	if !strings.Contains(res.Stderr, "No such file") {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestRun_NoAuthMethodFailsBeforeDialing(t *testing.T) {
	// Unroutable target: if the executor dialed, this would time out
	// instead of failing fast.
	target := fleet.Resolved{
		HostID:   "h1",
		Name:     "test-host",
		Address:  "192.0.2.1",
		Port:     22,
		Username: "deploy",
	}

	e := New(nil, WithConnectTimeout(500*time.Millisecond))
	res := e.Run(context.Background(), target, "true")

	if res.Status != fleet.StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if !strings.Contains(res.Error, "no authentication method configured") {
		t.Errorf("error = %q, want no-auth-method message", res.Error)
	}
}

func TestRun_WrongPassword(t *testing.T) {
	addr := sshtest.Start(t, sshtest.WithPassword("correct"))

	e := New(nil)
	res := e.Run(context.Background(), passwordTarget(t, addr, "wrong"), "true")

	if res.Status != fleet.StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if !strings.Contains(res.Error, "connection failed") {
		t.Errorf("error = %q, want connection-failed message", res.Error)
	}
	if !strings.Contains(res.Error, "verify the stored credentials") {
		t.Errorf("error = %q, want credential hint", res.Error)
	}
}

func TestRun_StreamsOutputEvents(t *testing.T) {
	addr := sshtest.Start(t,
		sshtest.WithPassword("secret"),
		sshtest.WithCmdHandler(func(cmd string) (string, string, int) {
			return "line one\nline two\n", "warning\n", 0
		}),
	)

	recorder := &events.Recorder{}
	e := New(recorder)
	res := e.Run(context.Background(), passwordTarget(t, addr, "secret"), "deploy.sh")
	if res.Status != fleet.StatusSuccess {
		t.Fatalf("status = %s, error = %s", res.Status, res.Error)
	}

	var stdout, stderr strings.Builder
	for _, ev := range recorder.Events() {
		if ev.HostName != "test-host" {
			t.Errorf("event host = %q, want test-host", ev.HostName)
		}
		switch ev.Kind {
		case events.KindOutput:
			stdout.WriteString(ev.Data)
		case events.KindError:
			stderr.WriteString(ev.Data)
		}
	}
	if stdout.String() != "line one\nline two\n" {
		t.Errorf("streamed stdout = %q", stdout.String())
	}
	if stderr.String() != "warning\n" {
		t.Errorf("streamed stderr = %q", stderr.String())
	}
}

func TestRun_SudoWrapAndRedaction(t *testing.T) {
	var gotCmd string
	addr := sshtest.Start(t,
		sshtest.WithPassword("secret"),
		sshtest.WithCmdHandler(func(cmd string) (string, string, int) {
			gotCmd = cmd
			// A hostile command echoing the escalation secret back.
			return "[sudo] password for deploy:\nsecret is hunter2\n", "", 0
		}),
	)

	recorder := &events.Recorder{}
	e := New(recorder)
	target := passwordTarget(t, addr, "secret")
	target.SudoPassword = "hunter2"

	res := e.Run(context.Background(), target, "systemctl restart nginx")
	if res.Status != fleet.StatusSuccess {
		t.Fatalf("status = %s, error = %s", res.Status, res.Error)
	}

	if !strings.HasPrefix(gotCmd, "echo ") || !strings.Contains(gotCmd, "sudo -S") {
		t.Errorf("command was not sudo-wrapped: %q", gotCmd)
	}
	if strings.Contains(res.Output, "hunter2") {
		t.Errorf("secret leaked into result output: %q", res.Output)
	}
	if strings.Contains(res.Output, "[sudo] password for") {
		t.Errorf("sudo prompt leaked into result output: %q", res.Output)
	}
	for _, ev := range recorder.Events() {
		if strings.Contains(ev.Data, "hunter2") {
			t.Errorf("secret leaked into broadcast chunk: %q", ev.Data)
		}
	}
}

func TestTestConnection(t *testing.T) {
	addr := sshtest.Start(t, sshtest.WithPassword("secret"))

	e := New(nil)
	if err := e.TestConnection(context.Background(), passwordTarget(t, addr, "secret")); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}

	if err := e.TestConnection(context.Background(), passwordTarget(t, addr, "wrong")); err == nil {
		t.Fatal("expected failure with wrong password")
	} else {
		var ce *ConnectError
		if !errors.As(err, &ce) {
			t.Errorf("expected *ConnectError, got %T: %v", err, err)
		}
	}
}
