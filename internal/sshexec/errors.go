package sshexec

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNoAuthMethod is returned before dialing when a host record
// carries neither a password nor a private key.
var ErrNoAuthMethod = errors.New("no authentication method configured (need password or private key)")

// ConnectError wraps a transport-level failure (DNS, refused, timeout,
// rejected auth) with an operator-facing hint. It is distinct from a
// remote command failing with a non-zero exit.
type ConnectError struct {
	Host string
	Err  error
	Hint string
}

func (e *ConnectError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("connection failed: %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("connection failed: %s: %v (%s)", e.Host, e.Err, e.Hint)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// wrapConnectError classifies a dial/handshake error and attaches a
// hint when the cause is recognizable.
func wrapConnectError(host string, err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()

	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "handshake failed") {
		return &ConnectError{Host: host, Err: err, Hint: "verify the stored credentials for this host"}
	}

	if strings.Contains(msg, "connection refused") {
		return &ConnectError{Host: host, Err: err, Hint: "verify the SSH daemon is running on the target host"}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || strings.Contains(msg, "no such host") {
		return &ConnectError{Host: host, Err: err, Hint: "verify the hostname is correct"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ConnectError{Host: host, Err: err, Hint: "host did not answer within the connect timeout"}
	}

	return &ConnectError{Host: host, Err: err}
}
