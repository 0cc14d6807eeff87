package fleet

import (
	"strconv"
	"time"

	sshconfig "github.com/kevinburke/ssh_config"
)

// Host is a registered remote machine. Password, PrivateKey and
// SudoPassword hold whatever the credential layer stored; the core
// never interprets them until a CredentialProvider resolves them into
// a Resolved descriptor for one connection.
type Host struct {
	ID           string
	Name         string
	Address      string
	Port         int
	Username     string
	Password     string
	PrivateKey   string
	SudoPassword string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Resolved is everything needed to open one SSH connection: decrypted
// credentials and final address details. It is built per invocation
// and never persisted or cached.
type Resolved struct {
	HostID       string
	Name         string
	Address      string
	Port         int
	Username     string
	Password     string
	PrivateKey   string
	SudoPassword string
}

// CredentialProvider turns a stored Host into a connection descriptor.
// Implementations that decrypt at-rest secrets live outside the core;
// the core only consumes the resolved form.
type CredentialProvider interface {
	Resolve(host Host) (Resolved, error)
}

// StaticProvider resolves hosts from their stored fields as-is. Empty
// username or port fall back to ~/.ssh/config, then to "root" and 22.
type StaticProvider struct{}

func (StaticProvider) Resolve(h Host) (Resolved, error) {
	r := Resolved{
		HostID:       h.ID,
		Name:         h.Name,
		Address:      h.Address,
		Port:         h.Port,
		Username:     h.Username,
		Password:     h.Password,
		PrivateKey:   h.PrivateKey,
		SudoPassword: h.SudoPassword,
	}

	if r.Username == "" {
		r.Username = sshconfig.Get(h.Address, "User")
	}
	if r.Username == "" {
		r.Username = "root"
	}

	if r.Port == 0 {
		if portStr := sshconfig.Get(h.Address, "Port"); portStr != "" {
			if p, err := strconv.Atoi(portStr); err == nil {
				r.Port = p
			}
		}
	}
	if r.Port == 0 {
		r.Port = 22
	}

	return r, nil
}
