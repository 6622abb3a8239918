// Package secret resolves credentials that may be stored outside of the
// configuration file.
//
// A configured value of the form "pass:<name>" is a reference into the
// password store; any other value is a literal credential.
package secret

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RefPrefix marks a value as a reference into a secret store.
const RefPrefix = "pass:"

// Store looks up secrets by name.
type Store interface {
	// Password returns the password stored under name.
	Password(ctx context.Context, name string) (string, error)

	// OTP returns the current one-time password for name.
	OTP(ctx context.Context, name string) (string, error)
}

// Resolver turns configured credential values into literal ones.
type Resolver struct {
	store Store
}

// NewResolver returns a resolver backed by store. A nil store only resolves
// literal values.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store: store,
	}
}

// IsRef reports whether raw refers to a secret store entry.
func IsRef(raw string) bool {
	return strings.HasPrefix(raw, RefPrefix)
}

// Password resolves a configured password value.
func (r *Resolver) Password(ctx context.Context, raw string) (string, error) {
	return r.resolve(ctx, raw, func(ctx context.Context, name string) (string, error) {
		return r.store.Password(ctx, name)
	})
}

// OTP resolves a configured one-time password value.
func (r *Resolver) OTP(ctx context.Context, raw string) (string, error) {
	return r.resolve(ctx, raw, func(ctx context.Context, name string) (string, error) {
		return r.store.OTP(ctx, name)
	})
}

func (r *Resolver) resolve(ctx context.Context, raw string, lookup func(context.Context, string) (string, error)) (string, error) {
	if !IsRef(raw) {
		return raw, nil
	}

	name := strings.TrimPrefix(raw, RefPrefix)
	if name == "" {
		return "", fmt.Errorf("empty secret reference: %q", raw)
	}
	if r.store == nil {
		return "", fmt.Errorf("no secret store configured: ref=%s", raw)
	}

	val, err := lookup(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret: ref=%s err=%w", raw, err)
	}

	return val, nil
}

// PassStore reads secrets with the pass(1) password manager. OTP lookups
// require the pass-otp extension.
type PassStore struct {
	Bin string // Path of the pass executable; "pass" if empty.
}

// Password returns the first line of the pass entry, which by pass
// convention holds the password.
func (ps *PassStore) Password(ctx context.Context, name string) (string, error) {
	out, err := ps.run(ctx, "show", name)
	if err != nil {
		return "", err
	}

	line, _, _ := strings.Cut(out, "\n")
	return strings.TrimRight(line, "\r"), nil
}

// OTP returns the code generated by the pass-otp extension.
func (ps *PassStore) OTP(ctx context.Context, name string) (string, error) {
	out, err := ps.run(ctx, "otp", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (ps *PassStore) run(ctx context.Context, args ...string) (string, error) {
	bin := ps.Bin
	if bin == "" {
		bin = "pass"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w: %s", bin, args[0], err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
