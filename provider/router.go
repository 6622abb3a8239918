package provider

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

type entry struct {
	key string
	p   Provider
}

// Registry holds the configured providers, keyed by host name (e.g.,
// "fikper.com"). It preserves insertion order, which is the order urls are
// matched in.
type Registry struct {
	entries []entry
	log     log.FieldLogger
}

// NewRegistry returns an empty registry that reports routing events to
// logger. A nil logger selects the standard logrus logger.
func NewRegistry(logger log.FieldLogger) *Registry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Registry{
		log: logger,
	}
}

// Add appends a provider. Keys must be unique.
func (r *Registry) Add(key string, p Provider) error {
	if _, ok := r.Get(key); ok {
		return fmt.Errorf("duplicate provider: key=%s", key)
	}

	r.entries = append(r.entries, entry{key: key, p: p})
	return nil
}

// Get returns the provider registered under key.
func (r *Registry) Get(key string) (Provider, bool) {
	for _, e := range r.entries {
		if e.key == key {
			return e.p, true
		}
	}
	return nil, false
}

// Keys returns the registered keys in insertion order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Lookup returns the first provider whose pattern matches u.
func (r *Registry) Lookup(u string) (string, Provider, bool) {
	for _, e := range r.entries {
		if e.p.Match(u) != nil {
			return e.key, e.p, true
		}
	}
	return "", nil, false
}

// TargetDir returns the directory files of provider=key are saved to.
func TargetDir(downloadDir string, key string, useSubdir bool) string {
	if useSubdir {
		return filepath.Join(downloadDir, key)
	}
	return downloadDir
}

// Route hands u to the first matching provider and returns the path of the
// saved file. A url that no provider matches is skipped: Route returns "" and
// a nil error.
func (r *Registry) Route(ctx context.Context, u string, downloadDir string, useSubdir bool) (string, error) {
	key, p, ok := r.Lookup(u)
	if !ok {
		r.log.Debugf("no provider matches url, skipping: %s", u)
		return "", nil
	}

	r.log.WithFields(log.Fields{
		"url":      u,
		"provider": key,
	}).Debug("dispatching url")

	return p.Download(ctx, u, TargetDir(downloadDir, key, useSubdir), "")
}
