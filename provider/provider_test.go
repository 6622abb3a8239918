package provider

import (
	"context"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

// fakeProvider matches urls with a fixed prefix and records downloads.
type fakeProvider struct {
	prefix string
	calls  []string
	dirs   []string
}

func (f *fakeProvider) Match(u string) Match {
	if !strings.HasPrefix(u, f.prefix) {
		return nil
	}
	return Match{"id": strings.TrimPrefix(u, f.prefix)}
}

func (f *fakeProvider) Download(ctx context.Context, u string, targetDir string, name string) (string, error) {
	f.calls = append(f.calls, u)
	f.dirs = append(f.dirs, targetDir)
	return filepath.Join(targetDir, "file"), nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeProvider, *fakeProvider) {
	logger := log.New()
	logger.SetOutput(io.Discard)

	p1 := &fakeProvider{prefix: "https://fikper.com/"}
	p2 := &fakeProvider{prefix: "https://rapidgator.net/"}

	r := NewRegistry(logger)
	if err := r.Add("fikper.com", p1); err != nil {
		t.Fatal(err)
	}
	if err := r.Add("rapidgator.net", p2); err != nil {
		t.Fatal(err)
	}

	return r, p1, p2
}

func TestMatchPattern(t *testing.T) {
	re := MustCompilePattern(`https?://example\.com/(?P<id>\w+)`)

	m := MatchPattern(re, "https://example.com/abc")
	if !reflect.DeepEqual(m, Match{"id": "abc"}) {
		t.Errorf("unexpected match: %v", m)
	}

	for _, u := range []string{
		"https://example.com/abc/extra",
		"see https://example.com/abc",
		"ftp://example.com/abc",
	} {
		if m := MatchPattern(re, u); m != nil {
			t.Errorf("expected no match for %q, got %v", u, m)
		}
	}
}

func TestRouteFirstMatch(t *testing.T) {
	r, p1, p2 := newTestRegistry(t)

	path, err := r.Route(context.Background(), "https://fikper.com/abc123/report.pdf.html", "/dl", true)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	if len(p1.calls) != 1 {
		t.Errorf("expected fikper provider to be called once, got %d", len(p1.calls))
	}
	if len(p2.calls) != 0 {
		t.Errorf("expected rapidgator provider not to be called, got %d", len(p2.calls))
	}
	if p1.dirs[0] != filepath.Join("/dl", "fikper.com") {
		t.Errorf("unexpected target dir: %s", p1.dirs[0])
	}
	if path != filepath.Join("/dl", "fikper.com", "file") {
		t.Errorf("unexpected path: %s", path)
	}
}

func TestRouteWithoutSubdir(t *testing.T) {
	r, _, p2 := newTestRegistry(t)

	_, err := r.Route(context.Background(), "https://rapidgator.net/file/x/y.html", "/dl", false)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(p2.dirs) != 1 || p2.dirs[0] != "/dl" {
		t.Errorf("expected target dir /dl, got %v", p2.dirs)
	}
}

func TestRouteNoMatch(t *testing.T) {
	r, p1, p2 := newTestRegistry(t)

	path, err := r.Route(context.Background(), "https://example.org/file", "/dl", true)
	if err != nil {
		t.Errorf("expected silent skip, got %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
	if len(p1.calls)+len(p2.calls) != 0 {
		t.Error("expected no provider to be called")
	}
}

func TestRegistryOrderAndDuplicates(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	if got := r.Keys(); !reflect.DeepEqual(got, []string{"fikper.com", "rapidgator.net"}) {
		t.Errorf("unexpected key order: %v", got)
	}

	if err := r.Add("fikper.com", &fakeProvider{}); err == nil {
		t.Error("expected error for duplicate key")
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 providers, got %d", r.Len())
	}

	// Both providers match; the first registered one wins.
	shadow := &fakeProvider{prefix: "https://"}
	r2 := NewRegistry(nil)
	r2.Add("catchall", shadow)
	r2.Add("fikper.com", &fakeProvider{prefix: "https://fikper.com/"})

	key, p, ok := r2.Lookup("https://fikper.com/a/b.html")
	if !ok || key != "catchall" || p != Provider(shadow) {
		t.Errorf("expected catchall to win, got key=%s ok=%v", key, ok)
	}
}
