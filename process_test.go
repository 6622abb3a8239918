package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ccollins476ad/hostdl/provider"
	"github.com/ccollins476ad/hostdl/settings"
)

var errBroken = errors.New("broken")

// stubProvider matches urls with a prefix and fails for urls containing
// "fail".
type stubProvider struct {
	prefix string
	got    []string
}

func (s *stubProvider) Match(u string) provider.Match {
	if !strings.HasPrefix(u, s.prefix) {
		return nil
	}
	return provider.Match{"id": u}
}

func (s *stubProvider) Download(ctx context.Context, u string, targetDir string, name string) (string, error) {
	s.got = append(s.got, u)
	if strings.Contains(u, "fail") {
		return "", errBroken
	}
	return filepath.Join(targetDir, "f"), nil
}

func TestProcessURLsContinuesAfterFailure(t *testing.T) {
	sp := &stubProvider{prefix: "https://fikper.com/"}
	reg := provider.NewRegistry(nil)
	reg.Add("fikper.com", sp)

	st := &settings.Settings{DownloadDir: "/dl", UseProviderSubdir: true, Providers: reg}
	urls := []string{
		"https://fikper.com/fail/a.html",
		"https://unknown.example/x",
		"https://fikper.com/ok/b.html",
	}

	err := processURLs(context.Background(), st, "/dl", urls)
	if !errors.Is(err, errBroken) {
		t.Fatalf("expected joined errBroken, got %v", err)
	}
	if !strings.Contains(err.Error(), "https://fikper.com/fail/a.html") {
		t.Errorf("expected failing url in error, got %v", err)
	}

	want := []string{"https://fikper.com/fail/a.html", "https://fikper.com/ok/b.html"}
	if !reflect.DeepEqual(sp.got, want) {
		t.Errorf("unexpected downloads: %v", sp.got)
	}
}

func TestProcessURLsSkipsUnmatched(t *testing.T) {
	st := &settings.Settings{DownloadDir: "/dl", Providers: provider.NewRegistry(nil)}

	err := processURLs(context.Background(), st, "/dl", []string{"https://example.org/file"})
	if err != nil {
		t.Errorf("expected unmatched url to be skipped, got %v", err)
	}
}

func TestProcessURLsCanceled(t *testing.T) {
	sp := &stubProvider{prefix: "https://"}
	reg := provider.NewRegistry(nil)
	reg.Add("any", sp)
	st := &settings.Settings{Providers: reg}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := processURLs(ctx, st, "/dl", []string{"https://a", "https://b"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(sp.got) != 0 {
		t.Errorf("expected no downloads after cancel, got %v", sp.got)
	}
}

func TestExtractURLs(t *testing.T) {
	text := `grab these:
https://fikper.com/abc123/report.pdf.html
- https://rapidgator.net/file/xyz789/movie.mkv.html (mirror)
not a url: fikper dot com`

	got, err := extractURLs(strings.NewReader(text))
	if err != nil {
		t.Fatalf("extractURLs: %v", err)
	}

	want := []string{
		"https://fikper.com/abc123/report.pdf.html",
		"https://rapidgator.net/file/xyz789/movie.mkv.html",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractURLs = %v, want %v", got, want)
	}
}

func TestCollectURLs(t *testing.T) {
	input := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(input, []byte("https://fikper.com/b/c.html\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := collectURLs(&Config{URLs: []string{"https://fikper.com/a/b.html"}, InputFile: input})
	if err != nil {
		t.Fatalf("collectURLs: %v", err)
	}

	want := []string{"https://fikper.com/a/b.html", "https://fikper.com/b/c.html"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("collectURLs = %v, want %v", got, want)
	}
}

func TestParseArgs(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg, err := parseArgs(fs, []string{"-v", "-v", "-log-format", "json", "-c", "/etc/hostdl", "https://fikper.com/a/b.html"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}

	if cfg.Verbosity != 2 {
		t.Errorf("expected verbosity 2, got %d", cfg.Verbosity)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected json log format, got %s", cfg.LogFormat)
	}
	if cfg.ConfigPath() != filepath.Join("/etc/hostdl", "config.json") {
		t.Errorf("unexpected config path: %s", cfg.ConfigPath())
	}
	if !reflect.DeepEqual(cfg.URLs, []string{"https://fikper.com/a/b.html"}) {
		t.Errorf("unexpected urls: %v", cfg.URLs)
	}
}

func TestParseArgsErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"-log-format", "xml", "https://fikper.com/a/b.html"},
		{"-bogus"},
	} {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.SetOutput(io.Discard)

		if _, err := parseArgs(fs, args); err == nil {
			t.Errorf("parseArgs(%v): expected error", args)
		}
	}
}
