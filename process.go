package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ccollins476ad/hostdl/settings"
	log "github.com/sirupsen/logrus"
	"mvdan.cc/xurls/v2"
)

// extractURLs returns every url found in the given free-form text, in order
// of appearance.
func extractURLs(r io.Reader) ([]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	rx := xurls.Strict()
	return rx.FindAllString(string(b), -1), nil
}

// collectURLs returns the positional urls followed by the urls read from the
// configured input file.
func collectURLs(cfg *Config) ([]string, error) {
	urls := append([]string(nil), cfg.URLs...)
	if cfg.InputFile == "" {
		return urls, nil
	}

	var r io.Reader = os.Stdin
	if cfg.InputFile != "-" {
		f, err := os.Open(cfg.InputFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	found, err := extractURLs(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read urls: file=%s err=%w", cfg.InputFile, err)
	}
	log.Debugf("read %d urls from %s", len(found), cfg.InputFile)

	return append(urls, found...), nil
}

// processURLs downloads each url with the configured providers, one at a
// time. A failed url is logged and does not stop the batch; the returned
// error joins all failures. Urls that no provider handles are skipped.
func processURLs(ctx context.Context, st *settings.Settings, downloadDir string, urls []string) error {
	var errs []error

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		path, err := st.Providers.Route(ctx, u, downloadDir, st.UseProviderSubdir)
		if err != nil {
			log.WithError(err).Errorf("failed to download: url=%s", u)
			errs = append(errs, fmt.Errorf("url=%s: %w", u, err))
			continue
		}

		if path == "" {
			log.Infof("no provider for url, skipping: %s", u)
			continue
		}
		log.Debugf("saved %s --> %s", u, path)
	}

	return errors.Join(errs...)
}
