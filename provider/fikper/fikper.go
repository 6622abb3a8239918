package fikper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ccollins476ad/hostdl/download"
	"github.com/ccollins476ad/hostdl/provider"
)

const DefaultAPIURL = "https://sapi.fikper.com/api"

var pattern = provider.MustCompilePattern(`https?://fikper\.com/(?P<id>\w+)/(?P<name>[\w.\-]+)\.html`)

// Config holds the fikper.com account settings.
type Config struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url,omitempty"`
}

// Provider retrieves files from fikper.com. It implements the
// provider.Provider interface.
type Provider struct {
	s   *download.Store
	cfg Config
}

// NewProvider returns a fikper provider. An empty cfg.APIURL selects
// DefaultAPIURL.
func NewProvider(s *download.Store, cfg Config) *Provider {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return &Provider{
		s:   s,
		cfg: cfg,
	}
}

// Match implements provider.Provider#Match. The match contains "id" and
// "name".
func (p *Provider) Match(u string) provider.Match {
	return provider.MatchPattern(pattern, u)
}

// Download resolves the fikper file behind url=u via the download API and
// saves it. The file is named after the url unless name is non-empty. See
// provider.Provider#Download for API details.
func (p *Provider) Download(ctx context.Context, u string, targetDir string, name string) (string, error) {
	m := p.Match(u)
	if m == nil {
		return "", fmt.Errorf("%w: provider=fikper.com url=%s", provider.ErrInvalidURL, u)
	}

	directURL, err := p.resolve(ctx, m["id"])
	if err != nil {
		return "", err
	}

	if name == "" {
		name = m["name"]
	}

	return p.s.Transfer(ctx, directURL, targetDir, name, nil)
}

// resolve asks the API for the direct download url of the file with the
// given id. The response body is the plain-text url.
func (p *Provider) resolve(ctx context.Context, id string) (string, error) {
	header := http.Header{
		"x-api-key": []string{p.cfg.APIKey},
	}

	b, err := download.Get(ctx, p.s.HTTPClient(), p.cfg.APIURL+"/file/download/"+url.PathEscape(id), header)
	if err != nil {
		return "", fmt.Errorf("failed to resolve fikper download: id=%s err=%w", id, err)
	}

	directURL := strings.TrimSpace(string(b))
	if directURL == "" {
		return "", fmt.Errorf("fikper api returned an empty download url: id=%s", id)
	}
	p.s.Logger().Debugf("resolved fikper file: id=%s url=%s", id, directURL)

	return directURL, nil
}
