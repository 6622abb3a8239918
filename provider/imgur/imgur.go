package imgur

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ccollins476ad/hostdl/download"
	"github.com/ccollins476ad/hostdl/fileutil"
	"github.com/ccollins476ad/hostdl/provider"
	"github.com/koffeinsource/go-imgur"
)

const DefaultAPIURL = "https://api.imgur.com/3"

var (
	imagePattern = provider.MustCompilePattern(`https?://i\.imgur\.com/(?P<id>\w+)\.(?P<ext>\w+)`)
	albumPattern = provider.MustCompilePattern(`https?://imgur\.com/a/(?P<id>\w+)`)
)

// Config holds the imgur.com api settings.
type Config struct {
	ClientID string `json:"client_id"`
	APIURL   string `json:"api_url,omitempty"`
}

type albumInfoDataWrapper struct {
	AI      *imgur.AlbumInfo `json:"data"`
	Success bool             `json:"success"`
	Status  int              `json:"status"`
}

// Provider retrieves imgur images and albums. It implements the
// provider.Provider interface.
type Provider struct {
	s      *download.Store
	cfg    Config
	header http.Header
}

// NewProvider returns an imgur provider authenticating with cfg.ClientID. An
// empty cfg.APIURL selects DefaultAPIURL.
func NewProvider(s *download.Store, cfg Config) *Provider {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return &Provider{
		s:   s,
		cfg: cfg,
		header: http.Header{
			"Authorization": []string{"Client-ID " + cfg.ClientID},
			"Referer":       []string{"https://imgur.com/"},
		},
	}
}

// Match implements provider.Provider#Match. Image matches contain "id", "ext"
// and "name"; album matches contain "id" and "album".
func (p *Provider) Match(u string) provider.Match {
	if m := provider.MatchPattern(imagePattern, u); m != nil {
		m["name"] = m["id"] + "." + m["ext"]
		return m
	}

	if m := provider.MatchPattern(albumPattern, u); m != nil {
		m["album"] = m["id"]
		return m
	}

	return nil
}

// Download retrieves an individual image or a whole album. Albums are saved
// to a subdirectory named after the album id and the returned path is that
// directory; name only applies to individual images. See
// provider.Provider#Download for API details.
func (p *Provider) Download(ctx context.Context, u string, targetDir string, name string) (string, error) {
	m := p.Match(u)
	if m == nil {
		return "", fmt.Errorf("%w: provider=imgur.com url=%s", provider.ErrInvalidURL, u)
	}

	if _, ok := m["album"]; ok {
		return p.downloadAlbum(ctx, m["id"], targetDir)
	}

	if name == "" {
		name = m["name"]
	}
	return p.s.Transfer(ctx, u, targetDir, name, p.header)
}

// albumLinks asks the imgur api for the urls of all images in an album.
func (p *Provider) albumLinks(ctx context.Context, albumID string) ([]string, error) {
	p.s.Logger().Debugf("scanning imgur album: %s", albumID)

	b, err := download.Get(ctx, p.s.HTTPClient(), p.cfg.APIURL+"/album/"+url.PathEscape(albumID), p.header)
	if err != nil {
		return nil, err
	}

	aidw := &albumInfoDataWrapper{}
	err = json.Unmarshal(b, aidw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode album info: %w", err)
	}

	if !aidw.Success || aidw.AI == nil {
		return nil, fmt.Errorf("album info response has success=false: album=%s status=%d", albumID, aidw.Status)
	}

	var links []string
	for _, img := range aidw.AI.Images {
		p.s.Logger().Debugf("detected imgur album image link: %s", img.Link)
		links = append(links, img.Link)
	}

	return links, nil
}

// downloadAlbum saves every image of an album to targetDir/<album id>. Images
// already present are kept, so an interrupted album can be completed by
// downloading it again.
func (p *Provider) downloadAlbum(ctx context.Context, albumID string, targetDir string) (string, error) {
	links, err := p.albumLinks(ctx, albumID)
	if err != nil {
		return "", err
	}
	if len(links) == 0 {
		return "", fmt.Errorf("imgur album contains 0 images: album=%s", albumID)
	}

	// Transfer only creates one directory level.
	_, err = fileutil.EnsureDir(targetDir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: dir=%s", download.ErrMissingParentDir, targetDir)
	}
	if err != nil {
		return "", err
	}

	albumDir := filepath.Join(targetDir, albumID)
	for _, link := range links {
		lu, err := url.Parse(link)
		if err != nil {
			return "", fmt.Errorf("invalid imgur image link: link=%s err=%w", link, err)
		}

		_, err = p.s.Transfer(ctx, link, albumDir, path.Base(lu.Path), p.header)
		if errors.Is(err, download.ErrFileExists) {
			// Saved by an earlier, interrupted run.
			p.s.Logger().Debugf("skipping imgur album image already on disk: %s", link)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to save image belonging to imgur album: image_url=%s err=%w", link, err)
		}
	}

	return albumDir, nil
}
