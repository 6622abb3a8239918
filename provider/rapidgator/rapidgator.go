package rapidgator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ccollins476ad/hostdl/download"
	"github.com/ccollins476ad/hostdl/provider"
	"github.com/ccollins476ad/hostdl/secret"
)

const DefaultAPIURL = "https://rapidgator.net/api/v2"

var pattern = provider.MustCompilePattern(`https?://rapidgator\.net/file/(?P<id>\w+)/[\w.\-]+\.html`)

// Config holds the rapidgator.net account settings. Password and OTP may be
// secret references (see package secret). An empty OTP disables two-factor
// login.
type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
	APIURL   string `json:"api_url,omitempty"`
}

// envelope wraps every rapidgator api response.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Status   int             `json:"status"`
	Details  *string         `json:"details"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type fileInfoResponse struct {
	File struct {
		Name string `json:"name"`
	} `json:"file"`
}

type fileDownloadResponse struct {
	DownloadURL string `json:"download_url"`
}

// Provider retrieves files from rapidgator.net through its v2 api. It
// implements the provider.Provider interface.
type Provider struct {
	s   *download.Store
	sr  *secret.Resolver
	cfg Config
}

// NewProvider returns a rapidgator provider that resolves credentials with
// sr. An empty cfg.APIURL selects DefaultAPIURL.
func NewProvider(s *download.Store, sr *secret.Resolver, cfg Config) *Provider {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return &Provider{
		s:   s,
		sr:  sr,
		cfg: cfg,
	}
}

// Match implements provider.Provider#Match. The match contains "id".
func (p *Provider) Match(u string) provider.Match {
	return provider.MatchPattern(pattern, u)
}

// Download logs in, looks up the file's name and direct download url, and
// saves the file. The file is always named as reported by the api; the name
// argument is ignored. See provider.Provider#Download for API details.
func (p *Provider) Download(ctx context.Context, u string, targetDir string, name string) (string, error) {
	m := p.Match(u)
	if m == nil {
		return "", fmt.Errorf("%w: provider=rapidgator.net url=%s", provider.ErrInvalidURL, u)
	}
	fileID := m["id"]

	token, err := p.login(ctx)
	if err != nil {
		return "", err
	}

	remoteName, err := p.fileName(ctx, token, fileID)
	if err != nil {
		return "", err
	}

	directURL, err := p.fileDownloadURL(ctx, token, fileID)
	if err != nil {
		return "", err
	}

	return p.s.Transfer(ctx, directURL, targetDir, remoteName, nil)
}

// call posts req to the given api endpoint and decodes the envelope's
// "response" member into rsp. A status other than 200 in the envelope is
// reported as an upstream error, even if the http status was a success.
func (p *Provider) call(ctx context.Context, endpoint string, req any, rsp any) error {
	u := p.cfg.APIURL + "/" + endpoint

	var env envelope
	err := download.PostJSON(ctx, p.s.HTTPClient(), u, nil, req, &env)
	if err != nil {
		return err
	}

	if env.Status != 0 && env.Status != http.StatusOK {
		ue := &download.UpstreamError{
			URL:        u,
			StatusCode: env.Status,
			Status:     fmt.Sprintf("%d %s", env.Status, http.StatusText(env.Status)),
		}
		if env.Details != nil {
			ue.Detail = *env.Details
		}
		return ue
	}

	if len(env.Response) == 0 || string(env.Response) == "null" {
		return fmt.Errorf("rapidgator api returned no response: endpoint=%s", endpoint)
	}

	err = json.Unmarshal(env.Response, rsp)
	if err != nil {
		return fmt.Errorf("failed to decode rapidgator response: endpoint=%s err=%w", endpoint, err)
	}

	return nil
}

// login obtains a session token.
func (p *Provider) login(ctx context.Context) (string, error) {
	password, err := p.sr.Password(ctx, p.cfg.Password)
	if err != nil {
		return "", err
	}

	req := map[string]string{
		"login":    p.cfg.Username,
		"password": password,
	}
	if p.cfg.OTP != "" {
		code, err := p.sr.OTP(ctx, p.cfg.OTP)
		if err != nil {
			return "", err
		}
		req["code"] = code
	}

	var rsp loginResponse
	err = p.call(ctx, "user/login", req, &rsp)
	if err != nil {
		return "", fmt.Errorf("rapidgator login failed: username=%s err=%w", p.cfg.Username, err)
	}
	if rsp.Token == "" {
		return "", fmt.Errorf("rapidgator login returned no token: username=%s", p.cfg.Username)
	}

	p.s.Logger().Debugf("logged in to rapidgator: username=%s", p.cfg.Username)
	return rsp.Token, nil
}

func (p *Provider) fileName(ctx context.Context, token string, fileID string) (string, error) {
	var rsp fileInfoResponse
	err := p.call(ctx, "file/info", map[string]string{"token": token, "file_id": fileID}, &rsp)
	if err != nil {
		return "", fmt.Errorf("failed to get rapidgator file info: file_id=%s err=%w", fileID, err)
	}
	if rsp.File.Name == "" {
		return "", fmt.Errorf("rapidgator file info lacks a name: file_id=%s", fileID)
	}

	return rsp.File.Name, nil
}

func (p *Provider) fileDownloadURL(ctx context.Context, token string, fileID string) (string, error) {
	var rsp fileDownloadResponse
	err := p.call(ctx, "file/download", map[string]string{"token": token, "file_id": fileID}, &rsp)
	if err != nil {
		return "", fmt.Errorf("failed to get rapidgator download url: file_id=%s err=%w", fileID, err)
	}
	if rsp.DownloadURL == "" {
		return "", fmt.Errorf("rapidgator returned an empty download url: file_id=%s", fileID)
	}

	return rsp.DownloadURL, nil
}
