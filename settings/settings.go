package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ccollins476ad/hostdl/download"
	"github.com/ccollins476ad/hostdl/fileutil"
	"github.com/ccollins476ad/hostdl/provider"
	"github.com/ccollins476ad/hostdl/provider/fikper"
	"github.com/ccollins476ad/hostdl/provider/imgur"
	"github.com/ccollins476ad/hostdl/provider/rapidgator"
	"github.com/ccollins476ad/hostdl/secret"
	log "github.com/sirupsen/logrus"
)

// Provider keys recognized in the "providers" object.
const (
	KeyFikper     = "fikper.com"
	KeyRapidgator = "rapidgator.net"
	KeyImgur      = "imgur.com"
)

// Settings is the configuration of one run.
type Settings struct {
	DownloadDir       string
	UseProviderSubdir bool
	Providers         *provider.Registry
}

// Deps are the collaborators handed to the configured providers.
type Deps struct {
	Store   *download.Store
	Secrets *secret.Resolver
	Log     log.FieldLogger
}

type fileConfig struct {
	DownloadDir       *string         `json:"download_dir"`
	UseProviderSubdir *bool           `json:"use_provider_subdir"`
	Providers         json.RawMessage `json:"providers"`
}

// rawProvider is one member of the "providers" object, in file order.
type rawProvider struct {
	key string
	cfg json.RawMessage
}

// DefaultDownloadDir returns ~/Downloads.
func DefaultDownloadDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Downloads"), nil
}

// Default returns the settings used when there is no config file: downloads
// go to ~/Downloads, one subdirectory per provider, and no provider is
// configured.
func Default(deps Deps) (*Settings, error) {
	deps = deps.withDefaults()

	dir, err := DefaultDownloadDir()
	if err != nil {
		return nil, err
	}

	return &Settings{
		DownloadDir:       dir,
		UseProviderSubdir: true,
		Providers:         provider.NewRegistry(deps.Log),
	}, nil
}

// Load reads the JSON config file at path. A missing file yields Default().
func Load(path string, deps Deps) (*Settings, error) {
	deps = deps.withDefaults()

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		deps.Log.Debugf("config file not found, using defaults: %s", path)
		return Default(deps)
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	st, err := Parse(b, deps)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return st, nil
}

// Parse decodes a JSON config document. Providers are registered in the order
// they appear in the document; unknown provider keys are skipped.
func Parse(b []byte, deps Deps) (*Settings, error) {
	deps = deps.withDefaults()

	var fc fileConfig
	err := json.Unmarshal(b, &fc)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	st, err := Default(deps)
	if err != nil {
		return nil, err
	}

	if fc.DownloadDir != nil && *fc.DownloadDir != "" {
		dir, err := fileutil.ExpandHome(*fc.DownloadDir)
		if err != nil {
			return nil, fmt.Errorf("parse download_dir: %w", err)
		}
		st.DownloadDir = dir
	}
	if fc.UseProviderSubdir != nil {
		st.UseProviderSubdir = *fc.UseProviderSubdir
	}

	rps, err := orderedMembers(fc.Providers)
	if err != nil {
		return nil, fmt.Errorf("parse providers: %w", err)
	}

	for _, rp := range rps {
		p, err := newProvider(rp.key, rp.cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", rp.key, err)
		}
		if p == nil {
			deps.Log.Warnf("ignoring unknown provider: %s", rp.key)
			continue
		}

		err = st.Providers.Add(rp.key, p)
		if err != nil {
			return nil, err
		}
	}

	return st, nil
}

// orderedMembers splits a JSON object into its members without losing their
// order.
func orderedMembers(b json.RawMessage) ([]rawProvider, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("wrong type: have=%v want=object", tok)
	}

	var rps []rawProvider
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := tok.(string)

		var cfg json.RawMessage
		err = dec.Decode(&cfg)
		if err != nil {
			return nil, fmt.Errorf("key=%s: %w", key, err)
		}

		rps = append(rps, rawProvider{key: key, cfg: cfg})
	}

	_, err = dec.Token()
	if err != nil {
		return nil, err
	}

	return rps, nil
}

// newProvider builds the provider for key. It returns nil for keys it does not
// know.
func newProvider(key string, raw json.RawMessage, deps Deps) (provider.Provider, error) {
	switch key {
	case KeyFikper:
		var cfg fikper.Config
		err := json.Unmarshal(raw, &cfg)
		if err != nil {
			return nil, err
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing required field: api_key")
		}
		return fikper.NewProvider(deps.Store, cfg), nil

	case KeyRapidgator:
		var cfg rapidgator.Config
		err := json.Unmarshal(raw, &cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("missing required field: username and password")
		}
		return rapidgator.NewProvider(deps.Store, deps.Secrets, cfg), nil

	case KeyImgur:
		var cfg imgur.Config
		err := json.Unmarshal(raw, &cfg)
		if err != nil {
			return nil, err
		}
		if cfg.ClientID == "" {
			return nil, fmt.Errorf("missing required field: client_id")
		}
		return imgur.NewProvider(deps.Store, cfg), nil

	default:
		return nil, nil
	}
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = log.StandardLogger()
	}
	if d.Store == nil {
		d.Store = download.NewStore(nil, d.Log)
	}
	if d.Secrets == nil {
		d.Secrets = secret.NewResolver(&secret.PassStore{})
	}
	return d
}
